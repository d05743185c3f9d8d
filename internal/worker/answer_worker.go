package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerPersister writes one buffered answer to PostgreSQL.
type AnswerPersister interface {
	PersistAnswer(ctx context.Context, job model.AnswerJob) error
}

// AnswerWorker consumes persist_answers_queue and upserts answers.
type AnswerWorker struct {
	persister  AnswerPersister
	rdb        *redis.Client
	queue      string
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(persister AnswerPersister, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		persister:  persister,
		rdb:        rdb,
		queue:      config.WorkerKey.PersistAnswersQueue,
		retryDelay: 5 * time.Second,
		log:        log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start runs the worker loop until ctx is cancelled, then drains the queue.
// Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or the timeout passes.
	result, err := w.rdb.BLPop(ctx, time.Second, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.handle(ctx, result[1]); err != nil {
		// Back to the head: a later job for the same question must not run first.
		w.log.Error().Err(err).Msg("Persist error, requeued")
		w.rdb.LPush(ctx, w.queue, result[1])

		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// handle persists one job. Malformed jobs and answers for submitted
// attempts are dropped; only storage errors are returned for retry.
func (w *AnswerWorker) handle(ctx context.Context, raw string) error {
	var job model.AnswerJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping job")
		return nil
	}

	err := w.persister.PersistAnswer(ctx, job)
	if errors.Is(err, repository.ErrResultFinalized) {
		w.log.Debug().Int64("result_id", job.ResultID).Msg("Result already submitted, dropping answer")
		return nil
	}
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		if err := w.handle(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.LPush(ctx, w.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
