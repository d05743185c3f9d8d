package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// ResultRepository handles per-attempt result records.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

const resultColumns = `id, user_quiz_id, attempt_number, quiz_id, user_id, course_id, score,
	status, started_at, completed_at, duration_seconds, metadata`

func scanResult(row pgx.Row, res *model.Result) error {
	return row.Scan(&res.ID, &res.UserQuizID, &res.AttemptNumber, &res.QuizID, &res.UserID,
		&res.CourseID, &res.Score, &res.Status, &res.StartedAt, &res.CompletedAt,
		&res.DurationSeconds, &res.Metadata)
}

// Create inserts an IN_PROGRESS result for a new attempt.
func (r *ResultRepository) Create(ctx context.Context, res *model.Result) error {
	res.Status = model.ResultStatusInProgress
	return scanResult(conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO user_quiz_results (user_quiz_id, attempt_number, quiz_id, user_id, course_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+resultColumns,
		res.UserQuizID, res.AttemptNumber, res.QuizID, res.UserID, res.CourseID, res.Status,
	), res)
}

// GetByID retrieves a result by ID.
func (r *ResultRepository) GetByID(ctx context.Context, id int64) (*model.Result, error) {
	res := &model.Result{}
	if err := scanResult(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+resultColumns+` FROM user_quiz_results WHERE id = $1`, id), res); err != nil {
		return nil, err
	}
	return res, nil
}

// GetLatestByUserQuiz retrieves the most recent attempt of an aggregate.
func (r *ResultRepository) GetLatestByUserQuiz(ctx context.Context, userQuizID int64) (*model.Result, error) {
	res := &model.Result{}
	if err := scanResult(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+resultColumns+` FROM user_quiz_results
		 WHERE user_quiz_id = $1
		 ORDER BY attempt_number DESC, id DESC
		 LIMIT 1`, userQuizID), res); err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateDuration records elapsed time on an open result.
// A finalized result yields ErrResultFinalized.
func (r *ResultRepository) UpdateDuration(ctx context.Context, id int64, durationSeconds int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE user_quiz_results SET duration_seconds = GREATEST(duration_seconds, $2)
		 WHERE id = $1 AND completed_at IS NULL`, id, durationSeconds)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrResultFinalized
	}
	return nil
}

// Finalize completes a result. Only the first call wins; later calls see
// ErrResultFinalized.
func (r *ResultRepository) Finalize(ctx context.Context, id int64, score int, status model.ResultStatus, durationSeconds int, completedAt time.Time, metadata json.RawMessage) (*model.Result, error) {
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	res := &model.Result{}
	err := scanResult(conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE user_quiz_results
		 SET score = $2, status = $3, duration_seconds = $4, completed_at = $5, metadata = $6
		 WHERE id = $1 AND completed_at IS NULL
		 RETURNING `+resultColumns,
		id, score, status, durationSeconds, completedAt, metadata), res)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultFinalized
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
