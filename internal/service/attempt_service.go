package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// answerBufferTTL bounds how long streamed answers live in Redis.
const answerBufferTTL = 24 * time.Hour

// UserQuizStore is the attempt aggregate persistence.
type UserQuizStore interface {
	Create(ctx context.Context, userID, quizID int64) (*model.UserQuiz, error)
	GetByUserAndQuiz(ctx context.Context, userID, quizID int64) (*model.UserQuiz, error)
	LockByID(ctx context.Context, id int64) (*model.UserQuiz, error)
	MarkStarted(ctx context.Context, id int64) (*model.UserQuiz, error)
	Retake(ctx context.Context, id int64) (*model.UserQuiz, error)
	RecordResult(ctx context.Context, id int64, score int, passed bool, attemptNumber int) (*model.UserQuiz, error)
	ListByUser(ctx context.Context, userID int64) ([]model.UserQuiz, error)
}

// ResultStore is the per-attempt persistence.
type ResultStore interface {
	Create(ctx context.Context, res *model.Result) error
	GetByID(ctx context.Context, id int64) (*model.Result, error)
	GetLatestByUserQuiz(ctx context.Context, userQuizID int64) (*model.Result, error)
	UpdateDuration(ctx context.Context, id int64, durationSeconds int) error
	Finalize(ctx context.Context, id int64, score int, status model.ResultStatus, durationSeconds int, completedAt time.Time, metadata json.RawMessage) (*model.Result, error)
}

// AnswerStore is the per-question answer persistence.
type AnswerStore interface {
	UpsertSelectedChoice(ctx context.Context, resultID, questionID, choiceID int64) error
	UpsertInputAnswer(ctx context.Context, resultID, questionID int64, text string) error
	ListByResult(ctx context.Context, resultID int64) ([]model.AnswerEntry, error)
}

// QuizViews serves the assembled quiz projections.
type QuizViews interface {
	ReviewView(ctx context.Context, quizID int64) (*model.ReviewView, error)
}

// QuizNames looks up quizzes for progress listings.
type QuizNames interface {
	ListByIDs(ctx context.Context, ids []int64) ([]model.Quiz, error)
}

// CourseNamer resolves course titles; "" when unavailable.
type CourseNamer interface {
	CourseName(ctx context.Context, courseID int64) string
}

// AttemptService runs the attempt lifecycle: start or resume, autosave,
// final submission with scoring, and review.
type AttemptService struct {
	userQuizzes UserQuizStore
	results     ResultStore
	answers     AnswerStore
	views       QuizViews
	quizzes     QuizNames
	courses     CourseNamer
	tx          Transactor
	rdb         *redis.Client
	now         func() time.Time
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	userQuizzes UserQuizStore,
	results ResultStore,
	answers AnswerStore,
	views QuizViews,
	quizzes QuizNames,
	courses CourseNamer,
	tx Transactor,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		userQuizzes: userQuizzes,
		results:     results,
		answers:     answers,
		views:       views,
		quizzes:     quizzes,
		courses:     courses,
		tx:          tx,
		rdb:         rdb,
		now:         time.Now,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start begins the learner's first attempt or resumes the open one.
// A completed latest attempt yields ErrAttemptCompleted; use Retake.
func (s *AttemptService) Start(ctx context.Context, userID, quizID int64) (*model.StartAttemptResponse, error) {
	view, err := s.publishedView(ctx, quizID)
	if err != nil {
		return nil, err
	}

	var out model.StartAttemptResponse
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		uq, err := s.userQuizzes.Create(ctx, userID, quizID)
		if err == nil {
			res, err := s.newResult(ctx, uq, 1, view.CourseID)
			if err != nil {
				return err
			}
			out = model.StartAttemptResponse{UserQuiz: uq, Result: res}
			return nil
		}
		if !errors.Is(err, repository.ErrUserQuizExists) {
			return fmt.Errorf("create user quiz: %w", err)
		}

		existing, err := s.userQuizzes.GetByUserAndQuiz(ctx, userID, quizID)
		if err != nil {
			return fmt.Errorf("get user quiz: %w", err)
		}
		uq, err = s.userQuizzes.LockByID(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("lock user quiz: %w", err)
		}

		latest, err := s.results.GetLatestByUserQuiz(ctx, uq.ID)
		switch {
		case err == nil && !latest.Completed():
			out = model.StartAttemptResponse{UserQuiz: uq, Result: latest, Resumed: true}
			return nil
		case err == nil:
			return ErrAttemptCompleted
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("get latest result: %w", err)
		}

		// Aggregate exists without any attempt, e.g. created by an earlier failed start.
		uq, err = s.userQuizzes.MarkStarted(ctx, uq.ID)
		if err != nil {
			return fmt.Errorf("mark started: %w", err)
		}
		res, err := s.newResult(ctx, uq, uq.AttemptCount, view.CourseID)
		if err != nil {
			return err
		}
		out = model.StartAttemptResponse{UserQuiz: uq, Result: res}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("user_id", userID).
		Int64("quiz_id", quizID).
		Int64("result_id", out.Result.ID).
		Bool("resumed", out.Resumed).
		Msg("Attempt started")
	return &out, nil
}

// Retake opens a new attempt after a completed one. An open attempt is
// returned as is.
func (s *AttemptService) Retake(ctx context.Context, userID, quizID int64) (*model.StartAttemptResponse, error) {
	view, err := s.publishedView(ctx, quizID)
	if err != nil {
		return nil, err
	}

	existing, err := s.userQuizzes.GetByUserAndQuiz(ctx, userID, quizID)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.Start(ctx, userID, quizID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user quiz: %w", err)
	}

	var out model.StartAttemptResponse
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		uq, err := s.userQuizzes.LockByID(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("lock user quiz: %w", err)
		}

		latest, err := s.results.GetLatestByUserQuiz(ctx, uq.ID)
		if err == nil && !latest.Completed() {
			out = model.StartAttemptResponse{UserQuiz: uq, Result: latest, Resumed: true}
			return nil
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get latest result: %w", err)
		}

		uq, err = s.userQuizzes.Retake(ctx, uq.ID)
		if err != nil {
			return fmt.Errorf("retake: %w", err)
		}
		res, err := s.newResult(ctx, uq, uq.AttemptCount, view.CourseID)
		if err != nil {
			return err
		}
		out = model.StartAttemptResponse{UserQuiz: uq, Result: res}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("user_id", userID).
		Int64("quiz_id", quizID).
		Int("attempt", out.Result.AttemptNumber).
		Bool("resumed", out.Resumed).
		Msg("Retake started")
	return &out, nil
}

// State returns the stored answers of a result. Answers still buffered from
// the attempt stream take precedence over rows already in PostgreSQL.
func (s *AttemptService) State(ctx context.Context, userID, resultID int64) (*model.ResumeState, error) {
	res, err := s.OwnedResult(ctx, userID, resultID)
	if err != nil {
		return nil, err
	}

	stored, err := s.answers.ListByResult(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	answers := stored
	if !res.Completed() {
		buffered, err := s.buffered(ctx, resultID)
		if err != nil {
			s.log.Warn().Err(err).Int64("result_id", resultID).Msg("Read answer buffer failed")
		}
		answers = overlay(stored, buffered)
	}

	return &model.ResumeState{
		ResultID:   res.ID,
		UserQuizID: res.UserQuizID,
		QuizID:     res.QuizID,
		StartedAt:  res.StartedAt,
		Completed:  res.Completed(),
		Answers:    answers,
	}, nil
}

// Submit stores a submission. Non-final submissions only upsert answers and
// elapsed time. A final submission also scores the attempt, completes the
// result and folds it into the aggregate, all in one transaction.
func (s *AttemptService) Submit(ctx context.Context, userID int64, sub *model.Submission) (*model.SubmissionResult, error) {
	res, err := s.OwnedResult(ctx, userID, sub.ResultID)
	if err != nil {
		return nil, err
	}
	if res.UserQuizID != sub.UserQuizID {
		return nil, ErrResultMismatch
	}
	if res.Completed() {
		return nil, ErrResultFinalized
	}

	view, err := s.views.ReviewView(ctx, res.QuizID)
	if err != nil {
		return nil, err
	}
	entries, err := ValidateAnswers(view, sub.Answers)
	if err != nil {
		return nil, err
	}

	if !sub.IsFinalSubmission {
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.save(ctx, res.ID, entries); err != nil {
				return err
			}
			return s.results.UpdateDuration(ctx, res.ID, sub.DurationSeconds)
		})
		if err != nil {
			return nil, err
		}
		// Keep a buffer left by the attempt stream from shadowing these answers.
		if err := s.bufferAnswers(ctx, res.ID, entries, false); err != nil {
			s.log.Warn().Err(err).Int64("result_id", res.ID).Msg("Refresh answer buffer failed")
		}
		if sub.DurationSeconds > res.DurationSeconds {
			res.DurationSeconds = sub.DurationSeconds
		}
		return &model.SubmissionResult{Result: res, TotalMarks: view.Marks(), Saved: len(entries)}, nil
	}

	return s.finalize(ctx, res, view, entries, sub.DurationSeconds)
}

// Review grades a completed result question by question.
func (s *AttemptService) Review(ctx context.Context, userID, resultID int64) (*model.ResultReview, error) {
	res, err := s.OwnedResult(ctx, userID, resultID)
	if err != nil {
		return nil, err
	}
	if !res.Completed() {
		return nil, ErrResultNotCompleted
	}

	view, err := s.views.ReviewView(ctx, res.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.ListByResult(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	byQuestion := make(map[int64]model.AnswerEntry, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	review := &model.ResultReview{
		Result:     res,
		QuizName:   view.Name,
		CourseName: view.CourseName,
		TotalMarks: view.Marks(),
		Questions:  make([]model.ReviewItem, 0, len(view.Questions)),
	}
	for i := range view.Questions {
		q := &view.Questions[i]
		a := byQuestion[q.ID]
		review.Questions = append(review.Questions, model.ReviewItem{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			QuestionType: q.Type,
			Points:       q.Points,
			Correct:      IsCorrect(q, a),
			Choices:      q.Choices,
			Answers:      q.Answers,
			UserAnswer: model.UserAnswer{
				SelectedChoiceIDs: a.SelectedChoiceIDs,
				TextAnswer:        a.InputAnswer,
			},
		})
	}
	return review, nil
}

// Latest returns the learner's most recent attempt on a quiz.
func (s *AttemptService) Latest(ctx context.Context, userID, quizID int64) (*model.Result, error) {
	uq, err := s.userQuizzes.GetByUserAndQuiz(ctx, userID, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get user quiz: %w", err)
	}
	res, err := s.results.GetLatestByUserQuiz(ctx, uq.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get latest result: %w", err)
	}
	return res, nil
}

// Progress lists the learner's standing on every quiz they have started.
// Course names are best-effort.
func (s *AttemptService) Progress(ctx context.Context, userID int64) ([]model.ProgressEntry, error) {
	aggregates, err := s.userQuizzes.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user quizzes: %w", err)
	}
	out := make([]model.ProgressEntry, 0, len(aggregates))
	if len(aggregates) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(aggregates))
	for _, uq := range aggregates {
		ids = append(ids, uq.QuizID)
	}
	quizzes, err := s.quizzes.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	byID := make(map[int64]model.Quiz, len(quizzes))
	for _, q := range quizzes {
		byID[q.ID] = q
	}

	names := make(map[int64]string)
	for _, uq := range aggregates {
		entry := model.ProgressEntry{UserQuiz: uq}
		if q, ok := byID[uq.QuizID]; ok {
			entry.QuizName = q.Name
			entry.CourseID = q.CourseID
			name, seen := names[q.CourseID]
			if !seen {
				name = s.courses.CourseName(ctx, q.CourseID)
				names[q.CourseID] = name
			}
			entry.CourseName = name
		}
		out = append(out, entry)
	}
	return out, nil
}

// OwnedResult loads a result and checks that it belongs to the user.
// Results of other users look the same as missing ones.
func (s *AttemptService) OwnedResult(ctx context.Context, userID, resultID int64) (*model.Result, error) {
	res, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if res.UserID != userID {
		return nil, ErrResultNotFound
	}
	return res, nil
}

// VerifyOpen loads a result for the attempt stream. It must belong to the
// user and still be open.
func (s *AttemptService) VerifyOpen(ctx context.Context, userID, resultID int64) (*model.Result, error) {
	res, err := s.OwnedResult(ctx, userID, resultID)
	if err != nil {
		return nil, err
	}
	if res.Completed() {
		return nil, ErrResultFinalized
	}
	return res, nil
}

// Autosave buffers streamed answers in Redis and queues them for the answer
// worker. It returns the number of answers accepted. The result is reloaded
// so a stream opened earlier cannot save into an attempt submitted since.
func (s *AttemptService) Autosave(ctx context.Context, res *model.Result, answers []model.SubmissionAnswer) (int, error) {
	current, err := s.results.GetByID(ctx, res.ID)
	if err != nil {
		return 0, fmt.Errorf("get result: %w", err)
	}
	if current.Completed() {
		return 0, ErrResultFinalized
	}

	view, err := s.views.ReviewView(ctx, res.QuizID)
	if err != nil {
		return 0, err
	}
	entries, err := ValidateAnswers(view, answers)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := s.bufferAnswers(ctx, res.ID, entries, true); err != nil {
		return 0, fmt.Errorf("buffer answers: %w", err)
	}
	return len(entries), nil
}

// bufferAnswers writes entries into the result's Redis buffer and, when
// queue is set, enqueues them for the answer worker.
func (s *AttemptService) bufferAnswers(ctx context.Context, resultID int64, entries []model.AnswerEntry, queue bool) error {
	key := config.CacheKey.ResultAnswersKey(resultID)
	pipe := s.rdb.TxPipeline()
	for _, e := range entries {
		entryJSON, err := json.Marshal(e)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, strconv.FormatInt(e.QuestionID, 10), entryJSON)
		if !queue {
			continue
		}
		jobJSON, err := json.Marshal(model.AnswerJob{ResultID: resultID, Answer: e})
		if err != nil {
			return err
		}
		pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, jobJSON)
	}
	pipe.Expire(ctx, key, answerBufferTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// SubmitBuffered finalizes a result from the answers buffered over the
// attempt stream merged over those already stored.
func (s *AttemptService) SubmitBuffered(ctx context.Context, res *model.Result, durationSeconds int) (*model.SubmissionResult, error) {
	view, err := s.views.ReviewView(ctx, res.QuizID)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, res, view, nil, durationSeconds)
}

// PersistAnswer writes one buffered answer. Used by the answer worker.
func (s *AttemptService) PersistAnswer(ctx context.Context, job model.AnswerJob) error {
	return s.save(ctx, job.ResultID, []model.AnswerEntry{job.Answer})
}

// finalize grades the stored answers overlaid with the Redis buffer and then
// with entries, so streamed answers the worker has not persisted yet count.
func (s *AttemptService) finalize(ctx context.Context, res *model.Result, view *model.ReviewView, entries []model.AnswerEntry, durationSeconds int) (*model.SubmissionResult, error) {
	buffered, err := s.buffered(ctx, res.ID)
	if err != nil {
		return nil, fmt.Errorf("read answer buffer: %w", err)
	}
	entries = overlay(buffered, entries)

	now := s.now()
	duration := durationSeconds
	if duration < res.DurationSeconds {
		duration = res.DurationSeconds
	}
	if duration == 0 {
		duration = int(now.Sub(res.StartedAt).Seconds())
	}

	var out model.SubmissionResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.save(ctx, res.ID, entries); err != nil {
			return err
		}
		all, err := s.answers.ListByResult(ctx, res.ID)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}

		grade := ScoreAttempt(view, all)
		final, err := s.results.Finalize(ctx, res.ID, grade.Score, grade.Status(), duration, now, grade.Metadata())
		if err != nil {
			return err
		}
		uq, err := s.userQuizzes.RecordResult(ctx, res.UserQuizID, grade.Score, grade.Passed, final.AttemptNumber)
		if err != nil {
			return fmt.Errorf("record result: %w", err)
		}

		out = model.SubmissionResult{
			Result:     final,
			UserQuiz:   uq,
			TotalMarks: grade.TotalMarks,
			Passed:     grade.Passed,
			Saved:      len(entries),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.rdb.Del(ctx, config.CacheKey.ResultAnswersKey(res.ID)).Err(); err != nil {
		s.log.Warn().Err(err).Int64("result_id", res.ID).Msg("Clear answer buffer failed")
	}

	s.log.Info().
		Int64("result_id", res.ID).
		Int("score", out.Result.Score).
		Int("total_marks", out.TotalMarks).
		Bool("passed", out.Passed).
		Msg("Attempt submitted")
	return &out, nil
}

// save upserts non-empty answers. A finalized result yields ErrResultFinalized.
func (s *AttemptService) save(ctx context.Context, resultID int64, entries []model.AnswerEntry) error {
	for _, e := range entries {
		if e.Empty() {
			continue
		}
		if len(e.SelectedChoiceIDs) > 0 {
			if err := s.answers.UpsertSelectedChoice(ctx, resultID, e.QuestionID, e.SelectedChoiceIDs[0]); err != nil {
				return err
			}
			continue
		}
		if err := s.answers.UpsertInputAnswer(ctx, resultID, e.QuestionID, strings.TrimSpace(*e.InputAnswer)); err != nil {
			return err
		}
	}
	return nil
}

// buffered reads the streamed answers of a result from Redis.
func (s *AttemptService) buffered(ctx context.Context, resultID int64) ([]model.AnswerEntry, error) {
	fields, err := s.rdb.HGetAll(ctx, config.CacheKey.ResultAnswersKey(resultID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.AnswerEntry, 0, len(fields))
	for _, raw := range fields {
		var e model.AnswerEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			s.log.Warn().Err(err).Int64("result_id", resultID).Msg("Skipping malformed buffered answer")
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *AttemptService) publishedView(ctx context.Context, quizID int64) (*model.ReviewView, error) {
	view, err := s.views.ReviewView(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if view.Status != model.QuizStatusPublished {
		return nil, ErrQuizNotAvailable
	}
	return view, nil
}

func (s *AttemptService) newResult(ctx context.Context, uq *model.UserQuiz, attemptNumber int, courseID int64) (*model.Result, error) {
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	res := &model.Result{
		UserQuizID:    uq.ID,
		AttemptNumber: attemptNumber,
		QuizID:        uq.QuizID,
		UserID:        uq.UserID,
		CourseID:      courseID,
	}
	if err := s.results.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("create result: %w", err)
	}
	return res, nil
}

// ValidateAnswers checks submitted answers against the quiz and drops empty
// ones. Every question must belong to the quiz and every choice to its question.
func ValidateAnswers(view *model.ReviewView, answers []model.SubmissionAnswer) ([]model.AnswerEntry, error) {
	out := make([]model.AnswerEntry, 0, len(answers))
	for _, a := range answers {
		q, ok := view.Question(a.QuestionID)
		if !ok {
			return nil, fmt.Errorf("%w: question %d is not in quiz %d", ErrInvalidAnswer, a.QuestionID, view.QuizID)
		}
		if a.QuestionType != "" && a.QuestionType != q.Type {
			return nil, fmt.Errorf("%w: question %d is %s", ErrInvalidAnswer, a.QuestionID, q.Type)
		}

		entry := model.AnswerEntry{QuestionID: q.ID, QuestionType: q.Type}
		if q.Type.UsesChoices() {
			if len(a.SelectedChoiceIDs) > 1 {
				return nil, fmt.Errorf("%w: question %d takes one choice", ErrInvalidAnswer, a.QuestionID)
			}
			for _, cid := range a.SelectedChoiceIDs {
				if !q.HasChoice(cid) {
					return nil, fmt.Errorf("%w: choice %d is not part of question %d", ErrInvalidAnswer, cid, a.QuestionID)
				}
			}
			entry.SelectedChoiceIDs = a.SelectedChoiceIDs
		} else if a.InputAnswer != nil {
			text := strings.TrimSpace(*a.InputAnswer)
			entry.InputAnswer = &text
		}

		if entry.Empty() {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// overlay replaces stored answers with buffered ones per question.
func overlay(stored, buffered []model.AnswerEntry) []model.AnswerEntry {
	if len(buffered) == 0 {
		return stored
	}
	byQuestion := make(map[int64]model.AnswerEntry, len(stored)+len(buffered))
	for _, a := range stored {
		byQuestion[a.QuestionID] = a
	}
	for _, a := range buffered {
		byQuestion[a.QuestionID] = a
	}
	out := make([]model.AnswerEntry, 0, len(byQuestion))
	for _, a := range byQuestion {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}
