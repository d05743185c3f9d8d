package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// UserQuizRepository handles the per (user, quiz) attempt aggregate.
type UserQuizRepository struct {
	pool *pgxpool.Pool
}

// NewUserQuizRepository creates a new UserQuizRepository.
func NewUserQuizRepository(pool *pgxpool.Pool) *UserQuizRepository {
	return &UserQuizRepository{pool: pool}
}

const userQuizColumns = `id, user_id, quiz_id, attempt_count, best_score, first_attempt_at,
	last_attempt_at, passed_at, status, created_at, updated_at`

func scanUserQuiz(row pgx.Row, uq *model.UserQuiz) error {
	return row.Scan(&uq.ID, &uq.UserID, &uq.QuizID, &uq.AttemptCount, &uq.BestScore,
		&uq.FirstAttemptAt, &uq.LastAttemptAt, &uq.PassedAt, &uq.Status, &uq.CreatedAt, &uq.UpdatedAt)
}

// Create inserts the aggregate for a first attempt. If one already exists for
// (user, quiz) nothing is written and ErrUserQuizExists is returned.
func (r *UserQuizRepository) Create(ctx context.Context, userID, quizID int64) (*model.UserQuiz, error) {
	uq := &model.UserQuiz{}
	err := scanUserQuiz(conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO user_quizzes (user_id, quiz_id, attempt_count, status, first_attempt_at, last_attempt_at)
		 VALUES ($1, $2, 1, $3, NOW(), NOW())
		 ON CONFLICT (user_id, quiz_id) DO NOTHING
		 RETURNING `+userQuizColumns,
		userID, quizID, model.UserQuizStatusInProgress,
	), uq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserQuizExists
	}
	if err != nil {
		return nil, err
	}
	return uq, nil
}

// GetByUserAndQuiz retrieves the aggregate for a (user, quiz) pair.
func (r *UserQuizRepository) GetByUserAndQuiz(ctx context.Context, userID, quizID int64) (*model.UserQuiz, error) {
	uq := &model.UserQuiz{}
	if err := scanUserQuiz(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userQuizColumns+` FROM user_quizzes WHERE user_id = $1 AND quiz_id = $2`,
		userID, quizID), uq); err != nil {
		return nil, err
	}
	return uq, nil
}

// GetByID retrieves an aggregate by ID.
func (r *UserQuizRepository) GetByID(ctx context.Context, id int64) (*model.UserQuiz, error) {
	uq := &model.UserQuiz{}
	if err := scanUserQuiz(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userQuizColumns+` FROM user_quizzes WHERE id = $1`, id), uq); err != nil {
		return nil, err
	}
	return uq, nil
}

// LockByID retrieves an aggregate and holds a row lock until the transaction ends.
func (r *UserQuizRepository) LockByID(ctx context.Context, id int64) (*model.UserQuiz, error) {
	uq := &model.UserQuiz{}
	if err := scanUserQuiz(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userQuizColumns+` FROM user_quizzes WHERE id = $1 FOR UPDATE`, id), uq); err != nil {
		return nil, err
	}
	return uq, nil
}

// MarkStarted records an attempt start on an existing aggregate without
// changing its attempt count beyond one. PASSED is kept.
func (r *UserQuizRepository) MarkStarted(ctx context.Context, id int64) (*model.UserQuiz, error) {
	uq := &model.UserQuiz{}
	if err := scanUserQuiz(conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE user_quizzes
		 SET attempt_count    = GREATEST(attempt_count, 1),
		     first_attempt_at = COALESCE(first_attempt_at, NOW()),
		     last_attempt_at  = NOW(),
		     status           = CASE WHEN status = $2 THEN status ELSE $3 END,
		     updated_at       = NOW()
		 WHERE id = $1
		 RETURNING `+userQuizColumns,
		id, model.UserQuizStatusPassed, model.UserQuizStatusInProgress), uq); err != nil {
		return nil, err
	}
	return uq, nil
}

// Retake increments the attempt count for a new attempt. Best score is untouched
// and PASSED is kept.
func (r *UserQuizRepository) Retake(ctx context.Context, id int64) (*model.UserQuiz, error) {
	uq := &model.UserQuiz{}
	if err := scanUserQuiz(conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE user_quizzes
		 SET attempt_count    = attempt_count + 1,
		     first_attempt_at = COALESCE(first_attempt_at, NOW()),
		     last_attempt_at  = NOW(),
		     status           = CASE WHEN status = $2 THEN status ELSE $3 END,
		     updated_at       = NOW()
		 WHERE id = $1
		 RETURNING `+userQuizColumns,
		id, model.UserQuizStatusPassed, model.UserQuizStatusInProgress), uq); err != nil {
		return nil, err
	}
	return uq, nil
}

// RecordResult folds a completed attempt into the aggregate.
//   - best_score only moves up
//   - passed_at is set on the first pass and never cleared
//   - once PASSED the status stays PASSED
//   - attempt_count is raised to at least attemptNumber
func (r *UserQuizRepository) RecordResult(ctx context.Context, id int64, score int, passed bool, attemptNumber int) (*model.UserQuiz, error) {
	uq := &model.UserQuiz{}
	if err := scanUserQuiz(conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE user_quizzes
		 SET best_score      = GREATEST(best_score, $2),
		     attempt_count   = GREATEST(attempt_count, $4),
		     passed_at       = CASE WHEN $3::boolean AND passed_at IS NULL THEN NOW() ELSE passed_at END,
		     status          = CASE WHEN status = $5 OR $3::boolean THEN $5 ELSE $6 END,
		     last_attempt_at = NOW(),
		     updated_at      = NOW()
		 WHERE id = $1
		 RETURNING `+userQuizColumns,
		id, score, passed, attemptNumber, model.UserQuizStatusPassed, model.UserQuizStatusFailed), uq); err != nil {
		return nil, err
	}
	return uq, nil
}

// ListByUser retrieves every aggregate of a user, most recent activity first.
func (r *UserQuizRepository) ListByUser(ctx context.Context, userID int64) ([]model.UserQuiz, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+userQuizColumns+` FROM user_quizzes
		 WHERE user_id = $1
		 ORDER BY last_attempt_at DESC NULLS LAST, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.UserQuiz{}
	for rows.Next() {
		var uq model.UserQuiz
		if err := scanUserQuiz(rows, &uq); err != nil {
			return nil, err
		}
		list = append(list, uq)
	}
	return list, rows.Err()
}
