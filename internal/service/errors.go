package service

import (
	"context"
	"errors"

	"github.com/learnhub/learnhub-backend/internal/repository"
)

// Domain errors
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("not the owner of this resource")
	ErrCourseNotFound     = errors.New("course not found")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrResultNotFound     = errors.New("result not found")
	ErrQuizNotAvailable   = errors.New("quiz is not published")
	ErrAttemptCompleted   = errors.New("latest attempt already completed, use retake")
	ErrResultNotCompleted = errors.New("result not completed")
	ErrResultMismatch     = errors.New("result does not belong to user quiz")
	ErrInvalidAnswer      = errors.New("answer does not match quiz")
	ErrInvalidQuestion    = errors.New("question definition is inconsistent")
	ErrDuplicatePlacement = errors.New("question placed twice in quiz")

	// ErrResultFinalized is returned when writing to a submitted attempt.
	ErrResultFinalized = repository.ErrResultFinalized
)

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
