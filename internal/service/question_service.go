package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/peer"
	"github.com/rs/zerolog"
)

// QuestionStore is the question-bank persistence used by QuestionService.
type QuestionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Question, error)
	ListByCourse(ctx context.Context, courseID int64) ([]model.Question, error)
	Create(ctx context.Context, q *model.Question) error
	Update(ctx context.Context, q *model.Question) error
	Delete(ctx context.Context, id int64) error
}

// ViewInvalidator drops cached quiz views that embed a question.
type ViewInvalidator interface {
	InvalidateForQuestion(ctx context.Context, questionID int64)
}

// QuestionService handles the per-course question bank.
type QuestionService struct {
	questions QuestionStore
	courses   CourseLookup
	views     ViewInvalidator
	tx        Transactor
	log       zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions QuestionStore, courses CourseLookup, views ViewInvalidator, tx Transactor, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questions: questions,
		courses:   courses,
		views:     views,
		tx:        tx,
		log:       log.With().Str("component", "question_service").Logger(),
	}
}

// ListByCourse returns every question of a course, with correctness data.
func (s *QuestionService) ListByCourse(ctx context.Context, actor Actor, courseID int64) ([]model.Question, error) {
	if err := s.authorize(ctx, actor, courseID); err != nil {
		return nil, err
	}
	list, err := s.questions.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if list == nil {
		list = []model.Question{}
	}
	return list, nil
}

// Get retrieves a question the actor may manage.
func (s *QuestionService) Get(ctx context.Context, actor Actor, id int64) (*model.Question, error) {
	q, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, q.CourseID); err != nil {
		return nil, err
	}
	return q, nil
}

// Create adds a question to a course's bank.
func (s *QuestionService) Create(ctx context.Context, actor Actor, courseID int64, req *model.QuestionRequest) (*model.Question, error) {
	if err := ValidateQuestion(req); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, courseID); err != nil {
		return nil, err
	}

	q := buildQuestion(req)
	q.CourseID = courseID

	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.questions.Create(ctx, q)
	}); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}

	s.log.Info().Int64("question_id", q.ID).Int64("course_id", courseID).Str("type", string(q.Type)).Msg("Question created")
	return q, nil
}

// Update replaces a question and its options, then drops the cached views
// of every quiz that places it.
func (s *QuestionService) Update(ctx context.Context, actor Actor, id int64, req *model.QuestionRequest) (*model.Question, error) {
	if err := ValidateQuestion(req); err != nil {
		return nil, err
	}
	existing, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, existing.CourseID); err != nil {
		return nil, err
	}

	q := buildQuestion(req)
	q.ID = id

	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.questions.Update(ctx, q)
	}); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}

	s.views.InvalidateForQuestion(ctx, id)
	return q, nil
}

// Delete removes a question from the bank and every quiz placing it.
func (s *QuestionService) Delete(ctx context.Context, actor Actor, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, existing.CourseID); err != nil {
		return err
	}

	// Placements cascade with the row, so collect the affected quizzes first.
	s.views.InvalidateForQuestion(ctx, id)

	if err := s.questions.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// ValidateQuestion checks the options against the question type.
//   - MULTIPLE_CHOICE needs at least two choices, exactly one correct
//   - TRUE_FALSE needs exactly two choices, exactly one correct
//   - SHORT_ANSWER needs at least one accepted answer and no choices
func ValidateQuestion(req *model.QuestionRequest) error {
	switch req.Type {
	case model.QuestionTypeMultipleChoice, model.QuestionTypeTrueFalse:
		if len(req.AcceptedAnswers) > 0 {
			return fmt.Errorf("%w: %s takes no accepted answers", ErrInvalidQuestion, req.Type)
		}
		if req.Type == model.QuestionTypeTrueFalse && len(req.Choices) != 2 {
			return fmt.Errorf("%w: TRUE_FALSE needs exactly 2 choices", ErrInvalidQuestion)
		}
		if len(req.Choices) < 2 {
			return fmt.Errorf("%w: MULTIPLE_CHOICE needs at least 2 choices", ErrInvalidQuestion)
		}
		correct := 0
		for _, c := range req.Choices {
			if c.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: exactly one choice must be correct, got %d", ErrInvalidQuestion, correct)
		}
	case model.QuestionTypeShortAnswer:
		if len(req.Choices) > 0 {
			return fmt.Errorf("%w: SHORT_ANSWER takes no choices", ErrInvalidQuestion)
		}
		accepted := 0
		for _, a := range req.AcceptedAnswers {
			if strings.TrimSpace(a) != "" {
				accepted++
			}
		}
		if accepted == 0 {
			return fmt.Errorf("%w: SHORT_ANSWER needs an accepted answer", ErrInvalidQuestion)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, req.Type)
	}
	return nil
}

func buildQuestion(req *model.QuestionRequest) *model.Question {
	q := &model.Question{
		Text:            req.Text,
		Type:            req.Type,
		Points:          req.Points,
		Status:          req.Status,
		Choices:         make([]model.Choice, 0, len(req.Choices)),
		AcceptedAnswers: make([]model.AcceptedAnswer, 0, len(req.AcceptedAnswers)),
	}
	if q.Status == "" {
		q.Status = model.QuestionStatusPublished
	}
	if q.Points == 0 {
		q.Points = 1
	}
	for _, c := range req.Choices {
		q.Choices = append(q.Choices, model.Choice{Text: c.Text, IsCorrect: c.IsCorrect})
	}
	for _, a := range req.AcceptedAnswers {
		if a = strings.TrimSpace(a); a != "" {
			q.AcceptedAnswers = append(q.AcceptedAnswers, model.AcceptedAnswer{Text: a})
		}
	}
	return q
}

func (s *QuestionService) get(ctx context.Context, id int64) (*model.Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (s *QuestionService) authorize(ctx context.Context, actor Actor, courseID int64) error {
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		if errors.Is(err, peer.ErrNotFound) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("lookup course: %w", err)
	}
	if !actor.CanManage(course.InstructorID) {
		return ErrForbidden
	}
	return nil
}
