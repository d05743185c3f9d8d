package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/peer"
	"github.com/learnhub/learnhub-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// QuizStore is the quiz persistence used by QuizService.
type QuizStore interface {
	GetByID(ctx context.Context, id int64) (*model.Quiz, error)
	ListByCourse(ctx context.Context, courseID int64, publishedOnly bool) ([]model.Quiz, error)
	ListPublished(ctx context.Context) ([]model.Quiz, error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Quiz, error)
	CountPublishedByCourse(ctx context.Context, courseID int64) (int, error)
	ListIDsByQuestion(ctx context.Context, questionID int64) ([]int64, error)
	Create(ctx context.Context, q *model.Quiz) error
	Update(ctx context.Context, q *model.Quiz) error
	Delete(ctx context.Context, id int64) error
	ReplaceQuestions(ctx context.Context, quizID int64, placements []model.QuizQuestion) error
}

// QuizQuestionSource loads the questions placed in a quiz.
type QuizQuestionSource interface {
	ListPublishedForQuiz(ctx context.Context, quizID int64) ([]repository.OrderedQuestion, error)
	GetByID(ctx context.Context, id int64) (*model.Question, error)
}

// CourseLookup reads courses owned by the course service.
type CourseLookup interface {
	Get(ctx context.Context, courseID int64) (*model.Course, error)
	CourseName(ctx context.Context, courseID int64) string
}

// QuizService manages quizzes and assembles the attempt and review views.
// Views are cached in Redis and dropped whenever a quiz or one of its
// questions changes.
type QuizService struct {
	quizzes   QuizStore
	questions QuizQuestionSource
	courses   CourseLookup
	tx        Transactor
	rdb       *redis.Client
	ttl       time.Duration
	log       zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	quizzes QuizStore,
	questions QuizQuestionSource,
	courses CourseLookup,
	tx Transactor,
	rdb *redis.Client,
	ttl time.Duration,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizzes:   quizzes,
		questions: questions,
		courses:   courses,
		tx:        tx,
		rdb:       rdb,
		ttl:       ttl,
		log:       log.With().Str("component", "quiz_service").Logger(),
	}
}

// Get returns a quiz enriched with its course name.
func (s *QuizService) Get(ctx context.Context, id int64) (*model.QuizWithCourse, error) {
	quiz, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.QuizWithCourse{Quiz: *quiz, CourseName: s.courses.CourseName(ctx, quiz.CourseID)}, nil
}

// ListByCourse returns a course's quizzes. Learners only see published ones.
func (s *QuizService) ListByCourse(ctx context.Context, courseID int64, includeHidden bool) ([]model.QuizWithCourse, error) {
	quizzes, err := s.quizzes.ListByCourse(ctx, courseID, !includeHidden)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	out := make([]model.QuizWithCourse, 0, len(quizzes))
	if len(quizzes) == 0 {
		return out, nil
	}

	name := s.courses.CourseName(ctx, courseID)
	for _, q := range quizzes {
		out = append(out, model.QuizWithCourse{Quiz: q, CourseName: name})
	}
	return out, nil
}

// CountPublished counts a course's published quizzes.
func (s *QuizService) CountPublished(ctx context.Context, courseID int64) (int, error) {
	return s.quizzes.CountPublishedByCourse(ctx, courseID)
}

// Create inserts a quiz into a course the actor manages.
func (s *QuizService) Create(ctx context.Context, actor Actor, req *model.CreateQuizRequest) (*model.Quiz, error) {
	if err := s.authorizeCourse(ctx, actor, req.CourseID); err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		CourseID:        req.CourseID,
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		PassPercentage:  model.DefaultPassPercentage,
		Status:          req.Status,
	}
	if req.PassPercentage != nil {
		quiz.PassPercentage = *req.PassPercentage
	}
	if quiz.Status == "" {
		quiz.Status = model.QuizStatusHidden
	}

	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	s.log.Info().Int64("quiz_id", quiz.ID).Int64("course_id", quiz.CourseID).Msg("Quiz created")
	return quiz, nil
}

// Update applies a partial update and drops the cached views.
func (s *QuizService) Update(ctx context.Context, actor Actor, id int64, req *model.UpdateQuizRequest) (*model.Quiz, error) {
	quiz, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCourse(ctx, actor, quiz.CourseID); err != nil {
		return nil, err
	}

	if req.Name != "" {
		quiz.Name = req.Name
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.DurationMinutes != nil {
		quiz.DurationMinutes = *req.DurationMinutes
	}
	if req.TotalMarks != nil {
		quiz.TotalMarks = *req.TotalMarks
	}
	if req.PassPercentage != nil {
		quiz.PassPercentage = *req.PassPercentage
	}
	if req.Status != "" {
		quiz.Status = req.Status
	}

	if err := s.quizzes.Update(ctx, quiz); err != nil {
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	s.Invalidate(ctx, quiz.ID)
	return quiz, nil
}

// Delete removes a quiz and its cached views.
func (s *QuizService) Delete(ctx context.Context, actor Actor, id int64) error {
	quiz, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeCourse(ctx, actor, quiz.CourseID); err != nil {
		return err
	}
	if err := s.quizzes.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("delete quiz: %w", err)
	}
	s.Invalidate(ctx, id)
	return nil
}

// SetQuestions replaces the quiz's ordered question list. Every question must
// belong to the quiz's course and appear once.
func (s *QuizService) SetQuestions(ctx context.Context, actor Actor, quizID int64, req *model.SetQuizQuestionsRequest) (*model.ReviewView, error) {
	quiz, err := s.get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCourse(ctx, actor, quiz.CourseID); err != nil {
		return nil, err
	}

	placements := make([]model.QuizQuestion, 0, len(req.Questions))
	seen := make(map[int64]struct{}, len(req.Questions))
	for i, in := range req.Questions {
		if _, dup := seen[in.QuestionID]; dup {
			return nil, ErrDuplicatePlacement
		}
		seen[in.QuestionID] = struct{}{}

		q, err := s.questions.GetByID(ctx, in.QuestionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrQuestionNotFound
			}
			return nil, fmt.Errorf("get question: %w", err)
		}
		if q.CourseID != quiz.CourseID {
			return nil, ErrInvalidQuestion
		}

		placements = append(placements, model.QuizQuestion{
			QuizID:         quizID,
			QuestionID:     in.QuestionID,
			OrderIndex:     i,
			PointsOverride: in.PointsOverride,
		})
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.quizzes.ReplaceQuestions(ctx, quizID, placements)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicatePlacement
		}
		return nil, fmt.Errorf("replace questions: %w", err)
	}

	s.Invalidate(ctx, quizID)
	return s.ReviewView(ctx, quizID)
}

// AttemptView returns the learner-facing projection of a quiz.
func (s *QuizService) AttemptView(ctx context.Context, quizID int64) (*model.AttemptView, error) {
	var view model.AttemptView
	if s.cacheGet(ctx, config.CacheKey.QuizAttemptViewKey(quizID), &view) {
		return &view, nil
	}

	review, err := s.build(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return ToAttemptView(review), nil
}

// ReviewView returns the projection with correctness data.
func (s *QuizService) ReviewView(ctx context.Context, quizID int64) (*model.ReviewView, error) {
	var view model.ReviewView
	if s.cacheGet(ctx, config.CacheKey.QuizReviewViewKey(quizID), &view) {
		return &view, nil
	}
	return s.build(ctx, quizID)
}

// Invalidate drops the cached views of the given quizzes.
func (s *QuizService) Invalidate(ctx context.Context, quizIDs ...int64) {
	if len(quizIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(quizIDs)*2)
	for _, id := range quizIDs {
		keys = append(keys, config.CacheKey.QuizAttemptViewKey(id), config.CacheKey.QuizReviewViewKey(id))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Interface("quiz_ids", quizIDs).Msg("Cache invalidation failed")
	}
}

// InvalidateForQuestion drops the cached views of every quiz using a question.
func (s *QuizService) InvalidateForQuestion(ctx context.Context, questionID int64) {
	ids, err := s.quizzes.ListIDsByQuestion(ctx, questionID)
	if err != nil {
		s.log.Warn().Err(err).Int64("question_id", questionID).Msg("List quizzes for question failed")
		return
	}
	s.Invalidate(ctx, ids...)
}

// WarmPublished rebuilds the cached views of every published quiz.
// Used on startup and by the periodic refresher.
func (s *QuizService) WarmPublished(ctx context.Context) (int, error) {
	quizzes, err := s.quizzes.ListPublished(ctx)
	if err != nil {
		return 0, fmt.Errorf("list published quizzes: %w", err)
	}

	warmed := 0
	for i := range quizzes {
		if _, err := s.build(ctx, quizzes[i].ID); err != nil {
			s.log.Warn().Err(err).Int64("quiz_id", quizzes[i].ID).Msg("Failed to warm quiz, skipping")
			continue
		}
		warmed++
	}

	s.log.Debug().Int("warmed", warmed).Int("total", len(quizzes)).Msg("Quiz views warmed")
	return warmed, nil
}

// ToAttemptView strips correctness data and accepted answers from a review view.
func ToAttemptView(r *model.ReviewView) *model.AttemptView {
	view := &model.AttemptView{
		QuizID:          r.QuizID,
		CourseID:        r.CourseID,
		CourseName:      r.CourseName,
		Name:            r.Name,
		Description:     r.Description,
		DurationMinutes: r.DurationMinutes,
		TotalMarks:      r.TotalMarks,
		Status:          r.Status,
		Questions:       make([]model.AttemptQuestion, len(r.Questions)),
	}
	for i, q := range r.Questions {
		choices := make([]model.AttemptChoice, len(q.Choices))
		for j, c := range q.Choices {
			choices[j] = model.AttemptChoice{ID: c.ID, Text: c.Text}
		}
		view.Questions[i] = model.AttemptQuestion{
			ID:         q.ID,
			Text:       q.Text,
			Type:       q.Type,
			Points:     q.Points,
			OrderIndex: q.OrderIndex,
			Choices:    choices,
		}
	}
	return view
}

// build assembles the review view from PostgreSQL and caches both projections.
func (s *QuizService) build(ctx context.Context, quizID int64) (*model.ReviewView, error) {
	quiz, err := s.get(ctx, quizID)
	if err != nil {
		return nil, err
	}

	ordered, err := s.questions.ListPublishedForQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}

	review := &model.ReviewView{
		QuizID:          quiz.ID,
		CourseID:        quiz.CourseID,
		CourseName:      s.courses.CourseName(ctx, quiz.CourseID),
		Name:            quiz.Name,
		Description:     quiz.Description,
		DurationMinutes: quiz.DurationMinutes,
		TotalMarks:      quiz.TotalMarks,
		PassPercentage:  quiz.PassPercentage,
		Status:          quiz.Status,
		Questions:       make([]model.ReviewQuestion, 0, len(ordered)),
	}

	for _, oq := range ordered {
		rq := model.ReviewQuestion{
			ID:         oq.ID,
			Text:       oq.Text,
			Type:       oq.Type,
			Points:     oq.Points,
			OrderIndex: oq.OrderIndex,
			Choices:    make([]model.ReviewChoice, 0, len(oq.Choices)),
			Answers:    make([]model.ReviewAnswer, 0, len(oq.AcceptedAnswers)),
		}
		for _, c := range oq.Choices {
			rq.Choices = append(rq.Choices, model.ReviewChoice{ID: c.ID, Text: c.Text, IsCorrect: c.IsCorrect})
		}
		for _, a := range oq.AcceptedAnswers {
			rq.Answers = append(rq.Answers, model.ReviewAnswer{ID: a.ID, Text: a.Text})
		}
		review.Questions = append(review.Questions, rq)
	}

	s.cacheViews(ctx, review)
	return review, nil
}

func (s *QuizService) cacheViews(ctx context.Context, review *model.ReviewView) {
	reviewJSON, err := json.Marshal(review)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal review view")
		return
	}
	attemptJSON, err := json.Marshal(ToAttemptView(review))
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal attempt view")
		return
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.QuizReviewViewKey(review.QuizID), reviewJSON, s.ttl)
	pipe.Set(ctx, config.CacheKey.QuizAttemptViewKey(review.QuizID), attemptJSON, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Int64("quiz_id", review.QuizID).Msg("Cache quiz views failed")
	}
}

// cacheGet decodes a cached view. Misses and Redis errors both fall back to
// PostgreSQL.
func (s *QuizService) cacheGet(ctx context.Context, key string, dst interface{}) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache decode failed")
		return false
	}
	return true
}

func (s *QuizService) get(ctx context.Context, id int64) (*model.Quiz, error) {
	quiz, err := s.quizzes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return quiz, nil
}

// authorizeCourse checks that the actor manages the course. The course
// service must be reachable for this check.
func (s *QuizService) authorizeCourse(ctx context.Context, actor Actor, courseID int64) error {
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
