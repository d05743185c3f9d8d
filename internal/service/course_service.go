package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/rs/zerolog"
)

// Actor identifies the caller of an authoring operation.
type Actor struct {
	AccountID int64
	Role      model.Role
}

// CanManage reports whether the actor may modify a resource owned by ownerID.
func (a Actor) CanManage(ownerID int64) bool {
	return a.Role == model.RoleAdmin || a.AccountID == ownerID
}

// CourseStore is the course persistence used by CourseService.
type CourseStore interface {
	GetByID(ctx context.Context, id int64) (*model.Course, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Course, error)
	ListPaginated(ctx context.Context, status model.CourseStatus, limit, offset int) ([]model.Course, int, error)
	Create(ctx context.Context, c *model.Course) error
	Update(ctx context.Context, c *model.Course) error
	Delete(ctx context.Context, id int64) error
}

// QuizCounter reports how many published quizzes a course has.
// Implementations return 0 when the count is unavailable.
type QuizCounter interface {
	QuizCount(ctx context.Context, courseID int64) int
}

// CourseService manages the course catalog.
type CourseService struct {
	courses CourseStore
	quizzes QuizCounter
	log     zerolog.Logger
}

// NewCourseService creates a new CourseService.
func NewCourseService(courses CourseStore, quizzes QuizCounter, log zerolog.Logger) *CourseService {
	return &CourseService{
		courses: courses,
		quizzes: quizzes,
		log:     log.With().Str("component", "course_service").Logger(),
	}
}

// List returns a page of courses.
func (s *CourseService) List(ctx context.Context, status model.CourseStatus, page, perPage int) ([]model.Course, *response.Pagination, error) {
	p := response.NewPagination(page, perPage, 0)

	courses, total, err := s.courses.ListPaginated(ctx, status, p.PerPage, p.Offset())
	if err != nil {
		return nil, nil, fmt.Errorf("list courses: %w", err)
	}
	if courses == nil {
		courses = []model.Course{}
	}

	return courses, response.NewPagination(p.Page, p.PerPage, total), nil
}

// Get returns a course with its published quiz count.
func (s *CourseService) Get(ctx context.Context, id int64) (*model.CourseDetail, error) {
	course, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.CourseDetail{
		Course:    *course,
		QuizCount: s.quizzes.QuizCount(ctx, id),
	}, nil
}

// Batch returns the courses matching ids, skipping unknown ones.
func (s *CourseService) Batch(ctx context.Context, ids []int64) ([]model.Course, error) {
	return s.courses.GetByIDs(ctx, ids)
}

// Create inserts a course owned by the actor.
func (s *CourseService) Create(ctx context.Context, actor Actor, req *model.CreateCourseRequest) (*model.Course, error) {
	course := &model.Course{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		InstructorID: actor.AccountID,
	}
	if course.Status == "" {
		course.Status = model.CourseStatusDraft
	}

	if err := s.courses.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	s.log.Info().Int64("course_id", course.ID).Msg("Course created")
	return course, nil
}

// Update applies a partial update. Only the owner or an admin may update.
func (s *CourseService) Update(ctx context.Context, actor Actor, id int64, req *model.UpdateCourseRequest) (*model.Course, error) {
	course, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(course.InstructorID) {
		return nil, ErrForbidden
	}

	if req.Title != "" {
		course.Title = req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Status != "" {
		course.Status = req.Status
	}

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	return course, nil
}

// Delete removes a course. Only the owner or an admin may delete.
func (s *CourseService) Delete(ctx context.Context, actor Actor, id int64) error {
	course, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(course.InstructorID) {
		return ErrForbidden
	}
	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("delete course: %w", err)
	}
	s.log.Info().Int64("course_id", id).Msg("Course deleted")
	return nil
}

func (s *CourseService) get(ctx context.Context, id int64) (*model.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return course, nil
}
