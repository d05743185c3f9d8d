package model

import "time"

type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "DRAFT"
	CourseStatusPublished CourseStatus = "PUBLISHED"
	CourseStatusArchived  CourseStatus = "ARCHIVED"
)

// Course is a catalog entry. Questions and quizzes are scoped to a course.
type Course struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       CourseStatus `json:"status"`
	InstructorID int64        `json:"instructor_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// CourseDetail is a course enriched with data owned by the quiz service.
type CourseDetail struct {
	Course
	QuizCount int `json:"quiz_count"`
}

type CreateCourseRequest struct {
	Title       string       `json:"title" binding:"required,min=3,max=255"`
	Description string       `json:"description" binding:"max=5000"`
	Status      CourseStatus `json:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
}

type UpdateCourseRequest struct {
	Title       string       `json:"title" binding:"omitempty,min=3,max=255"`
	Description *string      `json:"description" binding:"omitempty,max=5000"`
	Status      CourseStatus `json:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
}

// BatchCoursesRequest looks up several courses at once.
type BatchCoursesRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1,max=100"`
}
