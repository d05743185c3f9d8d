package model

import "time"

type QuizStatus string

const (
	QuizStatusHidden    QuizStatus = "HIDDEN"
	QuizStatusPublished QuizStatus = "PUBLISHED"
	QuizStatusArchived  QuizStatus = "ARCHIVED"
)

// DefaultPassPercentage applies when a quiz is created without one.
const DefaultPassPercentage = 50

// Quiz is an assessment built from ordered question-bank entries.
type Quiz struct {
	ID              int64      `json:"id"`
	CourseID        int64      `json:"course_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      int        `json:"total_marks"`
	PassPercentage  int        `json:"pass_percentage"`
	Status          QuizStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// QuizQuestion places a question in a quiz. PointsOverride replaces the
// question's base points when set.
type QuizQuestion struct {
	QuizID         int64 `json:"quiz_id"`
	QuestionID     int64 `json:"question_id"`
	OrderIndex     int   `json:"order_index"`
	PointsOverride *int  `json:"points_override,omitempty"`
}

// QuizWithCourse is a quiz enriched with its course title. CourseName is
// empty when the course service could not be reached.
type QuizWithCourse struct {
	Quiz
	CourseName string `json:"course_name"`
}

type CreateQuizRequest struct {
	CourseID        int64      `json:"course_id" binding:"required,min=1"`
	Name            string     `json:"name" binding:"required,min=3,max=255"`
	Description     string     `json:"description" binding:"max=5000"`
	DurationMinutes int        `json:"duration_minutes" binding:"min=0,max=600"`
	TotalMarks      int        `json:"total_marks" binding:"min=0"`
	PassPercentage  *int       `json:"pass_percentage" binding:"omitempty,min=0,max=100"`
	Status          QuizStatus `json:"status" binding:"omitempty,oneof=HIDDEN PUBLISHED ARCHIVED"`
}

type UpdateQuizRequest struct {
	Name            string     `json:"name" binding:"omitempty,min=3,max=255"`
	Description     *string    `json:"description" binding:"omitempty,max=5000"`
	DurationMinutes *int       `json:"duration_minutes" binding:"omitempty,min=0,max=600"`
	TotalMarks      *int       `json:"total_marks" binding:"omitempty,min=0"`
	PassPercentage  *int       `json:"pass_percentage" binding:"omitempty,min=0,max=100"`
	Status          QuizStatus `json:"status" binding:"omitempty,oneof=HIDDEN PUBLISHED ARCHIVED"`
}

type QuizQuestionInput struct {
	QuestionID     int64 `json:"question_id" binding:"required,min=1"`
	PointsOverride *int  `json:"points_override" binding:"omitempty,min=0,max=1000"`
}

// SetQuizQuestionsRequest replaces the quiz's question list; order follows the slice.
type SetQuizQuestionsRequest struct {
	Questions []QuizQuestionInput `json:"questions" binding:"max=500,dive"`
}
