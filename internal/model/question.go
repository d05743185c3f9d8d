package model

import "time"

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
)

// UsesChoices reports whether answers to this type are a selected choice.
func (t QuestionType) UsesChoices() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeTrueFalse
}

type QuestionStatus string

const (
	QuestionStatusPublished QuestionStatus = "PUBLISHED"
	QuestionStatusHidden    QuestionStatus = "HIDDEN"
	QuestionStatusArchived  QuestionStatus = "ARCHIVED"
)

// Question is a question-bank entry scoped to a course.
type Question struct {
	ID              int64            `json:"id"`
	CourseID        int64            `json:"course_id"`
	Text            string           `json:"text"`
	Type            QuestionType     `json:"type"`
	Points          int              `json:"points"`
	Status          QuestionStatus   `json:"status"`
	Choices         []Choice         `json:"choices"`
	AcceptedAnswers []AcceptedAnswer `json:"accepted_answers"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Choice is an option of a MULTIPLE_CHOICE or TRUE_FALSE question.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// AcceptedAnswer is one accepted text for a SHORT_ANSWER question.
type AcceptedAnswer struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
}

type ChoiceInput struct {
	Text      string `json:"text" binding:"required,max=1000"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionRequest is the payload for creating or replacing a question.
// Choices and accepted answers are replaced wholesale on update.
type QuestionRequest struct {
	Text            string         `json:"text" binding:"required,min=1,max=4000"`
	Type            QuestionType   `json:"type" binding:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	Points          int            `json:"points" binding:"min=0,max=1000"`
	Status          QuestionStatus `json:"status" binding:"omitempty,oneof=PUBLISHED HIDDEN ARCHIVED"`
	Choices         []ChoiceInput  `json:"choices" binding:"omitempty,max=20,dive"`
	AcceptedAnswers []string       `json:"accepted_answers" binding:"omitempty,max=20,dive,min=1,max=1000"`
}
