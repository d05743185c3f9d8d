package model

import (
	"encoding/json"
	"strings"
	"time"
)

// UserQuizStatus is the aggregate state of a learner on a quiz.
type UserQuizStatus string

const (
	UserQuizStatusNotStarted UserQuizStatus = "NOT_STARTED"
	UserQuizStatusInProgress UserQuizStatus = "IN_PROGRESS"
	UserQuizStatusPassed     UserQuizStatus = "PASSED"
	UserQuizStatusFailed     UserQuizStatus = "FAILED"
)

// UserQuiz tracks one learner on one quiz across attempts.
// Once PASSED it never leaves that state.
type UserQuiz struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"userId"`
	QuizID         int64          `json:"quizId"`
	AttemptCount   int            `json:"attemptCount"`
	BestScore      int            `json:"bestScore"`
	FirstAttemptAt *time.Time     `json:"firstAttemptAt,omitempty"`
	LastAttemptAt  *time.Time     `json:"lastAttemptAt,omitempty"`
	PassedAt       *time.Time     `json:"passedAt,omitempty"`
	Status         UserQuizStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type ResultStatus string

const (
	ResultStatusInProgress ResultStatus = "IN_PROGRESS"
	ResultStatusPassed     ResultStatus = "PASSED"
	ResultStatusFailed     ResultStatus = "FAILED"
)

// Result is a single attempt. CompletedAt is set exactly once, on final submission.
type Result struct {
	ID              int64           `json:"id"`
	UserQuizID      int64           `json:"userQuizId"`
	AttemptNumber   int             `json:"attemptNumber"`
	QuizID          int64           `json:"quizId"`
	UserID          int64           `json:"userId"`
	CourseID        int64           `json:"courseId"`
	Score           int             `json:"score"`
	Status          ResultStatus    `json:"status"`
	StartedAt       time.Time       `json:"startedAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	DurationSeconds int             `json:"durationSeconds"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// Completed reports whether the attempt has been finalized.
func (r *Result) Completed() bool {
	return r.CompletedAt != nil
}

// AnswerEntry is one question's answer as exchanged between client and server.
type AnswerEntry struct {
	QuestionID        int64        `json:"questionId"`
	QuestionType      QuestionType `json:"questionType,omitempty"`
	SelectedChoiceIDs []int64      `json:"selectedChoiceIds,omitempty"`
	InputAnswer       *string      `json:"inputAnswer,omitempty"`
}

// Empty reports whether the entry carries no answer.
func (a AnswerEntry) Empty() bool {
	if len(a.SelectedChoiceIDs) > 0 {
		return false
	}
	return a.InputAnswer == nil || strings.TrimSpace(*a.InputAnswer) == ""
}

// SubmissionAnswer is one element of Submission.Answers.
type SubmissionAnswer struct {
	QuestionID        int64        `json:"questionId" binding:"required,min=1"`
	QuestionType      QuestionType `json:"questionType" binding:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	SelectedChoiceIDs []int64      `json:"selectedChoiceIds,omitempty" binding:"omitempty,max=1"`
	InputAnswer       *string      `json:"inputAnswer,omitempty" binding:"omitempty,max=2000"`
}

// Submission is sent by the client on every autosave and on final submit.
type Submission struct {
	ResultID          int64              `json:"resultId" binding:"required,min=1"`
	UserQuizID        int64              `json:"userQuizId" binding:"required,min=1"`
	DurationSeconds   int                `json:"durationSeconds" binding:"min=0"`
	IsFinalSubmission bool               `json:"isFinalSubmission"`
	Answers           []SubmissionAnswer `json:"answers" binding:"max=500,dive"`
}

// StartAttemptResponse is returned by start and retake.
type StartAttemptResponse struct {
	UserQuiz *UserQuiz `json:"userQuiz"`
	Result   *Result   `json:"result"`
	Resumed  bool      `json:"resumed"`
}

// ResumeState is the server-side answer state of an in-progress result.
type ResumeState struct {
	ResultID   int64         `json:"resultId"`
	UserQuizID int64         `json:"userQuizId"`
	QuizID     int64         `json:"quizId"`
	StartedAt  time.Time     `json:"startedAt"`
	Completed  bool          `json:"completed"`
	Answers    []AnswerEntry `json:"answers"`
}

// SubmissionResult is returned after a submission is stored.
type SubmissionResult struct {
	Result     *Result   `json:"result"`
	UserQuiz   *UserQuiz `json:"userQuiz,omitempty"`
	TotalMarks int       `json:"totalMarks"`
	Passed     bool      `json:"passed"`
	Saved      int       `json:"saved"`
}

// UserAnswer is the learner's answer shown in the review.
type UserAnswer struct {
	SelectedChoiceIDs []int64 `json:"selectedChoiceIds,omitempty"`
	TextAnswer        *string `json:"textAnswer,omitempty"`
}

// ReviewItem is one graded question in a review.
type ReviewItem struct {
	QuestionID   int64          `json:"questionId"`
	QuestionText string         `json:"questionText"`
	QuestionType QuestionType   `json:"questionType"`
	Points       int            `json:"points"`
	Correct      bool           `json:"correct"`
	Choices      []ReviewChoice `json:"choices"`
	Answers      []ReviewAnswer `json:"answers"`
	UserAnswer   UserAnswer     `json:"userAnswer"`
}

// ResultReview is the graded review of a completed result.
type ResultReview struct {
	Result     *Result      `json:"result"`
	QuizName   string       `json:"quizName"`
	CourseName string       `json:"courseName"`
	TotalMarks int          `json:"totalMarks"`
	Questions  []ReviewItem `json:"questions"`
}

// ProgressEntry is a learner's standing on one quiz.
type ProgressEntry struct {
	UserQuiz   UserQuiz `json:"userQuiz"`
	QuizName   string   `json:"quizName"`
	CourseID   int64    `json:"courseId"`
	CourseName string   `json:"courseName"`
}

// AnswerJob is a buffered answer waiting to be written to PostgreSQL.
type AnswerJob struct {
	ResultID int64       `json:"resultId"`
	Answer   AnswerEntry `json:"answer"`
}
