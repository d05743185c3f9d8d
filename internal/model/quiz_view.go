package model

// The attempt and review projections of a quiz are separate types so that
// correctness data cannot reach a learner through the attempt view.

// AttemptView is what a learner sees while taking a quiz.
type AttemptView struct {
	QuizID          int64             `json:"quizId"`
	CourseID        int64             `json:"courseId"`
	CourseName      string            `json:"courseName"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	DurationMinutes int               `json:"durationMinutes"`
	TotalMarks      int               `json:"totalMarks"`
	Status          QuizStatus        `json:"status"`
	Questions       []AttemptQuestion `json:"questions"`
}

type AttemptQuestion struct {
	ID         int64           `json:"id"`
	Text       string          `json:"text"`
	Type       QuestionType    `json:"type"`
	Points     int             `json:"points"`
	OrderIndex int             `json:"orderIndex"`
	Choices    []AttemptChoice `json:"choices"`
}

type AttemptChoice struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// ReviewView carries correctness data and is only served for completed results
// or to quiz authors.
type ReviewView struct {
	QuizID          int64            `json:"quizId"`
	CourseID        int64            `json:"courseId"`
	CourseName      string           `json:"courseName"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	DurationMinutes int              `json:"durationMinutes"`
	TotalMarks      int              `json:"totalMarks"`
	PassPercentage  int              `json:"passPercentage"`
	Status          QuizStatus       `json:"status"`
	Questions       []ReviewQuestion `json:"questions"`
}

type ReviewQuestion struct {
	ID         int64          `json:"id"`
	Text       string         `json:"text"`
	Type       QuestionType   `json:"type"`
	Points     int            `json:"points"`
	OrderIndex int            `json:"orderIndex"`
	Choices    []ReviewChoice `json:"choices"`
	Answers    []ReviewAnswer `json:"answers"`
}

type ReviewChoice struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type ReviewAnswer struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// Question returns the review question with the given id.
func (v *ReviewView) Question(id int64) (*ReviewQuestion, bool) {
	for i := range v.Questions {
		if v.Questions[i].ID == id {
			return &v.Questions[i], true
		}
	}
	return nil, false
}

// MaxScore is the sum of all question points.
func (v *ReviewView) MaxScore() int {
	total := 0
	for _, q := range v.Questions {
		total += q.Points
	}
	return total
}

// Marks returns the quiz's total marks, falling back to the points sum
// when no total was configured.
func (v *ReviewView) Marks() int {
	if v.TotalMarks > 0 {
		return v.TotalMarks
	}
	return v.MaxScore()
}

// HasChoice reports whether choiceID belongs to the question.
func (q *ReviewQuestion) HasChoice(choiceID int64) bool {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}
