package service

import (
	"encoding/json"
	"strings"

	"github.com/learnhub/learnhub-backend/internal/model"
)

// Grade is the outcome of scoring one attempt.
type Grade struct {
	Score          int
	TotalMarks     int
	PassPercentage int
	Passed         bool
	Correct        int
	Answered       int
	QuestionCount  int
}

// Status maps the grade onto a terminal result status.
func (g Grade) Status() model.ResultStatus {
	if g.Passed {
		return model.ResultStatusPassed
	}
	return model.ResultStatusFailed
}

// Metadata is stored on the finalized result.
func (g Grade) Metadata() json.RawMessage {
	data, _ := json.Marshal(map[string]int{
		"correct":        g.Correct,
		"answered":       g.Answered,
		"questionCount":  g.QuestionCount,
		"totalMarks":     g.TotalMarks,
		"passPercentage": g.PassPercentage,
	})
	return data
}

// ScoreAttempt grades answers against the review view. Unanswered questions
// score zero.
func ScoreAttempt(view *model.ReviewView, answers []model.AnswerEntry) Grade {
	byQuestion := make(map[int64]model.AnswerEntry, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	g := Grade{
		TotalMarks:     view.Marks(),
		PassPercentage: view.PassPercentage,
		QuestionCount:  len(view.Questions),
	}

	for i := range view.Questions {
		q := &view.Questions[i]
		a, ok := byQuestion[q.ID]
		if !ok || a.Empty() {
			continue
		}
		g.Answered++
		if IsCorrect(q, a) {
			g.Correct++
			g.Score += q.Points
		}
	}

	if g.Score > g.TotalMarks {
		g.Score = g.TotalMarks
	}
	if g.Score < 0 {
		g.Score = 0
	}
	g.Passed = g.TotalMarks > 0 && g.Score*100 >= g.PassPercentage*g.TotalMarks
	return g
}

// IsCorrect reports whether an answer is correct for the question.
func IsCorrect(q *model.ReviewQuestion, a model.AnswerEntry) bool {
	if q.Type.UsesChoices() {
		if len(a.SelectedChoiceIDs) != 1 {
			return false
		}
		for _, c := range q.Choices {
			if c.ID == a.SelectedChoiceIDs[0] {
				return c.IsCorrect
			}
		}
		return false
	}

	if a.InputAnswer == nil {
		return false
	}
	given := strings.TrimSpace(*a.InputAnswer)
	if given == "" {
		return false
	}
	for _, accepted := range q.Answers {
		if strings.EqualFold(given, strings.TrimSpace(accepted.Text)) {
			return true
		}
	}
	return false
}
