// Package report renders printable documents from graded attempts.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// ReviewPDF renders a graded review as an A4 document.
func ReviewPDF(review *model.ResultReview) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(review.QuizName, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, tr(review.QuizName), "", "L", false)
	if review.CourseName != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 6, tr(review.CourseName), "", "L", false)
	}
	pdf.Ln(4)

	res := review.Result
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Attempt %d  |  Score %d / %d  |  %s", res.AttemptNumber, res.Score, review.TotalMarks, res.Status))
	pdf.Ln(6)
	if res.CompletedAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Submitted %s  |  Duration %s", res.CompletedAt.UTC().Format("2006-01-02 15:04 UTC"), formatDuration(res.DurationSeconds)))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	for i, q := range review.Questions {
		mark := "WRONG"
		if q.Correct {
			mark = "CORRECT"
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s  (%d pts, %s)", i+1, q.QuestionText, q.Points, mark)), "", "L", false)

		pdf.SetFont("Arial", "", 11)
		if q.QuestionType.UsesChoices() {
			selected := make(map[int64]bool, len(q.UserAnswer.SelectedChoiceIDs))
			for _, id := range q.UserAnswer.SelectedChoiceIDs {
				selected[id] = true
			}
			for _, ch := range q.Choices {
				prefix := "[ ]"
				if selected[ch.ID] {
					prefix = "[x]"
				}
				suffix := ""
				if ch.IsCorrect {
					suffix = "  (correct)"
				}
				pdf.MultiCell(0, 6, tr(fmt.Sprintf("   %s %s%s", prefix, ch.Text, suffix)), "", "L", false)
			}
		} else {
			given := "(no answer)"
			if q.UserAnswer.TextAnswer != nil && *q.UserAnswer.TextAnswer != "" {
				given = *q.UserAnswer.TextAnswer
			}
			accepted := make([]string, 0, len(q.Answers))
			for _, a := range q.Answers {
				accepted = append(accepted, a.Text)
			}
			pdf.MultiCell(0, 6, tr("   Your answer: "+given), "", "L", false)
			pdf.MultiCell(0, 6, tr("   Accepted: "+strings.Join(accepted, ", ")), "", "L", false)
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render review pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%dm %02ds", seconds/60, seconds%60)
}
