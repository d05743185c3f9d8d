package client

import "github.com/learnhub/learnhub-backend/internal/model"

// Merge builds the answer set a learner resumes with. Per question the local
// draft wins when it has an entry, otherwise the server's persisted answer is
// used. Questions unanswered on both sides, and answers to questions no
// longer in the quiz, are left out. The result follows the quiz order.
func Merge(view *model.AttemptView, server []model.AnswerEntry, draft map[int64]model.AnswerEntry) []model.AnswerEntry {
	persisted := make(map[int64]model.AnswerEntry, len(server))
	for _, a := range server {
		persisted[a.QuestionID] = a
	}

	out := make([]model.AnswerEntry, 0, len(view.Questions))
	for _, q := range view.Questions {
		entry, ok := draft[q.ID]
		if !ok {
			entry, ok = persisted[q.ID]
		}
		if !ok || entry.Empty() {
			continue
		}
		entry.QuestionID = q.ID
		entry.QuestionType = q.Type
		out = append(out, entry)
	}
	return out
}
