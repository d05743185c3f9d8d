package repository

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// AnswerRepository handles per-question answer rows of a result.
// Rows are unique on (result_id, question_id) and written by upsert.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertSelectedChoice stores the chosen option for a question.
// Writing to a finalized result yields ErrResultFinalized.
func (r *AnswerRepository) UpsertSelectedChoice(ctx context.Context, resultID, questionID, choiceID int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO user_selected_choices (result_id, question_id, choice_id)
		 SELECT $1, $2, $3
		 WHERE EXISTS (SELECT 1 FROM user_quiz_results WHERE id = $1 AND completed_at IS NULL)
		 ON CONFLICT (result_id, question_id) DO UPDATE
		 SET choice_id = EXCLUDED.choice_id, updated_at = NOW()`,
		resultID, questionID, choiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrResultFinalized
	}
	return nil
}

// UpsertInputAnswer stores the free-text answer for a question.
// Writing to a finalized result yields ErrResultFinalized.
func (r *AnswerRepository) UpsertInputAnswer(ctx context.Context, resultID, questionID int64, text string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO user_input_answers (result_id, question_id, answer_text)
		 SELECT $1, $2, $3
		 WHERE EXISTS (SELECT 1 FROM user_quiz_results WHERE id = $1 AND completed_at IS NULL)
		 ON CONFLICT (result_id, question_id) DO UPDATE
		 SET answer_text = EXCLUDED.answer_text, updated_at = NOW()`,
		resultID, questionID, text)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrResultFinalized
	}
	return nil
}

// ListByResult returns every stored answer of a result, ordered by question ID.
func (r *AnswerRepository) ListByResult(ctx context.Context, resultID int64) ([]model.AnswerEntry, error) {
	db := conn(ctx, r.pool)
	byQuestion := make(map[int64]*model.AnswerEntry)

	rows, err := db.Query(ctx,
		`SELECT question_id, choice_id FROM user_selected_choices WHERE result_id = $1`, resultID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var qid, cid int64
		if err := rows.Scan(&qid, &cid); err != nil {
			rows.Close()
			return nil, err
		}
		byQuestion[qid] = &model.AnswerEntry{QuestionID: qid, SelectedChoiceIDs: []int64{cid}}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.Query(ctx,
		`SELECT question_id, answer_text FROM user_input_answers WHERE result_id = $1`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var qid int64
		var text string
		if err := rows.Scan(&qid, &text); err != nil {
			return nil, err
		}
		entry, ok := byQuestion[qid]
		if !ok {
			entry = &model.AnswerEntry{QuestionID: qid}
			byQuestion[qid] = entry
		}
		entry.InputAnswer = &text
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	answers := make([]model.AnswerEntry, 0, len(byQuestion))
	for _, e := range byQuestion {
		answers = append(answers, *e)
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return answers, nil
}
