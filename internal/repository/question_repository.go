package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// OrderedQuestion is a question as placed in a quiz, with its effective points.
type OrderedQuestion struct {
	model.Question
	OrderIndex int
}

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetByID retrieves a question with its choices and accepted answers.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	q := model.Question{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, course_id, text, type, points, status, created_at, updated_at
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.CourseID, &q.Text, &q.Type, &q.Points, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}

	list := []model.Question{q}
	if err := r.loadChildren(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListByCourse retrieves all questions of a course's bank.
func (r *QuestionRepository) ListByCourse(ctx context.Context, courseID int64) ([]model.Question, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, course_id, text, type, points, status, created_at, updated_at
		 FROM questions WHERE course_id = $1
		 ORDER BY id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Text, &q.Type, &q.Points, &q.Status, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadChildren(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// ListPublishedForQuiz returns the quiz's PUBLISHED questions in quiz order.
// Points holds the override when one is set on the quiz placement.
func (r *QuestionRepository) ListPublishedForQuiz(ctx context.Context, quizID int64) ([]OrderedQuestion, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT q.id, q.course_id, q.text, q.type, COALESCE(qq.points_override, q.points),
		        q.status, q.created_at, q.updated_at, qq.order_index
		 FROM quiz_questions qq
		 JOIN questions q ON q.id = qq.question_id
		 WHERE qq.quiz_id = $1 AND q.status = $2
		 ORDER BY qq.order_index ASC, q.id ASC`,
		quizID, model.QuestionStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ordered []OrderedQuestion
	for rows.Next() {
		var oq OrderedQuestion
		if err := rows.Scan(&oq.ID, &oq.CourseID, &oq.Text, &oq.Type, &oq.Points,
			&oq.Status, &oq.CreatedAt, &oq.UpdatedAt, &oq.OrderIndex); err != nil {
			return nil, err
		}
		ordered = append(ordered, oq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	plain := make([]model.Question, len(ordered))
	for i := range ordered {
		plain[i] = ordered[i].Question
	}
	if err := r.loadChildren(ctx, plain); err != nil {
		return nil, err
	}
	for i := range ordered {
		ordered[i].Question = plain[i]
	}
	return ordered, nil
}

// Create inserts a question with its choices and accepted answers.
// Call inside TxManager.WithinTx to keep the rows consistent.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	err := conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO questions (course_id, text, type, points, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		q.CourseID, q.Text, q.Type, q.Points, q.Status,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return err
	}
	return r.insertChildren(ctx, q)
}

// Update overwrites a question and replaces its choices and accepted answers.
// Call inside TxManager.WithinTx.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	db := conn(ctx, r.pool)
	err := db.QueryRow(ctx,
		`UPDATE questions SET text = $1, type = $2, points = $3, status = $4, updated_at = NOW()
		 WHERE id = $5
		 RETURNING course_id, created_at, updated_at`,
		q.Text, q.Type, q.Points, q.Status, q.ID,
	).Scan(&q.CourseID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := db.Exec(ctx, `DELETE FROM choices WHERE question_id = $1`, q.ID); err != nil {
		return err
	}
	if _, err := db.Exec(ctx, `DELETE FROM accepted_answers WHERE question_id = $1`, q.ID); err != nil {
		return err
	}
	return r.insertChildren(ctx, q)
}

// Delete removes a question. Returns pgx.ErrNoRows if it did not exist.
func (r *QuestionRepository) Delete(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *QuestionRepository) insertChildren(ctx context.Context, q *model.Question) error {
	db := conn(ctx, r.pool)

	for i := range q.Choices {
		c := &q.Choices[i]
		c.QuestionID = q.ID
		if err := db.QueryRow(ctx,
			`INSERT INTO choices (question_id, text, is_correct, position)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			q.ID, c.Text, c.IsCorrect, i,
		).Scan(&c.ID); err != nil {
			return err
		}
	}

	for i := range q.AcceptedAnswers {
		a := &q.AcceptedAnswers[i]
		a.QuestionID = q.ID
		if err := db.QueryRow(ctx,
			`INSERT INTO accepted_answers (question_id, text)
			 VALUES ($1, $2) RETURNING id`,
			q.ID, a.Text,
		).Scan(&a.ID); err != nil {
			return err
		}
	}
	return nil
}

// loadChildren fills Choices and AcceptedAnswers for every question in place.
func (r *QuestionRepository) loadChildren(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}

	ids := make([]int64, len(questions))
	index := make(map[int64]int, len(questions))
	for i := range questions {
		ids[i] = questions[i].ID
		index[questions[i].ID] = i
		questions[i].Choices = []model.Choice{}
		questions[i].AcceptedAnswers = []model.AcceptedAnswer{}
	}

	db := conn(ctx, r.pool)

	rows, err := db.Query(ctx,
		`SELECT id, question_id, text, is_correct FROM choices
		 WHERE question_id = ANY($1)
		 ORDER BY question_id, position, id`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var c model.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.IsCorrect); err != nil {
			rows.Close()
			return err
		}
		i := index[c.QuestionID]
		questions[i].Choices = append(questions[i].Choices, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = db.Query(ctx,
		`SELECT id, question_id, text FROM accepted_answers
		 WHERE question_id = ANY($1)
		 ORDER BY question_id, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a model.AcceptedAnswer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text); err != nil {
			return err
		}
		i := index[a.QuestionID]
		questions[i].AcceptedAnswers = append(questions[i].AcceptedAnswers, a)
	}
	return rows.Err()
}
