package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// QuizRepository handles quiz and quiz placement data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizColumns = `id, course_id, name, description, duration_minutes, total_marks,
	pass_percentage, status, created_at, updated_at`

func scanQuiz(row pgx.Row, q *model.Quiz) error {
	return row.Scan(&q.ID, &q.CourseID, &q.Name, &q.Description, &q.DurationMinutes,
		&q.TotalMarks, &q.PassPercentage, &q.Status, &q.CreatedAt, &q.UpdatedAt)
}

func (r *QuizRepository) list(ctx context.Context, query string, args ...any) ([]model.Quiz, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := []model.Quiz{}
	for rows.Next() {
		var q model.Quiz
		if err := scanQuiz(rows, &q); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// GetByID retrieves a quiz by ID.
func (r *QuizRepository) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	q := &model.Quiz{}
	if err := scanQuiz(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id), q); err != nil {
		return nil, err
	}
	return q, nil
}

// ListByCourse retrieves a course's quizzes. publishedOnly hides HIDDEN and ARCHIVED quizzes.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID int64, publishedOnly bool) ([]model.Quiz, error) {
	if publishedOnly {
		return r.list(ctx,
			`SELECT `+quizColumns+` FROM quizzes WHERE course_id = $1 AND status = $2 ORDER BY id`,
			courseID, model.QuizStatusPublished)
	}
	return r.list(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE course_id = $1 ORDER BY id`, courseID)
}

// ListPublished retrieves every PUBLISHED quiz.
func (r *QuizRepository) ListPublished(ctx context.Context) ([]model.Quiz, error) {
	return r.list(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE status = $1 ORDER BY id`, model.QuizStatusPublished)
}

// ListByIDs retrieves quizzes by ID. Missing IDs are skipped.
func (r *QuizRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.Quiz, error) {
	return r.list(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = ANY($1) ORDER BY id`, ids)
}

// CountPublishedByCourse counts a course's PUBLISHED quizzes.
func (r *QuizRepository) CountPublishedByCourse(ctx context.Context, courseID int64) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM quizzes WHERE course_id = $1 AND status = $2`,
		courseID, model.QuizStatusPublished,
	).Scan(&n)
	return n, err
}

// ListIDsByQuestion returns the quizzes a question is placed in.
func (r *QuizRepository) ListIDsByQuestion(ctx context.Context, questionID int64) ([]int64, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT quiz_id FROM quiz_questions WHERE question_id = $1`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create inserts a new quiz.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	return conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO quizzes (course_id, name, description, duration_minutes, total_marks, pass_percentage, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		q.CourseID, q.Name, q.Description, q.DurationMinutes, q.TotalMarks, q.PassPercentage, q.Status,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// Update overwrites the mutable quiz fields.
func (r *QuizRepository) Update(ctx context.Context, q *model.Quiz) error {
	return conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE quizzes
		 SET name = $1, description = $2, duration_minutes = $3, total_marks = $4,
		     pass_percentage = $5, status = $6, updated_at = NOW()
		 WHERE id = $7
		 RETURNING updated_at`,
		q.Name, q.Description, q.DurationMinutes, q.TotalMarks, q.PassPercentage, q.Status, q.ID,
	).Scan(&q.UpdatedAt)
}

// Delete removes a quiz. Returns pgx.ErrNoRows if it did not exist.
func (r *QuizRepository) Delete(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ReplaceQuestions swaps the quiz's placements for the given ordered list.
// Call inside TxManager.WithinTx.
func (r *QuizRepository) ReplaceQuestions(ctx context.Context, quizID int64, placements []model.QuizQuestion) error {
	db := conn(ctx, r.pool)
	if _, err := db.Exec(ctx, `DELETE FROM quiz_questions WHERE quiz_id = $1`, quizID); err != nil {
		return err
	}

	if len(placements) == 0 {
		return nil
	}

	questionIDs := make([]int64, len(placements))
	orders := make([]int32, len(placements))
	overrides := make([]*int32, len(placements))
	for i, p := range placements {
		questionIDs[i] = p.QuestionID
		orders[i] = int32(p.OrderIndex)
		if p.PointsOverride != nil {
			v := int32(*p.PointsOverride)
			overrides[i] = &v
		}
	}

	_, err := db.Exec(ctx,
		`INSERT INTO quiz_questions (quiz_id, question_id, order_index, points_override)
		 SELECT $1, u.question_id, u.order_index, u.points_override
		 FROM UNNEST($2::bigint[], $3::int[], $4::int[]) AS u (question_id, order_index, points_override)`,
		quizID, questionIDs, orders, overrides)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
