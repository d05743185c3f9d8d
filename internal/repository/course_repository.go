package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// CourseRepository handles course catalog data access.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

const courseColumns = `id, title, description, status, instructor_id, created_at, updated_at`

func scanCourse(row pgx.Row, c *model.Course) error {
	return row.Scan(&c.ID, &c.Title, &c.Description, &c.Status, &c.InstructorID, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID retrieves a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	c := &model.Course{}
	if err := scanCourse(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id), c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetByIDs retrieves every course whose ID is in ids. Missing IDs are skipped.
func (r *CourseRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Course, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		var c model.Course
		if err := scanCourse(rows, &c); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// ListPaginated returns a page of courses, optionally filtered by status.
func (r *CourseRepository) ListPaginated(ctx context.Context, status model.CourseStatus, limit, offset int) ([]model.Course, int, error) {
	where := ""
	args := []any{}
	if status != "" {
		args = append(args, status)
		where = fmt.Sprintf(" WHERE status = $%d", len(args))
	}

	db := conn(ctx, r.pool)

	var total int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM courses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + courseColumns + ` FROM courses` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := scanCourse(rows, &c); err != nil {
			return nil, 0, err
		}
		courses = append(courses, c)
	}
	return courses, total, rows.Err()
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	return conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO courses (title, description, status, instructor_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		c.Title, c.Description, c.Status, c.InstructorID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update overwrites the mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, c *model.Course) error {
	return conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE courses SET title = $1, description = $2, status = $3, updated_at = NOW()
		 WHERE id = $4
		 RETURNING updated_at`,
		c.Title, c.Description, c.Status, c.ID,
	).Scan(&c.UpdatedAt)
}

// Delete removes a course. Returns pgx.ErrNoRows if it did not exist.
func (r *CourseRepository) Delete(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
