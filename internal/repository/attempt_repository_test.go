package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPool connects to LEARNHUB_TEST_DATABASE_URL and migrates it up.
// Tests are skipped when the variable is unset.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("LEARNHUB_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEARNHUB_TEST_DATABASE_URL not set")
	}

	m, err := migrate.New("file://../../migrations", url)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
	_, _ = m.Close()

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createTestQuiz(t *testing.T, pool *pgxpool.Pool) *model.Quiz {
	t.Helper()
	q := &model.Quiz{CourseID: 1, Name: "Repository quiz", PassPercentage: 50, Status: model.QuizStatusPublished}
	require.NoError(t, NewQuizRepository(pool).Create(context.Background(), q))
	t.Cleanup(func() { _ = NewQuizRepository(pool).Delete(context.Background(), q.ID) })
	return q
}

func TestUserQuizLifecycle(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	quiz := createTestQuiz(t, pool)
	repo := NewUserQuizRepository(pool)
	userID := time.Now().UnixNano() % 1_000_000

	uq, err := repo.Create(ctx, userID, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, uq.AttemptCount)
	assert.Equal(t, model.UserQuizStatusInProgress, uq.Status)

	_, err = repo.Create(ctx, userID, quiz.ID)
	assert.ErrorIs(t, err, ErrUserQuizExists)

	uq, err = repo.RecordResult(ctx, uq.ID, 4, true, 1)
	require.NoError(t, err)
	assert.Equal(t, model.UserQuizStatusPassed, uq.Status)
	require.NotNil(t, uq.PassedAt)
	passedAt := *uq.PassedAt

	uq, err = repo.Retake(ctx, uq.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, uq.AttemptCount)
	assert.Equal(t, model.UserQuizStatusPassed, uq.Status)

	uq, err = repo.RecordResult(ctx, uq.ID, 1, false, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, uq.BestScore)
	assert.Equal(t, model.UserQuizStatusPassed, uq.Status)
	assert.True(t, passedAt.Equal(*uq.PassedAt))
}

func TestResultFinalizesOnce(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	quiz := createTestQuiz(t, pool)
	userID := time.Now().UnixNano()%1_000_000 + 1_000_000

	uq, err := NewUserQuizRepository(pool).Create(ctx, userID, quiz.ID)
	require.NoError(t, err)

	results := NewResultRepository(pool)
	answers := NewAnswerRepository(pool)
	res := &model.Result{UserQuizID: uq.ID, AttemptNumber: 1, QuizID: quiz.ID, UserID: userID, CourseID: quiz.CourseID}
	require.NoError(t, results.Create(ctx, res))

	require.NoError(t, answers.UpsertInputAnswer(ctx, res.ID, 7, "first"))
	require.NoError(t, answers.UpsertInputAnswer(ctx, res.ID, 7, "second"))
	require.NoError(t, results.UpdateDuration(ctx, res.ID, 30))

	stored, err := answers.ListByResult(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "second", *stored[0].InputAnswer)

	done, err := results.Finalize(ctx, res.ID, 1, model.ResultStatusPassed, 45, time.Now(), nil)
	require.NoError(t, err)
	assert.True(t, done.Completed())
	assert.Equal(t, 45, done.DurationSeconds)

	_, err = results.Finalize(ctx, res.ID, 0, model.ResultStatusFailed, 50, time.Now(), nil)
	assert.ErrorIs(t, err, ErrResultFinalized)
	assert.ErrorIs(t, answers.UpsertInputAnswer(ctx, res.ID, 7, "late"), ErrResultFinalized)
	assert.ErrorIs(t, results.UpdateDuration(ctx, res.ID, 60), ErrResultFinalized)
}

func TestWithinTxRollsBack(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	tx := NewTxManager(pool)
	quizzes := NewQuizRepository(pool)

	var created int64
	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		q := &model.Quiz{CourseID: 1, Name: "Rolled back", PassPercentage: 50, Status: model.QuizStatusHidden}
		if err := quizzes.Create(ctx, q); err != nil {
			return err
		}
		created = q.ID
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = quizzes.GetByID(ctx, created)
	assert.Error(t, err)
}
