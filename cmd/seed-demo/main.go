package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/database"
	"github.com/learnhub/learnhub-backend/internal/logger"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/repository"
	"github.com/learnhub/learnhub-backend/internal/service"
)

// localCourses reads courses straight from the database; the seeder runs
// without the course service.
type localCourses struct {
	repo *repository.CourseRepository
}

func (l localCourses) Get(ctx context.Context, id int64) (*model.Course, error) {
	return l.repo.GetByID(ctx, id)
}

func (l localCourses) CourseName(ctx context.Context, id int64) string {
	c, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return ""
	}
	return c.Title
}

const demoPassword = "learnhub-demo"

func main() {
	students := flag.Int("students", 20, "Number of student accounts to create")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, logger.FileOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	txManager := repository.NewTxManager(pool)
	accountRepo := repository.NewAccountRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	courses := localCourses{repo: courseRepo}

	authService := service.NewAuthService(cfg, accountRepo, rdb, log)
	courseService := service.NewCourseService(courseRepo, nil, log)
	quizService := service.NewQuizService(quizRepo, questionRepo, courses, txManager, rdb, cfg.QuizCacheTTL, log)
	questionService := service.NewQuestionService(questionRepo, courses, quizService, txManager, log)

	fmt.Println("=== Seeding Demo Course ===")

	// ─── Instructor ────────────────────────────────────────────────────
	instructor, err := ensureAccount(ctx, authService, accountRepo, "instructor@learnhub.local", model.RoleInstructor)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create instructor")
	}
	if _, err := userRepo.EnsureByAccount(ctx, instructor.ID, "Demo Instructor"); err != nil {
		log.Fatal().Err(err).Msg("Failed to create instructor profile")
	}
	actor := service.Actor{AccountID: instructor.ID, Role: instructor.Role}

	// ─── Course, questions and quiz ────────────────────────────────────
	course, err := courseService.Create(ctx, actor, &model.CreateCourseRequest{
		Title:       "Go Fundamentals",
		Description: "Types, interfaces and concurrency basics.",
		Status:      model.CourseStatusPublished,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create course")
	}
	fmt.Printf("Created course %q with ID: %d\n", course.Title, course.ID)

	requests := []model.QuestionRequest{
		{
			Text: "Which keyword starts a goroutine?", Type: model.QuestionTypeMultipleChoice, Points: 1,
			Choices: []model.ChoiceInput{{Text: "go", IsCorrect: true}, {Text: "async"}, {Text: "spawn"}},
		},
		{
			Text: "A nil map can be read from without panicking.", Type: model.QuestionTypeTrueFalse, Points: 1,
			Choices: []model.ChoiceInput{{Text: "True", IsCorrect: true}, {Text: "False"}},
		},
		{
			Text: "Name the built-in function that appends to a slice.", Type: model.QuestionTypeShortAnswer, Points: 2,
			AcceptedAnswers: []string{"append"},
		},
	}

	placements := make([]model.QuizQuestionInput, 0, len(requests))
	for i := range requests {
		q, err := questionService.Create(ctx, actor, course.ID, &requests[i])
		if err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("Failed to create question")
		}
		placements = append(placements, model.QuizQuestionInput{QuestionID: q.ID})
	}

	quiz, err := quizService.Create(ctx, actor, &model.CreateQuizRequest{
		CourseID:        course.ID,
		Name:            "Go Fundamentals Checkpoint",
		DurationMinutes: 10,
		Status:          model.QuizStatusPublished,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create quiz")
	}
	view, err := quizService.SetQuestions(ctx, actor, quiz.ID, &model.SetQuizQuestionsRequest{Questions: placements})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to attach questions")
	}
	fmt.Printf("Created quiz %q with ID: %d (%d questions, %d marks)\n", quiz.Name, quiz.ID, len(view.Questions), view.Marks())

	// ─── Students ──────────────────────────────────────────────────────
	successCount := 0
	for i := 0; i < *students; i++ {
		email := fmt.Sprintf("student%d@learnhub.local", i+1)
		account, err := ensureAccount(ctx, authService, accountRepo, email, model.RoleStudent)
		if err != nil {
			fmt.Printf("Error creating student %s: %v\n", email, err)
			continue
		}
		if _, err := userRepo.EnsureByAccount(ctx, account.ID, fmt.Sprintf("Student %d", i+1)); err != nil {
			fmt.Printf("Error creating profile for %s: %v\n", email, err)
			continue
		}
		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Created %d students...\n", i+1)
		}
	}

	fmt.Printf("\nSeed completed! %d/%d students ready (password %q).\n", successCount, *students, demoPassword)
}

// ensureAccount returns the account for email, creating it when missing.
func ensureAccount(ctx context.Context, auth *service.AuthService, accounts *repository.AccountRepository, email string, role model.Role) (*model.Account, error) {
	existing, err := accounts.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return auth.CreateAccount(ctx, email, demoPassword, role)
}
