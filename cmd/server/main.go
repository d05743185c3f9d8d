package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/database"
	"github.com/learnhub/learnhub-backend/internal/handler"
	"github.com/learnhub/learnhub-backend/internal/logger"
	"github.com/learnhub/learnhub-backend/internal/middleware"
	"github.com/learnhub/learnhub-backend/internal/peer"
	"github.com/learnhub/learnhub-backend/internal/repository"
	"github.com/learnhub/learnhub-backend/internal/router"
	"github.com/learnhub/learnhub-backend/internal/service"
	"github.com/learnhub/learnhub-backend/internal/validator"
	"github.com/learnhub/learnhub-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if cfg.LogFormat == "pretty" {
		printBanner()
	}
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Strs("services", cfg.Services).
		Msg("Starting LearnHub Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	txManager := repository.NewTxManager(pool)
	accountRepo := repository.NewAccountRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	userQuizRepo := repository.NewUserQuizRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)

	// ─── Initialize Peer Clients ───────────────────────────────────────
	peerOpts := func(baseURL string) peer.Options {
		return peer.Options{BaseURL: baseURL, Timeout: cfg.PeerTimeout, CacheTTL: cfg.PeerCacheTTL}
	}
	userClient := peer.NewUserClient(peerOpts(cfg.PeerUsersURL), log)
	courseClient := peer.NewCourseClient(peerOpts(cfg.PeerCoursesURL), log)
	quizClient := peer.NewQuizClient(peerOpts(cfg.PeerQuizzesURL), log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, accountRepo, rdb, log)
	userService := service.NewUserService(userRepo, log)
	courseService := service.NewCourseService(courseRepo, quizClient, log)
	quizService := service.NewQuizService(quizRepo, questionRepo, courseClient, txManager, rdb, cfg.QuizCacheTTL, log)
	questionService := service.NewQuestionService(questionRepo, courseClient, quizService, txManager, log)
	attemptService := service.NewAttemptService(userQuizRepo, resultRepo, answerRepo, quizService, quizRepo, courseClient, txManager, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, userClient, log),
		User:     handler.NewUserHandler(userService),
		Course:   handler.NewCourseHandler(courseService),
		Quiz:     handler.NewQuizHandler(quizService),
		Question: handler.NewQuestionHandler(questionService),
		Attempt:  handler.NewAttemptHandler(attemptService),
		WS:       handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	running := 0

	authLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go authLimiter.Run(workerCtx)

	if cfg.Serves(config.ServiceQuizzes) {
		answerWorker := worker.NewAnswerWorker(attemptService, rdb, log)
		refresher, err := worker.NewCacheRefresher(quizService, cfg.CacheRefreshSpec, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid CACHE_REFRESH_SPEC")
		}

		running = 2
		go func() { answerWorker.Start(workerCtx); workersDone <- struct{}{} }()
		go func() { refresher.Start(workerCtx); workersDone <- struct{}{} }()
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(cfg, router.Deps{
		Auth:        authService,
		Users:       userClient,
		AuthLimiter: authLimiter,
		Log:         log,
		Ready: func(ctx context.Context) map[string]string {
			return database.Check(ctx, pool, rdb)
		},
	}, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server ──────────────────────────────────────────────────
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", srv.Addr).Msg("Failed to listen")
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Runs once the listener is up: views embed course names fetched over
	// HTTP, possibly from this same process.
	if cfg.Serves(config.ServiceQuizzes) {
		if n, err := quizService.WarmPublished(ctx); err != nil {
			log.Warn().Err(err).Msg("Cache prewarm failed")
		} else {
			log.Info().Int("quizzes", n).Msg("Quiz views prewarmed")
		}
	}

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the answer queue to drain.
	workerCancel()
	for i := 0; i < running; i++ {
		select {
		case <-workersDone:
		case <-time.After(10 * time.Second):
			log.Warn().Msg("Timed out waiting for workers")
			i = running
		}
	}

	log.Info().Msg("Shutdown complete")
}

func printBanner() {
	figure.NewFigure("LearnHub", "", true).Print()
	fmt.Println(strings.Repeat("=", 54))
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
