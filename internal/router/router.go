package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/handler"
	"github.com/learnhub/learnhub-backend/internal/middleware"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/learnhub/learnhub-backend/internal/service"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup. Handlers of
// service groups this process does not serve are nil.
type Handlers struct {
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Course   *handler.CourseHandler
	Quiz     *handler.QuizHandler
	Question *handler.QuestionHandler
	Attempt  *handler.AttemptHandler
	WS       *handler.WSHandler
}

// Deps are the shared middleware dependencies.
type Deps struct {
	Auth        *service.AuthService
	Users       middleware.UserResolver
	AuthLimiter *middleware.RateLimiter
	Log         zerolog.Logger

	// Ready reports unreachable stores by name. Nil skips the check.
	Ready func(ctx context.Context) map[string]string
}

// SetupRouter configures the Gin route groups of every enabled service.
func SetupRouter(cfg *config.Config, deps Deps, handlers *Handlers) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when set; otherwise allow all so dev works
	// without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(deps.Log))
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "services": cfg.Services})
	})
	router.GET("/ready", func(c *gin.Context) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if failed := deps.Ready(ctx); len(failed) > 0 {
				response.FailWithFields(c, http.StatusServiceUnavailable, response.ErrUpstreamUnavailable, failed)
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ready"})
	})

	requireJWT := middleware.RequireJWT(deps.Auth)
	authorsOnly := middleware.RequireRole(model.RoleInstructor, model.RoleAdmin)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	if cfg.Serves(config.ServiceAuth) {
		auth := router.Group("/api/v1/auth")
		if deps.AuthLimiter != nil {
			auth.Use(deps.AuthLimiter.Middleware())
		}
		{
			auth.POST("/register", handlers.Auth.Register)
			auth.POST("/login", handlers.Auth.Login)
			auth.POST("/refresh", handlers.Auth.Refresh)
			auth.POST("/logout", handlers.Auth.Logout)
			auth.GET("/me", requireJWT, handlers.Auth.Me)
		}
	}

	// ─── 2. Users Group (JWT) ──────────────────────────────────────────
	if cfg.Serves(config.ServiceUsers) {
		users := router.Group("/api/v1/users")
		users.Use(requireJWT, middleware.NoStore())
		{
			users.GET("/me", handlers.User.Me)
			users.PUT("/me", handlers.User.UpdateMe)
			users.GET("/:id", middleware.RequireRole(model.RoleAdmin), handlers.User.GetByID)
		}
	}

	// ─── 3. Courses Group (public reads, author writes) ────────────────
	if cfg.Serves(config.ServiceCourses) {
		courses := router.Group("/api/v1/courses")
		{
			courses.GET("", middleware.CacheControl(60), handlers.Course.List)
			courses.GET("/:id", middleware.CacheControl(60), handlers.Course.Get)
			courses.POST("/batch", handlers.Course.Batch)

			courses.POST("", requireJWT, authorsOnly, handlers.Course.Create)
			courses.PUT("/:id", requireJWT, authorsOnly, handlers.Course.Update)
			courses.DELETE("/:id", requireJWT, authorsOnly, handlers.Course.Delete)
		}
	}

	// ─── 4. Quizzes Group ──────────────────────────────────────────────
	if cfg.Serves(config.ServiceQuizzes) {
		api := router.Group("/api/v1")

		// Public: used by the course service for enrichment.
		api.GET("/quizzes/count", handlers.Quiz.Count)

		authed := api.Group("")
		authed.Use(requireJWT)
		{
			authed.GET("/courses/:id/quizzes", withParam("course_id"), handlers.Quiz.ListByCourse)
			authed.GET("/quizzes/:quiz_id", handlers.Quiz.Get)
			authed.GET("/quizzes/:quiz_id/attempt", handlers.Quiz.AttemptView)
		}

		authoring := api.Group("")
		authoring.Use(requireJWT, authorsOnly)
		{
			authoring.POST("/quizzes", handlers.Quiz.Create)
			authoring.PUT("/quizzes/:quiz_id", handlers.Quiz.Update)
			authoring.DELETE("/quizzes/:quiz_id", handlers.Quiz.Delete)
			authoring.PUT("/quizzes/:quiz_id/questions", handlers.Quiz.SetQuestions)
			authoring.GET("/quizzes/:quiz_id/review", handlers.Quiz.ReviewView)

			authoring.GET("/courses/:id/questions", withParam("course_id"), handlers.Question.ListByCourse)
			authoring.POST("/courses/:id/questions", withParam("course_id"), handlers.Question.Create)
			authoring.GET("/questions/:question_id", handlers.Question.Get)
			authoring.PUT("/questions/:question_id", handlers.Question.Update)
			authoring.DELETE("/questions/:question_id", handlers.Question.Delete)
		}

		learner := api.Group("")
		learner.Use(requireJWT, middleware.ResolveUser(deps.Users), middleware.NoStore())
		{
			learner.POST("/quizzes/:quiz_id/start", handlers.Attempt.Start)
			learner.POST("/quizzes/:quiz_id/retake", handlers.Attempt.Retake)
			learner.GET("/quizzes/:quiz_id/latest-result", handlers.Attempt.Latest)
			learner.GET("/user-quizzes", handlers.Attempt.Progress)
			learner.GET("/results/:result_id/state", handlers.Attempt.State)
			learner.POST("/results/:result_id/submit", handlers.Attempt.Submit)
			learner.GET("/results/:result_id/review", handlers.Attempt.Review)
			learner.GET("/results/:result_id/review.pdf", handlers.Attempt.ReviewPDF)
		}

		// ─── 5. WebSocket Group (token query param) ────────────────────
		ws := router.Group("/ws/v1")
		ws.Use(middleware.RequireWSAuth(deps.Auth), middleware.ResolveUser(deps.Users))
		{
			ws.GET("/results/:result_id/stream", handlers.WS.ResultStream)
		}
	}

	return router
}

// withParam copies the :id path segment under name. Gin requires one
// wildcard name per path segment, so /courses/:id is shared between the
// course and quiz groups when both run in one process.
func withParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for i, p := range c.Params {
			if p.Key == "id" {
				c.Params[i].Key = name
			}
		}
		c.Next()
	}
}
