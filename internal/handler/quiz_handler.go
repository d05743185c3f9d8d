package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnhub/learnhub-backend/internal/middleware"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/learnhub/learnhub-backend/internal/service"
	"github.com/learnhub/learnhub-backend/internal/validator"
)

// QuizHandler serves quiz authoring and the quiz projections.
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// ListByCourse godoc
// GET /api/v1/courses/:course_id/quizzes
// Learners see published quizzes only; authors see all of them.
func (h *QuizHandler) ListByCourse(c *gin.Context) {
	courseID, ok := paramID(c, "course_id")
	if !ok {
		return
	}

	quizzes, err := h.quizService.ListByCourse(c.Request.Context(), courseID, middleware.IsAuthor(c))
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, quizzes)
}

// Get godoc
// GET /api/v1/quizzes/:quiz_id
func (h *QuizHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}

	quiz, err := h.quizService.Get(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	if quiz.Status != model.QuizStatusPublished && !middleware.IsAuthor(c) {
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
		return
	}

	response.Success(c, http.StatusOK, quiz)
}

// Count godoc
// GET /api/v1/quizzes/count?course_id=1
// Returns the number of published quizzes in a course. Used by the course service.
func (h *QuizHandler) Count(c *gin.Context) {
	courseID, ok := queryID(c, "course_id")
	if !ok {
		return
	}

	count, err := h.quizService.CountPublished(c.Request.Context(), courseID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// AttemptView godoc
// GET /api/v1/quizzes/:quiz_id/attempt
// Returns the quiz without correctness data.
func (h *QuizHandler) AttemptView(c *gin.Context) {
	id, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}

	view, err := h.quizService.AttemptView(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	if view.Status != model.QuizStatusPublished && !middleware.IsAuthor(c) {
		response.Fail(c, http.StatusForbidden, response.ErrQuizNotAvailable)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// ReviewView godoc
// GET /api/v1/quizzes/:quiz_id/review
// Returns the quiz with correctness data. Authors only.
func (h *QuizHandler) ReviewView(c *gin.Context) {
	id, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}

	view, err := h.quizService.ReviewView(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// Create godoc
// POST /api/v1/quizzes
func (h *QuizHandler) Create(c *gin.Context) {
	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, quiz)
}

// Update godoc
// PUT /api/v1/quizzes/:quiz_id
func (h *QuizHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Update(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, quiz)
}

// Delete godoc
// DELETE /api/v1/quizzes/:quiz_id
func (h *QuizHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// SetQuestions godoc
// PUT /api/v1/quizzes/:quiz_id/questions
// Replaces the ordered question list and returns the new review view.
func (h *QuizHandler) SetQuestions(c *gin.Context) {
	id, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}

	var req model.SetQuizQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.quizService.SetQuestions(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}
