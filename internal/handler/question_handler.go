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

// QuestionHandler handles question bank endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// ListByCourse godoc
// GET /api/v1/courses/:course_id/questions
// Returns the course's question bank with correctness data.
func (h *QuestionHandler) ListByCourse(c *gin.Context) {
	courseID, ok := paramID(c, "course_id")
	if !ok {
		return
	}

	questions, err := h.questionService.ListByCourse(c.Request.Context(), middleware.GetActor(c), courseID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, questions)
}

// Get godoc
// GET /api/v1/questions/:question_id
func (h *QuestionHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "question_id")
	if !ok {
		return
	}

	q, err := h.questionService.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, q)
}

// Create godoc
// POST /api/v1/courses/:course_id/questions
func (h *QuestionHandler) Create(c *gin.Context) {
	courseID, ok := paramID(c, "course_id")
	if !ok {
		return
	}

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.questionService.Create(c.Request.Context(), middleware.GetActor(c), courseID, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, q)
}

// Update godoc
// PUT /api/v1/questions/:question_id
// Replaces the question including its choices or accepted answers.
func (h *QuestionHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "question_id")
	if !ok {
		return
	}

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.questionService.Update(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, q)
}

// Delete godoc
// DELETE /api/v1/questions/:question_id
func (h *QuestionHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "question_id")
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
