package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnhub/learnhub-backend/internal/middleware"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/report"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/learnhub/learnhub-backend/internal/validator"
)

// Attempts is the part of *service.AttemptService the REST handler uses.
type Attempts interface {
	Start(ctx context.Context, userID, quizID int64) (*model.StartAttemptResponse, error)
	Retake(ctx context.Context, userID, quizID int64) (*model.StartAttemptResponse, error)
	Latest(ctx context.Context, userID, quizID int64) (*model.Result, error)
	Progress(ctx context.Context, userID int64) ([]model.ProgressEntry, error)
	State(ctx context.Context, userID, resultID int64) (*model.ResumeState, error)
	Submit(ctx context.Context, userID int64, sub *model.Submission) (*model.SubmissionResult, error)
	Review(ctx context.Context, userID, resultID int64) (*model.ResultReview, error)
}

// AttemptHandler serves the learner side of quizzes: starting, saving,
// submitting and reviewing attempts. Routes run behind ResolveUser.
type AttemptHandler struct {
	attemptService Attempts
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService Attempts) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// Start godoc
// POST /api/v1/quizzes/:quiz_id/start
// Creates the first attempt or resumes the open one.
func (h *AttemptHandler) Start(c *gin.Context) {
	quizID, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}
	user := middleware.GetUser(c)

	out, err := h.attemptService.Start(c.Request.Context(), user.ID, quizID)
	if err != nil {
		failWith(c, err)
		return
	}

	status := http.StatusCreated
	if out.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, out)
}

// Retake godoc
// POST /api/v1/quizzes/:quiz_id/retake
// Opens a new attempt after a completed one.
func (h *AttemptHandler) Retake(c *gin.Context) {
	quizID, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}
	user := middleware.GetUser(c)

	out, err := h.attemptService.Retake(c.Request.Context(), user.ID, quizID)
	if err != nil {
		failWith(c, err)
		return
	}

	status := http.StatusCreated
	if out.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, out)
}

// Latest godoc
// GET /api/v1/quizzes/:quiz_id/latest-result
func (h *AttemptHandler) Latest(c *gin.Context) {
	quizID, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}
	user := middleware.GetUser(c)

	res, err := h.attemptService.Latest(c.Request.Context(), user.ID, quizID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Progress godoc
// GET /api/v1/user-quizzes
// Lists the caller's standing on every quiz they started.
func (h *AttemptHandler) Progress(c *gin.Context) {
	user := middleware.GetUser(c)

	entries, err := h.attemptService.Progress(c.Request.Context(), user.ID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, entries)
}

// State godoc
// GET /api/v1/results/:result_id/state
// Returns the server-side answers of an attempt for resuming.
func (h *AttemptHandler) State(c *gin.Context) {
	resultID, ok := paramID(c, "result_id")
	if !ok {
		return
	}
	user := middleware.GetUser(c)

	state, err := h.attemptService.State(c.Request.Context(), user.ID, resultID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// Submit godoc
// POST /api/v1/results/:result_id/submit
// Saves answers. With isFinalSubmission the attempt is scored and closed.
func (h *AttemptHandler) Submit(c *gin.Context) {
	resultID, ok := paramID(c, "result_id")
	if !ok {
		return
	}

	var req model.Submission
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.ResultID != resultID {
		response.Fail(c, http.StatusBadRequest, response.ErrResultMismatch)
		return
	}
	user := middleware.GetUser(c)

	out, err := h.attemptService.Submit(c.Request.Context(), user.ID, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, out)
}

// Review godoc
// GET /api/v1/results/:result_id/review
// Returns the graded review of a completed attempt.
func (h *AttemptHandler) Review(c *gin.Context) {
	resultID, ok := paramID(c, "result_id")
	if !ok {
		return
	}
	user := middleware.GetUser(c)

	review, err := h.attemptService.Review(c.Request.Context(), user.ID, resultID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, review)
}

// ReviewPDF godoc
// GET /api/v1/results/:result_id/review.pdf
// Same as Review, rendered as a PDF download.
func (h *AttemptHandler) ReviewPDF(c *gin.Context) {
	resultID, ok := paramID(c, "result_id")
	if !ok {
		return
	}
	user := middleware.GetUser(c)

	review, err := h.attemptService.Review(c.Request.Context(), user.ID, resultID)
	if err != nil {
		failWith(c, err)
		return
	}

	body, err := report.ReviewPDF(review)
	if err != nil {
		failWith(c, err)
		return
	}

	response.PDF(c, fmt.Sprintf("review-%d.pdf", resultID), body)
}
