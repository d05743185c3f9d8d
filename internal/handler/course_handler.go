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

// CourseHandler serves the course catalog.
type CourseHandler struct {
	courseService *service.CourseService
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(courseService *service.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

type listCoursesQuery struct {
	Page    int                `form:"page" binding:"omitempty,min=1"`
	PerPage int                `form:"per_page" binding:"omitempty,min=1,max=100"`
	Status  model.CourseStatus `form:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
}

// List godoc
// GET /api/v1/courses?page=1&per_page=10&status=PUBLISHED
// Returns a page of courses.
func (h *CourseHandler) List(c *gin.Context) {
	var q listCoursesQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	courses, pagination, err := h.courseService.List(c.Request.Context(), q.Status, q.Page, q.PerPage)
	if err != nil {
		failWith(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, courses, pagination)
}

// Get godoc
// GET /api/v1/courses/:id
// Returns a course with its published quiz count.
func (h *CourseHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	course, err := h.courseService.Get(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, course)
}

// Batch godoc
// POST /api/v1/courses/batch
// Looks up several courses at once. Unknown IDs are skipped.
func (h *CourseHandler) Batch(c *gin.Context) {
	var req model.BatchCoursesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	courses, err := h.courseService.Batch(c.Request.Context(), req.IDs)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, courses)
}

// Create godoc
// POST /api/v1/courses
// Creates a course owned by the caller.
func (h *CourseHandler) Create(c *gin.Context) {
	var req model.CreateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Create(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, course)
}

// Update godoc
// PUT /api/v1/courses/:id
func (h *CourseHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Update(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, course)
}

// Delete godoc
// DELETE /api/v1/courses/:id
func (h *CourseHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.courseService.Delete(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
