// Package response holds the JSON envelope every LearnHub service answers
// with, so peer services and the learner client decode one shape.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the envelope: data on success, error otherwise, metadata always.
type Response struct {
	Data       any         `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody carries a stable code for clients and a message for humans.
// Fields is set for validation failures only.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// NewPagination clamps page and perPage and derives the page count.
func NewPagination(page, perPage, total int) *Pagination {
	page = max(page, 1)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	return &Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}

// Offset returns the row offset of the page.
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

func Success(c *gin.Context, statusCode int, data any) {
	write(c, statusCode, Response{Data: data})
}

func SuccessWithPagination(c *gin.Context, statusCode int, data any, pagination *Pagination) {
	write(c, statusCode, Response{Data: data, Pagination: pagination})
}

// PDF sends a rendered document as a download.
func PDF(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", body)
}

// Fail sends an error with the standard message for code.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	write(c, statusCode, Response{Error: errorBody(code, nil)})
}

// FailWithFields sends a validation error with per-field messages.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	write(c, statusCode, Response{Error: errorBody(code, fields)})
}

// AbortFail stops the handler chain and sends an error. Used by middleware.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.Abort()
	Fail(c, statusCode, code)
}

func errorBody(code ErrCode, fields map[string]string) *ErrorBody {
	return &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields}
}

func write(c *gin.Context, statusCode int, body Response) {
	body.Metadata = newMetadata(c)
	c.JSON(statusCode, body)
}

// newMetadata stamps the response. Outside RequestIDMiddleware a fresh id
// is generated so every response still carries one.
func newMetadata(c *gin.Context) Metadata {
	id := RequestID(c)
	if id == "" {
		id = uuid.NewString()
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
