package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/learnhub/learnhub-backend/internal/peer"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/learnhub/learnhub-backend/internal/service"
)

// serviceErrors maps domain errors to HTTP status and error code.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrEmailTaken, http.StatusConflict, response.ErrEmailTaken},
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized, response.ErrRefreshInvalid},
	{service.ErrForbidden, http.StatusForbidden, response.ErrForbidden},
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrCourseNotFound, http.StatusNotFound, response.ErrCourseNotFound},
	{service.ErrQuizNotFound, http.StatusNotFound, response.ErrQuizNotFound},
	{service.ErrQuestionNotFound, http.StatusNotFound, response.ErrQuestionNotFound},
	{service.ErrResultNotFound, http.StatusNotFound, response.ErrResultNotFound},
	{service.ErrQuizNotAvailable, http.StatusForbidden, response.ErrQuizNotAvailable},
	{service.ErrAttemptCompleted, http.StatusConflict, response.ErrAttemptCompleted},
	{service.ErrResultFinalized, http.StatusConflict, response.ErrResultFinalized},
	{service.ErrResultNotCompleted, http.StatusConflict, response.ErrResultNotCompleted},
	{service.ErrResultMismatch, http.StatusBadRequest, response.ErrResultMismatch},
	{service.ErrInvalidAnswer, http.StatusUnprocessableEntity, response.ErrInvalidAnswer},
	{service.ErrDuplicatePlacement, http.StatusConflict, response.ErrConflict},
	{peer.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{peer.ErrUnavailable, http.StatusServiceUnavailable, response.ErrUpstreamUnavailable},
}

// failWith writes the response matching err. Unknown errors become 500
// and are attached to the context for the request logger.
func failWith(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidQuestion) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"detail": err.Error()})
		return
	}
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}
	_ = c.Error(err)
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// queryID parses a positive integer query parameter.
func queryID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
