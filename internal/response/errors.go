package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrEmailTaken         ErrCode = "EMAIL_TAKEN"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrRefreshInvalid     ErrCode = "REFRESH_TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAnswer  ErrCode = "INVALID_ANSWER"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrCourseNotFound     ErrCode = "COURSE_NOT_FOUND"
	ErrQuizNotFound       ErrCode = "QUIZ_NOT_FOUND"
	ErrQuestionNotFound   ErrCode = "QUESTION_NOT_FOUND"
	ErrQuizNotAvailable   ErrCode = "QUIZ_NOT_AVAILABLE"
	ErrResultNotFound     ErrCode = "RESULT_NOT_FOUND"
	ErrResultFinalized    ErrCode = "RESULT_FINALIZED"
	ErrResultNotCompleted ErrCode = "RESULT_NOT_COMPLETED"
	ErrAttemptCompleted   ErrCode = "ATTEMPT_COMPLETED"
	ErrResultMismatch     ErrCode = "RESULT_MISMATCH"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"
	ErrInternal            ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrEmailTaken:
		return "An account with this email already exists."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."
	case ErrRefreshInvalid:
		return "Refresh token is invalid or expired. Please log in again."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."
	case ErrPermissionDenied:
		return "Permission denied."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidAnswer:
		return "An answer does not match a question of this quiz."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrDependencyExists:
		return "The resource is still referenced by other data."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrCourseNotFound:
		return "Course not found."
	case ErrQuizNotFound:
		return "Quiz not found."
	case ErrQuestionNotFound:
		return "Question not found."
	case ErrQuizNotAvailable:
		return "This quiz is not open for attempts."
	case ErrResultNotFound:
		return "Attempt not found."
	case ErrResultFinalized:
		return "This attempt has already been submitted."
	case ErrResultNotCompleted:
		return "This attempt has not been submitted yet."
	case ErrAttemptCompleted:
		return "The latest attempt is completed. Start a retake instead."
	case ErrResultMismatch:
		return "The attempt does not belong to this quiz record."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrUpstreamUnavailable:
		return "A dependent service is unavailable. Please try again."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
