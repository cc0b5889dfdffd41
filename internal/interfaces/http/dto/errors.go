package dto

import "net/http"

// Error codes shared with handlers for responses the application layer
// does not originate itself
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeRateLimited  = "RATE_LIMIT_EXCEEDED"
	ErrCodeTooLarge     = "REQUEST_TOO_LARGE"
	ErrCodeValidation   = "VALIDATION_ERROR"
)

// ErrorCodeHTTPStatus maps domain error codes to HTTP status codes.
// Codes absent from the table fall back to 500.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeValidation:   http.StatusBadRequest,

	// Malformed or invalid input -> 400 Bad Request
	"INVALID_INPUT":     http.StatusBadRequest,
	"INVALID_NAME":      http.StatusBadRequest,
	"INVALID_SLUG":      http.StatusBadRequest,
	"INVALID_PLAN":      http.StatusBadRequest,
	"INVALID_EMAIL":     http.StatusBadRequest,
	"INVALID_SETTINGS":  http.StatusBadRequest,
	"INVALID_OWNER":     http.StatusBadRequest,
	"INVALID_ROLE":      http.StatusBadRequest,
	"INVALID_USER":      http.StatusBadRequest,
	"INVALID_TENANT":    http.StatusBadRequest,
	"INVALID_TICKET":    http.StatusBadRequest,
	"INVALID_PRIORITY":  http.StatusBadRequest,
	"INVALID_STATUS":    http.StatusBadRequest,
	"INVALID_MESSAGE":   http.StatusBadRequest,
	"INVALID_INVOICE":   http.StatusBadRequest,
	"INVALID_AMOUNT":    http.StatusBadRequest,
	"INVALID_REFERENCE": http.StatusBadRequest,
	"INVALID_ACCOUNT":   http.StatusBadRequest,
	"INVALID_JOB":       http.StatusBadRequest,
	"INVALID_PAYLOAD":   http.StatusBadRequest,
	"INVALID_SIGNATURE": http.StatusBadRequest,

	// Conflicts with existing state -> 409 Conflict
	"ALREADY_EXISTS":       http.StatusConflict,
	"SLUG_EXISTS":          http.StatusConflict,
	"OWNER_REQUIRED":       http.StatusConflict,
	"CONCURRENCY_CONFLICT": http.StatusConflict,

	// Valid request, state machine refuses -> 422 Unprocessable Entity
	"INVALID_STATE":      http.StatusUnprocessableEntity,
	"INVALID_TRANSITION": http.StatusUnprocessableEntity,
	"ALREADY_ACTIVE":     http.StatusUnprocessableEntity,
	"TICKET_CLOSED":      http.StatusUnprocessableEntity,

	// Downstream provisioning failure
	"PROVISIONING_FAILED": http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
