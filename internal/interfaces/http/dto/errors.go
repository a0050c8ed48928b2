package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for request validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRejected is used when a grid rule refused a change
	ErrCodeValidationRejected = "ERR_VALIDATION_REJECTED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeDuplicateRow is used when a new row repeats an existing key
	ErrCodeDuplicateRow = "ERR_DUPLICATE_ROW"
	// ErrCodeSessionClosed is used for calls on a closed or reaped session
	ErrCodeSessionClosed = "ERR_SESSION_CLOSED"
)

// Grid state error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeNoChanges is used when a commit finds nothing dirty
	ErrCodeNoChanges = "ERR_NO_CHANGES"
	// ErrCodeCommitInFlight is used when a save is already running
	ErrCodeCommitInFlight = "ERR_COMMIT_IN_FLIGHT"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodePeriodClosed is used when a closed period is changed
	ErrCodePeriodClosed = "ERR_PERIOD_CLOSED"
	// ErrCodeUnbalancedLines is used when journal lines do not balance
	ErrCodeUnbalancedLines = "ERR_UNBALANCED_LINES"
)

// Backend error codes
const (
	// ErrCodePersistenceFailed is used when the backend failed a save
	ErrCodePersistenceFailed = "ERR_PERSISTENCE_FAILED"
	// ErrCodeTimeout is used when a session call outlived its deadline
	ErrCodeTimeout = "ERR_TIMEOUT"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRejected: http.StatusUnprocessableEntity,

	// Resource errors
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeDuplicateRow:  http.StatusConflict,
	ErrCodeSessionClosed: http.StatusGone,

	// Grid state errors -> 409 Conflict or 422 Unprocessable Entity
	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodeNoChanges:       http.StatusUnprocessableEntity,
	ErrCodeCommitInFlight:  http.StatusConflict,
	ErrCodeBusinessRule:    http.StatusUnprocessableEntity,
	ErrCodePeriodClosed:    http.StatusUnprocessableEntity,
	ErrCodeUnbalancedLines: http.StatusUnprocessableEntity,

	// Backend errors
	ErrCodePersistenceFailed: http.StatusBadGateway,
	ErrCodeTimeout:           http.StatusGatewayTimeout,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":           ErrCodeNotFound,
	"ALREADY_EXISTS":      ErrCodeAlreadyExists,
	"CONFLICT":            ErrCodeConflict,
	"INVALID_INPUT":       ErrCodeInvalidInput,
	"INVALID_STATE":       ErrCodeInvalidState,
	"INVALID_STATUS":      ErrCodeBusinessRule,
	"VALIDATION_REJECTED": ErrCodeValidationRejected,
	"PERSISTENCE_FAILED":  ErrCodePersistenceFailed,
	"NO_CHANGES":          ErrCodeNoChanges,
	"COMMIT_IN_FLIGHT":    ErrCodeCommitInFlight,
	"DUPLICATE_ROW":       ErrCodeDuplicateRow,
	"SESSION_CLOSED":      ErrCodeSessionClosed,
	"PERIOD_CLOSED":       ErrCodePeriodClosed,
	"UNBALANCED_LINES":    ErrCodeUnbalancedLines,
	"INTERNAL_ERROR":      ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
