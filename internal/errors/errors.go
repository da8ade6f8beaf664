package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// AppError represents an application-specific error
type AppError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Cause     error  `json:"-"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(code, message string, cause error) *AppError {
	_, file, line, _ := runtime.Caller(1)
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
		File:    file,
		Line:    line,
	}
}

// WithOperation adds operation context to the error
func (e *AppError) WithOperation(operation string) *AppError {
	e.Operation = operation
	return e
}

// WithDetails adds additional details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// Common error codes
const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeDatabaseError   = "DATABASE_ERROR"
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeServiceError    = "SERVICE_ERROR"

	// Lending domain codes
	ErrCodeInvalidLoanParameters = "INVALID_LOAN_PARAMETERS"
	ErrCodeMissingStatementData  = "MISSING_STATEMENT_DATA"
	ErrCodeNoExistingScore       = "NO_EXISTING_SCORE"
	ErrCodeScoreUnavailable      = "SCORE_UNAVAILABLE"
	ErrCodeScoreUpdateConflict   = "SCORE_UPDATE_CONFLICT"
	ErrCodePendingApplication    = "PENDING_APPLICATION_EXISTS"
)

// Common error constructors
func NotFound(message string, cause error) *AppError {
	return NewAppError(ErrCodeNotFound, message, cause)
}

func InvalidInput(message string, cause error) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, cause)
}

func Unauthorized(message string, cause error) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, cause)
}

func InternalError(message string, cause error) *AppError {
	return NewAppError(ErrCodeInternalError, message, cause)
}

func DatabaseError(message string, cause error) *AppError {
	return NewAppError(ErrCodeDatabaseError, message, cause)
}

func ValidationError(message string, cause error) *AppError {
	return NewAppError(ErrCodeValidationError, message, cause)
}

func Conflict(message string, cause error) *AppError {
	return NewAppError(ErrCodeConflict, message, cause)
}

func ServiceError(message string, cause error) *AppError {
	return NewAppError(ErrCodeServiceError, message, cause)
}

// Domain error constructors

// InvalidLoanParameters flags amount/rate/term out of bounds; correctable by
// the caller, never retried internally.
func InvalidLoanParameters(message string) *AppError {
	return NewAppError(ErrCodeInvalidLoanParameters, message, nil)
}

// MissingStatementData is returned when a cold start is attempted with no
// usable financial metrics and no existing score.
func MissingStatementData(message string) *AppError {
	return NewAppError(ErrCodeMissingStatementData, message, nil)
}

// NoExistingScore indicates a trust-loop event arrived before any cold-start
// record exists. Upstream workflow-ordering bug.
func NoExistingScore(borrowerID string) *AppError {
	return NewAppError(ErrCodeNoExistingScore, fmt.Sprintf("no score record exists for borrower %s", borrowerID), nil)
}

// ScoreUnavailable is returned when the application workflow could not
// resolve a score by any path.
func ScoreUnavailable(message string) *AppError {
	return NewAppError(ErrCodeScoreUnavailable, message, nil)
}

// ScoreUpdateConflict signals an optimistic version check failure on a score
// update. The caller retries the whole read-compute-write cycle.
func ScoreUpdateConflict(borrowerID string, expectedVersion int) *AppError {
	return NewAppError(ErrCodeScoreUpdateConflict,
		fmt.Sprintf("score for borrower %s changed since version %d", borrowerID, expectedVersion), nil)
}

// PendingApplication enforces one open application per borrower
func PendingApplication(borrowerID string) *AppError {
	return NewAppError(ErrCodePendingApplication,
		fmt.Sprintf("borrower %s already has an open application", borrowerID), nil)
}

// HasCode reports whether err (or anything it wraps) is an AppError with the
// given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
