package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/zimlend/lending-api/internal/errors"
)

// statusFor maps application error codes onto HTTP statuses
func statusFor(code string) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeValidationError,
		apperrors.ErrCodeInvalidLoanParameters:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeConflict,
		apperrors.ErrCodePendingApplication,
		apperrors.ErrCodeScoreUpdateConflict:
		return http.StatusConflict
	case apperrors.ErrCodeScoreUnavailable,
		apperrors.ErrCodeMissingStatementData,
		apperrors.ErrCodeNoExistingScore:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a structured error response. AppError codes travel to
// the client; anything else is an opaque 500.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(statusFor(appErr.Code), gin.H{
			"error":     appErr.Message,
			"code":      appErr.Code,
			"timestamp": time.Now(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":     "Internal server error",
		"timestamp": time.Now(),
	})
}
