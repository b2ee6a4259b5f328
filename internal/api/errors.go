package api

import (
	"net/http"

	"tourism-compliance/internal/common/errors"

	"github.com/gin-gonic/gin"
)

const retryAfterSeconds = "5"

// StatusFor maps an error code to its HTTP status.
func StatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeAlreadyDecided, errors.ErrCodeBatchInProgress:
		return http.StatusConflict
	case errors.ErrCodeInvalidDecision:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUpstreamTimeout, errors.ErrCodeEventPublishFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	stdErr := errors.FromContext("api", err)
	status := StatusFor(stdErr.Code)
	if errors.IsRetryable(stdErr) {
		c.Header("Retry-After", retryAfterSeconds)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"path":      c.FullPath(),
			"errorCode": string(stdErr.Code),
			"error":     stdErr.Error(),
		})
	}
	c.AbortWithStatusJSON(status, gin.H{"error": stdErr})
}

func badRequest(c *gin.Context, details string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errors.NewValidationError(details)})
}
