package handler

import (
	"errors"
	"net/http"

	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the error body for all endpoints.
type ErrorResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// respondError is the single place domain errors become HTTP statuses.
// Validation errors surface as-is; contention becomes a retry prompt;
// anything unexpected is logged and hidden behind a 500.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrStateNotFound),
		errors.Is(err, domain.ErrMatchNotFound),
		errors.Is(err, domain.ErrVideoDateNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrAlreadyQueued),
		errors.Is(err, domain.ErrAlreadyMatched),
		errors.Is(err, domain.ErrMatchNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrInCooldown):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrNotParticipant):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrUserOffline):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrVoteWindowClosed):
		c.JSON(http.StatusGone, ErrorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrContention):
		// Expected under concurrency; the client just tries again.
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:             "concurrent update, please retry",
			RetryAfterSeconds: 1,
		})

	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
