package handler

import (
	"errors"
	"net/http"

	"github.com/glintdate/glint-backend/internal/delivery/http/middleware"
	"github.com/glintdate/glint-backend/internal/usecase/queue"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QueueHandler struct {
	queueUseCase *queue.QueueUseCase
	log          *zap.Logger
}

func NewQueueHandler(uc *queue.QueueUseCase, log *zap.Logger) *QueueHandler {
	return &QueueHandler{queueUseCase: uc, log: log}
}

// Join handles POST /queue/join
func (h *QueueHandler) Join(c *gin.Context) {
	status, err := h.queueUseCase.Join(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		var cd *queue.CooldownError
		if errors.As(err, &cd) {
			c.JSON(http.StatusForbidden, ErrorResponse{
				Error:             "user is in cooldown",
				RetryAfterSeconds: int(cd.RetryAfter.Seconds()) + 1,
			})
			return
		}
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, status)
}

// Leave handles POST /queue/leave
func (h *QueueHandler) Leave(c *gin.Context) {
	if err := h.queueUseCase.Leave(c.Request.Context(), middleware.UserID(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

// Heartbeat handles POST /queue/heartbeat
func (h *QueueHandler) Heartbeat(c *gin.Context) {
	if err := h.queueUseCase.Heartbeat(c.Request.Context(), middleware.UserID(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Status handles GET /queue/status
func (h *QueueHandler) Status(c *gin.Context) {
	status, err := h.queueUseCase.Status(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
