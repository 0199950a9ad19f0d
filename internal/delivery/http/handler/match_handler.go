package handler

import (
	"net/http"
	"strconv"

	"github.com/glintdate/glint-backend/internal/delivery/http/middleware"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/usecase/lifecycle"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MatchHandler struct {
	lifecycleUseCase *lifecycle.LifecycleUseCase
	log              *zap.Logger
}

func NewMatchHandler(uc *lifecycle.LifecycleUseCase, log *zap.Logger) *MatchHandler {
	return &MatchHandler{lifecycleUseCase: uc, log: log}
}

// VoteRequest is the body for POST /matches/:match_id/vote.
type VoteRequest struct {
	Vote domain.Vote `json:"vote" binding:"required,vote"`
}

func matchID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("match_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid match id"})
		return 0, false
	}
	return id, true
}

// Active handles GET /matches/active
func (h *MatchHandler) Active(c *gin.Context) {
	resp, err := h.lifecycleUseCase.ActiveMatch(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Vote handles POST /matches/:match_id/vote
func (h *MatchHandler) Vote(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "vote must be yes or pass"})
		return
	}
	resp, err := h.lifecycleUseCase.CastVote(c.Request.Context(), id, middleware.UserID(c), req.Vote)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// End handles POST /matches/:match_id/end
func (h *MatchHandler) End(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}
	if err := h.lifecycleUseCase.EndEarly(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": true})
}

// JoinDate handles POST /matches/:match_id/date/join
func (h *MatchHandler) JoinDate(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}
	resp, err := h.lifecycleUseCase.JoinDate(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetDate handles GET /matches/:match_id/date
func (h *MatchHandler) GetDate(c *gin.Context) {
	id, ok := matchID(c)
	if !ok {
		return
	}
	resp, err := h.lifecycleUseCase.GetDate(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
