package handler

import (
	"net/http"

	"github.com/glintdate/glint-backend/internal/usecase/matchmaking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MatchingHandler struct {
	matchingUseCase *matchmaking.MatchingUseCase
	log             *zap.Logger
}

func NewMatchingHandler(uc *matchmaking.MatchingUseCase, log *zap.Logger) *MatchingHandler {
	return &MatchingHandler{matchingUseCase: uc, log: log}
}

// Run handles POST /matching/run — the on-demand matching pass. The same
// pass also runs on the scheduler; they are safe to overlap.
func (h *MatchingHandler) Run(c *gin.Context) {
	created, err := h.matchingUseCase.RunPass(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches_created": created})
}
