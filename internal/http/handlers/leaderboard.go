package handlers

import (
	"net/http"

	"referral_bot/internal/service"

	"github.com/gin-gonic/gin"
)

// LeaderboardHandler serves the read-only referral leaderboard.
type LeaderboardHandler struct {
	svc *service.ReferralService
}

func NewLeaderboardHandler(svc *service.ReferralService) *LeaderboardHandler {
	return &LeaderboardHandler{svc: svc}
}

// GetLeaderboard returns the top 10 referrers
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	top, err := h.svc.Leaderboard(c.Request.Context(), 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": top,
	})
}
