package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/TangmaeTT/MathEveryday/internal/config"
	"github.com/TangmaeTT/MathEveryday/internal/leaderboard"
)

// GlobalLeaderboard returns the top players across all users
func GlobalLeaderboard(svc *leaderboard.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := svc.Global(c.Request.Context(), parseLimit(c, cfg.LeaderboardLimit))
		if err != nil {
			log.Printf("[LEADERBOARD] Global query failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

// FriendsLeaderboard returns the leaderboard over the caller's friends
func FriendsLeaderboard(svc *leaderboard.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authedUserID(c)
		entries, err := svc.Friends(c.Request.Context(), userID, parseLimit(c, cfg.LeaderboardLimit))
		if err != nil {
			log.Printf("[LEADERBOARD] Friends query failed for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

// parseLimit reads ?limit= capped to the configured maximum
func parseLimit(c *gin.Context, max int) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < max {
			return n
		}
	}
	return max
}
