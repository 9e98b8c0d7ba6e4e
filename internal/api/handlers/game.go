package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TangmaeTT/MathEveryday/internal/game"
	"github.com/TangmaeTT/MathEveryday/internal/question"
	"github.com/TangmaeTT/MathEveryday/internal/stats"
)

// StartSession starts a timed session for the authenticated user
func StartSession(manager *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authedUserID(c)

		var req struct {
			Operator string `json:"operator"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "operator required"})
			return
		}
		op, ok := question.ParseOperator(req.Operator)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown operator"})
			return
		}

		s, err := manager.Start(userID, op, nil)
		if err == game.ErrPlayerInSession {
			c.JSON(http.StatusConflict, gin.H{"error": "a session is already running"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
			return
		}
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

// GetSession returns the current snapshot of a session
func GetSession(manager *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := ownedSession(c, manager)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

// SubmitAnswer submits an answer to a running session
func SubmitAnswer(manager *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := ownedSession(c, manager)
		if !ok {
			return
		}

		var req struct {
			Answer string `json:"answer"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "answer required"})
			return
		}

		snap, err := manager.Submit(s.ID, req.Answer)
		if err == game.ErrNotRunning {
			c.JSON(http.StatusConflict, gin.H{"error": "session is not running"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit answer"})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// StopSession aborts a running session; the partial score counts
func StopSession(manager *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := ownedSession(c, manager)
		if !ok {
			return
		}
		if err := manager.Stop(s.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop session"})
			return
		}
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

// GetSessionResult returns the reconciled outcome of a finished session
func GetSessionResult(manager *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := ownedSession(c, manager)
		if !ok {
			return
		}

		res, recErr, done := manager.Result(s.ID)
		if !done {
			c.JSON(http.StatusAccepted, gin.H{"status": s.Status(), "score": s.Score()})
			return
		}

		body := gin.H{
			"session_score": res.SessionScore,
			"persisted":     res.Persisted,
		}
		if res.Persisted || res.Stats.UserID != "" {
			body["all_time_high"] = res.Stats.AllTimeHigh
			body["streak"] = res.Stats.Streak
		}
		switch {
		case errors.Is(recErr, stats.ErrStatsRead):
			// Stats could not be read; the player still sees the score
			// they just earned, nothing was written remotely.
			body["stats_error"] = "stats_unavailable"
		case errors.Is(recErr, stats.ErrStatsWrite):
			body["stats_error"] = "stats_not_saved"
		}
		c.JSON(http.StatusOK, body)
	}
}

// ownedSession loads the session in the path and enforces ownership
func ownedSession(c *gin.Context, manager *game.Manager) (*game.Session, bool) {
	userID := authedUserID(c)
	s, err := manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	if s.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
		return nil, false
	}
	return s, true
}
