package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
)

// normalizeUsername lowercases and validates a username. Returns ""
// when invalid. Usernames are 3-24 chars of [a-z0-9_].
func normalizeUsername(username string) string {
	username = strings.ToLower(strings.TrimSpace(username))
	if len(username) < 3 || len(username) > 24 {
		return ""
	}
	for _, r := range username {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return ""
		}
	}
	return username
}

// generateUserID generates a random user ID
func generateUserID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "user_" + hex.EncodeToString(bytes)
}

// authedUserID reads the user id set by AuthMiddleware
func authedUserID(c *gin.Context) string {
	v, ok := c.Get("user_id")
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
