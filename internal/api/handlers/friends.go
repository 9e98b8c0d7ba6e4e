package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TangmaeTT/MathEveryday/internal/social"
)

// SearchUser finds a user by exact username
func SearchUser(friends *social.FriendStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := normalizeUsername(c.Query("username"))
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
			return
		}

		user, err := friends.SearchByUsername(c.Request.Context(), username)
		if err == social.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if err != nil {
			log.Printf("[FRIENDS] Search failed for %q: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":            user.ID,
			"username":      user.Username,
			"display_name":  user.DisplayName,
			"all_time_high": user.AllTimeHigh,
		})
	}
}

// ListFriends returns the caller's accepted friends
func ListFriends(friends *social.FriendStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authedUserID(c)
		list, err := friends.ListFriends(c.Request.Context(), userID)
		if err != nil {
			log.Printf("[FRIENDS] List failed for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, f := range list {
			out = append(out, gin.H{
				"id":            f.ID,
				"username":      f.Username,
				"display_name":  f.DisplayName,
				"all_time_high": f.AllTimeHigh,
				"streak":        f.Streak,
			})
		}
		c.JSON(http.StatusOK, gin.H{"friends": out})
	}
}

// AddFriend creates an accepted friendship with the named user
func AddFriend(friends *social.FriendStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authedUserID(c)
		var req struct {
			Username string `json:"username"`
		}
		if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
			return
		}

		target, err := friends.SearchByUsername(c.Request.Context(), normalizeUsername(req.Username))
		if err == social.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if err := friends.AddFriend(c.Request.Context(), userID, target.ID); err != nil {
			if err == social.ErrSelfFriend {
				c.JSON(http.StatusBadRequest, gin.H{"error": "cannot add yourself"})
				return
			}
			log.Printf("[FRIENDS] Add failed for %s -> %s: %v", userID, target.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"friend_id": target.ID})
	}
}

// RemoveFriend deletes a friendship in either direction
func RemoveFriend(friends *social.FriendStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authedUserID(c)
		friendID := c.Param("id")
		if friendID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "friend id required"})
			return
		}
		if err := friends.RemoveFriend(c.Request.Context(), userID, friendID); err != nil {
			log.Printf("[FRIENDS] Remove failed for %s -> %s: %v", userID, friendID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": friendID})
	}
}
