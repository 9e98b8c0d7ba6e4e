package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/TangmaeTT/MathEveryday/internal/api/handlers"
	"github.com/TangmaeTT/MathEveryday/internal/config"
	"github.com/TangmaeTT/MathEveryday/internal/game"
	"github.com/TangmaeTT/MathEveryday/internal/leaderboard"
	"github.com/TangmaeTT/MathEveryday/internal/middleware"
	"github.com/TangmaeTT/MathEveryday/internal/social"
	"github.com/TangmaeTT/MathEveryday/internal/stats"
	"github.com/TangmaeTT/MathEveryday/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config, manager *game.Manager) {
	router.Use(middleware.CORSMiddleware(cfg))

	userStore := stats.NewUserStore(db, rdb)
	friendStore := social.NewFriendStore(db)
	boards := leaderboard.NewService(userStore, friendStore, cfg.FriendQueryBatchSize)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Auth endpoints
		auth := v1.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db, cfg))
			auth.POST("/login", handlers.Login(db, rdb, cfg))
		}

		// Everything below requires a valid token
		authed := v1.Group("")
		authed.Use(handlers.AuthMiddleware(cfg))
		{
			authed.GET("/me", handlers.GetMe(db))
			authed.PUT("/me/display-name", handlers.UpdateDisplayName(db))

			// Session endpoints
			g := authed.Group("/game")
			{
				g.POST("/start", handlers.StartSession(manager))
				g.GET("/:id", handlers.GetSession(manager))
				g.POST("/:id/answer", handlers.SubmitAnswer(manager))
				g.POST("/:id/stop", handlers.StopSession(manager))
				g.GET("/:id/result", handlers.GetSessionResult(manager))
			}

			// Live play over WebSocket
			authed.GET("/game/ws", ws.HandleSessionWebSocket(manager, cfg))

			// Leaderboards
			lb := authed.Group("/leaderboard")
			{
				lb.GET("/global", handlers.GlobalLeaderboard(boards, cfg))
				lb.GET("/friends", handlers.FriendsLeaderboard(boards, cfg))
			}

			// Friends
			f := authed.Group("/friends")
			{
				f.GET("", handlers.ListFriends(friendStore))
				f.POST("", handlers.AddFriend(friendStore))
				f.DELETE("/:id", handlers.RemoveFriend(friendStore))
			}
			authed.GET("/users/search", handlers.SearchUser(friendStore))
		}
	}
}
