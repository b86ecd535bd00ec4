package main

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/relaychat/internal/handlers"
	"github.com/thereayou/relaychat/internal/middleware"
	"github.com/thereayou/relaychat/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	jwtMgr *auth.JWTManager,
	rdb *redis.Client,
	authH *handlers.AuthHandler,
	userH *handlers.UserHandler,
	roomH *handlers.RoomHandler,
	msgH *handlers.HTTPMessageHandler,
	wsH *handlers.WebSocketHandler,
) {
	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/logout", authH.Logout)
	}

	// API endpoints
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtMgr, rdb))
	{
		api.GET("/users/me", userH.GetMe)
		api.PUT("/users/me", userH.UpdateMe)
		api.GET("/users/online", userH.GetOnlineUsers)
		api.GET("/users/search", userH.SearchUsers)
		api.GET("/users/:id", userH.GetUser)
		api.GET("/users", userH.ListUsers)

		api.POST("/rooms", roomH.CreateRoom)
		api.GET("/rooms", roomH.GetMyRooms)
		api.GET("/rooms/:id", roomH.GetRoom)
		api.PUT("/rooms/:id", roomH.UpdateRoom)
		api.GET("/rooms/:id/messages", msgH.GetRoomMessages)
	}

	// WebSocket endpoint
	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb), wsH.HandleWebSocket)
}
