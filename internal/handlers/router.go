package handlers

import (
	"net/http"

	"quiz-session-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	JWTSecret           string
	TrustGatewayHeaders bool
	AllowedOrigins      []string
	// Ready reports whether required dependencies are reachable.
	Ready func() bool
}

func NewRouter(cfg RouterConfig, rooms *RoomHandler, wsHandler *WebSocketHandler) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "quiz-session-service",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		if cfg.Ready != nil && !cfg.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	auth := middleware.Auth(cfg.JWTSecret, cfg.TrustGatewayHeaders)

	roomsGroup := router.Group("/api/v1/rooms")
	roomsGroup.Use(auth)
	{
		roomsGroup.POST("", rooms.CreateRoom)
		roomsGroup.GET("", rooms.ListRooms)
		roomsGroup.POST("/join", rooms.JoinRoom)
		roomsGroup.GET("/:id", rooms.GetRoom)
		roomsGroup.POST("/:id/leave", rooms.LeaveRoom)
		roomsGroup.GET("/:id/chat", rooms.ChatHistory)
	}

	router.GET("/ws", auth, wsHandler.HandleWebSocket)

	return router
}
