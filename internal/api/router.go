package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"homelet/api/internal/api/handlers"
	"homelet/api/internal/api/middleware"
	"homelet/api/internal/cache"
	"homelet/api/internal/config"
	"homelet/api/internal/email"
	"homelet/api/internal/realtime"
	"homelet/api/internal/repository"
	"homelet/api/internal/services"
)

// SetupRouter configures and returns the main Gin engine. Background work
// started for the router stops when ctx is done.
func SetupRouter(ctx context.Context, cfg *config.Config, stores repository.Stores, broker *realtime.Broker, notifier services.InviteNotifier) *gin.Engine {
	chatService := services.NewChatService(stores, broker)
	inviteService := services.NewInviteService(stores, cfg, notifier)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg)
	r.Use(middleware.CORSMiddleware())

	restChatHandler := handlers.NewRestChatHandler(chatService)
	restInviteHandler := handlers.NewRestInviteHandler(inviteService)
	wsServer := realtime.NewServer(broker, cfg)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// The websocket handshake authenticates itself so browsers can pass ?token=.
		v1.GET("/ws", wsServer.HandleWS)

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), rateLimiter.Limit())
		{
			authRequired.POST("/chats", restChatHandler.StartChat)
			authRequired.GET("/chats", restChatHandler.ListChats)
			authRequired.GET("/chats/:id/messages", restChatHandler.ListMessages)
			authRequired.POST("/chats/:id/messages", restChatHandler.SendMessage)

			authRequired.POST("/rentals/:id/invites", restInviteHandler.CreateInvite)
			authRequired.GET("/rentals/:id/invites", restInviteHandler.ListInvites)
			authRequired.POST("/invites/redeem", restInviteHandler.RedeemInvite)
		}

		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.GET("/realtime/stats", func(c *gin.Context) {
				c.JSON(http.StatusOK, handlers.DataResponse{Data: broker.Stats()})
			})
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine.
// rdb may be nil when mock emails are not stored in Redis.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, broker *realtime.Broker, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "realtimeStats":
			if broker == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Realtime broker not running in this mode"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": broker.Stats()})
		case "getTestEmail":
			var args []string // Expect ["template_id", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [templateID, email]"})
				return
			}
			if rdb == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Mock email store not configured"})
				return
			}
			redisKey := email.MockEmailKey(args[1], args[0])

			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			var emailData map[string]interface{}
			err := cache.TakeJSON(ctx, rdb, redisKey, 10, 200*time.Millisecond, &emailData)
			if errors.Is(err, cache.ErrCacheMiss) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}
			if err != nil {
				log.Printf("Service API: Error reading key %s from Redis: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
