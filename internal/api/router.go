package api

import (
	"github.com/gin-gonic/gin"

	"github.com/lukajuskovic/sitebot/internal/api/admin"
	"github.com/lukajuskovic/sitebot/internal/api/chat"
	"github.com/lukajuskovic/sitebot/internal/api/middleware"
	"github.com/lukajuskovic/sitebot/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	siteService *service.SiteService,
	chatService *service.ChatService,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Chat API (public, site resolved from its own X-API-Key)
	chatHandler := chat.NewHandler(siteService, chatService)
	chatGroup := r.Group("/api")
	chatHandler.RegisterRoutes(chatGroup)

	// Admin API (requires the server admin key)
	adminHandler := admin.NewHandler(siteService)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r
}
