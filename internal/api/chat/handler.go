// Package chat exposes the visitor-facing chat endpoint.
package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lukajuskovic/sitebot/internal/domain"
	"github.com/lukajuskovic/sitebot/internal/service"
)

// Handler handles chat API requests
type Handler struct {
	siteService *service.SiteService
	chatService *service.ChatService
}

// NewHandler creates a new chat handler
func NewHandler(siteService *service.SiteService, chatService *service.ChatService) *Handler {
	return &Handler{siteService: siteService, chatService: chatService}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)
}

// Chat answers a visitor question for the site identified by X-API-Key.
func (h *Handler) Chat(c *gin.Context) {
	site, err := h.siteService.ResolveByAPIKey(c.Request.Context(), c.GetHeader("X-API-Key"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), site.ID, &req)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
