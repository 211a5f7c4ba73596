// Package admin exposes the site management endpoints.
package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lukajuskovic/sitebot/internal/domain"
	"github.com/lukajuskovic/sitebot/internal/service"
)

// Handler handles admin API requests
type Handler struct {
	siteService *service.SiteService
}

// NewHandler creates a new admin handler
func NewHandler(siteService *service.SiteService) *Handler {
	return &Handler{siteService: siteService}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sites := r.Group("/sites")
	{
		sites.POST("", h.RegisterSite)
		sites.GET("", h.ListSites)
		sites.GET("/:id", h.GetSite)
	}
}

// RegisterSite registers a site and starts its crawl. Re-registering a
// known URL returns the existing site without a new crawl or key.
func (h *Handler) RegisterSite(c *gin.Context) {
	var req domain.RegisterSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	site, apiKey, err := h.siteService.Register(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// The site row and its one-time key may exist even though the
		// crawl was not queued. The key cannot be recovered later, so it
		// must go out now.
		if site != nil {
			c.JSON(http.StatusCreated, domain.RegisterSiteResponse{
				Site:    site,
				APIKey:  apiKey,
				Warning: "crawl not started: " + err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusCreated
	if apiKey == "" {
		status = http.StatusOK
	}
	c.JSON(status, domain.RegisterSiteResponse{Site: site, APIKey: apiKey})
}

// ListSites lists all registered sites
func (h *Handler) ListSites(c *gin.Context) {
	sites, err := h.siteService.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

// GetSite returns a site including its scraping status
func (h *Handler) GetSite(c *gin.Context) {
	site, err := h.siteService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, site)
}
