package domain

import "time"

// ScrapingStatus tracks the lifecycle of a site's crawl.
type ScrapingStatus string

const (
	ScrapingPending   ScrapingStatus = "PENDING"
	ScrapingRunning   ScrapingStatus = "SCRAPING"
	ScrapingCompleted ScrapingStatus = "COMPLETED"
)

// Site represents a registered website whose content is ingested
type Site struct {
	ID             string         `json:"id"`
	URL            string         `json:"url"`
	APIKeyHash     string         `json:"-"`
	ScrapingStatus ScrapingStatus `json:"scraping_status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RegisterSiteRequest is the request to register a site for ingestion
type RegisterSiteRequest struct {
	URL string `json:"url" binding:"required"`
}

// RegisterSiteResponse is the response after registering a site.
// APIKey is only populated on first registration; it is never stored
// in plaintext and cannot be recovered later. Warning is set when the
// site exists but its crawl could not be started.
type RegisterSiteResponse struct {
	Site    *Site  `json:"site"`
	APIKey  string `json:"api_key,omitempty"`
	Warning string `json:"warning,omitempty"`
}
