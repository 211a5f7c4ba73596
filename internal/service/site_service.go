package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/lukajuskovic/sitebot/internal/domain"
	"github.com/lukajuskovic/sitebot/internal/repository"
)

// JobQueue accepts crawl jobs keyed by site id
type JobQueue interface {
	Enqueue(siteID string) error
}

// SiteService handles site registration and lookup. Registering a new
// URL mints the site's API key and queues its first crawl.
type SiteService struct {
	sites *repository.SiteRepository
	queue JobQueue
	log   *zap.Logger
}

// NewSiteService creates a new site service
func NewSiteService(sites *repository.SiteRepository, queue JobQueue, log *zap.Logger) *SiteService {
	return &SiteService{sites: sites, queue: queue, log: log}
}

// Register creates the site for the URL if it does not exist yet and
// enqueues its crawl. The plaintext API key is returned exactly once,
// on first registration; only its hash is stored.
func (s *SiteService) Register(ctx context.Context, rawURL string) (*domain.Site, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Hostname() == "" {
		return nil, "", fmt.Errorf("%w: invalid site url", domain.ErrInvalidRequest)
	}

	existing, err := s.sites.GetByURL(rawURL)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return existing, "", nil
	}

	key, err := generateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate api key: %w", err)
	}

	site := &domain.Site{
		URL:            rawURL,
		APIKeyHash:     HashAPIKey(key),
		ScrapingStatus: domain.ScrapingPending,
	}
	if err := s.sites.Create(site); err != nil {
		return nil, "", err
	}

	if err := s.queue.Enqueue(site.ID); err != nil {
		// The site stays PENDING; a later re-registration attempt or
		// manual requeue can pick it up.
		s.log.Error("failed to enqueue crawl", zap.String("site_id", site.ID), zap.Error(err))
		return site, key, err
	}

	s.log.Info("site registered", zap.String("site_id", site.ID), zap.String("url", rawURL))
	return site, key, nil
}

// Get retrieves a site by id
func (s *SiteService) Get(ctx context.Context, id string) (*domain.Site, error) {
	site, err := s.sites.Get(id)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, domain.ErrNotFound
	}
	return site, nil
}

// List retrieves all registered sites
func (s *SiteService) List(ctx context.Context) ([]*domain.Site, error) {
	return s.sites.List()
}

// ResolveByAPIKey returns the site owning the given plaintext API key
func (s *SiteService) ResolveByAPIKey(ctx context.Context, key string) (*domain.Site, error) {
	if key == "" {
		return nil, domain.ErrUnauthorized
	}
	site, err := s.sites.GetByAPIKeyHash(HashAPIKey(key))
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, domain.ErrNotFound
	}
	return site, nil
}

// HashAPIKey returns the stored form of an API key
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
