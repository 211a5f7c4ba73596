package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lukajuskovic/sitebot/internal/domain"
)

// SiteRepository handles site persistence
type SiteRepository struct {
	db *DB
}

// NewSiteRepository creates a new site repository
func NewSiteRepository(db *DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// Create creates a new site
func (r *SiteRepository) Create(site *domain.Site) error {
	if site.ID == "" {
		site.ID = uuid.New().String()
	}
	if site.ScrapingStatus == "" {
		site.ScrapingStatus = domain.ScrapingPending
	}
	now := time.Now()
	site.CreatedAt = now
	site.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO sites (id, url, api_key_hash, scraping_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, site.ID, site.URL, site.APIKeyHash, string(site.ScrapingStatus),
		site.CreatedAt, site.UpdatedAt)

	return err
}

// Get retrieves a site by ID
func (r *SiteRepository) Get(id string) (*domain.Site, error) {
	return r.queryOne(`
		SELECT id, url, api_key_hash, scraping_status, created_at, updated_at
		FROM sites WHERE id = ?
	`, id)
}

// GetByURL retrieves a site by its canonical URL
func (r *SiteRepository) GetByURL(url string) (*domain.Site, error) {
	return r.queryOne(`
		SELECT id, url, api_key_hash, scraping_status, created_at, updated_at
		FROM sites WHERE url = ?
	`, url)
}

// GetByAPIKeyHash retrieves the site owning the given API key hash
func (r *SiteRepository) GetByAPIKeyHash(hash string) (*domain.Site, error) {
	return r.queryOne(`
		SELECT id, url, api_key_hash, scraping_status, created_at, updated_at
		FROM sites WHERE api_key_hash = ?
	`, hash)
}

func (r *SiteRepository) queryOne(query string, arg any) (*domain.Site, error) {
	site := &domain.Site{}
	var status string

	err := r.db.QueryRow(query, arg).Scan(&site.ID, &site.URL, &site.APIKeyHash,
		&status, &site.CreatedAt, &site.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	site.ScrapingStatus = domain.ScrapingStatus(status)
	return site, nil
}

// List retrieves all sites
func (r *SiteRepository) List() ([]*domain.Site, error) {
	rows, err := r.db.Query(`
		SELECT id, url, api_key_hash, scraping_status, created_at, updated_at
		FROM sites ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*domain.Site
	for rows.Next() {
		site := &domain.Site{}
		var status string
		if err := rows.Scan(&site.ID, &site.URL, &site.APIKeyHash,
			&status, &site.CreatedAt, &site.UpdatedAt); err != nil {
			return nil, err
		}
		site.ScrapingStatus = domain.ScrapingStatus(status)
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// UpdateStatus sets a site's scraping status
func (r *SiteRepository) UpdateStatus(id string, status domain.ScrapingStatus) error {
	result, err := r.db.Exec(`
		UPDATE sites SET scraping_status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now(), id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("site not found: %s", id)
	}

	return nil
}
