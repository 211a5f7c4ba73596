// Package crawler discovers and ingests a site's pages and documents.
// A crawl run owns the site's scraping-status transitions and persists
// the embedded content chunks the conversational path retrieves later.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/lukajuskovic/sitebot/internal/domain"
	"github.com/lukajuskovic/sitebot/internal/extract"
	"github.com/lukajuskovic/sitebot/internal/fetch"
)

// SiteStore is the site persistence the crawler depends on
type SiteStore interface {
	Get(id string) (*domain.Site, error)
	UpdateStatus(id string, status domain.ScrapingStatus) error
}

// ChunkStore is the chunk persistence the crawler depends on
type ChunkStore interface {
	CreateBatch(chunks []*domain.ContentChunk) error
	DeleteBySite(siteID string) error
}

// Embedder turns chunk text into a vector; a nil vector means the text
// is not embeddable and the chunk is dropped
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fetcher retrieves a URL's content type and bytes
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, []byte, error)
}

// Config holds crawl traversal settings. Dimension, when set, is the
// expected embedding vector length; mismatched vectors are dropped
// before they can poison the index.
type Config struct {
	MaxPages    int
	Delay       time.Duration
	PageTimeout time.Duration
	Dimension   int
}

// Crawler walks a single site breadth-first and ingests its content
type Crawler struct {
	fetcher   Fetcher
	renderer  fetch.Renderer
	extractor *extract.Extractor
	embedder  Embedder
	sites     SiteStore
	chunks    ChunkStore
	cfg       Config
	log       *zap.Logger
}

// New creates a crawler
func New(
	fetcher Fetcher,
	renderer fetch.Renderer,
	extractor *extract.Extractor,
	embedder Embedder,
	sites SiteStore,
	chunks ChunkStore,
	cfg Config,
	log *zap.Logger,
) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	return &Crawler{
		fetcher:   fetcher,
		renderer:  renderer,
		extractor: extractor,
		embedder:  embedder,
		sites:     sites,
		chunks:    chunks,
		cfg:       cfg,
		log:       log,
	}
}

// Crawl runs a full crawl of the site. The site always ends in
// COMPLETED, even when every page fails; per-page errors are logged and
// skipped, never fatal to the run.
func (c *Crawler) Crawl(ctx context.Context, siteID string) error {
	site, err := c.sites.Get(siteID)
	if err != nil {
		return fmt.Errorf("failed to load site: %w", err)
	}
	if site == nil {
		return domain.ErrNotFound
	}

	start, err := normalizeURL(site.URL)
	if err != nil {
		return fmt.Errorf("invalid site url %q: %w", site.URL, err)
	}
	host, err := hostOf(start)
	if err != nil {
		return fmt.Errorf("invalid site url %q: %w", site.URL, err)
	}

	if err := c.sites.UpdateStatus(siteID, domain.ScrapingRunning); err != nil {
		return fmt.Errorf("failed to mark site scraping: %w", err)
	}
	defer func() {
		if err := c.sites.UpdateStatus(siteID, domain.ScrapingCompleted); err != nil {
			c.log.Error("failed to mark site completed",
				zap.String("site_id", siteID), zap.Error(err))
		}
	}()

	// Recrawls replace previously stored chunks wholesale.
	if err := c.chunks.DeleteBySite(siteID); err != nil {
		c.log.Error("failed to clear previous chunks",
			zap.String("site_id", siteID), zap.Error(err))
	}

	queue := []string{start}
	queued := map[string]bool{start: true}
	visited := map[string]bool{}

	for len(queue) > 0 && len(visited) < c.cfg.MaxPages {
		if ctx.Err() != nil {
			c.log.Warn("crawl cancelled", zap.String("site_id", siteID))
			return nil
		}
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		c.log.Info("visiting page", zap.String("url", current), zap.String("site_id", siteID))

		for _, link := range c.visitPage(ctx, site, current, host) {
			if !visited[link] && !queued[link] {
				queue = append(queue, link)
				queued[link] = true
			}
		}

		if c.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				c.log.Warn("crawl cancelled", zap.String("site_id", siteID))
				return nil
			case <-time.After(c.cfg.Delay):
			}
		}
	}

	c.log.Info("crawl finished",
		zap.String("site_id", siteID), zap.Int("pages_visited", len(visited)))
	return nil
}

// visitPage processes one URL and returns the same-host links it
// discovered. Every failure mode is a page skip, never a run failure.
func (c *Crawler) visitPage(ctx context.Context, site *domain.Site, pageURL, host string) []string {
	pageCtx, cancel := context.WithTimeout(ctx, c.cfg.PageTimeout)
	defer cancel()

	contentType, body, err := c.fetcher.Fetch(pageCtx, pageURL)
	if err != nil {
		c.log.Warn("failed to fetch page", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	contentType = strings.ToLower(contentType)

	var chunks []extract.Chunk
	var links []string

	switch {
	case strings.Contains(contentType, "application/pdf"):
		// No link discovery from PDFs.
		chunks = c.extractor.PDF(body)

	case strings.Contains(contentType, "word"):
		chunks = c.extractor.DOCX(body)

	case strings.Contains(contentType, "text/html"):
		// Pages may be script-generated, so chunk the rendered HTML
		// rather than the raw body.
		rendered, err := c.renderer.Render(pageCtx, pageURL)
		if err != nil {
			c.log.Warn("failed to render page", zap.String("url", pageURL), zap.Error(err))
			return nil
		}
		chunks = c.extractor.HTML(rendered, pageURL)
		links = discoverLinks(rendered, pageURL, host)

	default:
		c.log.Debug("skipping unsupported content type",
			zap.String("url", pageURL), zap.String("content_type", contentType))
	}

	if len(chunks) > 0 {
		if err := c.persistChunks(ctx, site, pageURL, chunks); err != nil {
			c.log.Warn("failed to persist chunks", zap.String("url", pageURL), zap.Error(err))
		}
	}

	return links
}

// persistChunks embeds and stores the page's chunks. Chunks the embedder
// cannot vectorize are dropped: without a vector they can never be
// retrieved.
func (c *Crawler) persistChunks(ctx context.Context, site *domain.Site, pageURL string, chunks []extract.Chunk) error {
	records := make([]*domain.ContentChunk, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := c.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			c.log.Warn("failed to embed chunk", zap.String("url", pageURL), zap.Error(err))
			continue
		}
		if vector == nil {
			continue
		}
		if c.cfg.Dimension > 0 && len(vector) != c.cfg.Dimension {
			c.log.Warn("dropping chunk with unexpected embedding dimension",
				zap.String("url", pageURL),
				zap.Int("got", len(vector)), zap.Int("want", c.cfg.Dimension))
			continue
		}
		records = append(records, &domain.ContentChunk{
			SiteID:      site.ID,
			SourceURL:   pageURL,
			TextContent: chunk.Text,
			ImageURL:    chunk.ImageURL,
			Embedding:   vector,
		})
	}
	if len(records) == 0 {
		return nil
	}

	if err := c.chunks.CreateBatch(records); err != nil {
		return err
	}
	c.log.Info("persisted chunks", zap.String("url", pageURL), zap.Int("count", len(records)))
	return nil
}

// discoverLinks resolves every anchor href against the page URL and
// keeps normalized same-host links.
func discoverLinks(renderedHTML, pageURL, host string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if resolved.Hostname() != host {
			return
		}
		resolved.Fragment = ""
		resolved.RawQuery = ""
		normalized := resolved.String()
		if !seen[normalized] {
			seen[normalized] = true
			links = append(links, normalized)
		}
	})
	return links
}

// normalizeURL strips the fragment and query string so each page is
// visited at most once per run.
func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.RawQuery = ""
	return u.String(), nil
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url has no host")
	}
	return u.Hostname(), nil
}
