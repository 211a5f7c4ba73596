package crawler

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lukajuskovic/sitebot/internal/domain"
	"github.com/lukajuskovic/sitebot/internal/extract"
	"github.com/lukajuskovic/sitebot/internal/fetch"
)

type fakePage struct {
	contentType string
	body        []byte
}

type fakeFetcher struct {
	pages    map[string]fakePage
	requests []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (string, []byte, error) {
	f.requests = append(f.requests, rawURL)
	p, ok := f.pages[rawURL]
	if !ok {
		return "", nil, fetch.ErrTransport
	}
	return p.contentType, p.body, nil
}

type fakeRenderer struct {
	fetcher *fakeFetcher
}

func (r *fakeRenderer) Render(_ context.Context, pageURL string) (string, error) {
	p, ok := r.fetcher.pages[pageURL]
	if !ok {
		return "", fetch.ErrTransport
	}
	return string(p.body), nil
}

type fakeSiteStore struct {
	site     *domain.Site
	statuses []domain.ScrapingStatus
}

func (s *fakeSiteStore) Get(id string) (*domain.Site, error) {
	if s.site != nil && s.site.ID == id {
		return s.site, nil
	}
	return nil, nil
}

func (s *fakeSiteStore) UpdateStatus(_ string, status domain.ScrapingStatus) error {
	s.statuses = append(s.statuses, status)
	return nil
}

type fakeChunkStore struct {
	batches [][]*domain.ContentChunk
	deleted []string
}

func (s *fakeChunkStore) CreateBatch(chunks []*domain.ContentChunk) error {
	s.batches = append(s.batches, chunks)
	return nil
}

func (s *fakeChunkStore) DeleteBySite(siteID string) error {
	s.deleted = append(s.deleted, siteID)
	return nil
}

type fakeEmbedder struct {
	nilVector bool
	err       error
}

func (e *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.nilVector {
		return nil, nil
	}
	return []float32{1, 0, 0}, nil
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, " ")
}

func pageHTML(title string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><body><main><h1>%s</h1><p>%s</p>", title, words(40))
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

func htmlPage(title string, links ...string) fakePage {
	return fakePage{contentType: "text/html; charset=utf-8", body: []byte(pageHTML(title, links...))}
}

func docxBytes(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	doc := fmt.Sprintf(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
		<w:body><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:body></w:document>`, text)
	_, err = f.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestCrawler(fetcher *fakeFetcher, sites *fakeSiteStore, chunks *fakeChunkStore, embedder *fakeEmbedder, cfg Config) *Crawler {
	return New(
		fetcher,
		&fakeRenderer{fetcher: fetcher},
		extract.NewExtractor(zap.NewNop()),
		embedder,
		sites,
		chunks,
		cfg,
		zap.NewNop(),
	)
}

func TestCrawlTraversal(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"http://shop.example/": htmlPage("Home",
			"/about",
			"/about#team",
			"/contact?utm=1",
			"http://elsewhere.example/page",
			"/doc.pdf",
		),
		"http://shop.example/about":   htmlPage("About"),
		"http://shop.example/contact": htmlPage("Contact"),
		"http://shop.example/doc.pdf": {contentType: "application/pdf", body: []byte("not a real pdf")},
	}}
	sites := &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/?utm=1"}}
	chunks := &fakeChunkStore{}

	c := newTestCrawler(fetcher, sites, chunks, &fakeEmbedder{}, Config{MaxPages: 10})
	require.NoError(t, c.Crawl(context.Background(), "site-1"))

	// Fragment and query variants collapse onto the same page, offsite
	// links are never followed, and nothing is fetched twice.
	assert.ElementsMatch(t, []string{
		"http://shop.example/",
		"http://shop.example/about",
		"http://shop.example/contact",
		"http://shop.example/doc.pdf",
	}, fetcher.requests)

	assert.Equal(t, []domain.ScrapingStatus{domain.ScrapingRunning, domain.ScrapingCompleted}, sites.statuses)
	assert.Equal(t, []string{"site-1"}, chunks.deleted)

	// The three HTML pages each persisted a batch; the bad PDF did not.
	require.Len(t, chunks.batches, 3)
	for _, batch := range chunks.batches {
		for _, chunk := range batch {
			assert.Equal(t, "site-1", chunk.SiteID)
			assert.NotEmpty(t, chunk.Embedding)
			assert.True(t, strings.HasPrefix(chunk.SourceURL, "http://shop.example/"))
		}
	}
}

func TestCrawlRespectsPageCap(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"http://shop.example/":  htmlPage("Home", "/a"),
		"http://shop.example/a": htmlPage("A", "/b"),
		"http://shop.example/b": htmlPage("B"),
	}}
	sites := &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/"}}

	c := newTestCrawler(fetcher, sites, &fakeChunkStore{}, &fakeEmbedder{}, Config{MaxPages: 2})
	require.NoError(t, c.Crawl(context.Background(), "site-1"))

	assert.Equal(t, []string{"http://shop.example/", "http://shop.example/a"}, fetcher.requests)
}

func TestCrawlCompletesWhenEveryPageFails(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{}}
	sites := &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/"}}
	chunks := &fakeChunkStore{}

	c := newTestCrawler(fetcher, sites, chunks, &fakeEmbedder{}, Config{MaxPages: 5})
	require.NoError(t, c.Crawl(context.Background(), "site-1"))

	assert.Equal(t, []domain.ScrapingStatus{domain.ScrapingRunning, domain.ScrapingCompleted}, sites.statuses)
	assert.Empty(t, chunks.batches)
}

func TestCrawlUnknownSite(t *testing.T) {
	c := newTestCrawler(&fakeFetcher{}, &fakeSiteStore{}, &fakeChunkStore{}, &fakeEmbedder{}, Config{})
	err := c.Crawl(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCrawlIngestsDocx(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"http://shop.example/": {
			contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			body:        docxBytes(t, "Our return policy lasts thirty days."),
		},
	}}
	sites := &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/"}}
	chunks := &fakeChunkStore{}

	c := newTestCrawler(fetcher, sites, chunks, &fakeEmbedder{}, Config{MaxPages: 5})
	require.NoError(t, c.Crawl(context.Background(), "site-1"))

	// One document chunk, and no links to follow out of a docx.
	require.Len(t, chunks.batches, 1)
	require.Len(t, chunks.batches[0], 1)
	assert.Equal(t, "Our return policy lasts thirty days.", chunks.batches[0][0].TextContent)
	assert.Len(t, fetcher.requests, 1)
}

func TestCrawlDropsUnembeddableChunks(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"http://shop.example/": htmlPage("Home"),
	}}
	sites := &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/"}}
	chunks := &fakeChunkStore{}

	c := newTestCrawler(fetcher, sites, chunks, &fakeEmbedder{nilVector: true}, Config{MaxPages: 5})
	require.NoError(t, c.Crawl(context.Background(), "site-1"))

	assert.Empty(t, chunks.batches)
}

func TestCrawlDropsWrongDimensionEmbeddings(t *testing.T) {
	pages := map[string]fakePage{"http://shop.example/": htmlPage("Home")}
	embedder := &fakeEmbedder{} // always emits 3-dimensional vectors

	fetcher := &fakeFetcher{pages: pages}
	sites := &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/"}}
	chunks := &fakeChunkStore{}
	c := newTestCrawler(fetcher, sites, chunks, embedder, Config{MaxPages: 5, Dimension: 2})
	require.NoError(t, c.Crawl(context.Background(), "site-1"))
	assert.Empty(t, chunks.batches)

	fetcher = &fakeFetcher{pages: pages}
	sites = &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/"}}
	chunks = &fakeChunkStore{}
	c = newTestCrawler(fetcher, sites, chunks, embedder, Config{MaxPages: 5, Dimension: 3})
	require.NoError(t, c.Crawl(context.Background(), "site-1"))
	require.Len(t, chunks.batches, 1)
}

func TestCrawlContinuesPastEmbedderErrors(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"http://shop.example/":  htmlPage("Home", "/a"),
		"http://shop.example/a": htmlPage("A"),
	}}
	sites := &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/"}}
	chunks := &fakeChunkStore{}

	c := newTestCrawler(fetcher, sites, chunks, &fakeEmbedder{err: fmt.Errorf("embedding service down")}, Config{MaxPages: 5})
	require.NoError(t, c.Crawl(context.Background(), "site-1"))

	assert.Empty(t, chunks.batches)
	assert.Len(t, fetcher.requests, 2)
	assert.Equal(t, []domain.ScrapingStatus{domain.ScrapingRunning, domain.ScrapingCompleted}, sites.statuses)
}

func TestCrawlStopsOnCancelledContext(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"http://shop.example/": htmlPage("Home", "/a"),
	}}
	sites := &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/"}}
	chunks := &fakeChunkStore{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Delay is zero, so cancellation must be caught by the dequeue loop
	// itself, not the politeness sleep.
	c := newTestCrawler(fetcher, sites, chunks, &fakeEmbedder{}, Config{MaxPages: 5})
	require.NoError(t, c.Crawl(ctx, "site-1"))

	assert.Empty(t, fetcher.requests)
	assert.Empty(t, chunks.batches)
	// The run still closes out its status lifecycle.
	assert.Equal(t, []domain.ScrapingStatus{domain.ScrapingRunning, domain.ScrapingCompleted}, sites.statuses)
}

func TestPoolRunsEnqueuedCrawls(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"http://shop.example/": htmlPage("Home"),
	}}
	sites := &fakeSiteStore{site: &domain.Site{ID: "site-1", URL: "http://shop.example/"}}
	chunks := &fakeChunkStore{}

	c := newTestCrawler(fetcher, sites, chunks, &fakeEmbedder{}, Config{MaxPages: 5})
	pool := NewPool(c, 1, 4, zap.NewNop())
	pool.Start(context.Background())

	require.NoError(t, pool.Enqueue("site-1"))
	pool.Stop()

	assert.Equal(t, []domain.ScrapingStatus{domain.ScrapingRunning, domain.ScrapingCompleted}, sites.statuses)
	require.Len(t, chunks.batches, 1)
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	c := newTestCrawler(&fakeFetcher{}, &fakeSiteStore{}, &fakeChunkStore{}, &fakeEmbedder{}, Config{})
	pool := NewPool(c, 1, 1, zap.NewNop())
	// Not started: the single slot fills and the next enqueue must fail
	// rather than block.
	require.NoError(t, pool.Enqueue("a"))
	assert.Error(t, pool.Enqueue("b"))
}

func TestNormalizeURL(t *testing.T) {
	got, err := normalizeURL("https://shop.example/products?page=2#reviews")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/products", got)
}
