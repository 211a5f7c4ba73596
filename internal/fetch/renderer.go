package fetch

import "context"

// Renderer returns the final HTML of a page. Script-generated sites need
// a browser-backed implementation; HTTPRenderer serves static pages.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// HTTPRenderer renders a page with a plain HTTP GET. It does not execute
// scripts, so script-generated content is missed.
type HTTPRenderer struct {
	fetcher *Fetcher
}

// NewHTTPRenderer creates a renderer backed by a plain fetcher
func NewHTTPRenderer(fetcher *Fetcher) *HTTPRenderer {
	return &HTTPRenderer{fetcher: fetcher}
}

// Render fetches the page body and returns it as HTML
func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	_, body, err := r.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
