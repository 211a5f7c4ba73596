package domain

import "time"

// ContentChunk is a unit of retrievable site content. A chunk with
// ImageURL set describes an image: TextContent holds its alt text.
type ContentChunk struct {
	ID          string    `json:"id"`
	SiteID      string    `json:"site_id"`
	SourceURL   string    `json:"source_url"`
	TextContent string    `json:"text_content"`
	ImageURL    string    `json:"image_url,omitempty"`
	Embedding   []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsImage reports whether the chunk describes an image rather than prose.
func (c *ContentChunk) IsImage() bool {
	return c.ImageURL != ""
}

// Context item types.
const (
	ContextText  = "text"
	ContextImage = "image"
)

// ContextItem is a retrieved chunk shaped for prompt assembly.
// Text items carry Content; image items carry URL and Description.
type ContextItem struct {
	Type        string `json:"type"`
	Source      string `json:"source"`
	Content     string `json:"content,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}
