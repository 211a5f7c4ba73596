package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// minAltLength is the minimum alt-text length for an image to be worth
// indexing as a description chunk.
const minAltLength = 10

// HTML runs the chunking engine over rendered HTML and additionally
// emits one image chunk per <img> whose alt text is descriptive enough.
// Image URLs are resolved to absolute URLs against the source page.
func (e *Extractor) HTML(renderedHTML, sourceURL string) []Chunk {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		e.log.Warn("failed to parse html", zap.String("url", sourceURL), zap.Error(err))
		return nil
	}

	var chunks []Chunk
	for _, text := range ChunkPage(doc) {
		chunks = append(chunks, Chunk{Text: text})
	}

	return append(chunks, e.imageChunks(doc, sourceURL)...)
}

func (e *Extractor) imageChunks(doc *goquery.Document, sourceURL string) []Chunk {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil
	}

	var chunks []Chunk
	doc.Find("img[alt]").Each(func(_ int, img *goquery.Selection) {
		alt := strings.TrimSpace(img.AttrOr("alt", ""))
		if len(alt) <= minAltLength {
			return
		}
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		chunks = append(chunks, Chunk{
			Text:     alt,
			ImageURL: base.ResolveReference(ref).String(),
		})
	})

	return chunks
}
