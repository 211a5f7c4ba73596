package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// The chunking engine is a prioritized rule cascade: strategies run in
// order over the page's main content region and the first one producing
// chunks wins. Later strategies are never blended in.

// Selectors that commonly mark repeating list/grid items.
var containerSelectors = []string{
	"div.quote",
	"div.card",
	"div.product-card",
	"div.item",
	"article.post",
	"article.blog-post",
	"li.list-item",
}

// Word-count thresholds per strategy.
const (
	minContainerWords = 5
	minSectionWords   = 20
	minBlockWords     = 30
	minPageWords      = 30
	minSubChunkWords  = 20
)

type page struct {
	region *goquery.Selection
	title  string
}

type strategy func(*page) []string

var strategies = []strategy{
	repeatingContainers,
	topLevelSections,
	identifiedBlocks,
	wholePage,
}

// ChunkPage produces text chunks for a parsed page. A page where no
// strategy yields output contributes zero chunks; that is not an error.
func ChunkPage(doc *goquery.Document) []string {
	region := mainRegion(doc)
	if region == nil {
		return nil
	}

	p := &page{
		region: region,
		title:  strings.TrimSpace(region.Find("h1").First().Text()),
	}

	for _, s := range strategies {
		if chunks := s(p); len(chunks) > 0 {
			return chunks
		}
	}
	return nil
}

// mainRegion resolves the page's main content region: the first of
// <main>, <article>, an element with role="main", else the body.
func mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"main", "article", "[role='main']"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return nil
}

// repeatingContainers emits one chunk per element of the first selector
// matching more than two elements, skipping near-empty items.
func repeatingContainers(p *page) []string {
	for _, selector := range containerSelectors {
		items := p.region.Find(selector)
		if items.Length() <= 2 {
			continue
		}

		var chunks []string
		items.Each(func(_ int, item *goquery.Selection) {
			text := blockText(item)
			if wordCount(text) > minContainerWords {
				chunks = append(chunks, fmt.Sprintf("Page Title: %s\n\n%s", p.title, text))
			}
		})
		if len(chunks) > 0 {
			return chunks
		}
	}
	return nil
}

// topLevelSections chunks <section> children of the main region that
// carry an h2/h3 heading and enough text.
func topLevelSections(p *page) []string {
	var chunks []string
	p.region.ChildrenFiltered("section").Each(func(_ int, section *goquery.Selection) {
		heading := strings.TrimSpace(section.Find("h2, h3").First().Text())
		if heading == "" {
			return
		}
		text := blockText(section)
		if wordCount(text) > minSectionWords {
			chunks = append(chunks, fmt.Sprintf("Page Title: %s\nSection: %s\n\n%s", p.title, heading, text))
		}
	})
	return chunks
}

// identifiedBlocks chunks <div> children of the main region that carry
// an explicit id and enough text.
func identifiedBlocks(p *page) []string {
	var chunks []string
	p.region.ChildrenFiltered("div[id]").Each(func(_ int, div *goquery.Selection) {
		text := blockText(div)
		if wordCount(text) > minBlockWords {
			id := div.AttrOr("id", "")
			chunks = append(chunks, fmt.Sprintf("Page Title: %s\nSection ID: #%s\n\n%s", p.title, id, text))
		}
	})
	return chunks
}

// wholePage is the catch-all: if the full region text is long enough,
// split it at paragraph boundaries and keep the substantial pieces.
func wholePage(p *page) []string {
	if wordCount(blockText(p.region)) <= minPageWords {
		return nil
	}

	var chunks []string
	for _, para := range paragraphBlocks(p.region) {
		if wordCount(para) > minSubChunkWords {
			chunks = append(chunks, fmt.Sprintf("Page Title: %s\n\n%s", p.title, strings.TrimSpace(para)))
		}
	}
	return chunks
}

// paragraphBlocks returns the text of each direct child of the region,
// approximating blank-line paragraph boundaries in rendered text.
func paragraphBlocks(sel *goquery.Selection) []string {
	var paras []string
	sel.Children().Each(func(_ int, child *goquery.Selection) {
		if t := blockText(child); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) == 0 {
		if t := blockText(sel); t != "" {
			paras = []string{t}
		}
	}
	return paras
}

// blockText extracts the visible text of a selection, one line per text
// node, skipping script/style/noscript subtrees.
func blockText(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, "\n")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
