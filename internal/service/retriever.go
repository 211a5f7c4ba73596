package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lukajuskovic/sitebot/internal/domain"
	"github.com/lukajuskovic/sitebot/internal/llm"
)

// Generator produces text from ordered prompt parts
type Generator interface {
	Generate(ctx context.Context, parts []llm.Part) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a query vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher performs the nearest-neighbor lookup over a site's chunks
type ChunkSearcher interface {
	FindNearest(siteID string, vector []float32, k int) ([]*domain.ContentChunk, error)
}

// Retriever finds the chunks most relevant to a conversational query.
// The query is first rewritten with history into a self-contained search
// string; rewriting is best-effort and never a hard dependency.
type Retriever struct {
	embedder  Embedder
	generator Generator
	chunks    ChunkSearcher
	topK      int
	log       *zap.Logger
}

// NewRetriever creates a retriever
func NewRetriever(embedder Embedder, generator Generator, chunks ChunkSearcher, topK int, log *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		embedder:  embedder,
		generator: generator,
		chunks:    chunks,
		topK:      topK,
		log:       log,
	}
}

// Retrieve returns grounding context for the query, ordered by
// increasing vector distance. An empty result is valid and means "no
// context"; embedding failures degrade to it rather than erroring.
func (r *Retriever) Retrieve(ctx context.Context, siteID, query, history string) ([]domain.ContextItem, error) {
	searchQuery := r.rewriteQuery(ctx, history, query)

	vector, err := r.embedder.Embed(ctx, searchQuery)
	if err != nil {
		r.log.Warn("failed to embed query", zap.String("site_id", siteID), zap.Error(err))
		return nil, nil
	}
	if vector == nil {
		return nil, nil
	}

	chunks, err := r.chunks.FindNearest(siteID, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	items := make([]domain.ContextItem, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.IsImage() {
			items = append(items, domain.ContextItem{
				Type:        domain.ContextImage,
				Source:      chunk.SourceURL,
				URL:         chunk.ImageURL,
				Description: chunk.TextContent,
			})
		} else {
			items = append(items, domain.ContextItem{
				Type:    domain.ContextText,
				Source:  chunk.SourceURL,
				Content: chunk.TextContent,
			})
		}
	}
	return items, nil
}

// rewriteQuery asks the LLM for a self-contained search string built
// from the history and the latest question. With no history the query
// is already self-contained; on any failure the original query is used.
func (r *Retriever) rewriteQuery(ctx context.Context, history, query string) string {
	if strings.TrimSpace(history) == "" {
		return query
	}

	prompt := fmt.Sprintf(`Based on the following conversation history and the user's final question, generate a single, self-contained search query that can be used to find relevant information in a database.

CONVERSATION HISTORY:
%s

FINAL QUESTION: "%s"

Re-written Search Query:`, history, query)

	rewritten, err := r.generator.GenerateText(ctx, prompt)
	if err != nil {
		r.log.Warn("query rewrite failed, using original query", zap.Error(err))
		return query
	}

	rewritten = strings.TrimSpace(strings.ReplaceAll(rewritten, `"`, ""))
	if rewritten == "" {
		return query
	}
	return rewritten
}
