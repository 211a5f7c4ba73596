package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lukajuskovic/sitebot/internal/domain"
)

// ChunkRepository handles content chunk persistence and similarity search
type ChunkRepository struct {
	db *DB
}

// NewChunkRepository creates a new chunk repository
func NewChunkRepository(db *DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// CreateBatch persists a batch of chunks in a single transaction
func (r *ChunkRepository) CreateBatch(chunks []*domain.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO content_chunks (id, site_id, source_url, text_content, image_url, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			chunk.ID = uuid.New().String()
		}
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = time.Now()
		}

		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}

		var imageURL sql.NullString
		if chunk.ImageURL != "" {
			imageURL = sql.NullString{String: chunk.ImageURL, Valid: true}
		}

		if _, err := stmt.Exec(chunk.ID, chunk.SiteID, chunk.SourceURL,
			chunk.TextContent, imageURL, string(embeddingJSON), chunk.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindNearest returns up to k chunks for the site ordered by increasing
// L2 distance to the query vector. Chunks whose stored embedding does not
// match the query dimension are skipped.
func (r *ChunkRepository) FindNearest(siteID string, vector []float32, k int) ([]*domain.ContentChunk, error) {
	if len(vector) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := r.db.Query(`
		SELECT id, site_id, source_url, text_content, image_url, embedding, created_at
		FROM content_chunks WHERE site_id = ?
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		chunk    *domain.ContentChunk
		distance float64
	}

	var candidates []scored
	for rows.Next() {
		chunk := &domain.ContentChunk{}
		var imageURL sql.NullString
		var embeddingJSON string

		if err := rows.Scan(&chunk.ID, &chunk.SiteID, &chunk.SourceURL,
			&chunk.TextContent, &imageURL, &embeddingJSON, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		if imageURL.Valid {
			chunk.ImageURL = imageURL.String
		}

		if err := json.Unmarshal([]byte(embeddingJSON), &chunk.Embedding); err != nil {
			continue
		}
		if len(chunk.Embedding) != len(vector) {
			continue
		}

		candidates = append(candidates, scored{chunk: chunk, distance: l2Distance(chunk.Embedding, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]*domain.ContentChunk, 0, k)
	for i := 0; i < k; i++ {
		results = append(results, candidates[i].chunk)
	}

	return results, nil
}

// DeleteBySite removes all chunks belonging to a site
func (r *ChunkRepository) DeleteBySite(siteID string) error {
	_, err := r.db.Exec(`DELETE FROM content_chunks WHERE site_id = ?`, siteID)
	return err
}

// CountBySite returns the number of chunks stored for a site
func (r *ChunkRepository) CountBySite(siteID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM content_chunks WHERE site_id = ?`, siteID).Scan(&count)
	return count, err
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
