// Package retriever performs similarity search against the knowledge base.
// It embeds the query, asks the vector store for nearest neighbours and
// filters the hits by a similarity threshold.
package retriever

import (
	"context"
	"fmt"
	"math"

	"github.com/parkbase/parkbot/internal/knowledge"
	"github.com/parkbase/parkbot/internal/log"
)

const (
	// DefaultLimit is the maximum number of matches returned per query.
	DefaultLimit = 5

	// DefaultThreshold is the minimum cosine similarity for a hit to count
	// as relevant. Hits below it are discarded.
	DefaultThreshold float32 = 0.6
)

// Embedder converts a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns the nearest stored records for a vector.
type Searcher interface {
	Query(ctx context.Context, vector []float32, limit int) ([]knowledge.Hit, error)
}

// Match is a knowledge base chunk relevant to a query.
type Match struct {
	ID         string
	Content    string
	Similarity float32
	Source     string
	ChunkIndex int
}

// Config bounds a retriever's searches.
type Config struct {
	Limit     int
	Threshold float32
}

// Retriever embeds queries and searches the knowledge base.
type Retriever struct {
	embedder  Embedder
	store     Searcher
	limit     int
	threshold float32
	logger    log.Logger
}

// New creates a Retriever. Zero config fields fall back to the defaults.
func New(embedder Embedder, store Searcher, cfg Config, logger log.Logger) *Retriever {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{
		embedder:  embedder,
		store:     store,
		limit:     cfg.Limit,
		threshold: cfg.Threshold,
		logger:    logger,
	}
}

// Retrieve returns the stored chunks most similar to query, best first.
// Hits below the similarity threshold are dropped, as are hits whose score
// is NaN or infinite. An empty result is not an error: it means the
// knowledge base holds nothing relevant.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Match, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := r.store.Query(ctx, vector, r.limit)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge base: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		score := float64(hit.Score)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			r.logger.Warn("dropping hit with invalid similarity", "id", hit.ID)
			continue
		}
		if hit.Score < r.threshold {
			continue
		}
		matches = append(matches, Match{
			ID:         hit.ID,
			Content:    hit.Metadata.Text,
			Similarity: hit.Score,
			Source:     hit.Metadata.Source,
			ChunkIndex: hit.Metadata.ChunkIndex,
		})
	}

	r.logger.Debug("retrieval complete",
		"hits", len(hits), "matches", len(matches), "threshold", r.threshold)
	return matches, nil
}
