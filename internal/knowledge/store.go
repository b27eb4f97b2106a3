package knowledge

import (
	"context"
	"fmt"
	"log/slog"
)

// UpsertBatchSize is the default payload bound of a single upsert request.
const UpsertBatchSize = 100

// StoreOption configures optional Store behavior.
type StoreOption func(*Store)

// WithBatchSize overrides the upsert batch size. Non-positive values keep
// the default.
func WithBatchSize(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// Querier defines the index operations Store depends on. The interface is
// defined here, by the consumer, so Store can be unit-tested against a mock
// while production wires in the pgvector implementation (see pgx.go).
type Querier interface {
	// InsertRecords writes one batch of records to the index.
	InsertRecords(ctx context.Context, records []Record) error

	// NearestRecords returns up to limit records closest to vector by
	// cosine similarity, best first.
	NearestRecords(ctx context.Context, vector []float32, limit int) ([]Hit, error)
}

// Store is the vector index client. It owns batching policy for upserts and
// delegates the actual index operations to a Querier.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries   Querier
	batchSize int
	logger    *slog.Logger
}

// NewStore creates a Store. A nil logger falls back to slog.Default().
func NewStore(queries Querier, logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		queries:   queries,
		batchSize: UpsertBatchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert writes records to the index in fixed-size batches, one batch in
// flight at a time. The first failing batch aborts the remaining ones and
// the error reports how many records were already committed; committed
// batches are NOT rolled back. Ingestion is therefore not transactional —
// the partial-failure boundary is always a batch boundary.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))

		if err := s.queries.InsertRecords(ctx, records[start:end]); err != nil {
			s.logger.Error("upsert batch failed",
				"committed", start,
				"batch_size", end-start,
				"total", len(records))
			return fmt.Errorf("%w: batch upsert failed after %d of %d records committed: %w",
				ErrVectorStore, start, len(records), err)
		}

		s.logger.Debug("upsert batch committed", "from", start, "to", end)
	}
	return nil
}

// Query returns up to limit nearest neighbors of vector, best first.
// Similarity filtering is the retriever's concern, not the store's.
func (s *Store) Query(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrVectorStore, limit)
	}

	hits, err := s.queries.NearestRecords(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %w", ErrVectorStore, err)
	}
	return hits, nil
}
