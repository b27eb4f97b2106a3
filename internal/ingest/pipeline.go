// Package ingest turns raw document text into embedded chunks in the
// knowledge base. It wires the splitter, the embedder and the vector store
// into a single operation.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parkbase/parkbot/internal/knowledge"
	"github.com/parkbase/parkbot/internal/log"
)

var (
	// ErrEmptyDocument indicates the document contained no extractable text.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrEmbeddingMismatch indicates the embedding service returned a
	// different number of vectors than chunks submitted.
	ErrEmbeddingMismatch = errors.New("embedding generation mismatch")
)

// Chunker splits document text into overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder converts a batch of texts into vectors, order-preserving.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Upserter persists embedded chunks.
type Upserter interface {
	Upsert(ctx context.Context, records []knowledge.Record) error
}

// Result reports what an ingestion run produced.
type Result struct {
	ChunkCount int
}

// Pipeline is the document ingestion pipeline: split, embed, store.
type Pipeline struct {
	chunker  Chunker
	embedder Embedder
	store    Upserter
	logger   log.Logger

	// now is injectable so tests get deterministic record ids.
	now func() time.Time
}

// New creates an ingestion pipeline.
func New(chunker Chunker, embedder Embedder, store Upserter, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest splits text into chunks, embeds them in one batch and upserts the
// resulting records. Record ids follow the pdf-<millis>-<index> scheme; all
// chunks of one run share a timestamp, so re-ingesting the same document
// creates new ids rather than replacing the old chunks.
func (p *Pipeline) Ingest(ctx context.Context, text, source string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyDocument
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return Result{}, ErrEmptyDocument
	}

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return Result{}, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return Result{}, fmt.Errorf("%w: %d chunks, %d vectors", ErrEmbeddingMismatch, len(chunks), len(vectors))
	}

	stamp := p.now().UnixMilli()
	records := make([]knowledge.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = knowledge.Record{
			ID:     fmt.Sprintf("pdf-%d-%d", stamp, i),
			Vector: vectors[i],
			Metadata: knowledge.Metadata{
				Text:       chunk,
				Source:     source,
				ChunkIndex: i,
			},
		}
	}

	if err := p.store.Upsert(ctx, records); err != nil {
		return Result{}, fmt.Errorf("storing %d records: %w", len(records), err)
	}

	p.logger.Info("document ingested", "source", source, "chunks", len(chunks))
	return Result{ChunkCount: len(chunks)}, nil
}
