package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// VectorDimension is the embedding width stored in pgvector.
// gemini-embedding-001 outputs 3072 dimensions by default but supports
// truncation to 768 via OutputDimensionality; the chunks schema is
// declared as vector(768) to match.
const VectorDimension int32 = 768

// Embedder converts text into fixed-dimension vectors via a Genkit
// ai.Embedder (Gemini in production, a mock in tests).
//
// Newlines are noise for the embedding model and are normalized away before
// submission. No caching is performed: identical text is re-embedded on
// every call.
type Embedder struct {
	embedder ai.Embedder
}

// NewEmbedder wraps a Genkit embedder.
func NewEmbedder(embedder ai.Embedder) *Embedder {
	return &Embedder{embedder: embedder}
}

// Embed converts a single text into a vector. Embedded newlines are
// collapsed to spaces.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	input := strings.ReplaceAll(text, "\n", " ")

	dim := VectorDimension
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(input, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingService, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrEmbeddingService)
	}

	return resp.Embeddings[0].Embedding, nil
}

// EmbedBatch converts texts into vectors in a single request. The result is
// order-preserving: output[i] is the vector for texts[i]. Newlines are
// stripped from each text before submission.
//
// EmbedBatch does not verify that the service returned one vector per input;
// the ingestion pipeline owns that invariant check.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(strings.ReplaceAll(t, "\n", ""), nil)
	}

	dim := VectorDimension
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingService, err)
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}
