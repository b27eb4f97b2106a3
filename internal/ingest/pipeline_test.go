package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkbase/parkbot/internal/knowledge"
	"github.com/parkbase/parkbot/internal/log"
)

type mockChunker struct {
	chunks []string
}

func (m *mockChunker) Split(string) []string { return m.chunks }

type mockEmbedder struct {
	vectors   [][]float32
	err       error
	lastTexts []string
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.lastTexts = texts
	if m.err != nil {
		return nil, m.err
	}
	if m.vectors != nil {
		return m.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type mockUpserter struct {
	err     error
	records []knowledge.Record
}

func (m *mockUpserter) Upsert(_ context.Context, records []knowledge.Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = records
	return nil
}

func newTestPipeline(chunks []string) (*Pipeline, *mockEmbedder, *mockUpserter) {
	embedder := &mockEmbedder{}
	store := &mockUpserter{}
	p := New(&mockChunker{chunks: chunks}, embedder, store, log.NewNop())
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return p, embedder, store
}

func TestIngest_Success(t *testing.T) {
	p, embedder, store := newTestPipeline([]string{"opening hours", "safety rules", "party bookings"})

	result, err := p.Ingest(context.Background(), "some document text", "park-info.pdf")

	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunkCount)
	assert.Equal(t, []string{"opening hours", "safety rules", "party bookings"}, embedder.lastTexts)

	require.Len(t, store.records, 3)
	for i, record := range store.records {
		assert.Equal(t, "park-info.pdf", record.Metadata.Source)
		assert.Equal(t, i, record.Metadata.ChunkIndex)
	}
	assert.Equal(t, "opening hours", store.records[0].Metadata.Text)
}

func TestIngest_RecordIDScheme(t *testing.T) {
	p, _, store := newTestPipeline([]string{"a", "b"})

	_, err := p.Ingest(context.Background(), "text", "doc.pdf")

	require.NoError(t, err)
	assert.Equal(t, "pdf-1700000000000-0", store.records[0].ID)
	assert.Equal(t, "pdf-1700000000000-1", store.records[1].ID)
}

func TestIngest_EmptyText(t *testing.T) {
	p, embedder, _ := newTestPipeline([]string{"unused"})

	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, err := p.Ingest(context.Background(), text, "doc.pdf")
		assert.ErrorIs(t, err, ErrEmptyDocument, "input %q", text)
	}
	assert.Nil(t, embedder.lastTexts, "embedder must not be called for empty input")
}

func TestIngest_NoChunks(t *testing.T) {
	p, _, _ := newTestPipeline(nil)

	_, err := p.Ingest(context.Background(), "text the splitter rejects", "doc.pdf")

	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestIngest_EmbedFailure(t *testing.T) {
	p, embedder, store := newTestPipeline([]string{"a", "b"})
	embedder.err = knowledge.ErrEmbeddingService

	_, err := p.Ingest(context.Background(), "text", "doc.pdf")

	assert.ErrorIs(t, err, knowledge.ErrEmbeddingService)
	assert.Empty(t, store.records, "nothing may be stored when embedding fails")
}

func TestIngest_EmbeddingCountMismatch(t *testing.T) {
	p, embedder, store := newTestPipeline([]string{"a", "b", "c"})
	embedder.vectors = [][]float32{{0.1}, {0.2}}

	_, err := p.Ingest(context.Background(), "text", "doc.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
	assert.Contains(t, err.Error(), "3 chunks, 2 vectors")
	assert.Empty(t, store.records)
}

func TestIngest_StoreFailure(t *testing.T) {
	p, _, store := newTestPipeline([]string{"a"})
	store.err = knowledge.ErrVectorStore

	_, err := p.Ingest(context.Background(), "text", "doc.pdf")

	assert.ErrorIs(t, err, knowledge.ErrVectorStore)
}

func TestIngest_LargeDocument(t *testing.T) {
	chunks := make([]string, 250)
	for i := range chunks {
		chunks[i] = strings.Repeat("x", 10)
	}
	p, _, store := newTestPipeline(chunks)

	result, err := p.Ingest(context.Background(), "large document", "big.pdf")

	require.NoError(t, err)
	assert.Equal(t, 250, result.ChunkCount)
	assert.Len(t, store.records, 250)
	assert.Equal(t, "pdf-1700000000000-249", store.records[249].ID)
}
