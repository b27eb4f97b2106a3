package knowledge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkbase/parkbot/internal/log"
)

// mockQuerier records batches and supports failure injection by batch index.
type mockQuerier struct {
	batches     [][]Record
	failAtBatch int // 1-based, 0 means never fail
	nearestHits []Hit
	nearestErr  error
	lastLimit   int
}

func (m *mockQuerier) InsertRecords(_ context.Context, records []Record) error {
	if m.failAtBatch > 0 && len(m.batches)+1 == m.failAtBatch {
		return errors.New("connection refused")
	}
	m.batches = append(m.batches, records)
	return nil
}

func (m *mockQuerier) NearestRecords(_ context.Context, _ []float32, limit int) ([]Hit, error) {
	m.lastLimit = limit
	if m.nearestErr != nil {
		return nil, m.nearestErr
	}
	return m.nearestHits, nil
}

func makeRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			ID:     fmt.Sprintf("pdf-1700000000000-%d", i),
			Vector: []float32{float32(i)},
			Metadata: Metadata{
				Text:       fmt.Sprintf("chunk %d", i),
				Source:     "rules.pdf",
				ChunkIndex: i,
			},
		}
	}
	return records
}

func TestUpsert_SplitsIntoBatches(t *testing.T) {
	querier := &mockQuerier{}
	store := NewStore(querier, log.NewNop())

	err := store.Upsert(context.Background(), makeRecords(250))

	require.NoError(t, err)
	require.Len(t, querier.batches, 3)
	assert.Len(t, querier.batches[0], 100)
	assert.Len(t, querier.batches[1], 100)
	assert.Len(t, querier.batches[2], 50)
}

func TestUpsert_ConfiguredBatchSize(t *testing.T) {
	querier := &mockQuerier{}
	store := NewStore(querier, log.NewNop(), WithBatchSize(2))

	err := store.Upsert(context.Background(), makeRecords(5))

	require.NoError(t, err)
	require.Len(t, querier.batches, 3)
	assert.Len(t, querier.batches[0], 2)
	assert.Len(t, querier.batches[1], 2)
	assert.Len(t, querier.batches[2], 1)
}

func TestUpsert_NonPositiveBatchSizeKeepsDefault(t *testing.T) {
	querier := &mockQuerier{}
	store := NewStore(querier, log.NewNop(), WithBatchSize(0))

	require.NoError(t, store.Upsert(context.Background(), makeRecords(150)))

	require.Len(t, querier.batches, 2)
	assert.Len(t, querier.batches[0], 100)
}

func TestUpsert_PreservesOrderAcrossBatches(t *testing.T) {
	querier := &mockQuerier{}
	store := NewStore(querier, log.NewNop())

	require.NoError(t, store.Upsert(context.Background(), makeRecords(250)))

	assert.Equal(t, "pdf-1700000000000-0", querier.batches[0][0].ID)
	assert.Equal(t, "pdf-1700000000000-100", querier.batches[1][0].ID)
	assert.Equal(t, "pdf-1700000000000-249", querier.batches[2][49].ID)
}

func TestUpsert_ExactBatchBoundary(t *testing.T) {
	querier := &mockQuerier{}
	store := NewStore(querier, log.NewNop())

	require.NoError(t, store.Upsert(context.Background(), makeRecords(200)))

	require.Len(t, querier.batches, 2)
	assert.Len(t, querier.batches[0], 100)
	assert.Len(t, querier.batches[1], 100)
}

func TestUpsert_PartialFailure(t *testing.T) {
	querier := &mockQuerier{failAtBatch: 2}
	store := NewStore(querier, log.NewNop())

	err := store.Upsert(context.Background(), makeRecords(250))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVectorStore)
	assert.Contains(t, err.Error(), "100 of 250")
	// First batch stays committed, third batch is never attempted.
	assert.Len(t, querier.batches, 1)
}

func TestUpsert_Empty(t *testing.T) {
	querier := &mockQuerier{}
	store := NewStore(querier, log.NewNop())

	require.NoError(t, store.Upsert(context.Background(), nil))
	assert.Empty(t, querier.batches)
}

func TestQuery_PassesLimit(t *testing.T) {
	querier := &mockQuerier{
		nearestHits: []Hit{
			{ID: "a", Score: 0.91, Metadata: Metadata{Text: "open hours"}},
			{ID: "b", Score: 0.72, Metadata: Metadata{Text: "pricing"}},
		},
	}
	store := NewStore(querier, log.NewNop())

	hits, err := store.Query(context.Background(), []float32{0.1, 0.2}, 5)

	require.NoError(t, err)
	assert.Equal(t, 5, querier.lastLimit)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
}

func TestQuery_InvalidLimit(t *testing.T) {
	store := NewStore(&mockQuerier{}, log.NewNop())

	_, err := store.Query(context.Background(), []float32{0.1}, 0)

	assert.ErrorIs(t, err, ErrVectorStore)
}

func TestQuery_QuerierFailure(t *testing.T) {
	querier := &mockQuerier{nearestErr: errors.New("relation does not exist")}
	store := NewStore(querier, log.NewNop())

	_, err := store.Query(context.Background(), []float32{0.1}, 5)

	assert.ErrorIs(t, err, ErrVectorStore)
}
