package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr    error
	returnEmpty bool
	callCount   int
	lastInputs  []string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	m.lastInputs = nil
	for _, doc := range req.Input {
		if len(doc.Content) > 0 {
			m.lastInputs = append(m.lastInputs, doc.Content[0].Text)
		}
	}

	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{}, nil
	}

	// One deterministic vector per input, tagged with the input index so
	// order preservation is observable.
	resp := &ai.EmbedResponse{}
	for i := range req.Input {
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: []float32{float32(i), 0.5, 0.25},
		})
	}
	return resp, nil
}

func TestEmbed_CollapsesNewlinesToSpaces(t *testing.T) {
	mock := &mockEmbedder{}
	e := NewEmbedder(mock)

	vec, err := e.Embed(context.Background(), "opening\nhours\nare 9am")

	require.NoError(t, err)
	assert.NotEmpty(t, vec)
	require.Len(t, mock.lastInputs, 1)
	assert.Equal(t, "opening hours are 9am", mock.lastInputs[0])
}

func TestEmbed_ServiceFailure(t *testing.T) {
	mock := &mockEmbedder{embedErr: errors.New("quota exceeded")}
	e := NewEmbedder(mock)

	_, err := e.Embed(context.Background(), "anything")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestEmbed_EmptyResponse(t *testing.T) {
	mock := &mockEmbedder{returnEmpty: true}
	e := NewEmbedder(mock)

	_, err := e.Embed(context.Background(), "anything")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestEmbedBatch_StripsNewlines(t *testing.T) {
	mock := &mockEmbedder{}
	e := NewEmbedder(mock)

	_, err := e.EmbedBatch(context.Background(), []string{"safety\nrules", "party\nbookings"})

	require.NoError(t, err)
	require.Len(t, mock.lastInputs, 2)
	assert.Equal(t, "safetyrules", mock.lastInputs[0])
	assert.Equal(t, "partybookings", mock.lastInputs[1])
}

func TestEmbedBatch_OrderPreserving(t *testing.T) {
	mock := &mockEmbedder{}
	e := NewEmbedder(mock)

	vectors, err := e.EmbedBatch(context.Background(), []string{"first", "second", "third"})

	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, vec := range vectors {
		assert.Equal(t, float32(i), vec[0], "vector %d out of order", i)
	}
}

func TestEmbedBatch_SingleRequest(t *testing.T) {
	mock := &mockEmbedder{}
	e := NewEmbedder(mock)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d"})

	require.NoError(t, err)
	assert.Equal(t, 1, mock.callCount, "batch must embed in one remote call")
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	mock := &mockEmbedder{}
	e := NewEmbedder(mock)

	vectors, err := e.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, mock.callCount)
}

func TestEmbedBatch_ServiceFailure(t *testing.T) {
	mock := &mockEmbedder{embedErr: errors.New("connection reset")}
	e := NewEmbedder(mock)

	_, err := e.EmbedBatch(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, ErrEmbeddingService)
}
