package knowledge

import "errors"

var (
	// ErrEmbeddingService indicates the remote embedding model call failed.
	// Callers decide whether to retry the whole operation.
	ErrEmbeddingService = errors.New("embedding service failure")

	// ErrVectorStore indicates an upsert or query against the vector index
	// failed. Upserts are not transactional: batches committed before the
	// failure remain in the index.
	ErrVectorStore = errors.New("vector store failure")
)

// Metadata is the stable external format persisted alongside each vector.
// Consumers reading the index directly must treat this schema as frozen.
type Metadata struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunkIndex"`
}

// Record is the persisted unit in the vector index. Records are created at
// ingestion and never mutated.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Hit is one nearest-neighbor result: a record's identity and metadata plus
// its cosine similarity to the query vector.
type Hit struct {
	ID       string
	Score    float32
	Metadata Metadata
}
