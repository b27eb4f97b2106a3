package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// persistedMeta is the jsonb payload stored next to each vector. The chunk
// text lives in its own column; everything else rides in metadata.
type persistedMeta struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunkIndex"`
}

// PgxQuerier implements Querier against PostgreSQL + pgvector.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxQuerier creates a Querier backed by the given connection pool.
// Schema is managed by db.Migrate; see db/migrations.
func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

const upsertSQL = `
INSERT INTO chunks (id, content, embedding, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata`

// InsertRecords writes one batch of records in a single round trip using a
// pgx batch. The batch is not wrapped in an explicit transaction; pgx sends
// batches in an implicit transaction, so a batch either fully applies or
// fully fails.
func (q *PgxQuerier) InsertRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		meta, err := json.Marshal(persistedMeta{
			Source:     rec.Metadata.Source,
			ChunkIndex: rec.Metadata.ChunkIndex,
		})
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", rec.ID, err)
		}
		vec := pgvector.NewVector(rec.Vector)
		batch.Queue(upsertSQL, rec.ID, rec.Metadata.Text, vec, meta)
	}

	results := q.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting record %q: %w", records[i].ID, err)
		}
	}
	return nil
}

const nearestSQL = `
SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM chunks
ORDER BY embedding <=> $1
LIMIT $2`

// NearestRecords returns the limit records closest to vector by cosine
// distance, best first.
func (q *PgxQuerier) NearestRecords(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	vec := pgvector.NewVector(vector)

	rows, err := q.pool.Query(ctx, nearestSQL, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("querying nearest chunks: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit     Hit
			content string
			metaRaw []byte
		)
		if err := rows.Scan(&hit.ID, &content, &metaRaw, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}

		var meta persistedMeta
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return nil, fmt.Errorf("parsing metadata for %q: %w", hit.ID, err)
		}

		hit.Metadata = Metadata{
			Text:       content,
			Source:     meta.Source,
			ChunkIndex: meta.ChunkIndex,
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}

	return hits, nil
}
