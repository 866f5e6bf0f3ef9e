package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/hugoworkshops/workshopbot/pkg/retrieval"
)

// Embedder turns texts into vectors. Defined here, implemented by the llm
// package, so the store can be tested with a stub.
type Embedder interface {
	Model() string
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the Postgres + pgvector content store. It implements
// retrieval.Retriever for query-time similarity search and is also the sink
// for the indexing pipeline.
type Store struct {
	pool       *pgxpool.Pool
	embedder   Embedder
	dimensions int
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, connStr string, embedder Embedder, dimensions int) (*Store, error) {
	if dimensions <= 0 {
		dimensions = 1536
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to vector store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping vector store: %w", err)
	}
	return &Store{pool: pool, embedder: embedder, dimensions: dimensions}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Initialize creates the chunk table, vector index, and collection metadata.
func (s *Store) Initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS workshop_chunks (
            id SERIAL PRIMARY KEY,
            workshop_id TEXT NOT NULL,
            position INTEGER NOT NULL,
            speaker TEXT,
            ts TEXT,
            token_count INTEGER NOT NULL,
            content TEXT NOT NULL,
            embedding vector(%d) NOT NULL,
            UNIQUE (workshop_id, position)
        )
    `, s.dimensions))
	if err != nil {
		return fmt.Errorf("create workshop_chunks table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS workshop_chunks_embedding_idx ON workshop_chunks
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS workshop_chunks_workshop_idx ON workshop_chunks (workshop_id);
		CREATE TABLE IF NOT EXISTS collection_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create supporting tables: %w", err)
	}

	return nil
}

// SetEstimatorName records which token estimator produced stored token
// counts. Query-time budgeting refuses to run against a different one.
func (s *Store) SetEstimatorName(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collection_meta (key, value) VALUES ('estimator', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, name)
	if err != nil {
		return fmt.Errorf("record estimator name: %w", err)
	}
	return nil
}

// EstimatorName returns the recorded estimator name, or "" when the
// collection has never been indexed.
func (s *Store) EstimatorName(ctx context.Context) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `SELECT value FROM collection_meta WHERE key = 'estimator'`).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read estimator name: %w", err)
	}
	return name, nil
}

// AddChunks embeds and stores transcript chunks for one workshop. Existing
// rows for the same (workshop, position) are replaced.
func (s *Store) AddChunks(ctx context.Context, chunks []retrieval.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	for i, c := range chunks {
		_, err := s.pool.Exec(ctx, `
            INSERT INTO workshop_chunks (workshop_id, position, speaker, ts, token_count, content, embedding)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            ON CONFLICT (workshop_id, position) DO UPDATE SET
                speaker = EXCLUDED.speaker,
                ts = EXCLUDED.ts,
                token_count = EXCLUDED.token_count,
                content = EXCLUDED.content,
                embedding = EXCLUDED.embedding
        `, c.WorkshopID, c.Position, c.Speaker, c.Timestamp, c.TokenCount, c.Text, pgvector.NewVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("store chunk %s/%d: %w", c.WorkshopID, c.Position, err)
		}
	}
	return nil
}

// CountChunks returns the stored chunk count per workshop.
func (s *Store) CountChunks(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT workshop_id, COUNT(*) FROM workshop_chunks GROUP BY workshop_id`)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan chunk count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Search implements retrieval.Retriever: cosine similarity over one
// workshop's chunks.
func (s *Store) Search(ctx context.Context, workshopID, query string, limit int) ([]retrieval.Chunk, error) {
	if limit <= 0 {
		limit = 5
	}

	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec := pgvector.NewVector(vectors[0])

	rows, err := s.pool.Query(ctx, `
        SELECT workshop_id, position, COALESCE(speaker, ''), COALESCE(ts, ''),
               token_count, content, 1 - (embedding <=> $1) AS similarity
        FROM workshop_chunks
        WHERE workshop_id = $2
        ORDER BY embedding <=> $1
        LIMIT $3
    `, queryVec, workshopID, limit)
	if err != nil {
		return nil, fmt.Errorf("search workshop %s: %w", workshopID, err)
	}
	defer rows.Close()

	var chunks []retrieval.Chunk
	for rows.Next() {
		var c retrieval.Chunk
		if err := rows.Scan(&c.WorkshopID, &c.Position, &c.Speaker, &c.Timestamp, &c.TokenCount, &c.Text, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
