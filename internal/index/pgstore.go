package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paperflow/internal/models"
	"paperflow/internal/util"
)

// PGStore persists chunks and embeddings in Postgres with the pgvector
// extension. Alignment is structural here: vector and metadata live in the
// same row.
type PGStore struct {
	pool *pgxpool.Pool
	dim  int
}

// OpenPGStore connects, verifies the database is reachable, and ensures the
// schema exists. dim fixes the vector column width.
func OpenPGStore(ctx context.Context, databaseURL string, dim int) (*PGStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &PGStore{pool: pool, dim: dim}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS paper_chunks (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			page INT NOT NULL,
			chunk_index INT NOT NULL,
			chunk_text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			embedding vector(%d) NOT NULL,
			UNIQUE (filename, chunk_index)
		)`, s.dim),
		`CREATE INDEX IF NOT EXISTS paper_chunks_filename_idx ON paper_chunks (filename)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

// Append inserts all rows inside one transaction so a failure leaves the
// table untouched. Re-ingesting a file overwrites its previous rows.
func (s *PGStore) Append(ctx context.Context, vectors [][]float32, chunks []models.Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("append: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if len(vectors) == 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return fmt.Errorf("%w: vector %d has width %d, index dimension is %d", util.ErrDimensionMismatch, i, len(v), s.dim)
		}
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, chunk := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO paper_chunks (id, filename, page, chunk_index, chunk_text, created_at, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::vector)
			 ON CONFLICT (filename, chunk_index) DO UPDATE SET
				page = EXCLUDED.page,
				chunk_text = EXCLUDED.chunk_text,
				created_at = EXCLUDED.created_at,
				embedding = EXCLUDED.embedding`,
			uuid.New(), chunk.Filename, chunk.Page, chunk.ChunkIndex, chunk.Text, chunk.CreatedAt, ToLiteral(vectors[i]))
		if err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", chunk.ChunkIndex, chunk.Filename, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (s *PGStore) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query width %d, index dimension is %d", util.ErrDimensionMismatch, len(vector), s.dim)
	}
	if k <= 0 {
		k = 3
	}
	rows, err := s.pool.Query(ctx,
		`SELECT filename, page, chunk_index, chunk_text, created_at, embedding <-> $1::vector AS distance
		 FROM paper_chunks
		 ORDER BY distance ASC
		 LIMIT $2`,
		ToLiteral(vector), k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var hits []models.ScoredChunk
	for rows.Next() {
		var hit models.ScoredChunk
		if err := rows.Scan(&hit.Chunk.Filename, &hit.Chunk.Page, &hit.Chunk.ChunkIndex, &hit.Chunk.Text, &hit.Chunk.CreatedAt, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}
	return hits, nil
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM paper_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
