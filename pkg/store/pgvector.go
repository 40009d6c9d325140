package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ragcite/ragcite/internal/models"
)

// ErrDuplicateDocument reports a registry digest conflict. The registry's
// primary key makes this the duplicate signal even when two ingests race
// past the existence check.
var ErrDuplicateDocument = errors.New("document already ingested")

const uniqueViolation = "23505"

type VectorStoreConfig struct {
	ConnString    string
	TableName     string
	RegistryTable string
	VectorDim     int
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.RegistryTable == "" {
		config.RegistryTable = "ingested_documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createChunks := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d),
			source TEXT NOT NULL,
			chunk_index INTEGER NOT NULL
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createChunks)
	if err != nil {
		return fmt.Errorf("failed to create chunks table: %v", err)
	}

	createRegistry := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			content_hash TEXT PRIMARY KEY,
			source_name TEXT NOT NULL,
			chunk_count INTEGER NOT NULL
		)`, vs.config.RegistryTable)

	_, err = vs.pool.Exec(ctx, createRegistry)
	if err != nil {
		return fmt.Errorf("failed to create registry table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// InsertChunks persists chunk rows in a single transaction. Row order and
// chunk indexes are the caller's; any failure rolls back the whole batch.
func (vs *VectorStore) InsertChunks(ctx context.Context, chunks []models.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (content, embedding, source, chunk_index)
		VALUES ($1, $2, $3, $4)`,
		vs.config.TableName)

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(stmt,
			chunk.Content,
			pgvector.NewVector(chunk.Embedding),
			chunk.Source,
			chunk.Index,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert chunk: %v", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to flush chunk batch: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// Search returns candidates by descending cosine similarity, filtered
// server-side by the minimum similarity threshold. An empty result is a
// normal outcome.
func (vs *VectorStore) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.Candidate, error) {
	query := fmt.Sprintf(`
		SELECT content, source, chunk_index, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %v", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		err := rows.Scan(
			&c.Content,
			&c.Source,
			&c.ChunkIndex,
			&c.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// ExistsByDigest checks the ingestion registry for a content hash.
func (vs *VectorStore) ExistsByDigest(ctx context.Context, digest string) (bool, error) {
	query := fmt.Sprintf(
		"SELECT EXISTS (SELECT 1 FROM %s WHERE content_hash = $1)",
		vs.config.RegistryTable)

	var exists bool
	if err := vs.pool.QueryRow(ctx, query, digest).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check registry: %v", err)
	}

	return exists, nil
}

// RegisterDocument appends one registry row. A digest conflict returns
// ErrDuplicateDocument.
func (vs *VectorStore) RegisterDocument(ctx context.Context, doc models.IngestedDocument) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (content_hash, source_name, chunk_count)
		VALUES ($1, $2, $3)`,
		vs.config.RegistryTable)

	_, err := vs.pool.Exec(ctx, stmt, doc.Digest, doc.Source, doc.ChunkCount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateDocument
		}
		return fmt.Errorf("failed to register document: %v", err)
	}

	return nil
}

// Stats reports how many documents and chunk rows have been ingested.
func (vs *VectorStore) Stats(ctx context.Context) (int, int, error) {
	var docs, chunks int

	query := fmt.Sprintf("SELECT count(*) FROM %s", vs.config.RegistryTable)
	if err := vs.pool.QueryRow(ctx, query).Scan(&docs); err != nil {
		return 0, 0, fmt.Errorf("failed to count documents: %v", err)
	}

	query = fmt.Sprintf("SELECT count(*) FROM %s", vs.config.TableName)
	if err := vs.pool.QueryRow(ctx, query).Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("failed to count chunks: %v", err)
	}

	return docs, chunks, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
