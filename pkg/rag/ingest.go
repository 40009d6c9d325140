package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ragcite/ragcite/internal/models"
	"github.com/ragcite/ragcite/internal/types"
	"github.com/ragcite/ragcite/pkg/store"
)

const (
	StatusIngested = "ingested"
	StatusSkipped  = "skipped"
)

// IngestResult is the structured outcome of an ingest request. A duplicate
// is a normal skipped outcome, not an error.
type IngestResult struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Chunks int    `json:"chunks"`
}

// Ingester runs the ingest path: digest, duplicate check, chunk, batch
// embed, bulk store, register.
type Ingester struct {
	chunker  types.Chunker
	embedder types.Embedder
	store    types.VectorStore
}

func NewIngester(chunker types.Chunker, embedder types.Embedder, vectorStore types.VectorStore) *Ingester {
	return &Ingester{
		chunker:  chunker,
		embedder: embedder,
		store:    vectorStore,
	}
}

// Digest returns the hex SHA-256 of the text's UTF-8 bytes. Used purely as
// a dedup identity, not a security primitive.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Ingest stores one document. The duplicate check and the final register
// are not atomic; a concurrent identical ingest is caught by the registry's
// uniqueness constraint and reported as skipped.
func (in *Ingester) Ingest(ctx context.Context, text, source string) (IngestResult, error) {
	digest := Digest(text)

	duplicate, err := in.store.ExistsByDigest(ctx, digest)
	if err != nil {
		return IngestResult{}, fmt.Errorf("duplicate check failed: %w", err)
	}
	if duplicate {
		return IngestResult{Status: StatusSkipped, Reason: "duplicate"}, nil
	}

	chunks := in.chunker.Split(text)

	if err := in.storeChunks(ctx, chunks, source); err != nil {
		return IngestResult{}, err
	}

	err = in.store.RegisterDocument(ctx, models.IngestedDocument{
		Digest:     digest,
		Source:     source,
		ChunkCount: len(chunks),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateDocument) {
			return IngestResult{Status: StatusSkipped, Reason: "duplicate"}, nil
		}
		return IngestResult{}, err
	}

	return IngestResult{Status: StatusIngested, Chunks: len(chunks)}, nil
}

// storeChunks embeds all chunk texts in storage mode and persists one row
// per chunk with sequential indexes, preserving input order. Any provider
// or storage failure aborts the whole batch.
func (in *Ingester) storeChunks(ctx context.Context, chunks []string, source string) error {
	if len(chunks) == 0 {
		return nil
	}

	embeddings, err := in.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	rows := make([]models.StoredChunk, len(chunks))
	for i, chunk := range chunks {
		rows[i] = models.StoredChunk{
			Content:   chunk,
			Embedding: embeddings[i],
			Source:    source,
			Index:     i,
		}
	}

	if err := in.store.InsertChunks(ctx, rows); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	return nil
}
