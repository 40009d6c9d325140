package types

import (
	"context"

	"github.com/ragcite/ragcite/internal/models"
)

// Core interfaces

// Chunker splits raw text into overlapping token-bounded windows.
type Chunker interface {
	Split(text string) []string
}

// Embedder produces dense vectors. Document and query modes must not be
// mixed: store documents with EmbedDocuments, embed questions with
// EmbedQuery.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore owns all durable state: chunk rows with embeddings plus the
// ingestion registry.
type VectorStore interface {
	InsertChunks(ctx context.Context, chunks []models.StoredChunk) error
	Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.Candidate, error)
	ExistsByDigest(ctx context.Context, digest string) (bool, error)
	RegisterDocument(ctx context.Context, doc models.IngestedDocument) error
	Stats(ctx context.Context) (docs int, chunks int, err error)
	Close()
}

// RankedIndex points into the document list submitted to a RerankClient.
type RankedIndex struct {
	Index     int
	Relevance float64
}

// RerankClient scores documents against a query with a cross-encoder
// model. The returned order is authoritative. Callers must treat a failure
// as a degraded outcome, not a fatal one.
type RerankClient interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedIndex, error)
}

// Generator produces a single-shot completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
