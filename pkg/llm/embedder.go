package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// nomic-embed-text distinguishes storage-time and query-time inputs with
// task prefixes. Mixing them up degrades retrieval quality, so the two
// modes are separate methods rather than a flag.
const (
	documentPrefix = "search_document: "
	queryPrefix    = "search_query: "
)

type EmbedderConfig struct {
	Model             string
	BaseURL           string // Ollama server URL
	BatchSize         int    // provider ceiling per embedding call
	RequestsPerSecond float64
}

type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder wraps an embedding model with input-type prefixes, sub-batching
// and request pacing.
type Embedder struct {
	config  EmbedderConfig
	client  embeddingClient
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 96
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 4.0
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
	}, nil
}

// EmbedDocuments embeds texts in storage mode, issuing as many provider
// calls as the batch ceiling requires and concatenating results in input
// order. Any provider failure aborts the whole batch.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = documentPrefix + t
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(prefixed); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(prefixed) {
			end = len(prefixed)
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		batch, err := e.client.CreateEmbedding(ctx, prefixed[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(batch), end-start)
		}
		embeddings = append(embeddings, batch...)
	}

	return embeddings, nil
}

// EmbedDocument embeds a single text in storage mode.
func (e *Embedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedQuery embeds a single question in query mode.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	embeddings, err := e.client.CreateEmbedding(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("provider returned %d embeddings for one query", len(embeddings))
	}

	return embeddings[0], nil
}
