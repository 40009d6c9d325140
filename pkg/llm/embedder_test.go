package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeEmbeddingClient struct {
	err   error
	calls [][]string
}

func (f *fakeEmbeddingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

func newTestEmbedder(client embeddingClient, batchSize int) *Embedder {
	return &Embedder{
		config:  EmbedderConfig{BatchSize: batchSize},
		client:  client,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func TestEmbedDocuments_SubBatchesAtCeiling(t *testing.T) {
	client := &fakeEmbeddingClient{}
	e := newTestEmbedder(client, 2)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	embeddings, err := e.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0], 2)
	assert.Len(t, client.calls[1], 2)
	assert.Len(t, client.calls[2], 1)

	// results concatenated in input order
	require.Len(t, embeddings, 5)
	for i, text := range texts {
		assert.Equal(t, float32(len(documentPrefix)+len(text)), embeddings[i][0])
	}
}

func TestEmbedDocuments_AppliesDocumentPrefix(t *testing.T) {
	client := &fakeEmbeddingClient{}
	e := newTestEmbedder(client, 96)

	_, err := e.EmbedDocuments(context.Background(), []string{"some chunk"})
	require.NoError(t, err)

	require.Len(t, client.calls, 1)
	assert.True(t, strings.HasPrefix(client.calls[0][0], documentPrefix))
}

func TestEmbedDocuments_EmptyInput(t *testing.T) {
	client := &fakeEmbeddingClient{}
	e := newTestEmbedder(client, 96)

	embeddings, err := e.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
	assert.Empty(t, client.calls)
}

func TestEmbedDocuments_ProviderFailureAbortsBatch(t *testing.T) {
	client := &fakeEmbeddingClient{err: errors.New("provider down")}
	e := newTestEmbedder(client, 2)

	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Len(t, client.calls, 1, "should stop after the first failed sub-batch")
}

func TestEmbedQuery_AppliesQueryPrefix(t *testing.T) {
	client := &fakeEmbeddingClient{}
	e := newTestEmbedder(client, 96)

	_, err := e.EmbedQuery(context.Background(), "what color is the sky?")
	require.NoError(t, err)

	require.Len(t, client.calls, 1)
	require.Len(t, client.calls[0], 1)
	assert.True(t, strings.HasPrefix(client.calls[0][0], queryPrefix))
}
