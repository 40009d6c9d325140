package rerank_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragcite/ragcite/internal/models"
	"github.com/ragcite/ragcite/internal/types"
	"github.com/ragcite/ragcite/pkg/rerank"
)

type fakeRerankClient struct {
	results []types.RankedIndex
	err     error

	calls   int
	gotDocs []string
	gotTopN int
}

func (f *fakeRerankClient) Rerank(ctx context.Context, query string, documents []string, topN int) ([]types.RankedIndex, error) {
	f.calls++
	f.gotDocs = documents
	f.gotTopN = topN
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	// identity ranking
	ranked := make([]types.RankedIndex, 0, topN)
	for i := 0; i < topN && i < len(documents); i++ {
		ranked = append(ranked, types.RankedIndex{Index: i, Relevance: 0.9 - float64(i)*0.1})
	}
	return ranked, nil
}

func candidate(content, source string, similarity float64) models.Candidate {
	return models.Candidate{Content: content, Source: source, Similarity: similarity}
}

func TestRerank_EmptyInput(t *testing.T) {
	client := &fakeRerankClient{}
	p := rerank.NewPipelineWithConfig(client, rerank.PipelineConfig{})

	outcome := p.Rerank(context.Background(), "query", nil)

	assert.Empty(t, outcome.Results)
	assert.False(t, outcome.Degraded)
	assert.Zero(t, client.calls)
}

func TestRerank_DropsNearDuplicates(t *testing.T) {
	client := &fakeRerankClient{}
	p := rerank.NewPipelineWithConfig(client, rerank.PipelineConfig{DedupThreshold: 0.7})

	candidates := []models.Candidate{
		candidate("the quick brown fox jumps over the lazy dog", "a", 0.9),
		// Jaccard 9/10 against the first, well above 0.7
		candidate("the quick brown fox jumps over the lazy dog today", "b", 0.8),
		candidate("an entirely different sentence about searching documents", "c", 0.7),
	}

	p.Rerank(context.Background(), "query", candidates)

	require.Len(t, client.gotDocs, 2)
	assert.Equal(t, candidates[0].Content, client.gotDocs[0])
	assert.Equal(t, candidates[2].Content, client.gotDocs[1])
}

func TestRerank_KeepsDissimilarCandidates(t *testing.T) {
	client := &fakeRerankClient{}
	p := rerank.NewPipelineWithConfig(client, rerank.PipelineConfig{DedupThreshold: 0.7})

	candidates := []models.Candidate{
		candidate("alpha bravo charlie delta", "a", 0.9),
		candidate("echo foxtrot golf hotel", "b", 0.8),
	}

	p.Rerank(context.Background(), "query", candidates)

	assert.Len(t, client.gotDocs, 2)
}

func TestRerank_CapsPerSource(t *testing.T) {
	client := &fakeRerankClient{}
	p := rerank.NewPipelineWithConfig(client, rerank.PipelineConfig{MaxPerSource: 3})

	var candidates []models.Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates,
			candidate(fmt.Sprintf("passage%d alpha%d bravo%d charlie%d delta%d echo%d", i, i, i, i, i, i), "A", 0.9))
	}
	candidates = append(candidates, candidate("a passage from the other source entirely", "B", 0.5))

	p.Rerank(context.Background(), "query", candidates)

	require.Len(t, client.gotDocs, 4)

	fromA := 0
	for _, d := range client.gotDocs {
		if d != candidates[5].Content {
			fromA++
		}
	}
	assert.Equal(t, 3, fromA)
}

func TestRerank_DegenerateFallbackUsesDedupedHead(t *testing.T) {
	client := &fakeRerankClient{}
	p := rerank.NewPipelineWithConfig(client, rerank.PipelineConfig{MaxPerSource: 1})

	// Capping a single-source list at 1 leaves fewer than 2 survivors, so
	// the pipeline must resubmit the deduped pre-cap head instead.
	var candidates []models.Candidate
	for i := 0; i < 4; i++ {
		candidates = append(candidates,
			candidate(fmt.Sprintf("wholly distinct passage %d about topic t%d", i, i), "A", 0.9))
	}

	p.Rerank(context.Background(), "query", candidates)

	assert.Len(t, client.gotDocs, 4)
}

func TestRerank_RequestsAtMostTopN(t *testing.T) {
	client := &fakeRerankClient{}
	p := rerank.NewPipelineWithConfig(client, rerank.PipelineConfig{TopN: 5})

	candidates := []models.Candidate{
		candidate("alpha bravo charlie", "a", 0.9),
		candidate("delta echo foxtrot", "b", 0.8),
	}

	p.Rerank(context.Background(), "query", candidates)

	assert.Equal(t, 2, client.gotTopN)
}

func TestRerank_ProviderOrderIsAuthoritative(t *testing.T) {
	client := &fakeRerankClient{
		results: []types.RankedIndex{
			{Index: 1, Relevance: 0.95},
			{Index: 0, Relevance: 0.40},
		},
	}
	p := rerank.NewPipelineWithConfig(client, rerank.PipelineConfig{})

	candidates := []models.Candidate{
		candidate("alpha bravo charlie", "a", 0.9),
		candidate("delta echo foxtrot", "b", 0.8),
	}

	outcome := p.Rerank(context.Background(), "query", candidates)

	require.Len(t, outcome.Results, 2)
	assert.False(t, outcome.Degraded)
	assert.Equal(t, candidates[1].Content, outcome.Results[0].Content)
	assert.Equal(t, 0.95, outcome.Results[0].Relevance)
	assert.Equal(t, candidates[0].Content, outcome.Results[1].Content)
}

func TestRerank_ProviderFailureFallsBack(t *testing.T) {
	client := &fakeRerankClient{err: errors.New("provider unavailable")}
	p := rerank.NewPipelineWithConfig(client, rerank.PipelineConfig{TopN: 2})

	candidates := []models.Candidate{
		candidate("alpha bravo charlie", "a", 0.9),
		candidate("delta echo foxtrot", "b", 0.8),
		candidate("golf hotel india", "c", 0.7),
	}

	outcome := p.Rerank(context.Background(), "query", candidates)

	require.Len(t, outcome.Results, 2)
	assert.True(t, outcome.Degraded)
	// pre-rerank order, relevance mirroring similarity
	assert.Equal(t, candidates[0].Content, outcome.Results[0].Content)
	assert.Equal(t, candidates[0].Similarity, outcome.Results[0].Relevance)
	assert.Equal(t, candidates[1].Content, outcome.Results[1].Content)
}

func TestRerank_IgnoresOutOfRangeIndexes(t *testing.T) {
	client := &fakeRerankClient{
		results: []types.RankedIndex{
			{Index: 7, Relevance: 0.9},
			{Index: 0, Relevance: 0.5},
		},
	}
	p := rerank.NewPipelineWithConfig(client, rerank.PipelineConfig{})

	candidates := []models.Candidate{
		candidate("alpha bravo charlie", "a", 0.9),
		candidate("delta echo foxtrot", "b", 0.8),
	}

	outcome := p.Rerank(context.Background(), "query", candidates)

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, candidates[0].Content, outcome.Results[0].Content)
}
