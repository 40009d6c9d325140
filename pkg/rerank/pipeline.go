package rerank

import (
	"context"
	"log"
	"strings"

	"github.com/ragcite/ragcite/internal/models"
	"github.com/ragcite/ragcite/internal/types"
)

type PipelineConfig struct {
	TopN           int     // final result budget
	DedupThreshold float64 // token-set Jaccard above this is a near-duplicate
	MaxPerSource   int     // candidates kept per source identifier
	FallbackDepth  int     // deduped candidates resubmitted when capping starves
}

// Pipeline narrows retrieval candidates before the cross-encoder call:
// near-duplicate suppression, per-source capping, then relevance reranking.
// The filter stages only drop candidates, never reorder them, so retrieval
// similarity order is the tie-break everywhere the provider doesn't rule.
type Pipeline struct {
	config PipelineConfig
	client types.RerankClient
}

// Outcome distinguishes a ranked result set from the degraded fallback
// taken when the rerank provider fails. On the degraded path relevance
// mirrors similarity.
type Outcome struct {
	Results  []models.RerankedResult
	Degraded bool
}

func NewPipelineWithConfig(client types.RerankClient, config PipelineConfig) *Pipeline {
	if config.TopN == 0 {
		config.TopN = 5
	}
	if config.DedupThreshold == 0 {
		config.DedupThreshold = 0.7
	}
	if config.MaxPerSource == 0 {
		config.MaxPerSource = 3
	}
	if config.FallbackDepth == 0 {
		config.FallbackDepth = 10
	}

	return &Pipeline{
		config: config,
		client: client,
	}
}

func (p *Pipeline) Rerank(ctx context.Context, query string, candidates []models.Candidate) Outcome {
	if len(candidates) == 0 {
		return Outcome{}
	}

	deduped := p.deduplicate(candidates)
	grouped := p.capPerSource(deduped)

	// An over-aggressive cap can starve the reranker; hand it the deduped
	// head instead of one lonely candidate.
	if len(grouped) < 2 {
		depth := p.config.FallbackDepth
		if depth > len(deduped) {
			depth = len(deduped)
		}
		grouped = deduped[:depth]
	}

	texts := make([]string, len(grouped))
	for i, c := range grouped {
		texts[i] = c.Content
	}

	topN := p.config.TopN
	if topN > len(grouped) {
		topN = len(grouped)
	}

	ranked, err := p.client.Rerank(ctx, query, texts, topN)
	if err != nil {
		// Reranking is an optimization, not a correctness requirement.
		log.Printf("rerank failed, falling back to retrieval order: %v", err)
		results := make([]models.RerankedResult, 0, topN)
		for _, c := range grouped[:topN] {
			results = append(results, models.RerankedResult{
				Candidate: c,
				Relevance: c.Similarity,
			})
		}
		return Outcome{Results: results, Degraded: true}
	}

	// Provider order is authoritative; do not resort.
	results := make([]models.RerankedResult, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(grouped) {
			continue
		}
		results = append(results, models.RerankedResult{
			Candidate: grouped[r.Index],
			Relevance: r.Relevance,
		})
	}

	return Outcome{Results: results}
}

// deduplicate walks the candidates in retrieval order, keeping the first
// and dropping any later candidate whose token-set Jaccard similarity with
// an already-kept one exceeds the threshold. Quadratic, but the input is
// capped at the retrieval limit.
func (p *Pipeline) deduplicate(candidates []models.Candidate) []models.Candidate {
	kept := make([]models.Candidate, 0, len(candidates))
	keptTokens := make([]map[string]struct{}, 0, len(candidates))

	for _, c := range candidates {
		tokens := tokenSet(c.Content)

		duplicate := false
		for _, k := range keptTokens {
			if jaccard(tokens, k) > p.config.DedupThreshold {
				duplicate = true
				break
			}
		}

		if !duplicate {
			kept = append(kept, c)
			keptTokens = append(keptTokens, tokens)
		}
	}

	return kept
}

// capPerSource keeps at most MaxPerSource candidates per source so one
// document cannot monopolize the citation budget.
func (p *Pipeline) capPerSource(candidates []models.Candidate) []models.Candidate {
	counts := make(map[string]int)
	kept := make([]models.Candidate, 0, len(candidates))

	for _, c := range candidates {
		if counts[c.Source] < p.config.MaxPerSource {
			kept = append(kept, c)
			counts[c.Source]++
		}
	}

	return kept
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
