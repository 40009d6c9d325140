package rag

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ragcite/ragcite/internal/models"
	"github.com/ragcite/ragcite/internal/types"
	"github.com/ragcite/ragcite/pkg/rerank"
)

// InsufficientAnswer is returned verbatim when retrieval comes back empty;
// no generator call is made in that case.
const InsufficientAnswer = "I couldn't find any relevant information in the uploaded documents to answer this question."

const maxCitationChars = 350

const answerPrompt = `You are a helpful assistant that answers questions based ONLY on the provided sources.

RULES:
1. Use ONLY the information from the sources below to answer.
2. Every claim must have a citation like [1], [2], etc.
3. Use each source at most once - do not repeat the same idea.
4. If sources contain redundant information, summarize once with a single citation.
5. If the sources don't contain enough information, say so explicitly.
6. Do not make up information or use knowledge outside these sources.
7. Be concise but thorough.

SOURCES:
%s
QUESTION: %s

ANSWER:`

type SynthesizerConfig struct {
	SearchLimit     int     // candidates fetched for the rerank stage
	SearchThreshold float64 // minimum cosine similarity
}

// Synthesizer runs the query path: embed the question, retrieve an
// over-fetched candidate set, rerank it down, and generate a grounded
// answer with numbered citations.
type Synthesizer struct {
	config    SynthesizerConfig
	embedder  types.Embedder
	store     types.VectorStore
	pipeline  *rerank.Pipeline
	generator types.Generator
}

// Answer pairs the generated prose with the citations backing it.
type Answer struct {
	Text      string            `json:"answer"`
	Citations []models.Citation `json:"citations"`
}

func NewSynthesizer(embedder types.Embedder, vectorStore types.VectorStore,
	pipeline *rerank.Pipeline, generator types.Generator, config SynthesizerConfig) *Synthesizer {
	if config.SearchLimit == 0 {
		config.SearchLimit = 25
	}
	if config.SearchThreshold == 0 {
		config.SearchThreshold = 0.3
	}

	return &Synthesizer{
		config:    config,
		embedder:  embedder,
		store:     vectorStore,
		pipeline:  pipeline,
		generator: generator,
	}
}

func (s *Synthesizer) Answer(ctx context.Context, query string) (Answer, error) {
	queryEmbedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := s.store.Search(ctx, queryEmbedding, s.config.SearchThreshold, s.config.SearchLimit)
	if err != nil {
		return Answer{}, fmt.Errorf("search failed: %w", err)
	}

	if len(candidates) == 0 {
		return Answer{Text: InsufficientAnswer, Citations: []models.Citation{}}, nil
	}

	outcome := s.pipeline.Rerank(ctx, query, candidates)

	// Context numbering is positional: the model cites [1]..[k] and each
	// number maps to the citation with the same id. The context carries the
	// full chunk text; citations carry the compressed excerpt.
	var contextBlock strings.Builder
	citations := make([]models.Citation, 0, len(outcome.Results))

	for i, r := range outcome.Results {
		fmt.Fprintf(&contextBlock, "[%d] %s\n\n", i+1, r.Content)
		citations = append(citations, models.Citation{
			ID:         i + 1,
			Source:     r.Source,
			Text:       compressCitation(r.Content, maxCitationChars),
			Similarity: round3(r.Similarity),
			Relevance:  round3(r.Relevance),
		})
	}

	prompt := fmt.Sprintf(answerPrompt, contextBlock.String(), query)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	return Answer{Text: text, Citations: citations}, nil
}

// compressCitation bounds a display excerpt, cutting back to the last word
// boundary before the limit. Only citations are compressed; the generator
// sees full chunk text.
func compressCitation(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	cut := text[:maxChars]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
