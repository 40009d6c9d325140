package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "database URL is required",
		})
	} else if _, err := url.Parse(c.Database.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Chunker.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	// An overlap at or above the window size makes the chunker's advance
	// step non-positive, so it can never terminate.
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Search.Limit < 1 {
		errors = append(errors, ValidationError{
			Field:   "search.limit",
			Message: "limit must be positive",
		})
	}

	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "search.threshold",
			Message: "threshold must be between 0 and 1",
		})
	}

	if c.Search.TopN < 1 || c.Search.TopN > c.Search.Limit {
		errors = append(errors, ValidationError{
			Field:   "search.top_n",
			Message: "top_n must be positive and at most search.limit",
		})
	}

	if c.Search.MaxPerSource < 1 {
		errors = append(errors, ValidationError{
			Field:   "search.max_per_source",
			Message: "max_per_source must be positive",
		})
	}

	if c.Search.DedupThreshold <= 0 || c.Search.DedupThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "search.dedup_threshold",
			Message: "dedup_threshold must be in (0, 1]",
		})
	}

	return errors
}
