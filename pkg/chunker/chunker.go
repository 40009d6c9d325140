package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Encoding     string
}

// Chunker splits text into overlapping windows counted in tokenizer units,
// so chunk budgets hold regardless of character length.
type Chunker struct {
	config ChunkerConfig
	enc    *tiktoken.Tiktoken
}

func NewWithConfig(config ChunkerConfig) (*Chunker, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 800
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 120
	}
	if config.Encoding == "" {
		config.Encoding = defaultEncoding
	}

	if config.ChunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap cannot be negative, got %d", config.ChunkOverlap)
	}
	// The window advances by ChunkSize-ChunkOverlap each step; an overlap at
	// or above the window size would loop forever.
	if config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be less than chunk size (%d)",
			config.ChunkOverlap, config.ChunkSize)
	}

	enc, err := tiktoken.GetEncoding(config.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", config.Encoding, err)
	}

	return &Chunker{
		config: config,
		enc:    enc,
	}, nil
}

// Split tokenizes the text once and emits windows of ChunkSize tokens,
// advancing by ChunkSize-ChunkOverlap so consecutive chunks share
// ChunkOverlap tokens. Empty text yields no chunks; text shorter than one
// window yields exactly one.
func (c *Chunker) Split(text string) []string {
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(tokens); start += c.config.ChunkSize - c.config.ChunkOverlap {
		end := start + c.config.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.enc.Decode(tokens[start:end]))
	}

	return chunks
}

// TokenCount reports how many tokenizer units the text occupies.
func (c *Chunker) TokenCount(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
