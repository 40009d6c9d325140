package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragcite/ragcite/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Chunker.ChunkSize)
	assert.Equal(t, 120, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 25, cfg.Search.Limit)
	assert.Equal(t, 0.3, cfg.Search.Threshold)
	assert.Equal(t, 5, cfg.Search.TopN)
	assert.Equal(t, 3, cfg.Search.MaxPerSource)
	assert.Equal(t, 0.7, cfg.Search.DedupThreshold)
	assert.Equal(t, 96, cfg.Embedding.BatchSize)
	assert.Equal(t, 768, cfg.Database.VectorDim)
	assert.Equal(t, "documents", cfg.Database.TableName)
	assert.Equal(t, "ingested_documents", cfg.Database.RegistryTable)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
chunker:
  chunk_size: 400
  chunk_overlap: 60
search:
  limit: 10
database:
  url: postgresql://localhost:5432/ragcite
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.Chunker.ChunkSize)
	assert.Equal(t, 60, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 10, cfg.Search.Limit)
	assert.Equal(t, "postgresql://localhost:5432/ragcite", cfg.Database.URL)
	// unset values fall back to defaults
	assert.Equal(t, 5, cfg.Search.TopN)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://envhost:5432/envdb")
	t.Setenv("OLLAMA_BASE_URL", "http://envhost:11434")
	t.Setenv("RERANK_API_KEY", "test-key")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "postgresql://envhost:5432/envdb", cfg.Database.URL)
	assert.Equal(t, "http://envhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "test-key", cfg.Rerank.APIKey)
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://localhost:5432/ragcite")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Validate())
}

func TestValidate_RequiresDatabaseURL(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Database.URL = ""

	errs := cfg.Validate()
	require.NotEmpty(t, errs)

	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "database.url")
}

func TestValidate_RejectsOverlapAtOrAboveChunkSize(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://localhost:5432/ragcite")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Chunker.ChunkSize = 100
	cfg.Chunker.ChunkOverlap = 100

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "chunker.chunk_overlap", errs[0].Field)
}
