package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string `yaml:"port"`
		AllowOrigin string `yaml:"allow_origin"`
	} `yaml:"server"`

	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Embedding struct {
		Model             string  `yaml:"model"`
		BatchSize         int     `yaml:"batch_size"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"embedding"`

	Rerank struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
	} `yaml:"rerank"`

	Database struct {
		URL           string `yaml:"url"`
		TableName     string `yaml:"table_name"`
		RegistryTable string `yaml:"registry_table"`
		VectorDim     int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Chunker struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"chunker"`

	Search struct {
		Limit          int     `yaml:"limit"`
		Threshold      float64 `yaml:"threshold"`
		TopN           int     `yaml:"top_n"`
		MaxPerSource   int     `yaml:"max_per_source"`
		DedupThreshold float64 `yaml:"dedup_threshold"`
	} `yaml:"search"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/ragcite/config.yaml"),
			"/etc/ragcite/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Server.AllowOrigin == "" {
		config.Server.AllowOrigin = "*"
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.2
	}

	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 96
	}
	if config.Embedding.RequestsPerSecond == 0 {
		config.Embedding.RequestsPerSecond = 4.0
	}

	if config.Rerank.BaseURL == "" {
		config.Rerank.BaseURL = "https://api.cohere.com"
	}
	if config.Rerank.Model == "" {
		config.Rerank.Model = "rerank-english-v3.0"
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "documents"
	}
	if config.Database.RegistryTable == "" {
		config.Database.RegistryTable = "ingested_documents"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 800
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 120
	}

	if config.Search.Limit == 0 {
		config.Search.Limit = 25
	}
	if config.Search.Threshold == 0 {
		config.Search.Threshold = 0.3
	}
	if config.Search.TopN == 0 {
		config.Search.TopN = 5
	}
	if config.Search.MaxPerSource == 0 {
		config.Search.MaxPerSource = 3
	}
	if config.Search.DedupThreshold == 0 {
		config.Search.DedupThreshold = 0.7
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("RERANK_API_KEY"); key != "" {
		config.Rerank.APIKey = key
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
