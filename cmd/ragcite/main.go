package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/ragcite/ragcite/pkg/chunker"
	cfgPkg "github.com/ragcite/ragcite/pkg/config"
	"github.com/ragcite/ragcite/pkg/llm"
	"github.com/ragcite/ragcite/pkg/rag"
	"github.com/ragcite/ragcite/pkg/rerank"
	"github.com/ragcite/ragcite/pkg/store"
	"github.com/ragcite/ragcite/server"
)

const version = "1.0.0"

func main() {
	// Missing .env is fine; real env vars still apply
	_ = godotenv.Load()

	var configPath, port, dbURL, ollamaURL, rerankKey string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&port, "port", "", "HTTP listen port")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	flag.StringVar(&ollamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&rerankKey, "rerank-key", "", "Rerank API key")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags override config file and environment
	if port != "" {
		config.Server.Port = port
	}
	if dbURL != "" {
		config.Database.URL = dbURL
	}
	if ollamaURL != "" {
		config.LLM.BaseURL = ollamaURL
	}
	if rerankKey != "" {
		config.Rerank.APIKey = rerankKey
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config error: %v", e)
		}
		os.Exit(1)
	}

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func run(config *cfgPkg.Config) error {
	chk, err := chunker.NewWithConfig(chunker.ChunkerConfig{
		ChunkSize:    config.Chunker.ChunkSize,
		ChunkOverlap: config.Chunker.ChunkOverlap,
	})
	if err != nil {
		return err
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:             config.Embedding.Model,
		BaseURL:           config.LLM.BaseURL,
		BatchSize:         config.Embedding.BatchSize,
		RequestsPerSecond: config.Embedding.RequestsPerSecond,
	})
	if err != nil {
		return err
	}

	generator, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		Model:       config.LLM.Model,
		BaseURL:     config.LLM.BaseURL,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
	})
	if err != nil {
		return err
	}

	rerankClient, err := rerank.NewClientWithConfig(rerank.ClientConfig{
		BaseURL: config.Rerank.BaseURL,
		APIKey:  config.Rerank.APIKey,
		Model:   config.Rerank.Model,
	})
	if err != nil {
		return err
	}

	pipeline := rerank.NewPipelineWithConfig(rerankClient, rerank.PipelineConfig{
		TopN:           config.Search.TopN,
		DedupThreshold: config.Search.DedupThreshold,
		MaxPerSource:   config.Search.MaxPerSource,
	})

	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString:    config.Database.URL,
		TableName:     config.Database.TableName,
		RegistryTable: config.Database.RegistryTable,
		VectorDim:     config.Database.VectorDim,
	})
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	ingester := rag.NewIngester(chk, embedder, vectorStore)
	synthesizer := rag.NewSynthesizer(embedder, vectorStore, pipeline, generator, rag.SynthesizerConfig{
		SearchLimit:     config.Search.Limit,
		SearchThreshold: config.Search.Threshold,
	})

	srv := server.New(server.Config{
		Port:        config.Server.Port,
		AllowOrigin: config.Server.AllowOrigin,
		Version:     version,
	}, ingester, synthesizer, vectorStore)

	return srv.ListenAndServe()
}
