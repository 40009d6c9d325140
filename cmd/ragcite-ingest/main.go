package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/ragcite/ragcite/pkg/chunker"
	cfgPkg "github.com/ragcite/ragcite/pkg/config"
	"github.com/ragcite/ragcite/pkg/extract"
	"github.com/ragcite/ragcite/pkg/llm"
	"github.com/ragcite/ragcite/pkg/rag"
	"github.com/ragcite/ragcite/pkg/store"
)

var ingestible = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".html": true,
	".htm":  true,
}

func main() {
	_ = godotenv.Load()

	var configPath, dir string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&dir, "dir", "", "Directory to ingest recursively")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	paths := flag.Args()
	if dir != "" {
		found, err := collectFiles(dir)
		if err != nil {
			log.Fatalf("failed to scan %s: %v", dir, err)
		}
		paths = append(paths, found...)
	}

	if len(paths) == 0 {
		log.Fatal("nothing to ingest: pass file paths or -dir")
	}

	if err := run(config, paths); err != nil {
		log.Fatal(err)
	}
}

func collectFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && ingestible[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config *cfgPkg.Config, paths []string) error {
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

	color.Blue("\nIngesting %d files\n", len(paths))
	bar := getProgressBar(len(paths), "Ingesting documents...")

	ctx := context.Background()
	var ingested, skipped, failed, totalChunks int

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			color.Red("\n%s: %v", path, err)
			failed++
			bar.Add(1)
			continue
		}

		text, err := extract.FromFile(path, data)
		if err != nil {
			color.Red("\n%s: %v", path, err)
			failed++
			bar.Add(1)
			continue
		}

		result, err := ingester.Ingest(ctx, text, filepath.Base(path))
		if err != nil {
			color.Red("\n%s: %v", path, err)
			failed++
			bar.Add(1)
			continue
		}

		switch result.Status {
		case rag.StatusIngested:
			ingested++
			totalChunks += result.Chunks
		case rag.StatusSkipped:
			skipped++
		}
		bar.Add(1)
	}
	bar.Finish()
	fmt.Println()

	color.Green("✓ Ingested %d files (%d chunks)", ingested, totalChunks)
	if skipped > 0 {
		color.Yellow("– Skipped %d duplicates", skipped)
	}
	if failed > 0 {
		color.Red("✗ Failed %d files", failed)
		return fmt.Errorf("%d files failed to ingest", failed)
	}

	return nil
}
