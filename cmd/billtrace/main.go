// billtrace turns raw congressional bill text into grounded plain-English
// analysis with verifiable provenance links.
package main

import (
	"fmt"
	"os"
	"strings"

	configfile "github.com/openuspolitics/billtrace/internal/adapters/driven/config/file"
	ollamaembed "github.com/openuspolitics/billtrace/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/openuspolitics/billtrace/internal/adapters/driven/embedding/openai"
	"github.com/openuspolitics/billtrace/internal/adapters/driven/index/memory"
	"github.com/openuspolitics/billtrace/internal/adapters/driven/llm/anthropic"
	openaillm "github.com/openuspolitics/billtrace/internal/adapters/driven/llm/openai"
	"github.com/openuspolitics/billtrace/internal/adapters/driven/storage/sqlite"
	"github.com/openuspolitics/billtrace/internal/adapters/driving/cli"
	"github.com/openuspolitics/billtrace/internal/chunker"
	"github.com/openuspolitics/billtrace/internal/classifier"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
	"github.com/openuspolitics/billtrace/internal/core/services"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	settings := configStore.Settings()

	cfg, err := settings.Pipeline()
	if err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", configStore.Path(), err)
	}

	embedder, err := buildEmbedder(settings.Embedding)
	if err != nil {
		return err
	}
	llm, cost, err := buildLLM(settings.LLM)
	if err != nil {
		return err
	}

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	pipeline := services.NewPipelineService(
		chunker.New(
			chunker.WithChunkSize(cfg.Chunker.ChunkSize),
			chunker.WithOverlap(cfg.Chunker.Overlap),
			chunker.WithTolerance(cfg.Chunker.BoundaryTolerance),
		),
		embedder,
		memory.NewVectorIndex(embedder.ModelName()),
		memory.NewLexicalIndex(),
		store,
		llm,
		cfg,
	)
	pipeline.SetClassifier(classifier.New())

	lineage := services.NewLineageTracker()
	pipeline.SetLineageTracker(lineage)

	cli.Configure(cli.Services{
		Pipeline:  pipeline,
		Retrieval: pipeline.Retrieval(),
		Report:    services.NewReportService(store),
		Lineage:   lineage,
		Cost:      cost,
	})
	cli.SetVersion(version)

	return cli.Execute()
}

// buildEmbedder constructs the configured embedding provider.
func buildEmbedder(s configfile.ProviderSettings) (driven.EmbeddingService, error) {
	switch strings.ToLower(s.Provider) {
	case "", "openai":
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  s.APIKey,
			BaseURL: s.BaseURL,
			Model:   s.Model,
		})
	case "ollama":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: s.BaseURL,
			Model:   s.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
}

// buildLLM constructs the configured language model provider. The cost
// reporter is the same adapter when it tracks usage.
func buildLLM(s configfile.ProviderSettings) (driven.LLMService, driven.CostReporter, error) {
	switch strings.ToLower(s.Provider) {
	case "", "anthropic":
		svc, err := anthropic.NewLLMService(anthropic.Config{
			APIKey:  s.APIKey,
			BaseURL: s.BaseURL,
			Model:   s.Model,
		})
		if err != nil {
			return nil, nil, err
		}
		return svc, svc, nil
	case "openai":
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  s.APIKey,
			BaseURL: s.BaseURL,
			Model:   s.Model,
		})
		if err != nil {
			return nil, nil, err
		}
		return svc, svc, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", s.Provider)
	}
}
