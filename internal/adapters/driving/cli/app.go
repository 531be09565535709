package cli

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/config/file"
	embollama "github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/embedding/ollama"
	embopenai "github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/embedding/openai"
	llmanthropic "github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/llm/anthropic"
	llmollama "github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/llm/ollama"
	llmopenai "github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tabletalk-cli/internal/core/services"
)

// app wires adapters and services from the loaded configuration.
// Each command builds one and closes it when done.
type app struct {
	cfg         domain.Config
	configStore *file.ConfigStore
	embedder    driven.EmbeddingService
	store       driven.VectorStore
	providers   []services.LLMProvider
}

// newApp loads configuration and builds the embedding and storage
// adapters. LLM providers are built lazily because not every command
// needs one.
func newApp(ctx context.Context) (*app, error) {
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening config store: %w", err)
	}

	cfg, err := configStore.Load()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, configStore: configStore}

	if a.embedder, err = buildEmbedder(cfg.Embedding); err != nil {
		return nil, err
	}
	if a.store, err = buildStore(ctx, cfg.Storage, a.embedder.Dimensions()); err != nil {
		a.embedder.Close()
		return nil, err
	}
	return a, nil
}

// close releases adapter resources.
func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
	for _, p := range a.providers {
		p.Service.Close()
	}
}

// ingestor assembles the ingestion service.
func (a *app) ingestor() *services.IngestService {
	var limiter *rate.Limiter
	if a.cfg.Embedding.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.cfg.Embedding.RatePerSecond), 1)
	}

	svc := services.NewIngestService(a.embedder, a.store, a.cfg.Chunking, limiter)
	if a.cfg.Embedding.BatchSize > 0 {
		svc.SetBatchSizes(a.cfg.Embedding.BatchSize, 0)
	}
	return svc
}

// statistician assembles the ground-truth service.
func (a *app) statistician() *services.GroundTruthService {
	return services.NewGroundTruthService(a.store)
}

// assistant assembles the full query pipeline.
func (a *app) assistant() (*services.Orchestrator, error) {
	providers, err := a.llmProviders()
	if err != nil {
		return nil, err
	}

	return services.NewOrchestrator(
		services.NewClassifier(a.cfg.Classifier),
		services.NewRetriever(a.embedder, a.store),
		services.NewGroundTruthService(a.store),
		services.NewLLMGateway(providers),
		services.NewGuardrailValidator(a.cfg.Guardrail),
		a.cfg.LLM,
	), nil
}

// llmProviders builds the configured provider registry in config order.
func (a *app) llmProviders() ([]services.LLMProvider, error) {
	if a.providers != nil {
		return a.providers, nil
	}

	for _, pc := range a.cfg.LLM.Providers {
		svc, err := buildLLM(pc)
		if err != nil {
			return nil, err
		}
		a.providers = append(a.providers, services.LLMProvider{
			Name:    pc.Provider.String(),
			Service: svc,
		})
	}
	if len(a.providers) == 0 {
		return nil, fmt.Errorf("%w: no LLM providers configured", domain.ErrLLMUnavailable)
	}
	return a.providers, nil
}

func buildEmbedder(cfg domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case domain.AIProviderOllama, "":
		return embollama.NewEmbeddingService(embollama.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		return embopenai.NewEmbeddingService(embopenai.Config{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
}

func buildStore(ctx context.Context, cfg domain.StorageSettings, dimensions int) (driven.VectorStore, error) {
	switch cfg.Backend {
	case domain.StorageSQLite, "":
		return sqlite.NewVectorStore(cfg.DataDir, dimensions)

	case domain.StorageMemory:
		return memory.NewVectorStore(dimensions), nil

	case domain.StorageQdrant:
		return qdrant.NewVectorStore(ctx, qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			Collection: cfg.QdrantCollection,
			Dimensions: dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported storage backend %q", domain.ErrInvalidInput, cfg.Backend)
	}
}

func buildLLM(cfg domain.LLMProviderSettings) (driven.LLMService, error) {
	switch cfg.Provider {
	case domain.AIProviderOllama:
		return llmollama.NewLLMService(llmollama.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return llmopenai.NewLLMService(llmopenai.Config{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})

	case domain.AIProviderAnthropic:
		return llmanthropic.NewLLMService(llmanthropic.Config{
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
}
