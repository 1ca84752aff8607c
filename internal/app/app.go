// Package app wires repositories, the embedding client and the use cases into
// the object graph shared by the worker and the operator CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"semantic-linker/internal/config"
	"semantic-linker/internal/infra/adapter/persistence/bolt"
	"semantic-linker/internal/infra/adapter/persistence/memory"
	pgRepo "semantic-linker/internal/infra/adapter/persistence/postgres"
	"semantic-linker/internal/infra/db"
	"semantic-linker/internal/infra/embedder"
	"semantic-linker/internal/repository"
	"semantic-linker/internal/resilience/circuitbreaker"
	"semantic-linker/internal/usecase/embedding"
	"semantic-linker/internal/usecase/reconcile"
	"semantic-linker/internal/usecase/render"
	"semantic-linker/internal/usecase/similarity"
)

// App is the assembled engine.
type App struct {
	DB         *sql.DB
	Breaker    *circuitbreaker.DBCircuitBreaker
	Articles   repository.ArticleSource
	Links      repository.LinkMap
	Embeddings *embedding.Store
	Similarity *similarity.Service
	Job        *reconcile.Job
	Runner     *reconcile.Runner
	Publisher  *render.Publisher

	closers []func() error
}

// New builds the engine on database. Reads of articles and embeddings go
// through a database circuit breaker; link map transactions use the pool directly.
func New(database *sql.DB, linker *config.LinkerConfig, emb *config.EmbedderConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		DB:      database,
		Breaker: circuitbreaker.NewDBCircuitBreaker(database),
	}

	embRepo, failRepo, err := a.embeddingRepos(linker)
	if err != nil {
		return nil, err
	}
	a.Embeddings = embedding.NewStore(embRepo, failRepo, embedding.ModelRegistry{
		Current:    linker.CurrentModelVersion,
		Dimensions: linker.ModelDimensions,
	})

	var simOpts []similarity.Option
	if linker.UseLSH {
		simOpts = append(simOpts, similarity.WithLSH(similarity.DefaultLSHConfig()))
	}
	a.Similarity = similarity.NewService(a.Embeddings, simOpts...)

	client, err := NewEmbedder(emb, linker)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Articles = pgRepo.NewArticleSourceRepo(a.Breaker, linker.ArticlesTable)
	a.Links = pgRepo.NewLinkEdgeRepo(database)

	a.Job, err = reconcile.NewJob(a.Articles, a.Embeddings, client, a.Similarity, a.Links,
		linker.Reconcile, reconcile.WithOverrides(linker.Overrides))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Runner = reconcile.NewRunner(a.Job, reconcile.WithLocker(db.NewAdvisoryLocker(database)))
	a.Publisher = render.NewPublisher(a.Links, nil)

	logger.Info("engine assembled",
		slog.String("embedding_store", linker.EmbeddingStore),
		slog.String("embedder", emb.Provider),
		slog.String("model_version", linker.CurrentModelVersion),
		slog.Bool("lsh", linker.UseLSH),
		slog.Int("workspace_overrides", len(linker.Overrides)))
	return a, nil
}

func (a *App) embeddingRepos(linker *config.LinkerConfig) (repository.EmbeddingRepository, repository.EmbeddingFailureRepository, error) {
	switch linker.EmbeddingStore {
	case config.StoreBolt:
		store, err := bolt.Open(linker.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store.Embeddings(), store.Failures(), nil
	case config.StoreMemory:
		return memory.NewEmbeddingRepo(), memory.NewEmbeddingFailureRepo(), nil
	case config.StorePostgres, "":
		return pgRepo.NewEmbeddingRepo(a.Breaker), pgRepo.NewEmbeddingFailureRepo(a.Breaker), nil
	}
	return nil, nil, fmt.Errorf("unknown embedding store %q", linker.EmbeddingStore)
}

// NewEmbedder creates the embedding client selected by cfg.
func NewEmbedder(cfg *config.EmbedderConfig, linker *config.LinkerConfig) (reconcile.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderHashing:
		return embedder.NewHashing(linker.ModelDimensions), nil
	case config.ProviderOpenAI, "":
		client, err := embedder.NewOpenAI(embedder.OpenAIConfig{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Models:            cfg.Models,
			Dimensions:        linker.ModelDimensions,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			Timeout:           cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
}

// Ping checks the database through the circuit breaker.
func (a *App) Ping(ctx context.Context) error {
	if err := a.Breaker.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// Close releases resources opened by New. The database is owned by the caller.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
