package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/parkbase/parkbot/db"
	"github.com/parkbase/parkbot/internal/chat"
	"github.com/parkbase/parkbot/internal/chunker"
	"github.com/parkbase/parkbot/internal/config"
	"github.com/parkbase/parkbot/internal/extract"
	"github.com/parkbase/parkbot/internal/ingest"
	"github.com/parkbase/parkbot/internal/knowledge"
	"github.com/parkbase/parkbot/internal/log"
	"github.com/parkbase/parkbot/internal/retriever"
)

// Setup creates and initializes the application. On failure, everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedderModel := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedderModel == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	embedder := knowledge.NewEmbedder(embedderModel)

	a.Store = knowledge.NewStore(knowledge.NewPgxQuerier(pool), logger,
		knowledge.WithBatchSize(cfg.UpsertBatchSize))

	splitter := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	a.Pipeline = ingest.New(splitter, embedder, a.Store, logger)

	a.Retriever = retriever.New(embedder, a.Store, retriever.Config{
		Limit:     cfg.SearchLimit,
		Threshold: cfg.SearchThreshold,
	}, logger)

	searchTool := chat.DefineSearchTool(g, a.Retriever, logger)

	assistant, err := chat.New(chat.Config{
		Genkit:      g,
		Tools:       []ai.Tool{searchTool},
		Logger:      logger,
		ModelName:   cfg.FullModelName(),
		MaxTurns:    cfg.MaxTurns,
		RateLimiter: rate.NewLimiter(rate.Limit(cfg.ModelRateLimit), cfg.ModelRateBurst),
	})
	if err != nil {
		return nil, fmt.Errorf("creating assistant: %w", err)
	}
	a.Assistant = assistant

	a.Extractor = extract.NewPDFText(cfg.PdftotextPath, logger)

	logger.Info("application initialized",
		"model", cfg.FullModelName(),
		"embedder", cfg.EmbedderModel,
	)
	return a, nil
}

// provideGenkit initializes Genkit with the Gemini plugin.
// GEMINI_API_KEY is read by the plugin from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
