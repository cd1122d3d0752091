package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paymentops/copilot/db"
	"github.com/paymentops/copilot/internal/agent"
	"github.com/paymentops/copilot/internal/chatstore"
	"github.com/paymentops/copilot/internal/config"
	"github.com/paymentops/copilot/internal/pipeline"
	"github.com/paymentops/copilot/internal/query"
	"github.com/paymentops/copilot/internal/schema"
)

// Setup creates and initializes the application. The transactions pool
// and the Gemini client are required; a chat database failure degrades
// the chat store instead of failing startup.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	catalog, err := schema.Load()
	if err != nil {
		return nil, fmt.Errorf("loading schema catalog: %w", err)
	}
	a.Catalog = catalog

	pool, err := provideDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to transactions database: %w", err)
	}
	a.DBPool = pool

	a.ChatStore, a.ChatPool = provideChatStore(ctx, cfg, logger)

	gemini, err := agent.NewGemini(ctx, agent.GeminiConfig{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.ModelName,
		Temperature: cfg.Temperature,
		Timeout:     cfg.AgentTimeout,
		Retry: agent.RetryConfig{
			MaxRetries:      cfg.AgentRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		RateLimit: cfg.AgentRateLimit,
		RateBurst: cfg.AgentRateBurst,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	executor := query.NewExecutor(pool, query.ExecutorConfig{
		Timeout: cfg.QueryTimeout,
		MaxRows: cfg.MaxQueryRows,
	}, logger)

	a.Pipeline = pipeline.New(
		agent.NewGenerator(gemini, logger),
		agent.NewSummarizer(gemini, logger),
		executor,
		a.ChatStore,
		catalog.PromptBlock(),
		pipeline.Config{HistoryTurns: cfg.HistoryTurns},
		logger,
	)

	logger.Info("application initialized", "config", cfg.Redacted(),
		"chat_store", a.ChatStore.Status().String())
	return a, nil
}

// provideDBPool creates a PostgreSQL connection pool and verifies it
// with a ping.
func provideDBPool(ctx context.Context, connURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connURL)
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

// provideChatStore initializes chat persistence. Any failure here
// degrades the store instead of propagating: the service answers
// questions with or without conversation history.
func provideChatStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*chatstore.Store, *pgxpool.Pool) {
	if !cfg.ChatDatabaseEnabled() {
		logger.Info("chat persistence disabled by configuration")
		return chatstore.NewDisabled(logger), nil
	}

	if err := db.Migrate(cfg.ChatDatabaseURL, logger); err != nil {
		logger.Warn("chat store migration failed, running without persistence", "error", err)
		return chatstore.NewUnavailable(err, logger), nil
	}

	pool, err := provideDBPool(ctx, cfg.ChatDatabaseURL)
	if err != nil {
		logger.Warn("chat database unreachable, running without persistence", "error", err)
		return chatstore.NewUnavailable(err, logger), nil
	}

	chatstore.EnsureIndex(ctx, pool, logger)

	return chatstore.New(chatstore.NewQuerier(pool), logger), pool
}
