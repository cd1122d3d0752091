// Package app assembles the copilot's components: configuration,
// logging, database pools, the Gemini client, the chat store, and the
// question-answering pipeline.
package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paymentops/copilot/internal/chatstore"
	"github.com/paymentops/copilot/internal/config"
	"github.com/paymentops/copilot/internal/pipeline"
	"github.com/paymentops/copilot/internal/schema"
)

// App holds the initialized application components.
// Call Close() to release resources.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// DBPool is the read-only pool over the transactions dataset.
	DBPool *pgxpool.Pool

	// ChatPool is the pool over the chat database. Nil when the chat
	// store is disabled or unavailable.
	ChatPool *pgxpool.Pool

	ChatStore *chatstore.Store
	Catalog   *schema.Catalog
	Pipeline  *pipeline.Pipeline
}

// Close releases all resources. Safe to call on a partially
// initialized App and safe to call more than once.
func (a *App) Close() error {
	if a.ChatPool != nil {
		a.ChatPool.Close()
		a.ChatPool = nil
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		a.DBPool = nil
	}
	return nil
}
