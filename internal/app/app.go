// Package app provides application initialization and dependency wiring.
// Setup builds the full component graph: database pool, Genkit, embedder,
// vector store, ingestion pipeline, retriever and assistant.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkbase/parkbot/internal/chat"
	"github.com/parkbase/parkbot/internal/config"
	"github.com/parkbase/parkbot/internal/extract"
	"github.com/parkbase/parkbot/internal/ingest"
	"github.com/parkbase/parkbot/internal/knowledge"
	"github.com/parkbase/parkbot/internal/log"
	"github.com/parkbase/parkbot/internal/retriever"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit *genkit.Genkit
	DBPool *pgxpool.Pool

	Store     *knowledge.Store
	Pipeline  *ingest.Pipeline
	Retriever *retriever.Retriever
	Assistant *chat.Assistant
	Extractor *extract.PDFText
}

// Close releases all resources.
func (a *App) Close() error {
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
