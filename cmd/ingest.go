package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/parkbase/parkbot/internal/app"
	"github.com/parkbase/parkbot/internal/config"
	"github.com/parkbase/parkbot/internal/log"
)

// runIngest indexes a single PDF file into the knowledge base from the
// command line, without going through the HTTP API.
func runIngest(logger log.Logger) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: parkbot ingest <file.pdf>")
	}
	path := os.Args[2]

	if err := checkRequiredEnv(); err != nil {
		return err
	}

	pdf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	text, err := a.Extractor.Extract(ctx, pdf)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}

	result, err := a.Pipeline.Ingest(ctx, text, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("ingesting document: %w", err)
	}

	fmt.Printf("Indexed %s: %d chunks\n", filepath.Base(path), result.ChunkCount)
	return nil
}
