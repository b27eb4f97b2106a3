package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/parkbase/parkbot/internal/extract"
	"github.com/parkbase/parkbot/internal/ingest"
	"github.com/parkbase/parkbot/internal/log"
)

// maxUploadSize bounds PDF uploads (16MB).
const maxUploadSize = 16 << 20

// Client-facing error strings for document uploads.
const (
	msgNoFile       = "No file uploaded"
	msgNoText       = "No text found in PDF"
	msgEmbedFailure = "Embedding generation mismatch"
)

// TextExtractor converts uploaded bytes to plain text.
type TextExtractor interface {
	Extract(ctx context.Context, pdf []byte) (string, error)
}

// Ingestor runs the chunk-embed-store pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, text, source string) (ingest.Result, error)
}

// documentsHandler handles POST /api/documents: multipart PDF upload into
// the knowledge base.
type documentsHandler struct {
	extractor TextExtractor
	pipeline  Ingestor
	logger    log.Logger
}

// uploadResponse reports a successful ingestion.
type uploadResponse struct {
	Success bool   `json:"success"`
	Source  string `json:"source"`
	Chunks  int    `json:"chunks"`
}

func (h *documentsHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, msgNoFile, h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNoFile, h.logger)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.logger.Debug("closing upload", "error", err)
		}
	}()

	pdf, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("reading upload failed", "file", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read uploaded file", h.logger)
		return
	}

	h.logger.Info("document upload", "file", header.Filename, "bytes", len(pdf))

	text, err := h.extractor.Extract(r.Context(), pdf)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			writeError(w, http.StatusBadRequest, msgNoText, h.logger)
			return
		}
		h.logger.Error("text extraction failed", "file", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to extract text from PDF", h.logger)
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), text, header.Filename)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrEmptyDocument):
			writeError(w, http.StatusBadRequest, msgNoText, h.logger)
		case errors.Is(err, ingest.ErrEmbeddingMismatch):
			h.logger.Error("ingestion failed", "file", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, msgEmbedFailure, h.logger)
		default:
			h.logger.Error("ingestion failed", "file", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to ingest document", h.logger)
		}
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Source:  header.Filename,
		Chunks:  result.ChunkCount,
	}, h.logger)
}
