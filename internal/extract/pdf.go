// Package extract pulls plain text out of uploaded documents. PDF extraction
// shells out to pdftotext (poppler-utils) rather than parsing PDF in-process.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/parkbase/parkbot/internal/log"
)

var (
	// ErrPDFToolNotFound indicates the pdftotext binary is not installed.
	// Install poppler (brew install poppler / apt install poppler-utils).
	ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

	// ErrNoText indicates the PDF produced no extractable text, for example
	// a scanned document without an OCR layer.
	ErrNoText = errors.New("no text found in PDF")
)

// CommandRunner executes an external command and returns its stdout.
// Injected so tests run without a pdftotext install.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDFText extracts text from PDF bytes via pdftotext.
type PDFText struct {
	runner CommandRunner
	path   string
	logger log.Logger

	// binary resolution is deferred until first use so construction never
	// fails on machines without poppler.
	resolveOnce sync.Once
	resolved    string
	resolveErr  error
}

// NewPDFText creates an extractor that runs the real pdftotext binary.
// path overrides PATH lookup when non-empty.
func NewPDFText(path string, logger log.Logger) *PDFText {
	return NewPDFTextWithRunner(execRunner{}, path, logger)
}

// NewPDFTextWithRunner creates an extractor with an injected command runner.
func NewPDFTextWithRunner(runner CommandRunner, path string, logger log.Logger) *PDFText {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PDFText{runner: runner, path: path, logger: logger}
}

// Extract converts PDF bytes to plain text. The content is written to a
// temporary file because pdftotext wants a seekable input.
func (p *PDFText) Extract(ctx context.Context, pdf []byte) (string, error) {
	bin, err := p.binary()
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "parkbot-*.pdf")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			p.logger.Warn("failed to remove temp file", "path", tmp.Name(), "error", rmErr)
		}
	}()

	if _, err := tmp.Write(pdf); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	// "-" sends the text to stdout.
	out, err := p.runner.Run(ctx, bin, "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func (p *PDFText) binary() (string, error) {
	p.resolveOnce.Do(func() {
		if p.path != "" {
			p.resolved = p.path
			return
		}
		resolved, err := exec.LookPath("pdftotext")
		if err != nil {
			p.resolveErr = fmt.Errorf("%w: %w", ErrPDFToolNotFound, err)
			return
		}
		p.resolved = resolved
	})
	return p.resolved, p.resolveErr
}
