// Package chat implements the tool-calling conversation loop. The assistant
// answers trampoline park questions grounded in the knowledge base via the
// searchKnowledgeBase tool.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/parkbase/parkbot/internal/log"
)

const (
	// DefaultModelName is the Gemini model used for conversation.
	DefaultModelName = "googleai/gemini-2.5-flash"

	// DefaultMaxTurns bounds the agentic tool-calling loop. The model gets
	// at most this many generate rounds per reply, tool calls included.
	DefaultMaxTurns = 3

	// FallbackMessage is returned when the model produces an empty response.
	FallbackMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Message is one turn of conversation history as clients submit it.
// Role is "user" or "model".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the complete result of one assistant reply.
type Response struct {
	FinalText    string            // Model's final text output
	ToolRequests []*ai.ToolRequest // Tool requests made during execution
}

// StreamCallback receives partial content as the model produces it.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Config contains all required parameters for the Assistant.
type Config struct {
	Genkit *genkit.Genkit
	Tools  []ai.Tool
	Logger log.Logger

	ModelName string // Defaults to DefaultModelName
	MaxTurns  int    // Defaults to DefaultMaxTurns

	RetryConfig RetryConfig   // Zero-value uses defaults
	RateLimiter *rate.Limiter // Optional: proactive rate limiting (nil = use default)
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Assistant is the conversational agent. It is stateless: conversation
// history travels with every request, so instances are safe for concurrent
// use.
type Assistant struct {
	g           *genkit.Genkit
	logger      log.Logger
	modelName   string
	maxTurns    int
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	toolRefs    []ai.ToolRef
}

// New creates an Assistant with the given configuration.
func New(cfg Config) (*Assistant, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.RetryConfig == (RetryConfig{}) {
		cfg.RetryConfig = DefaultRetryConfig()
	}
	// Default: 10 requests/sec sustained, burst of 30.
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = rate.NewLimiter(10, 30)
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	for i, tool := range cfg.Tools {
		toolRefs[i] = tool
	}

	return &Assistant{
		g:           cfg.Genkit,
		logger:      cfg.Logger,
		modelName:   cfg.ModelName,
		maxTurns:    cfg.MaxTurns,
		retryConfig: cfg.RetryConfig,
		rateLimiter: cfg.RateLimiter,
		toolRefs:    toolRefs,
	}, nil
}

// Reply runs one round of conversation. history must end with the user's
// latest message. When cb is non-nil, partial content is streamed to it
// before the full response returns.
//
// Tool calls happen inside the generate loop: the model decides when to
// search the knowledge base, up to MaxTurns rounds.
func (a *Assistant) Reply(ctx context.Context, history []Message, cb StreamCallback) (*Response, error) {
	messages := toGenkitMessages(history)

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(a.toolRefs...),
		ai.WithMaxTurns(a.maxTurns),
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(ai.ModelStreamCallback(cb)))
	}

	resp, err := a.generateWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		a.logger.Warn("model produced empty response, using fallback")
		text = FallbackMessage
	}

	toolRequests := resp.ToolRequests()
	a.logger.Debug("reply complete",
		"history_len", len(history),
		"tool_requests", len(toolRequests),
		"response_chars", len(text),
	)

	return &Response{FinalText: text, ToolRequests: toolRequests}, nil
}

// toGenkitMessages converts client history into Genkit messages. Unknown
// roles are treated as user turns.
func toGenkitMessages(history []Message) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "model", "assistant":
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return messages
}
