package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/parkbase/parkbot/internal/log"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()

	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries should be positive, got %d", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 {
		t.Errorf("InitialInterval should be positive, got %v", cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		t.Error("MaxInterval should be >= InitialInterval")
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"rate limit error", errors.New("rate limit exceeded"), true},
		{"quota exceeded error", errors.New("quota exceeded for project"), true},
		{"429 status code", errors.New("HTTP 429: Too Many Requests"), true},
		{"500 server error", errors.New("HTTP 500 Internal Server Error"), true},
		{"503 unavailable", errors.New("503 Service Unavailable"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"timeout error", errors.New("request timeout"), true},
		{"case insensitive", errors.New("RATE LIMIT reached"), true},
		{"invalid API key", errors.New("invalid API key"), false},
		{"400 bad request", errors.New("HTTP 400 Bad Request"), false},
		{"401 unauthorized", errors.New("HTTP 401 Unauthorized"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retryableError(tt.err); got != tt.expected {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestGenerateWithRetry_RateLimiterGatesAttempts(t *testing.T) {
	t.Parallel()

	// Burst token consumed and the next one an hour away: the limiter must
	// block the attempt before any model call happens.
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	if !limiter.Allow() {
		t.Fatal("expected a burst token to be available")
	}

	a := &Assistant{
		logger:      log.NewNop(),
		retryConfig: DefaultRetryConfig(),
		rateLimiter: limiter,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.generateWithRetry(ctx, nil)
	if err == nil {
		t.Fatal("generateWithRetry() = nil error, want rate limit failure")
	}
	if !strings.Contains(err.Error(), "rate limit wait") {
		t.Errorf("generateWithRetry() error = %v, want rate limit wait failure", err)
	}
}

func TestGenerateWithRetry_CanceledContextStopsBeforeModelCall(t *testing.T) {
	t.Parallel()

	a := &Assistant{
		logger:      log.NewNop(),
		retryConfig: DefaultRetryConfig(),
		rateLimiter: rate.NewLimiter(10, 30),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.generateWithRetry(ctx, nil)
	if err == nil {
		t.Fatal("generateWithRetry() = nil error, want canceled context failure")
	}
	if !strings.Contains(err.Error(), "rate limit wait") {
		t.Errorf("generateWithRetry() error = %v, want rate limit wait failure", err)
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		s        string
		substrs  []string
		expected bool
	}{
		{"empty string", "", []string{"foo"}, false},
		{"empty substrs", "foo bar", []string{}, false},
		{"contains first", "foo bar baz", []string{"foo", "qux"}, true},
		{"contains last", "foo bar baz", []string{"qux", "baz"}, true},
		{"case insensitive", "FOO BAR BAZ", []string{"foo"}, true},
		{"no match", "foo bar baz", []string{"qux", "quux"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := containsAny(tt.s, tt.substrs...); got != tt.expected {
				t.Errorf("containsAny(%q, %v) = %v, want %v", tt.s, tt.substrs, got, tt.expected)
			}
		})
	}
}
