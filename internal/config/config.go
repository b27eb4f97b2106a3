// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.parkbot/config.yaml)
//  3. Default values
//
// Security: the PostgreSQL password is masked in MarshalJSON and String.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; only its
// presence is validated here.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidSearch indicates search limit or threshold is out of range.
	ErrInvalidSearch = errors.New("invalid search configuration")

	// ErrInvalidMaxTurns indicates max turns is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidRateLimit indicates the model rate limit is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit configuration")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")
)

const (
	// DefaultModelName is the default Gemini chat model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, truncated
	// to 768 via OutputDimensionality to match the pgvector schema.
	DefaultEmbedderModel = "gemini-embedding-001"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// AI configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	MaxTurns      int    `mapstructure:"max_turns" json:"max_turns"`

	// ModelRateLimit is the sustained model request rate (requests/sec);
	// ModelRateBurst is the burst allowance on top of it.
	ModelRateLimit float64 `mapstructure:"model_rate_limit" json:"model_rate_limit"`
	ModelRateBurst int     `mapstructure:"model_rate_burst" json:"model_rate_burst"`

	// Ingestion configuration
	ChunkSize       int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	UpsertBatchSize int    `mapstructure:"upsert_batch_size" json:"upsert_batch_size"`
	PdftotextPath   string `mapstructure:"pdftotext_path" json:"pdftotext_path"`

	// Retrieval configuration
	SearchLimit     int     `mapstructure:"search_limit" json:"search_limit"`
	SearchThreshold float32 `mapstructure:"search_threshold" json:"search_threshold"`

	// Server configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".parkbot")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("max_turns", 3)
	v.SetDefault("model_rate_limit", 10)
	v.SetDefault("model_rate_burst", 30)

	v.SetDefault("chunk_size", 800)
	v.SetDefault("chunk_overlap", 100)
	v.SetDefault("upsert_batch_size", 100)
	v.SetDefault("pdftotext_path", "")

	v.SetDefault("search_limit", 5)
	v.SetDefault("search_threshold", 0.6)

	v.SetDefault("listen_addr", ":8080")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "parkbot")
	v.SetDefault("postgres_password", "parkbot_dev_password")
	v.SetDefault("postgres_db_name", "parkbot")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "PARKBOT_MODEL_NAME")
	mustBind("embedder_model", "PARKBOT_EMBEDDER_MODEL")
	mustBind("listen_addr", "PARKBOT_LISTEN_ADDR")
	mustBind("pdftotext_path", "PARKBOT_PDFTOTEXT_PATH")
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return ErrInvalidModelName
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return ErrInvalidEmbedderModel
	}
	if c.MaxTurns < 1 || c.MaxTurns > 10 {
		return fmt.Errorf("%w: %d (must be 1-10)", ErrInvalidMaxTurns, c.MaxTurns)
	}
	if c.ModelRateLimit <= 0 {
		return fmt.Errorf("%w: model_rate_limit %v (must be positive)", ErrInvalidRateLimit, c.ModelRateLimit)
	}
	if c.ModelRateBurst < 1 {
		return fmt.Errorf("%w: model_rate_burst %d (must be at least 1)", ErrInvalidRateLimit, c.ModelRateBurst)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.UpsertBatchSize < 1 {
		return fmt.Errorf("%w: upsert_batch_size %d", ErrInvalidChunking, c.UpsertBatchSize)
	}

	if c.SearchLimit < 1 || c.SearchLimit > 50 {
		return fmt.Errorf("%w: search_limit %d (must be 1-50)", ErrInvalidSearch, c.SearchLimit)
	}
	if c.SearchThreshold < 0 || c.SearchThreshold > 1 {
		return fmt.Errorf("%w: search_threshold %v (must be 0-1)", ErrInvalidSearch, c.SearchThreshold)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return ErrInvalidPostgresDBName
	}

	return nil
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash". Already-qualified names pass through.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
