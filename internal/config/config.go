// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 8080
	DefaultLogLevel         = "INFO"
	DefaultLogFormat        = "text"
	DefaultFormat           = "markdown"
	DefaultTokenBudget      = 8000
	DefaultSearchLimit      = 20
	DefaultCooldown         = 60 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerReset     = 60 * time.Second
	DefaultEmbeddingModel   = "text-embedding-3-small"
	DefaultHandlerDeadline  = 60 * time.Second
)

// AppConfig is the resolved application configuration. It is immutable
// after Load; components receive what they need through constructors.
type AppConfig struct {
	host             string
	port             int
	indexDir         string
	consoleConfig    string
	dbURL            string
	logLevel         string
	logFormat        string
	format           string
	openAIKey        string
	voyageKey        string
	cohereKey        string
	embeddingBaseURL string
	embeddingModel   string
	tokenBudget      int
	searchLimit      int
	cooldown         time.Duration
	breakerThreshold int
	breakerReset     time.Duration
	handlerDeadline  time.Duration
	auditLogPath     string
	feedbackLogPath  string
	redisURL         string
	appDBURL         string
}

// Host returns the server bind host.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port.
func (c AppConfig) Port() int { return c.port }

// Addr returns host:port.
func (c AppConfig) Addr() string { return fmt.Sprintf("%s:%d", c.host, c.port) }

// IndexDir returns the index directory path.
func (c AppConfig) IndexDir() string { return c.indexDir }

// ConsoleConfigPath returns the console YAML config path.
func (c AppConfig) ConsoleConfigPath() string { return c.consoleConfig }

// DBURL returns the index database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// AppDBURL returns the live application database URL for the console.
func (c AppConfig) AppDBURL() string { return c.appDBURL }

// LogLevel returns the log verbosity level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format (text or json).
func (c AppConfig) LogFormat() string { return c.logFormat }

// Format returns the context output format (markdown, claude, plain, json).
// Formatter selection is explicit configuration, never inferred from the
// calling agent.
func (c AppConfig) Format() string { return c.format }

// OpenAIKey returns the OpenAI API key.
func (c AppConfig) OpenAIKey() string { return c.openAIKey }

// VoyageKey returns the Voyage API key.
func (c AppConfig) VoyageKey() string { return c.voyageKey }

// CohereKey returns the Cohere API key.
func (c AppConfig) CohereKey() string { return c.cohereKey }

// EmbeddingBaseURL returns the embedding endpoint base URL override.
func (c AppConfig) EmbeddingBaseURL() string { return c.embeddingBaseURL }

// EmbeddingModel returns the embedding model identifier.
func (c AppConfig) EmbeddingModel() string { return c.embeddingModel }

// TokenBudget returns the default context token budget.
func (c AppConfig) TokenBudget() int { return c.tokenBudget }

// SearchLimit returns the default search result limit.
func (c AppConfig) SearchLimit() int { return c.searchLimit }

// Cooldown returns the pipeline write-action cooldown.
func (c AppConfig) Cooldown() time.Duration { return c.cooldown }

// BreakerThreshold returns the circuit breaker failure threshold.
func (c AppConfig) BreakerThreshold() int { return c.breakerThreshold }

// BreakerReset returns the circuit breaker reset timeout.
func (c AppConfig) BreakerReset() time.Duration { return c.breakerReset }

// HandlerDeadline returns the hard per-tool-call deadline.
func (c AppConfig) HandlerDeadline() time.Duration { return c.handlerDeadline }

// AuditLogPath returns the console audit log path.
func (c AppConfig) AuditLogPath() string { return c.auditLogPath }

// FeedbackLogPath returns the feedback log path.
func (c AppConfig) FeedbackLogPath() string { return c.feedbackLogPath }

// RedisURL returns the application Redis URL for console introspection.
func (c AppConfig) RedisURL() string { return c.redisURL }

// WithIndexDir returns a copy with the index directory overridden; used by
// CLI flags which take precedence over the environment.
func (c AppConfig) WithIndexDir(dir string) AppConfig {
	if dir != "" {
		c.indexDir = dir
	}
	return c
}

// WithAddr returns a copy with the bind host and port overridden. Empty
// host and zero port leave the configured values in place.
func (c AppConfig) WithAddr(host string, port int) AppConfig {
	if host != "" {
		c.host = host
	}
	if port > 0 {
		c.port = port
	}
	return c
}

// WithLogFormat returns a copy with the log format overridden.
func (c AppConfig) WithLogFormat(format string) AppConfig {
	if format != "" {
		c.logFormat = format
	}
	return c
}

// WithFormat returns a copy with the context output format overridden.
func (c AppConfig) WithFormat(format string) AppConfig {
	if format != "" {
		c.format = format
	}
	return c
}

// Load reads configuration from the environment (optionally seeded from a
// .env file) and applies defaults.
func Load(envFile string) (AppConfig, error) {
	if err := loadDotenv(envFile); err != nil {
		return AppConfig{}, err
	}

	env, err := parseEnv()
	if err != nil {
		return AppConfig{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := AppConfig{
		host:             env.Host,
		port:             env.Port,
		indexDir:         env.IndexDir,
		consoleConfig:    env.ConsoleConfig,
		dbURL:            env.DBURL,
		logLevel:         env.LogLevel,
		logFormat:        env.LogFormat,
		format:           env.Format,
		openAIKey:        env.OpenAIKey,
		voyageKey:        env.VoyageKey,
		cohereKey:        env.CohereKey,
		embeddingBaseURL: env.EmbeddingBaseURL,
		embeddingModel:   env.EmbeddingModel,
		tokenBudget:      env.TokenBudget,
		searchLimit:      env.SearchLimit,
		cooldown:         env.Cooldown,
		breakerThreshold: env.BreakerThreshold,
		breakerReset:     env.BreakerReset,
		handlerDeadline:  env.HandlerDeadline,
		auditLogPath:     env.AuditLogPath,
		feedbackLogPath:  env.FeedbackLogPath,
		redisURL:         env.RedisURL,
		appDBURL:         env.AppDBURL,
	}

	if cfg.indexDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return AppConfig{}, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.indexDir = filepath.Join(home, ".codescope", "index")
	}
	if cfg.dbURL == "" {
		cfg.dbURL = "sqlite://" + filepath.Join(cfg.indexDir, "codescope.db")
	}
	if cfg.auditLogPath == "" {
		cfg.auditLogPath = filepath.Join(cfg.indexDir, "audit.log")
	}
	if cfg.feedbackLogPath == "" {
		cfg.feedbackLogPath = filepath.Join(cfg.indexDir, "feedback.log")
	}
	return cfg, nil
}
