package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces codescope variables; spec-mandated variables
// (CODEBASE_INDEX_DIR, CODEBASE_INDEX_CONFIG, provider API keys) are read
// unprefixed.
const envPrefix = "CODESCOPE"

// envSettings holds all environment-based configuration.
type envSettings struct {
	// Host is the server host to bind to.
	// Env: CODESCOPE_HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: CODESCOPE_PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// IndexDir is overridden by CODEBASE_INDEX_DIR when set.
	IndexDir string `envconfig:"INDEX_DIR"`

	// ConsoleConfig is overridden by CODEBASE_INDEX_CONFIG when set.
	ConsoleConfig string `envconfig:"CONSOLE_CONFIG"`

	// DBURL is the index database URL (sqlite://path or postgres://...).
	DBURL string `envconfig:"DB_URL"`

	// AppDBURL is the live application database URL for the console.
	AppDBURL string `envconfig:"APP_DB_URL"`

	// LogLevel is the log verbosity level.
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (text or json).
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Format is the context output format (markdown, claude, plain, json).
	Format string `envconfig:"FORMAT" default:"markdown"`

	// EmbeddingBaseURL overrides the embedding endpoint.
	EmbeddingBaseURL string `envconfig:"EMBEDDING_BASE_URL"`

	// EmbeddingModel is the embedding model identifier.
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`

	// TokenBudget is the default context token budget.
	TokenBudget int `envconfig:"TOKEN_BUDGET" default:"8000"`

	// SearchLimit is the default search result limit.
	SearchLimit int `envconfig:"SEARCH_LIMIT" default:"20"`

	// Cooldown is the write-action cooldown.
	Cooldown time.Duration `envconfig:"COOLDOWN" default:"60s"`

	// BreakerThreshold is the circuit breaker failure threshold.
	BreakerThreshold int `envconfig:"BREAKER_THRESHOLD" default:"5"`

	// BreakerReset is the circuit breaker reset timeout.
	BreakerReset time.Duration `envconfig:"BREAKER_RESET" default:"60s"`

	// HandlerDeadline is the hard per-tool-call deadline.
	HandlerDeadline time.Duration `envconfig:"HANDLER_DEADLINE" default:"60s"`

	// AuditLogPath is the console audit log path.
	AuditLogPath string `envconfig:"AUDIT_LOG"`

	// FeedbackLogPath is the feedback log path.
	FeedbackLogPath string `envconfig:"FEEDBACK_LOG"`

	// RedisURL is the application Redis URL for console introspection.
	RedisURL string `envconfig:"REDIS_URL"`

	// Unprefixed, spec-mandated variables.
	OpenAIKey string `ignored:"true"`
	VoyageKey string `ignored:"true"`
	CohereKey string `ignored:"true"`
}

func parseEnv() (envSettings, error) {
	var env envSettings
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return env, err
	}

	// Spec-level variables win over the prefixed ones.
	if dir := os.Getenv("CODEBASE_INDEX_DIR"); dir != "" {
		env.IndexDir = dir
	}
	if path := os.Getenv("CODEBASE_INDEX_CONFIG"); path != "" {
		env.ConsoleConfig = path
	}
	env.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	env.VoyageKey = os.Getenv("VOYAGE_API_KEY")
	env.CohereKey = os.Getenv("COHERE_API_KEY")
	return env, nil
}
