package codescope

import (
	"context"

	"github.com/codescope/codescope/infrastructure/console"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/log"
)

// Embedder is the provider contract a custom embedding backend must meet.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	appConfig    config.AppConfig
	haveConfig   bool
	envFile      string
	inMemory     bool
	embedder     Embedder
	logger       *log.Logger
	confirmation *console.Confirmation
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig supplies a pre-loaded configuration instead of reading the
// environment.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.appConfig = cfg
		c.haveConfig = true
	}
}

// WithEnvFile seeds the environment from a .env file before loading
// configuration. Ignored when WithConfig is used.
func WithEnvFile(path string) Option {
	return func(c *clientConfig) { c.envFile = path }
}

// WithInMemoryStores uses in-memory stores instead of the database. Useful
// for tests and for ephemeral one-shot runs.
func WithInMemoryStores() Option {
	return func(c *clientConfig) { c.inMemory = true }
}

// WithEmbedder sets a custom embedding provider. It is still wrapped in the
// circuit breaker.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) { c.embedder = e }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithConfirmation overrides the console confirmation gate; the default
// comes from the console config file.
func WithConfirmation(confirmation *console.Confirmation) Option {
	return func(c *clientConfig) { c.confirmation = confirmation }
}
