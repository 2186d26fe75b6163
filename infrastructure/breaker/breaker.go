// Package breaker wraps the embedding provider behind a circuit breaker so
// a failing upstream degrades retrieval instead of stalling it.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Defaults match the pipeline's degradation contract: five consecutive
// failures open the circuit, and after the reset window a single probe
// request is allowed through.
const (
	DefaultThreshold = 5
	DefaultReset     = 60 * time.Second
)

// ErrOpen indicates the circuit is open and the call was not attempted.
var ErrOpen = errors.New("circuit open")

// Embedder is the subset of the provider contract the breaker guards.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// GuardedEmbedder runs every Embed call through a circuit breaker.
type GuardedEmbedder struct {
	inner   Embedder
	breaker *gobreaker.CircuitBreaker
}

// Option is a functional option for NewGuardedEmbedder.
type Option func(*settings)

type settings struct {
	threshold uint32
	reset     time.Duration
	logger    *slog.Logger
}

// WithThreshold sets the consecutive-failure count that opens the circuit.
func WithThreshold(n uint32) Option {
	return func(s *settings) { s.threshold = n }
}

// WithReset sets how long the circuit stays open before a probe.
func WithReset(d time.Duration) Option {
	return func(s *settings) { s.reset = d }
}

// WithLogger sets the logger used for state-change notices.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// NewGuardedEmbedder wraps inner with a circuit breaker.
func NewGuardedEmbedder(inner Embedder, opts ...Option) *GuardedEmbedder {
	return &GuardedEmbedder{inner: inner, breaker: newBreaker("embedding", nil, opts)}
}

// newBreaker builds a circuit breaker from the shared settings. isSuccessful
// lets a caller exempt expected errors from the failure count.
func newBreaker(name string, isSuccessful func(error) bool, opts []Option) *gobreaker.CircuitBreaker {
	s := settings{
		threshold: DefaultThreshold,
		reset:     DefaultReset,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.reset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.threshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// Dimension returns the inner embedder's vector dimension.
func (g *GuardedEmbedder) Dimension() int { return g.inner.Dimension() }

// Embed forwards to the inner embedder unless the circuit is open.
func (g *GuardedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	result, err := g.breaker.Execute(func() (any, error) {
		return g.inner.Embed(ctx, texts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrOpen
		}
		return nil, err
	}
	return result.([][]float64), nil
}

// State reports the current breaker state as a string.
func (g *GuardedEmbedder) State() string {
	return g.breaker.State().String()
}
