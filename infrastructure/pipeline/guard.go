// Package pipeline controls the write side of the index: change detection,
// incremental re-embedding, and rate limiting of operator-triggered runs.
package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codescope/codescope/domain/unit"
)

// Kind names a guarded pipeline operation.
type Kind string

// Kind values.
const (
	KindExtraction Kind = "extraction"
	KindEmbedding  Kind = "embedding"
)

// Guard state lives in the index directory next to the manifests. The
// leading underscore keeps it out of unit-file listings.
const StateFileName = "_pipeline_state.json"

// DefaultCooldown is the minimum gap between runs of the same kind.
const DefaultCooldown = 60 * time.Second

// Guard rate-limits pipeline operations per kind. Last-run timestamps are
// persisted so the cooldown survives process restarts.
type Guard struct {
	mu       sync.Mutex
	path     string
	cooldown time.Duration
	now      func() time.Time
}

// NewGuard creates a Guard storing state under indexDir. A cooldown <= 0
// falls back to DefaultCooldown.
func NewGuard(indexDir string, cooldown time.Duration) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Guard{
		path:     filepath.Join(indexDir, StateFileName),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Allow reports whether kind may run now. A missing or unreadable state
// file counts as "never ran".
func (g *Guard) Allow(kind Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.readState()[kind]
	if !ok {
		return true
	}
	return g.now().Sub(last) >= g.cooldown
}

// Record stores now as the last-run timestamp for kind.
func (g *Guard) Record(kind Kind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	state := g.readState()
	state[kind] = g.now().UTC()
	return unit.WriteJSONAtomic(g.path, state)
}

// Remaining returns how long until kind is allowed again; zero when it may
// run now.
func (g *Guard) Remaining(kind Kind) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.readState()[kind]
	if !ok {
		return 0
	}
	remaining := g.cooldown - g.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Cooldown returns the configured cooldown.
func (g *Guard) Cooldown() time.Duration { return g.cooldown }

func (g *Guard) readState() map[Kind]time.Time {
	state := make(map[Kind]time.Time)
	data, err := os.ReadFile(g.path)
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return make(map[Kind]time.Time)
	}
	return state
}
