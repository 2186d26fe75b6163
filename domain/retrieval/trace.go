package retrieval

import (
	"sync"
	"time"
)

// StageStatus reports how a pipeline stage finished.
type StageStatus string

// StageStatus values.
const (
	StageOK       StageStatus = "ok"
	StageDegraded StageStatus = "degraded"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
)

// StageEvent is one entry in a retrieval trace.
type StageEvent struct {
	Stage     string         `json:"stage"`
	Status    StageStatus    `json:"status"`
	ElapsedMS int64          `json:"elapsed_ms"`
	Counts    map[string]int `json:"counts,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Trace records the ordered stage events of one retrieval, with monotonic
// elapsed times from the start of the retrieval.
type Trace struct {
	mu       sync.Mutex
	started  time.Time
	events   []StageEvent
	degraded bool
	reason   string
}

// NewTrace starts a trace clocked from now.
func NewTrace() *Trace {
	return &Trace{started: time.Now()}
}

// Record appends a stage event stamped with the elapsed time since the
// trace began.
func (t *Trace) Record(stage string, status StageStatus, counts map[string]int, extra map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, StageEvent{
		Stage:     stage,
		Status:    status,
		ElapsedMS: time.Since(t.started).Milliseconds(),
		Counts:    counts,
		Extra:     extra,
	})
}

// MarkDegraded flags the trace and remembers the first degradation reason.
func (t *Trace) MarkDegraded(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.degraded {
		t.reason = reason
	}
	t.degraded = true
}

// Degraded reports whether any stage degraded.
func (t *Trace) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// Reason returns the first degradation reason.
func (t *Trace) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Events returns a copy of the recorded events.
func (t *Trace) Events() []StageEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StageEvent, len(t.events))
	copy(out, t.events)
	return out
}

// TotalMS returns the elapsed milliseconds since the trace began.
func (t *Trace) TotalMS() int64 {
	return time.Since(t.started).Milliseconds()
}

// Snapshot is the serializable form of a trace.
type Snapshot struct {
	Events   []StageEvent `json:"events"`
	TotalMS  int64        `json:"total_ms"`
	Degraded bool         `json:"degraded"`
	Reason   string       `json:"degradation_reason,omitempty"`
}

// Snapshot freezes the trace for inclusion in a RetrievalResult.
func (t *Trace) Snapshot() Snapshot {
	return Snapshot{
		Events:   t.Events(),
		TotalMS:  t.TotalMS(),
		Degraded: t.Degraded(),
		Reason:   t.Reason(),
	}
}
