package console

import (
	"sync"
	"time"

	"github.com/codescope/codescope/infrastructure/toolserver"
)

// ConfirmationMode selects how confirmation requests are resolved.
type ConfirmationMode string

// ConfirmationMode values.
const (
	ModeAutoApprove ConfirmationMode = "auto_approve"
	ModeAutoDeny    ConfirmationMode = "auto_deny"
	ModeCallback    ConfirmationMode = "callback"
)

// ConfirmationRequest describes one guarded action awaiting approval.
type ConfirmationRequest struct {
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ConfirmationEntry is one resolved request in the history.
type ConfirmationEntry struct {
	Request  ConfirmationRequest `json:"request"`
	Approved bool                `json:"approved"`
}

// Confirmation gates guarded tools. Every request, approved or denied,
// lands in the in-memory history.
type Confirmation struct {
	mu       sync.Mutex
	mode     ConfirmationMode
	callback func(ConfirmationRequest) bool
	history  []ConfirmationEntry
	now      func() time.Time
}

// NewConfirmation creates a Confirmation in the given mode. Unknown modes
// fall back to auto_deny.
func NewConfirmation(mode ConfirmationMode) *Confirmation {
	switch mode {
	case ModeAutoApprove, ModeAutoDeny, ModeCallback:
	default:
		mode = ModeAutoDeny
	}
	return &Confirmation{mode: mode, now: time.Now}
}

// NewCallbackConfirmation creates a Confirmation that asks fn per request.
func NewCallbackConfirmation(fn func(ConfirmationRequest) bool) *Confirmation {
	return &Confirmation{mode: ModeCallback, callback: fn, now: time.Now}
}

// Confirm resolves a request. Denial returns a confirmation_denied error.
func (c *Confirmation) Confirm(tool string, params map[string]any, reason string) error {
	req := ConfirmationRequest{
		Tool:      tool,
		Params:    params,
		Reason:    reason,
		Timestamp: c.now().UTC(),
	}

	approved := false
	switch c.mode {
	case ModeAutoApprove:
		approved = true
	case ModeCallback:
		if c.callback != nil {
			approved = c.callback(req)
		}
	}

	c.mu.Lock()
	c.history = append(c.history, ConfirmationEntry{Request: req, Approved: approved})
	c.mu.Unlock()

	if !approved {
		return toolserver.Errorf(toolserver.KindConfirmationDenied,
			"confirmation denied for %s", tool)
	}
	return nil
}

// History returns a copy of every resolved request.
func (c *Confirmation) History() []ConfirmationEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConfirmationEntry, len(c.history))
	copy(out, c.history)
	return out
}
