package console

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one line in the audit log.
type AuditEntry struct {
	ID            string         `json:"id"`
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	Confirmed     bool           `json:"confirmed"`
	ResultSummary string         `json:"result_summary"`
	Timestamp     string         `json:"timestamp"`
}

// AuditLogger appends JSON lines to a configured path. The parent
// directory is created on first write.
type AuditLogger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewAuditLogger creates an AuditLogger writing to path. An empty path
// disables logging.
func NewAuditLogger(path string) *AuditLogger {
	return &AuditLogger{path: path, now: time.Now}
}

// Record appends one entry. The timestamp is UTC ISO-8601.
func (a *AuditLogger) Record(tool string, params map[string]any, confirmed bool, resultSummary string) error {
	if a.path == "" {
		return nil
	}

	entry := AuditEntry{
		ID:            uuid.NewString(),
		Tool:          tool,
		Params:        params,
		Confirmed:     confirmed,
		ResultSummary: resultSummary,
		Timestamp:     a.now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
