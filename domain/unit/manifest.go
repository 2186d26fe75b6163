package unit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest describes one extraction run: what was written to the index
// directory and from which revision.
type Manifest struct {
	RailsVersion    string         `json:"rails_version,omitempty"`
	LanguageVersion string         `json:"language_version"`
	ExtractedAt     time.Time      `json:"extracted_at"`
	GitSHA          string         `json:"git_sha"`
	GitBranch       string         `json:"git_branch"`
	TotalUnits      int            `json:"total_units"`
	Counts          map[string]int `json:"counts"`
}

// ChangeSummary totals the buckets of a ChangeManifest.
type ChangeSummary struct {
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
	Total     int `json:"total"`
}

// ChangeSet lists identifiers per change bucket. The buckets are disjoint
// and together cover the current unit set plus the deleted identifiers.
type ChangeSet struct {
	Added     []string `json:"added"`
	Modified  []string `json:"modified"`
	Deleted   []string `json:"deleted"`
	Unchanged []string `json:"unchanged"`
}

// ChangeManifest is the content-hash diff between two extraction runs. The
// incremental indexer consumes it to decide what to re-embed and what to
// delete.
type ChangeManifest struct {
	GeneratedAt    time.Time         `json:"generated_at"`
	GitSHA         string            `json:"git_sha"`
	PreviousGitSHA string            `json:"previous_git_sha,omitempty"`
	Summary        ChangeSummary     `json:"summary"`
	Changes        ChangeSet         `json:"changes"`
	Hashes         map[string]string `json:"hashes"`
}

// File names under the index directory.
const (
	ManifestFileName       = "manifest.json"
	ChangeManifestFileName = "_change_manifest.json"
	GraphFileName          = "dependency_graph.json"
)

// WriteJSONAtomic marshals v and writes it to path via a temp file and
// rename, so readers never observe a partial document.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads manifest.json from the index directory.
func ReadManifest(indexDir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(indexDir, ManifestFileName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// WriteManifest writes manifest.json atomically.
func WriteManifest(indexDir string, m Manifest) error {
	return WriteJSONAtomic(filepath.Join(indexDir, ManifestFileName), m)
}

// ReadChangeManifest loads _change_manifest.json from the index directory.
// A missing file returns os.ErrNotExist; callers treat that as "full
// re-embed required".
func ReadChangeManifest(indexDir string) (ChangeManifest, error) {
	var m ChangeManifest
	data, err := os.ReadFile(filepath.Join(indexDir, ChangeManifestFileName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse change manifest: %w", err)
	}
	return m, nil
}

// WriteChangeManifest writes _change_manifest.json atomically.
func WriteChangeManifest(indexDir string, m ChangeManifest) error {
	return WriteJSONAtomic(filepath.Join(indexDir, ChangeManifestFileName), m)
}
