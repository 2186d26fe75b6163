package unit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Manifest{
		LanguageVersion: "3.3.0",
		ExtractedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		GitSHA:          "abc123",
		GitBranch:       "main",
		TotalUnits:      2,
		Counts:          map[string]int{"model": 1, "controller": 1},
	}

	if err := WriteManifest(dir, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.GitSHA != want.GitSHA || got.TotalUnits != want.TotalUnits {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if got.Counts["model"] != 1 {
		t.Errorf("expected model count 1, got %d", got.Counts["model"])
	}
}

func TestChangeManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := ChangeManifest{
		GeneratedAt:    time.Now().UTC(),
		GitSHA:         "def456",
		PreviousGitSHA: "abc123",
		Summary:        ChangeSummary{Added: 1, Modified: 1, Unchanged: 1, Total: 3},
		Changes: ChangeSet{
			Added:     []string{"Comment"},
			Modified:  []string{"User"},
			Unchanged: []string{"Post"},
		},
		Hashes: map[string]string{"User": "h1", "Post": "h2", "Comment": "h3"},
	}

	if err := WriteChangeManifest(dir, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadChangeManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.GitSHA != "def456" || got.PreviousGitSHA != "abc123" {
		t.Errorf("expected SHAs preserved, got %+v", got)
	}
	if len(got.Hashes) != 3 {
		t.Errorf("expected 3 hashes, got %d", len(got.Hashes))
	}
}

func TestReadChangeManifest_Missing(t *testing.T) {
	_, err := ReadChangeManifest(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestWriteJSONAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteJSONAtomic(filepath.Join(dir, "out.json"), map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected only out.json, got %d entries", len(entries))
	}
}
