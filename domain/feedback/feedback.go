// Package feedback provides the append-only ratings/gaps log and pattern
// mining over it.
package feedback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record kinds.
const (
	KindRating = "rating"
	KindGap    = "gap"
)

// Record is one JSON-lines entry. Rating records carry Query/Score/Comment;
// gap records carry Query/MissingUnit/UnitType.
type Record struct {
	Kind        string    `json:"kind"`
	Query       string    `json:"query"`
	Score       int       `json:"score,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	MissingUnit string    `json:"missing_unit,omitempty"`
	UnitType    string    `json:"unit_type,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Store appends feedback records to a JSON-lines file. Appends are
// serialized; reads re-scan the file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store writing to path. The parent directory is
// created on first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// AddRating appends a rating record. Score must be in 1..5.
func (s *Store) AddRating(query string, score int, comment string) error {
	if score < 1 || score > 5 {
		return fmt.Errorf("rating score must be in 1..5, got %d", score)
	}
	return s.append(Record{
		Kind:      KindRating,
		Query:     query,
		Score:     score,
		Comment:   comment,
		Timestamp: time.Now().UTC(),
	})
}

// AddGap appends a gap record naming a unit the retrieval missed.
func (s *Store) AddGap(query, missingUnit, unitType string) error {
	return s.append(Record{
		Kind:        KindGap,
		Query:       query,
		MissingUnit: missingUnit,
		UnitType:    unitType,
		Timestamp:   time.Now().UTC(),
	})
}

func (s *Store) append(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal feedback record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create feedback dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append feedback record: %w", err)
	}
	return nil
}

// All returns every record in append order. A missing file yields an
// empty slice.
func (s *Store) All() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			// A torn trailing line from a crashed writer is skipped.
			continue
		}
		records = append(records, r)
	}
	return records, scanner.Err()
}

// Ratings returns only the rating records.
func (s *Store) Ratings() ([]Record, error) {
	return s.filter(KindRating)
}

// Gaps returns only the gap records.
func (s *Store) Gaps() ([]Record, error) {
	return s.filter(KindGap)
}

func (s *Store) filter(kind string) ([]Record, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range all {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

// AverageScore returns the mean rating score, or 0 with ok=false when no
// ratings exist.
func (s *Store) AverageScore() (float64, bool, error) {
	ratings, err := s.Ratings()
	if err != nil {
		return 0, false, err
	}
	if len(ratings) == 0 {
		return 0, false, nil
	}
	var total int
	for _, r := range ratings {
		total += r.Score
	}
	return float64(total) / float64(len(ratings)), true, nil
}
