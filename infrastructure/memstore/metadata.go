package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
)

// MetadataStore is an in-memory unit record store.
type MetadataStore struct {
	mu      sync.RWMutex
	records map[string]unit.ExtractedUnit
}

// NewMetadataStore creates an empty MetadataStore.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{records: make(map[string]unit.ExtractedUnit)}
}

// Store upserts the record under id.
func (s *MetadataStore) Store(_ context.Context, id string, record unit.ExtractedUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = record
	return nil
}

// Find returns the record for id or store.ErrNotFound.
func (s *MetadataStore) Find(_ context.Context, id string) (unit.ExtractedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return unit.ExtractedUnit{}, store.NewError(store.BackendMetadata, store.ErrNotFound)
	}
	return record, nil
}

// FindBatch returns the records present for the given ids.
func (s *MetadataStore) FindBatch(_ context.Context, ids []string) (map[string]unit.ExtractedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]unit.ExtractedUnit, len(ids))
	for _, id := range ids {
		if record, ok := s.records[id]; ok {
			out[id] = record
		}
	}
	return out, nil
}

// FindByType returns every record of the given type, identifier-sorted.
func (s *MetadataStore) FindByType(_ context.Context, t unit.Type) ([]unit.ExtractedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []unit.ExtractedUnit
	for _, record := range s.records {
		if record.Type == t {
			out = append(out, record)
		}
	}
	sortUnits(out)
	return out, nil
}

// Search performs a case-insensitive substring match across the chosen
// fields. Matches are ordered identifier-match-first, then by identifier.
func (s *MetadataStore) Search(_ context.Context, query string, fields []store.SearchField, limit int) ([]unit.ExtractedUnit, error) {
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(query)
	if needle == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var idMatches, otherMatches []unit.ExtractedUnit
	for _, record := range s.records {
		matchedID := false
		matched := false
		for _, field := range fields {
			switch field {
			case store.FieldIdentifier:
				if strings.Contains(strings.ToLower(record.Identifier), needle) {
					matchedID = true
					matched = true
				}
			case store.FieldSourceCode:
				if strings.Contains(strings.ToLower(record.SourceCode), needle) {
					matched = true
				}
			case store.FieldFilePath:
				if strings.Contains(strings.ToLower(record.FilePath), needle) {
					matched = true
				}
			case store.FieldMetadata:
				if metadataContains(record.Metadata, needle) {
					matched = true
				}
			}
		}
		switch {
		case matchedID:
			idMatches = append(idMatches, record)
		case matched:
			otherMatches = append(otherMatches, record)
		}
	}

	sortUnits(idMatches)
	sortUnits(otherMatches)
	out := append(idMatches, otherMatches...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes the record for id.
func (s *MetadataStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Count returns the number of stored records.
func (s *MetadataStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// CountsByType returns the record count per unit type.
func (s *MetadataStore) CountsByType(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, record := range s.records {
		counts[string(record.Type)]++
	}
	return counts, nil
}

func metadataContains(metadata map[string]any, needle string) bool {
	if len(metadata) == 0 {
		return false
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), needle)
}

func sortUnits(units []unit.ExtractedUnit) {
	sort.Slice(units, func(i, j int) bool {
		return units[i].Identifier < units[j].Identifier
	})
}
