package pipeline

import (
	"sort"
	"time"

	"github.com/codescope/codescope/domain/unit"
)

// Invalidator diffs an extraction run against the previous change manifest
// by content hash and applies the transitive invalidation rules.
type Invalidator struct {
	now func() time.Time
}

// NewInvalidator creates an Invalidator.
func NewInvalidator() *Invalidator {
	return &Invalidator{now: time.Now}
}

// Diff buckets units against the previous hashes:
//
//	added:     not in previous
//	modified:  hash differs
//	deleted:   present previously, absent now
//	unchanged: same hash
//
// Two transitive rules promote unchanged units to modified: a changed
// concern invalidates every unit that includes it (concern bodies are
// inlined at extraction), and a changed migration invalidates every model
// on the tables it touches.
func (inv *Invalidator) Diff(previous map[string]string, units []unit.ExtractedUnit, gitSHA, previousGitSHA string) unit.ChangeManifest {
	hashes := make(map[string]string, len(units))
	byID := make(map[string]unit.ExtractedUnit, len(units))
	for _, u := range units {
		hashes[u.Identifier] = unit.ContentHash(u)
		byID[u.Identifier] = u
	}

	changed := make(map[string]bool)
	var added, modified, deleted, unchanged []string
	for id, h := range hashes {
		prev, seen := previous[id]
		switch {
		case !seen:
			added = append(added, id)
			changed[id] = true
		case prev != h:
			modified = append(modified, id)
			changed[id] = true
		default:
			unchanged = append(unchanged, id)
		}
	}
	for id := range previous {
		if _, still := hashes[id]; !still {
			deleted = append(deleted, id)
		}
	}

	promoted := inv.transitive(changed, byID)
	if len(promoted) > 0 {
		kept := unchanged[:0]
		for _, id := range unchanged {
			if promoted[id] {
				modified = append(modified, id)
			} else {
				kept = append(kept, id)
			}
		}
		unchanged = kept
	}

	sort.Strings(added)
	sort.Strings(modified)
	sort.Strings(deleted)
	sort.Strings(unchanged)

	return unit.ChangeManifest{
		GeneratedAt:    inv.now().UTC(),
		GitSHA:         gitSHA,
		PreviousGitSHA: previousGitSHA,
		Summary: unit.ChangeSummary{
			Added:     len(added),
			Modified:  len(modified),
			Deleted:   len(deleted),
			Unchanged: len(unchanged),
			Total:     len(units),
		},
		Changes: unit.ChangeSet{
			Added:     added,
			Modified:  modified,
			Deleted:   deleted,
			Unchanged: unchanged,
		},
		Hashes: hashes,
	}
}

// transitive returns the identifiers promoted to modified by the concern
// and migration rules.
func (inv *Invalidator) transitive(changed map[string]bool, byID map[string]unit.ExtractedUnit) map[string]bool {
	// Tables touched by changed migration-bearing units.
	changedTables := make(map[string]bool)
	for id := range changed {
		u, ok := byID[id]
		if !ok {
			continue
		}
		for _, table := range metadataStrings(u.Metadata, "migrated_tables") {
			changedTables[table] = true
		}
	}

	promoted := make(map[string]bool)
	for id, u := range byID {
		if changed[id] {
			continue
		}
		for _, dep := range u.Dependencies {
			if dep.Via == unit.ViaInclude && changed[dep.Target] {
				if target, ok := byID[dep.Target]; ok && target.Type == unit.TypeConcern {
					promoted[id] = true
				}
			}
		}
		if u.Type == unit.TypeModel {
			if table, ok := u.Metadata["table_name"].(string); ok && changedTables[table] {
				promoted[id] = true
			}
		}
	}
	return promoted
}

func metadataStrings(metadata map[string]any, key string) []string {
	raw, ok := metadata[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
