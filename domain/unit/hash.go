package unit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// ContentHash computes the stable content hash of a unit: SHA-256 over the
// identifier, source code, canonicalized metadata, and the sorted dependency
// list. Two units with the same hash are treated as unchanged by the
// invalidator.
func ContentHash(u ExtractedUnit) string {
	h := sha256.New()
	h.Write([]byte(u.Identifier))
	h.Write([]byte{0})
	h.Write([]byte(u.SourceCode))
	h.Write([]byte{0})
	h.Write([]byte(canonicalMetadata(u.Metadata)))
	h.Write([]byte{0})
	h.Write([]byte(canonicalDependencies(u.Dependencies)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalMetadata renders metadata as JSON with sorted keys so the hash
// is independent of map iteration order.
func canonicalMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, _ := json.Marshal(metadata[k])
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(valJSON)
	}
	b.WriteByte('}')
	return b.String()
}

func canonicalDependencies(deps []Dependency) string {
	lines := make([]string, len(deps))
	for i, d := range deps {
		lines[i] = d.Target + "|" + d.Type + "|" + string(d.Via)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
