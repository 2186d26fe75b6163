package unit

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	valid := ExtractedUnit{
		Type:       TypeModel,
		Identifier: "User",
		Dependencies: []Dependency{
			{Target: "Profile", Type: "model", Via: ViaAssociation},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid unit, got %v", err)
	}

	tests := []struct {
		name string
		unit ExtractedUnit
		want error
	}{
		{
			"empty identifier",
			ExtractedUnit{Type: TypeModel},
			ErrEmptyIdentifier,
		},
		{
			"unknown type",
			ExtractedUnit{Type: "gem", Identifier: "User"},
			ErrUnknownType,
		},
		{
			"dependency without via",
			ExtractedUnit{
				Type: TypeModel, Identifier: "User",
				Dependencies: []Dependency{{Target: "Profile", Type: "model"}},
			},
			ErrMissingVia,
		},
	}
	for _, tt := range tests {
		if err := tt.unit.Validate(); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestTypeIsValid(t *testing.T) {
	for _, known := range AllTypes {
		if !known.IsValid() {
			t.Errorf("%s should be valid", known)
		}
	}
	for _, bad := range []Type{"", "module", "MODEL"} {
		if bad.IsValid() {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestFileName(t *testing.T) {
	got := FileName("Admin::AuditLog")
	if !strings.HasPrefix(got, "Admin__AuditLog_") {
		t.Errorf("expected namespace separator mapped to __, got %s", got)
	}
	if !strings.HasSuffix(got, ".json") {
		t.Errorf("expected .json suffix, got %s", got)
	}

	// Prefix + "_" + 8 hex chars + ".json".
	digest := strings.TrimSuffix(strings.TrimPrefix(got, "Admin__AuditLog_"), ".json")
	if len(digest) != 8 {
		t.Errorf("expected an 8-hex digest, got %q", digest)
	}

	got = FileName("User#save!")
	if strings.ContainsAny(got, "#!") {
		t.Errorf("expected punctuation sanitized, got %s", got)
	}
}

func TestFileName_CollisionsDistinguishedByDigest(t *testing.T) {
	// Both sanitize to the same prefix; the digest must differ.
	a := FileName("User::Profile")
	b := FileName("User__Profile")
	if a == b {
		t.Errorf("expected distinct file names, both got %s", a)
	}
}

func TestChunkID(t *testing.T) {
	c := Chunk{UnitID: "User", Type: ChunkValidations}
	if got := c.ID(); got != "User#chunk:validations" {
		t.Errorf("unexpected chunk id %s", got)
	}
}

func TestContentHash_Stable(t *testing.T) {
	u := ExtractedUnit{
		Type:       TypeModel,
		Identifier: "User",
		SourceCode: "class User\nend\n",
		Metadata:   map[string]any{"importance": "high", "table_name": "users"},
		Dependencies: []Dependency{
			{Target: "Profile", Type: "model", Via: ViaAssociation},
			{Target: "Account", Type: "model", Via: ViaAssociation},
		},
	}
	first := ContentHash(u)
	for range 10 {
		if next := ContentHash(u); next != first {
			t.Fatal("hash is not stable across calls")
		}
	}
	if len(first) != 64 {
		t.Errorf("expected a hex sha256, got %q", first)
	}
}

func TestContentHash_IndependentOfOrdering(t *testing.T) {
	a := ExtractedUnit{
		Type: TypeModel, Identifier: "User",
		Metadata: map[string]any{"a": "1", "b": "2"},
		Dependencies: []Dependency{
			{Target: "Profile", Type: "model", Via: ViaAssociation},
			{Target: "Account", Type: "model", Via: ViaAssociation},
		},
	}
	b := ExtractedUnit{
		Type: TypeModel, Identifier: "User",
		Metadata: map[string]any{"b": "2", "a": "1"},
		Dependencies: []Dependency{
			{Target: "Account", Type: "model", Via: ViaAssociation},
			{Target: "Profile", Type: "model", Via: ViaAssociation},
		},
	}
	if ContentHash(a) != ContentHash(b) {
		t.Error("hash must not depend on metadata or dependency order")
	}
}

func TestContentHash_ChangesWithContent(t *testing.T) {
	base := ExtractedUnit{Type: TypeModel, Identifier: "User", SourceCode: "class User\nend\n"}

	changedSource := base
	changedSource.SourceCode = "class User\n  has_many :posts\nend\n"
	if ContentHash(base) == ContentHash(changedSource) {
		t.Error("source change must change the hash")
	}

	changedDeps := base
	changedDeps.Dependencies = []Dependency{{Target: "Post", Type: "model", Via: ViaAssociation}}
	if ContentHash(base) == ContentHash(changedDeps) {
		t.Error("dependency change must change the hash")
	}
}
