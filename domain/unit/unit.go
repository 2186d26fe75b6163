// Package unit provides the core data model for extracted program elements.
package unit

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

// Type classifies an extracted unit. The set is closed; extraction rejects
// anything outside it.
type Type string

// Type values.
const (
	TypeModel      Type = "model"
	TypeController Type = "controller"
	TypeService    Type = "service"
	TypeJob        Type = "job"
	TypeMailer     Type = "mailer"
	TypeComponent  Type = "component"
	TypeGraphQL    Type = "graphql_type"
	TypeGraphQLMut Type = "graphql_mutation"
	TypeRailsSrc   Type = "rails_source"
	TypeDecorator  Type = "decorator"
	TypeConcern    Type = "concern"
	TypePolicy     Type = "policy"
	TypeValidator  Type = "validator"
	TypeManager    Type = "manager"
	TypeClass      Type = "ruby_class"
	TypeMethod     Type = "ruby_method"
)

// AllTypes lists every valid unit type.
var AllTypes = []Type{
	TypeModel, TypeController, TypeService, TypeJob, TypeMailer,
	TypeComponent, TypeGraphQL, TypeGraphQLMut, TypeRailsSrc,
	TypeDecorator, TypeConcern, TypePolicy, TypeValidator,
	TypeManager, TypeClass, TypeMethod,
}

// IsValid reports whether t is in the closed type set.
func (t Type) IsValid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DependencyVia describes how a dependency edge was discovered.
type DependencyVia string

// DependencyVia values.
const (
	ViaAssociation   DependencyVia = "association"
	ViaCodeReference DependencyVia = "code_reference"
	ViaMethodCall    DependencyVia = "method_call"
	ViaInheritance   DependencyVia = "inheritance"
	ViaInclude       DependencyVia = "include"
	ViaExtend        DependencyVia = "extend"
	ViaReference     DependencyVia = "reference"
)

// Dependency is a directed edge from one unit to another.
type Dependency struct {
	Target string        `json:"target"`
	Type   string        `json:"type"`
	Via    DependencyVia `json:"via"`
}

// ChunkType labels a semantic fragment of a unit.
type ChunkType string

// ChunkType values.
const (
	ChunkSummary      ChunkType = "summary"
	ChunkAssociations ChunkType = "associations"
	ChunkValidations  ChunkType = "validations"
	ChunkCallbacks    ChunkType = "callbacks"
	ChunkMethods      ChunkType = "methods"
	ChunkScopes       ChunkType = "scopes"
	ChunkActionGet    ChunkType = "action_get"
	ChunkActionPost   ChunkType = "action_post"
	ChunkWhole        ChunkType = "whole"
)

// Chunk is a separately-embeddable fragment of a unit.
type Chunk struct {
	UnitID  string    `json:"unit_id"`
	Type    ChunkType `json:"type"`
	Content string    `json:"content"`
}

// ID returns the chunk's embedding identifier, derived from the parent
// unit identifier and the chunk type.
func (c Chunk) ID() string {
	return c.UnitID + "#chunk:" + string(c.Type)
}

// ExtractedUnit is a named, typed program element extracted from the
// repository. It is the indivisible object of retrieval.
type ExtractedUnit struct {
	Type         Type           `json:"type"`
	Identifier   string         `json:"identifier"`
	Namespace    string         `json:"namespace,omitempty"`
	FilePath     string         `json:"file_path"`
	SourceCode   string         `json:"source_code,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Dependencies []Dependency   `json:"dependencies,omitempty"`
	Dependents   []Dependency   `json:"dependents,omitempty"`
	Chunks       []Chunk        `json:"chunks,omitempty"`
}

// Validate checks the unit's structural invariants.
func (u ExtractedUnit) Validate() error {
	if u.Identifier == "" {
		return ErrEmptyIdentifier
	}
	if !u.Type.IsValid() {
		return ErrUnknownType
	}
	for _, dep := range u.Dependencies {
		if dep.Via == "" {
			return ErrMissingVia
		}
	}
	return nil
}

var sanitizePattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// FileName returns the per-unit index file name for the identifier:
// "::" becomes "__", any remaining character outside [A-Za-z0-9_-] becomes
// "_", and an 8-hex digest of the original identifier is appended so two
// identifiers that sanitize identically never collide.
func FileName(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	digest := hex.EncodeToString(sum[:4])
	name := strings.ReplaceAll(identifier, "::", "__")
	name = sanitizePattern.ReplaceAllString(name, "_")
	return name + "_" + digest + ".json"
}

// TypeDir returns the index subdirectory for a unit type, e.g. "models"
// for model units.
func TypeDir(t Type) string {
	return string(t) + "s"
}

// FilePathFor returns the full index path of a unit's JSON file:
// <indexDir>/<type>s/<sanitized-identifier>_<digest>.json.
func FilePathFor(indexDir string, t Type, identifier string) string {
	return filepath.Join(indexDir, TypeDir(t), FileName(identifier))
}
