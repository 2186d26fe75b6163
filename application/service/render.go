package service

import (
	"fmt"
	"strings"

	"github.com/codescope/codescope/domain/unit"
)

// SearchResult is one row of a search tool response.
type SearchResult struct {
	Identifier string  `json:"identifier"`
	Type       string  `json:"type,omitempty"`
	FilePath   string  `json:"file_path,omitempty"`
	Score      float64 `json:"score"`
}

// renderSourceLimit caps how much source a rendered lookup includes.
const renderSourceLimit = 4000

// Renderer produces the human-readable text that rides alongside the
// structured tool results.
type Renderer struct{}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Unit renders one unit as a Markdown block: header, location, edges, and
// a capped source listing.
func (r *Renderer) Unit(u unit.ExtractedUnit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%s)\n", u.Identifier, u.Type)
	if u.Namespace != "" {
		fmt.Fprintf(&b, "Namespace: %s\n", u.Namespace)
	}
	fmt.Fprintf(&b, "File: %s\n", u.FilePath)
	if len(u.Dependencies) > 0 {
		fmt.Fprintf(&b, "Depends on: %s\n", edgeTargets(u.Dependencies))
	}
	if len(u.Dependents) > 0 {
		fmt.Fprintf(&b, "Used by: %s\n", edgeTargets(u.Dependents))
	}
	if u.SourceCode != "" {
		source := u.SourceCode
		if len(source) > renderSourceLimit {
			source = source[:renderSourceLimit] + "\n… [truncated]"
		}
		fmt.Fprintf(&b, "\n```\n%s\n```\n", source)
	}
	return b.String()
}

// SearchResults renders a ranked result list.
func (r *Renderer) SearchResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results for %q.\n", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q:\n", query)
	for i, result := range results {
		fmt.Fprintf(&b, "%d. %s", i+1, result.Identifier)
		if result.Type != "" {
			fmt.Fprintf(&b, " (%s)", result.Type)
		}
		if result.FilePath != "" {
			fmt.Fprintf(&b, " — %s", result.FilePath)
		}
		fmt.Fprintf(&b, " [%.2f]\n", result.Score)
	}
	return b.String()
}

// Edges renders a dependency edge list in one direction.
func (r *Renderer) Edges(identifier, direction string, edges []unit.Dependency) string {
	if len(edges) == 0 {
		return fmt.Sprintf("%s has no %s.\n", identifier, direction)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s of %s:\n", direction, identifier)
	for _, edge := range edges {
		fmt.Fprintf(&b, "- %s", edge.Target)
		if edge.Type != "" {
			fmt.Fprintf(&b, " (%s)", edge.Type)
		}
		fmt.Fprintf(&b, " via %s\n", edge.Via)
	}
	return b.String()
}

func edgeTargets(edges []unit.Dependency) string {
	targets := make([]string, len(edges))
	for i, edge := range edges {
		targets[i] = edge.Target
	}
	return strings.Join(targets, ", ")
}
