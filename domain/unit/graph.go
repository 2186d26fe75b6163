package unit

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// PageRank parameters. Iteration stops after pagerankIterations rounds or
// once the largest per-node delta drops below pagerankEpsilon.
const (
	pagerankDamping    = 0.85
	pagerankIterations = 30
	pagerankEpsilon    = 1e-6
)

// DependencyGraph holds forward and reverse adjacency between unit
// identifiers plus a type index. Reverse edges are derived, never stored on
// units themselves.
type DependencyGraph struct {
	forward map[string][]Dependency
	reverse map[string][]Dependency
	types   map[Type][]string
	typeOf  map[string]Type
	paths   map[string]string
}

// NewDependencyGraph creates an empty DependencyGraph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		forward: make(map[string][]Dependency),
		reverse: make(map[string][]Dependency),
		types:   make(map[Type][]string),
		typeOf:  make(map[string]Type),
		paths:   make(map[string]string),
	}
}

// Register records a unit and both directions of its dependency edges.
func (g *DependencyGraph) Register(u ExtractedUnit) {
	id := u.Identifier
	if _, seen := g.typeOf[id]; !seen {
		g.types[u.Type] = append(g.types[u.Type], id)
	}
	g.typeOf[id] = u.Type
	if u.FilePath != "" {
		g.paths[id] = u.FilePath
	}
	if _, ok := g.forward[id]; !ok {
		g.forward[id] = nil
	}
	for _, dep := range u.Dependencies {
		g.forward[id] = append(g.forward[id], dep)
		g.reverse[dep.Target] = append(g.reverse[dep.Target], Dependency{
			Target: id,
			Type:   dep.Type,
			Via:    dep.Via,
		})
	}
}

// Remove deletes a unit and every edge that touches it.
func (g *DependencyGraph) Remove(id string) {
	for _, dep := range g.forward[id] {
		g.reverse[dep.Target] = dropEdges(g.reverse[dep.Target], id)
	}
	for _, dep := range g.reverse[id] {
		g.forward[dep.Target] = dropEdges(g.forward[dep.Target], id)
	}
	delete(g.forward, id)
	delete(g.reverse, id)
	delete(g.paths, id)
	if t, ok := g.typeOf[id]; ok {
		ids := g.types[t]
		for i, candidate := range ids {
			if candidate == id {
				g.types[t] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		delete(g.typeOf, id)
	}
}

func dropEdges(edges []Dependency, target string) []Dependency {
	kept := edges[:0]
	for _, e := range edges {
		if e.Target != target {
			kept = append(kept, e)
		}
	}
	return kept
}

// DependenciesOf returns the forward edges of id.
func (g *DependencyGraph) DependenciesOf(id string) []Dependency {
	return copyEdges(g.forward[id])
}

// DependentsOf returns the reverse edges of id.
func (g *DependencyGraph) DependentsOf(id string) []Dependency {
	return copyEdges(g.reverse[id])
}

// ByType returns the identifiers registered under t, sorted.
func (g *DependencyGraph) ByType(t Type) []string {
	ids := make([]string, len(g.types[t]))
	copy(ids, g.types[t])
	sort.Strings(ids)
	return ids
}

// TypeOf returns the registered type of id.
func (g *DependencyGraph) TypeOf(id string) (Type, bool) {
	t, ok := g.typeOf[id]
	return t, ok
}

// Len returns the number of registered units.
func (g *DependencyGraph) Len() int {
	return len(g.typeOf)
}

// Identifiers returns every registered identifier, sorted.
func (g *DependencyGraph) Identifiers() []string {
	ids := make([]string, 0, len(g.typeOf))
	for id := range g.typeOf {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AffectedBy returns the identifiers whose file path matches one of the
// given paths, plus every unit that depends on them.
func (g *DependencyGraph) AffectedBy(paths []string) []string {
	seen := make(map[string]bool)
	for id, p := range g.paths {
		for _, changed := range paths {
			if p == changed || strings.HasSuffix(changed, p) {
				seen[id] = true
				for _, dep := range g.reverse[id] {
					seen[dep.Target] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PageRank computes a PageRank score per identifier over the forward
// adjacency, with damping 0.85 and a 30-iteration / 1e-6 fixed-point stop.
func (g *DependencyGraph) PageRank() map[string]float64 {
	n := len(g.typeOf)
	if n == 0 {
		return map[string]float64{}
	}

	ranks := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for id := range g.typeOf {
		ranks[id] = initial
	}

	base := (1.0 - pagerankDamping) / float64(n)
	for range pagerankIterations {
		next := make(map[string]float64, n)
		for id := range g.typeOf {
			next[id] = base
		}
		var dangling float64
		for id, rank := range ranks {
			edges := g.forward[id]
			if len(edges) == 0 {
				dangling += rank
				continue
			}
			share := rank / float64(len(edges))
			for _, dep := range edges {
				if _, known := g.typeOf[dep.Target]; known {
					next[dep.Target] += pagerankDamping * share
				}
			}
		}
		// Redistribute dangling mass uniformly.
		if dangling > 0 {
			spread := pagerankDamping * dangling / float64(n)
			for id := range next {
				next[id] += spread
			}
		}

		var maxDelta float64
		for id := range ranks {
			maxDelta = math.Max(maxDelta, math.Abs(next[id]-ranks[id]))
		}
		ranks = next
		if maxDelta < pagerankEpsilon {
			break
		}
	}
	return ranks
}

// graphDocument is the on-disk JSON shape of a DependencyGraph. Keys are
// always strings; loading normalizes whatever the writer produced.
type graphDocument struct {
	Forward map[string][]Dependency `json:"forward"`
	Reverse map[string][]Dependency `json:"reverse"`
	Types   map[string][]string     `json:"types"`
	Paths   map[string]string       `json:"paths,omitempty"`
}

// MarshalJSON serializes the graph with identifier keys preserved as strings.
func (g *DependencyGraph) MarshalJSON() ([]byte, error) {
	doc := graphDocument{
		Forward: g.forward,
		Reverse: g.reverse,
		Types:   make(map[string][]string, len(g.types)),
		Paths:   g.paths,
	}
	for t, ids := range g.types {
		sorted := make([]string, len(ids))
		copy(sorted, ids)
		sort.Strings(sorted)
		doc.Types[string(t)] = sorted
	}
	return json.Marshal(doc)
}

// UnmarshalJSON restores a graph written by MarshalJSON. Reverse edges are
// reconstructed from the forward map, so older files that omit them load
// correctly.
func (g *DependencyGraph) UnmarshalJSON(data []byte) error {
	var doc graphDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	fresh := NewDependencyGraph()
	for t, ids := range doc.Types {
		for _, id := range ids {
			fresh.types[Type(t)] = append(fresh.types[Type(t)], id)
			fresh.typeOf[id] = Type(t)
		}
	}
	for id, p := range doc.Paths {
		fresh.paths[id] = p
	}
	for id, deps := range doc.Forward {
		fresh.forward[id] = deps
		for _, dep := range deps {
			fresh.reverse[dep.Target] = append(fresh.reverse[dep.Target], Dependency{
				Target: id,
				Type:   dep.Type,
				Via:    dep.Via,
			})
		}
	}
	*g = *fresh
	return nil
}

// Equal reports whether two graphs have the same units and edges.
func (g *DependencyGraph) Equal(other *DependencyGraph) bool {
	if g.Len() != other.Len() {
		return false
	}
	for id, t := range g.typeOf {
		if ot, ok := other.typeOf[id]; !ok || ot != t {
			return false
		}
		if !sameEdgeSet(g.forward[id], other.forward[id]) {
			return false
		}
	}
	return true
}

func sameEdgeSet(a, b []Dependency) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(d Dependency) string { return d.Target + "|" + d.Type + "|" + string(d.Via) }
	counts := make(map[string]int, len(a))
	for _, d := range a {
		counts[key(d)]++
	}
	for _, d := range b {
		counts[key(d)]--
		if counts[key(d)] < 0 {
			return false
		}
	}
	return true
}

func copyEdges(edges []Dependency) []Dependency {
	out := make([]Dependency, len(edges))
	copy(out, edges)
	return out
}
