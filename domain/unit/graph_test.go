package unit

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func buildGraph(units ...ExtractedUnit) *DependencyGraph {
	g := NewDependencyGraph()
	for _, u := range units {
		g.Register(u)
	}
	return g
}

func TestGraph_RegisterAndEdges(t *testing.T) {
	g := buildGraph(
		ExtractedUnit{Type: TypeModel, Identifier: "User", FilePath: "app/models/user.rb"},
		ExtractedUnit{
			Type: TypeController, Identifier: "UsersController",
			FilePath: "app/controllers/users_controller.rb",
			Dependencies: []Dependency{
				{Target: "User", Type: "model", Via: ViaCodeReference},
			},
		},
	)

	deps := g.DependenciesOf("UsersController")
	if len(deps) != 1 || deps[0].Target != "User" {
		t.Fatalf("expected one forward edge to User, got %+v", deps)
	}

	dependents := g.DependentsOf("User")
	if len(dependents) != 1 || dependents[0].Target != "UsersController" {
		t.Fatalf("expected one reverse edge to UsersController, got %+v", dependents)
	}
	if dependents[0].Via != ViaCodeReference {
		t.Errorf("reverse edge must keep the via, got %s", dependents[0].Via)
	}

	if g.Len() != 2 {
		t.Errorf("expected 2 units, got %d", g.Len())
	}
	if typ, ok := g.TypeOf("User"); !ok || typ != TypeModel {
		t.Errorf("expected User registered as model, got %s %v", typ, ok)
	}
}

func TestGraph_ByTypeSorted(t *testing.T) {
	g := buildGraph(
		ExtractedUnit{Type: TypeModel, Identifier: "Post"},
		ExtractedUnit{Type: TypeModel, Identifier: "Comment"},
		ExtractedUnit{Type: TypeModel, Identifier: "User"},
	)
	want := []string{"Comment", "Post", "User"}
	if got := g.ByType(TypeModel); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestGraph_RemoveDropsBothDirections(t *testing.T) {
	g := buildGraph(
		ExtractedUnit{Type: TypeModel, Identifier: "User"},
		ExtractedUnit{
			Type: TypeController, Identifier: "UsersController",
			Dependencies: []Dependency{{Target: "User", Type: "model", Via: ViaCodeReference}},
		},
	)

	g.Remove("User")

	if g.Len() != 1 {
		t.Fatalf("expected 1 unit left, got %d", g.Len())
	}
	if _, ok := g.TypeOf("User"); ok {
		t.Error("removed unit still has a type")
	}
	if deps := g.DependenciesOf("UsersController"); len(deps) != 0 {
		t.Errorf("expected the forward edge pruned, got %+v", deps)
	}
	if ids := g.ByType(TypeModel); len(ids) != 0 {
		t.Errorf("expected the type index pruned, got %v", ids)
	}
}

func TestGraph_AffectedBy(t *testing.T) {
	g := buildGraph(
		ExtractedUnit{Type: TypeModel, Identifier: "User", FilePath: "app/models/user.rb"},
		ExtractedUnit{
			Type: TypeController, Identifier: "UsersController",
			FilePath:     "app/controllers/users_controller.rb",
			Dependencies: []Dependency{{Target: "User", Type: "model", Via: ViaCodeReference}},
		},
		ExtractedUnit{Type: TypeModel, Identifier: "Post", FilePath: "app/models/post.rb"},
	)

	// Changing the model pulls in its dependent controller but not Post.
	got := g.AffectedBy([]string{"app/models/user.rb"})
	want := []string{"User", "UsersController"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// An absolute path from the repo root matches by suffix.
	got = g.AffectedBy([]string{"/repo/app/models/post.rb"})
	if !reflect.DeepEqual(got, []string{"Post"}) {
		t.Errorf("expected [Post], got %v", got)
	}

	if got := g.AffectedBy([]string{"db/schema.rb"}); len(got) != 0 {
		t.Errorf("expected no affected units, got %v", got)
	}
}

func TestGraph_PageRank(t *testing.T) {
	// Three units point at User; User points at nobody.
	g := buildGraph(
		ExtractedUnit{Type: TypeModel, Identifier: "User"},
		ExtractedUnit{
			Type: TypeController, Identifier: "A",
			Dependencies: []Dependency{{Target: "User", Type: "model", Via: ViaCodeReference}},
		},
		ExtractedUnit{
			Type: TypeService, Identifier: "B",
			Dependencies: []Dependency{{Target: "User", Type: "model", Via: ViaCodeReference}},
		},
		ExtractedUnit{
			Type: TypeJob, Identifier: "C",
			Dependencies: []Dependency{{Target: "User", Type: "model", Via: ViaCodeReference}},
		},
	)

	ranks := g.PageRank()
	if len(ranks) != 4 {
		t.Fatalf("expected 4 ranks, got %d", len(ranks))
	}

	var sum float64
	for _, r := range ranks {
		sum += r
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("expected ranks to sum to 1, got %f", sum)
	}

	for _, id := range []string{"A", "B", "C"} {
		if ranks["User"] <= ranks[id] {
			t.Errorf("expected the hub to outrank %s: %f vs %f", id, ranks["User"], ranks[id])
		}
	}
}

func TestGraph_PageRankEmpty(t *testing.T) {
	if ranks := NewDependencyGraph().PageRank(); len(ranks) != 0 {
		t.Errorf("expected no ranks for an empty graph, got %v", ranks)
	}
}

func TestGraph_JSONRoundTrip(t *testing.T) {
	g := buildGraph(
		ExtractedUnit{Type: TypeModel, Identifier: "User", FilePath: "app/models/user.rb"},
		ExtractedUnit{
			Type: TypeController, Identifier: "UsersController",
			Dependencies: []Dependency{{Target: "User", Type: "model", Via: ViaCodeReference}},
		},
	)

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}

	loaded := NewDependencyGraph()
	if err := json.Unmarshal(data, loaded); err != nil {
		t.Fatal(err)
	}
	if !g.Equal(loaded) {
		t.Error("round-tripped graph differs from the original")
	}
	dependents := loaded.DependentsOf("User")
	if len(dependents) != 1 || dependents[0].Target != "UsersController" {
		t.Errorf("expected reverse edges reconstructed, got %+v", dependents)
	}
}

func TestGraph_UnmarshalReconstructsReverseFromForwardOnly(t *testing.T) {
	// Older files carry no reverse map.
	doc := []byte(`{
		"forward": {
			"UsersController": [{"target": "User", "type": "model", "via": "code_reference"}],
			"User": []
		},
		"types": {
			"controller": ["UsersController"],
			"model": ["User"]
		}
	}`)

	g := NewDependencyGraph()
	if err := json.Unmarshal(doc, g); err != nil {
		t.Fatal(err)
	}
	dependents := g.DependentsOf("User")
	if len(dependents) != 1 || dependents[0].Target != "UsersController" {
		t.Errorf("expected reverse edge rebuilt from forward, got %+v", dependents)
	}
}

func TestGraph_Equal(t *testing.T) {
	a := buildGraph(ExtractedUnit{Type: TypeModel, Identifier: "User"})
	b := buildGraph(ExtractedUnit{Type: TypeModel, Identifier: "User"})
	if !a.Equal(b) {
		t.Error("identical graphs reported unequal")
	}

	b.Register(ExtractedUnit{Type: TypeModel, Identifier: "Post"})
	if a.Equal(b) {
		t.Error("graphs of different size reported equal")
	}
}
