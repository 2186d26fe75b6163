package service_test

import (
	"context"
	"math"
	"testing"

	"github.com/codescope/codescope/application/service"
	"github.com/codescope/codescope/domain/retrieval"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/memstore"
	"github.com/codescope/codescope/infrastructure/provider"
)

var fixtureUnits = []unit.ExtractedUnit{
	{
		Type: unit.TypeModel, Identifier: "User",
		FilePath:   "app/models/user.rb",
		SourceCode: "class User < ApplicationRecord\n  has_many :posts\nend\n",
	},
	{
		Type: unit.TypeModel, Identifier: "Post",
		FilePath:   "app/models/post.rb",
		SourceCode: "class Post < ApplicationRecord\n  belongs_to :user\nend\n",
	},
	{
		Type: unit.TypeController, Identifier: "PostsController",
		FilePath:   "app/controllers/posts_controller.rb",
		SourceCode: "class PostsController < ApplicationController\nend\n",
		Dependencies: []unit.Dependency{
			{Target: "Post", Type: "model", Via: unit.ViaCodeReference},
		},
	},
	{
		Type: unit.TypeService, Identifier: "UserRegistration",
		FilePath:   "app/services/user_registration.rb",
		SourceCode: "class UserRegistration\nend\n",
		Dependencies: []unit.Dependency{
			{Target: "User", Type: "model", Via: unit.ViaCodeReference},
		},
	},
	{
		Type: unit.TypeJob, Identifier: "NotificationJob",
		FilePath:   "app/jobs/notification_job.rb",
		SourceCode: "class NotificationJob < ApplicationJob\nend\n",
	},
}

func seedExecutor(t *testing.T) (*service.SearchExecutor, *memstore.MetadataStore, *memstore.GraphStore) {
	t.Helper()
	ctx := context.Background()

	vectors := memstore.NewVectorStore()
	metadata := memstore.NewMetadataStore()
	graph := memstore.NewGraphStore()
	embedder := provider.NewHashProvider(32)

	for _, u := range fixtureUnits {
		if err := metadata.Store(ctx, u.Identifier, u); err != nil {
			t.Fatal(err)
		}
		if err := graph.Register(ctx, u); err != nil {
			t.Fatal(err)
		}
		embedded, err := embedder.Embed(ctx, []string{u.SourceCode})
		if err != nil {
			t.Fatal(err)
		}
		if err := vectors.Store(ctx, u.Identifier, embedded[0], map[string]any{"type": string(u.Type)}); err != nil {
			t.Fatal(err)
		}
	}

	return service.NewSearchExecutor(vectors, metadata, graph, embedder), metadata, graph
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name string
		c    retrieval.Classification
		want retrieval.Strategy
	}{
		{"pinpoint locate", retrieval.Classification{Intent: retrieval.IntentLocate, Scope: retrieval.ScopePinpoint}, retrieval.StrategyDirect},
		{"comprehensive", retrieval.Classification{Intent: retrieval.IntentUnderstand, Scope: retrieval.ScopeComprehensive}, retrieval.StrategyHybrid},
		{"exploratory", retrieval.Classification{Intent: retrieval.IntentLocate, Scope: retrieval.ScopeExploratory}, retrieval.StrategyHybrid},
		{"trace", retrieval.Classification{Intent: retrieval.IntentTrace, Scope: retrieval.ScopeFocused}, retrieval.StrategyGraph},
		{"understand", retrieval.Classification{Intent: retrieval.IntentUnderstand, Scope: retrieval.ScopeFocused}, retrieval.StrategyVector},
		{"debug", retrieval.Classification{Intent: retrieval.IntentDebug, Scope: retrieval.ScopeFocused}, retrieval.StrategyVector},
		{"reference", retrieval.Classification{Intent: retrieval.IntentReference, Scope: retrieval.ScopeFocused}, retrieval.StrategyKeyword},
		{"locate unfocused", retrieval.Classification{Intent: retrieval.IntentLocate, Scope: retrieval.ScopeFocused}, retrieval.StrategyKeyword},
	}
	for _, tt := range tests {
		if got := service.SelectStrategy(tt.c); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

func TestExecutor_DirectResolvesExactIdentifier(t *testing.T) {
	executor, _, _ := seedExecutor(t)

	c := retrieval.Classification{
		Intent: retrieval.IntentLocate, Scope: retrieval.ScopePinpoint,
		Keywords: []string{"user"},
	}
	result, err := executor.Execute(context.Background(), "find exactly user", c)
	if err != nil {
		t.Fatal(err)
	}
	if result.Strategy != retrieval.StrategyDirect {
		t.Fatalf("expected the direct strategy, got %s", result.Strategy)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(result.Candidates))
	}
	got := result.Candidates[0]
	if got.Identifier != "User" || got.Score != 1.0 || got.Source != retrieval.SourceDirect {
		t.Errorf("unexpected candidate %+v", got)
	}
}

func TestExecutor_DirectFallsBackToKeyword(t *testing.T) {
	executor, _, _ := seedExecutor(t)

	c := retrieval.Classification{
		Intent: retrieval.IntentLocate, Scope: retrieval.ScopePinpoint,
		Keywords: []string{"registration"},
	}
	result, err := executor.Execute(context.Background(), "find the registration flow", c)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Candidates) == 0 {
		t.Fatal("expected keyword fallback candidates")
	}
	if result.Candidates[0].Identifier != "UserRegistration" ||
		result.Candidates[0].Source != retrieval.SourceKeyword {
		t.Errorf("unexpected candidate %+v", result.Candidates[0])
	}
}

func TestExecutor_KeywordFiltersByTargetType(t *testing.T) {
	executor, _, _ := seedExecutor(t)

	c := retrieval.Classification{
		TargetType: unit.TypeModel,
		Keywords:   []string{"post"},
	}
	// "post" hits Post and PostsController on identifier plus User via
	// "has_many :posts" in its source; the controller is filtered out.
	candidates, err := executor.Keyword(context.Background(), "post model", c, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected the two models, got %+v", candidates)
	}
	if candidates[0].Identifier != "Post" || candidates[0].Score != 1.0 {
		t.Errorf("expected Post first at 1.0, got %+v", candidates[0])
	}
	if candidates[1].Identifier != "User" || math.Abs(candidates[1].Score-0.96) > 1e-9 {
		t.Errorf("expected User second at 0.96, got %+v", candidates[1])
	}
}

func TestExecutor_VectorMatchesStoredText(t *testing.T) {
	executor, _, _ := seedExecutor(t)

	query := fixtureUnits[0].SourceCode // User's source
	candidates, err := executor.Vector(context.Background(), query, retrieval.Classification{}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected vector hits")
	}
	if candidates[0].Identifier != "User" {
		t.Errorf("expected the identical text ranked first, got %s", candidates[0].Identifier)
	}
	if candidates[0].Score < 0.999 {
		t.Errorf("expected a near-perfect similarity, got %f", candidates[0].Score)
	}
}

func TestExecutor_VectorResolvesChunkParents(t *testing.T) {
	ctx := context.Background()

	embedder := provider.NewHashProvider(32)
	chunkText := "validates :title, presence: true"
	embedded, err := embedder.Embed(ctx, []string{chunkText})
	if err != nil {
		t.Fatal(err)
	}

	vectors := memstore.NewVectorStore()
	if err := vectors.Store(ctx, "Post#chunk:validations", embedded[0], map[string]any{"type": "model"}); err != nil {
		t.Fatal(err)
	}
	executor := service.NewSearchExecutor(vectors, memstore.NewMetadataStore(), memstore.NewGraphStore(), embedder)

	candidates, err := executor.Vector(ctx, chunkText, retrieval.Classification{}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].Identifier != "Post" {
		t.Errorf("expected the chunk resolved to its parent unit, got %+v", candidates)
	}
}

func TestExecutor_VectorAppliesTypeFilter(t *testing.T) {
	executor, _, _ := seedExecutor(t)

	c := retrieval.Classification{TargetType: unit.TypeJob}
	candidates, err := executor.Vector(context.Background(), "background processing", c, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, candidate := range candidates {
		if candidate.Identifier != "NotificationJob" {
			t.Errorf("expected only job units, got %s", candidate.Identifier)
		}
	}
}

func TestExecutor_GraphSeedsAndExpands(t *testing.T) {
	executor, _, _ := seedExecutor(t)

	c := retrieval.Classification{Keywords: []string{"postscontroller"}}
	candidates, err := executor.Graph(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}

	byID := make(map[string]retrieval.Candidate)
	for _, candidate := range candidates {
		byID[candidate.Identifier] = candidate
	}

	seed, ok := byID["PostsController"]
	if !ok || seed.Score != 1.0 || seed.Source != retrieval.SourceGraph {
		t.Errorf("expected the seed at 1.0, got %+v", seed)
	}
	expansion, ok := byID["Post"]
	if !ok || expansion.Score != 0.75 || expansion.Source != retrieval.SourceGraphExpansion {
		t.Errorf("expected the one-hop expansion at 0.75, got %+v", expansion)
	}
	if expansion.Metadata["via"] != "code_reference" {
		t.Errorf("expected the edge via on the expansion, got %v", expansion.Metadata)
	}
}

func TestExecutor_HybridUnionsSources(t *testing.T) {
	executor, _, _ := seedExecutor(t)

	c := retrieval.Classification{
		Intent: retrieval.IntentUnderstand, Scope: retrieval.ScopeComprehensive,
		Keywords: []string{"user"},
	}
	result, err := executor.Execute(context.Background(), fixtureUnits[0].SourceCode, c)
	if err != nil {
		t.Fatal(err)
	}
	if result.Strategy != retrieval.StrategyHybrid {
		t.Fatalf("expected hybrid, got %s", result.Strategy)
	}

	sources := make(map[retrieval.Source]bool)
	for _, candidate := range result.Candidates {
		sources[candidate.Source] = true
	}
	if !sources[retrieval.SourceVector] || !sources[retrieval.SourceKeyword] {
		t.Errorf("expected vector and keyword candidates in the union, got %v", sources)
	}
}

func TestExecutor_DirectLookups(t *testing.T) {
	executor, _, _ := seedExecutor(t)

	candidates := executor.Direct(context.Background(), []string{"User", "Ghost", "Post"})
	if len(candidates) != 2 {
		t.Fatalf("expected the missing id skipped, got %+v", candidates)
	}
	for _, candidate := range candidates {
		if candidate.Source != retrieval.SourceDirect || candidate.Score != 1.0 {
			t.Errorf("unexpected candidate %+v", candidate)
		}
	}
}

func TestExecutor_DirectResolvesLowercasedIds(t *testing.T) {
	executor, _, _ := seedExecutor(t)

	// Classifier keywords are lowercased; the exact find misses, so the
	// lookup retries as a case-insensitive identifier match.
	candidates := executor.Direct(context.Background(), []string{"userregistration", "user"})
	if len(candidates) != 2 {
		t.Fatalf("expected both ids resolved case-insensitively, got %+v", candidates)
	}
	if candidates[0].Identifier != "UserRegistration" || candidates[1].Identifier != "User" {
		t.Errorf("unexpected candidates %+v", candidates)
	}
}
