package rank_test

import (
	"context"
	"math"
	"testing"

	"github.com/codescope/codescope/domain/rank"
	"github.com/codescope/codescope/domain/retrieval"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/memstore"
)

func seedMetadata(t *testing.T, units ...unit.ExtractedUnit) *memstore.MetadataStore {
	t.Helper()
	store := memstore.NewMetadataStore()
	for _, u := range units {
		if err := store.Store(context.Background(), u.Identifier, u); err != nil {
			t.Fatalf("seed %s: %v", u.Identifier, err)
		}
	}
	return store
}

func TestRanker_WeightedScoreForPlainCandidate(t *testing.T) {
	metadata := seedMetadata(t, unit.ExtractedUnit{
		Type: unit.TypeModel, Identifier: "User", FilePath: "app/models/user.rb",
	})
	ranker := rank.NewRanker(metadata)

	ranked, err := ranker.Rank(context.Background(), []retrieval.Candidate{
		{Identifier: "User", Score: 0.8, Source: retrieval.SourceVector},
	}, retrieval.Classification{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected 1 result, got %d", len(ranked))
	}

	// semantic .8, keyword base .3, recency .5 (no git metadata),
	// importance .3 (untagged), type_match .5 (no target), diversity 1.0
	want := 0.40*0.8 + 0.10*0.3 + 0.10*0.5 + 0.15*0.3 + 0.15*0.5 + 0.10*1.0
	if math.Abs(ranked[0].Candidate.Score-want) > 1e-9 {
		t.Errorf("expected score %f, got %f", want, ranked[0].Candidate.Score)
	}
}

func TestRanker_TypeMatchRewardsTarget(t *testing.T) {
	metadata := seedMetadata(t,
		unit.ExtractedUnit{Type: unit.TypeModel, Identifier: "User"},
		unit.ExtractedUnit{Type: unit.TypeController, Identifier: "UsersController"},
	)
	ranker := rank.NewRanker(metadata)

	ranked, err := ranker.Rank(context.Background(), []retrieval.Candidate{
		{Identifier: "User", Score: 0.5, Source: retrieval.SourceVector},
		{Identifier: "UsersController", Score: 0.5, Source: retrieval.SourceVector},
	}, retrieval.Classification{TargetType: unit.TypeModel})
	if err != nil {
		t.Fatal(err)
	}

	var user, controller rank.Ranked
	for _, r := range ranked {
		switch r.Candidate.Identifier {
		case "User":
			user = r
		case "UsersController":
			controller = r
		}
	}
	if user.Signals.TypeMatch != 1.0 {
		t.Errorf("expected type_match 1.0 for the matching type, got %f", user.Signals.TypeMatch)
	}
	if controller.Signals.TypeMatch != 0.0 {
		t.Errorf("expected type_match 0.0 for the mismatched type, got %f", controller.Signals.TypeMatch)
	}
	if ranked[0].Candidate.Identifier != "User" {
		t.Errorf("expected User ranked first, got %s", ranked[0].Candidate.Identifier)
	}
}

func TestRanker_RecencyAndImportanceTiers(t *testing.T) {
	metadata := seedMetadata(t, unit.ExtractedUnit{
		Type:       unit.TypeModel,
		Identifier: "Order",
		Metadata: map[string]any{
			"importance": "high",
			"git":        map[string]any{"change_frequency": "hot"},
		},
	})
	ranker := rank.NewRanker(metadata)

	ranked, err := ranker.Rank(context.Background(), []retrieval.Candidate{
		{Identifier: "Order", Score: 0.5, Source: retrieval.SourceVector},
	}, retrieval.Classification{})
	if err != nil {
		t.Fatal(err)
	}
	if ranked[0].Signals.Recency != 1.0 {
		t.Errorf("expected recency 1.0 for hot, got %f", ranked[0].Signals.Recency)
	}
	if ranked[0].Signals.Importance != 1.0 {
		t.Errorf("expected importance 1.0 for high, got %f", ranked[0].Signals.Importance)
	}
}

func TestRanker_ImportanceTierTable(t *testing.T) {
	tests := []struct {
		tag  string
		want float64
	}{
		{"high", 1.0},
		{"medium", 0.7},
		{"low", 0.5},
		{"", 0.3},
		{"critical", 0.3}, // unrecognized tags score as unknown
	}
	for _, tt := range tests {
		u := unit.ExtractedUnit{Type: unit.TypeModel, Identifier: "Order"}
		if tt.tag != "" {
			u.Metadata = map[string]any{"importance": tt.tag}
		}
		ranker := rank.NewRanker(seedMetadata(t, u))

		ranked, err := ranker.Rank(context.Background(), []retrieval.Candidate{
			{Identifier: "Order", Score: 0.5, Source: retrieval.SourceVector},
		}, retrieval.Classification{})
		if err != nil {
			t.Fatal(err)
		}
		if got := ranked[0].Signals.Importance; got != tt.want {
			t.Errorf("importance(%q): expected %f, got %f", tt.tag, tt.want, got)
		}
	}
}

func TestRanker_RecencyUnknownDefaultsToMiddleTier(t *testing.T) {
	metadata := seedMetadata(t, unit.ExtractedUnit{
		Type:       unit.TypeModel,
		Identifier: "Order",
		Metadata:   map[string]any{"git": map[string]any{"change_frequency": "sporadic"}},
	})
	ranker := rank.NewRanker(metadata)

	ranked, err := ranker.Rank(context.Background(), []retrieval.Candidate{
		{Identifier: "Order", Score: 0.5, Source: retrieval.SourceVector},
	}, retrieval.Classification{})
	if err != nil {
		t.Fatal(err)
	}
	if ranked[0].Signals.Recency != 0.5 {
		t.Errorf("expected recency 0.5 for an unknown frequency, got %f", ranked[0].Signals.Recency)
	}
}

func TestRanker_DiversityPenalizesRepeatedBucket(t *testing.T) {
	metadata := seedMetadata(t,
		unit.ExtractedUnit{Type: unit.TypeModel, Identifier: "Billing::A", Namespace: "Billing"},
		unit.ExtractedUnit{Type: unit.TypeModel, Identifier: "Billing::B", Namespace: "Billing"},
		unit.ExtractedUnit{Type: unit.TypeModel, Identifier: "Billing::C", Namespace: "Billing"},
		unit.ExtractedUnit{Type: unit.TypeModel, Identifier: "Billing::D", Namespace: "Billing"},
		unit.ExtractedUnit{Type: unit.TypeModel, Identifier: "Billing::E", Namespace: "Billing"},
	)
	ranker := rank.NewRanker(metadata)

	candidates := []retrieval.Candidate{
		{Identifier: "Billing::A", Score: 0.9, Source: retrieval.SourceVector},
		{Identifier: "Billing::B", Score: 0.8, Source: retrieval.SourceVector},
		{Identifier: "Billing::C", Score: 0.7, Source: retrieval.SourceVector},
		{Identifier: "Billing::D", Score: 0.6, Source: retrieval.SourceVector},
		{Identifier: "Billing::E", Score: 0.5, Source: retrieval.SourceVector},
	}
	ranked, err := ranker.Rank(context.Background(), candidates, retrieval.Classification{})
	if err != nil {
		t.Fatal(err)
	}

	// Penalty grows 0.15 per repeat and caps at 0.5.
	wantDiversity := []float64{1.0, 0.85, 0.70, 0.55, 0.50}
	byID := make(map[string]rank.Ranked)
	for _, r := range ranked {
		byID[r.Candidate.Identifier] = r
	}
	for i, id := range []string{"Billing::A", "Billing::B", "Billing::C", "Billing::D", "Billing::E"} {
		got := byID[id].Signals.Diversity
		if math.Abs(got-wantDiversity[i]) > 1e-9 {
			t.Errorf("%s: expected diversity %f, got %f", id, wantDiversity[i], got)
		}
	}
}

func TestRanker_MissingUnitStillRanked(t *testing.T) {
	metadata := seedMetadata(t)
	ranker := rank.NewRanker(metadata)

	ranked, err := ranker.Rank(context.Background(), []retrieval.Candidate{
		{Identifier: "Ghost", Score: 0.9, Source: retrieval.SourceVector},
	}, retrieval.Classification{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected 1 result, got %d", len(ranked))
	}
	if ranked[0].Found {
		t.Error("expected Found=false for a missing unit")
	}
}
