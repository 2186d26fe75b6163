package assembly_test

import (
	"strings"
	"testing"

	"github.com/codescope/codescope/domain/assembly"
	"github.com/codescope/codescope/domain/retrieval"
	"github.com/codescope/codescope/domain/unit"
)

func input(id string, typ unit.Type, source string, src retrieval.Source) assembly.Input {
	return assembly.Input{
		Candidate: retrieval.Candidate{Identifier: id, Score: 0.5, Source: src},
		Unit: unit.ExtractedUnit{
			Type:       typ,
			Identifier: id,
			FilePath:   "app/things/" + strings.ToLower(id) + ".rb",
			SourceCode: source,
		},
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := assembly.EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%d bytes): expected %d, got %d", len(tt.text), tt.want, got)
		}
	}
}

func TestNewAssembler_DefaultBudget(t *testing.T) {
	if got := assembly.NewAssembler(0).Budget(); got != assembly.DefaultBudget {
		t.Errorf("expected default budget %d, got %d", assembly.DefaultBudget, got)
	}
}

func TestAssemble_SectionOrderAndAttribution(t *testing.T) {
	asm := assembly.NewAssembler(8000)

	inputs := []assembly.Input{
		input("User", unit.TypeModel, "class User\nend\n", retrieval.SourceVector),
		input("Comment", unit.TypeModel, "class Comment\nend\n", retrieval.SourceGraphExpansion),
		input("ActiveRecord::Base", unit.TypeRailsSrc, "module ActiveRecord\nend\n", retrieval.SourceVector),
	}
	classification := retrieval.Classification{FrameworkContext: true}

	ctx := asm.Assemble(inputs, classification, "2 models, 1 controller")

	wantSections := []assembly.Section{
		assembly.SectionStructural,
		assembly.SectionPrimary,
		assembly.SectionSupporting,
		assembly.SectionFramework,
	}
	if len(ctx.Sections) != len(wantSections) {
		t.Fatalf("expected %d sections, got %v", len(wantSections), ctx.Sections)
	}
	for i, s := range wantSections {
		if ctx.Sections[i] != s {
			t.Errorf("section %d: expected %s, got %s", i, s, ctx.Sections[i])
		}
	}

	bySection := make(map[assembly.Section]string)
	for _, src := range ctx.Sources {
		bySection[src.Section] = src.Identifier
	}
	if bySection[assembly.SectionPrimary] != "User" {
		t.Errorf("expected User in primary, got %q", bySection[assembly.SectionPrimary])
	}
	if bySection[assembly.SectionSupporting] != "Comment" {
		t.Errorf("expected Comment in supporting, got %q", bySection[assembly.SectionSupporting])
	}
	if bySection[assembly.SectionFramework] != "ActiveRecord::Base" {
		t.Errorf("expected ActiveRecord::Base in framework, got %q", bySection[assembly.SectionFramework])
	}

	if !strings.Contains(ctx.Text, "## User (model)\nFile: app/things/user.rb\n") {
		t.Error("expected the unit header in the assembled text")
	}
	if !strings.Contains(ctx.Text, "\n---\n\n") {
		t.Error("expected sections joined by the separator")
	}
	if ctx.TokensUsed > ctx.Budget {
		t.Errorf("tokens used %d exceed budget %d", ctx.TokensUsed, ctx.Budget)
	}
}

func TestAssemble_RailsSourceStaysPrimaryWithoutFrameworkContext(t *testing.T) {
	asm := assembly.NewAssembler(8000)

	ctx := asm.Assemble([]assembly.Input{
		input("ActiveRecord::Base", unit.TypeRailsSrc, "module ActiveRecord\nend\n", retrieval.SourceVector),
	}, retrieval.Classification{}, "")

	if len(ctx.Sources) != 1 || ctx.Sources[0].Section != assembly.SectionPrimary {
		t.Fatalf("expected one primary source, got %+v", ctx.Sources)
	}
}

func TestAssemble_TruncatesOversizedSource(t *testing.T) {
	asm := assembly.NewAssembler(400)

	big := strings.Repeat("def helper\nend\n", 134) // ~2010 bytes, ~503 tokens
	ctx := asm.Assemble([]assembly.Input{
		input("User", unit.TypeModel, big, retrieval.SourceVector),
	}, retrieval.Classification{}, "")

	if len(ctx.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(ctx.Sources))
	}
	if !ctx.Sources[0].Truncated {
		t.Error("expected the source to be flagged truncated")
	}
	if !strings.Contains(ctx.Text, assembly.TruncationMarker) {
		t.Error("expected the truncation marker in the text")
	}
	if ctx.TokensUsed > ctx.Budget {
		t.Errorf("tokens used %d exceed budget %d", ctx.TokensUsed, ctx.Budget)
	}
}

func TestAssemble_SkipsUnitTooBigToBeUseful(t *testing.T) {
	// Budget 300 leaves primary too small for header plus 200 useful
	// tokens, so the big unit is skipped while the small one still fits.
	asm := assembly.NewAssembler(300)

	big := strings.Repeat("x", 2000)
	ctx := asm.Assemble([]assembly.Input{
		input("Big", unit.TypeModel, big, retrieval.SourceVector),
		input("Small", unit.TypeModel, "class Small\nend\n", retrieval.SourceVector),
	}, retrieval.Classification{}, "")

	if len(ctx.Sources) != 1 {
		t.Fatalf("expected only the small unit, got %+v", ctx.Sources)
	}
	if ctx.Sources[0].Identifier != "Small" {
		t.Errorf("expected Small emitted, got %s", ctx.Sources[0].Identifier)
	}
	if strings.Contains(ctx.Text, "Big") {
		t.Error("skipped unit must not appear in the text")
	}
}

func TestAssemble_DropsStructuralThatOverflowsItsSection(t *testing.T) {
	asm := assembly.NewAssembler(100)

	ctx := asm.Assemble(nil, retrieval.Classification{}, strings.Repeat("o", 600))

	for _, s := range ctx.Sections {
		if s == assembly.SectionStructural {
			t.Error("expected oversized structural text to be dropped")
		}
	}
	if ctx.Text != "" {
		t.Errorf("expected empty text, got %q", ctx.Text)
	}
}
