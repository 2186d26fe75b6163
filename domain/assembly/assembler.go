package assembly

import (
	"fmt"
	"strings"

	"github.com/codescope/codescope/domain/retrieval"
	"github.com/codescope/codescope/domain/unit"
)

// TruncationMarker is appended to source that was cut to fit the budget.
const TruncationMarker = "… [truncated]"

// Input is one ranked candidate materialized with its unit record.
type Input struct {
	Candidate retrieval.Candidate
	Unit      unit.ExtractedUnit
}

// Assembler builds an AssembledContext from ranked, materialized
// candidates under a hard token budget. Assembly is single-pass and
// non-backtracking: each section over-reserves its fraction and rolls
// unused budget forward.
type Assembler struct {
	budget int
}

// NewAssembler creates an Assembler with the given token budget; values
// <= 0 fall back to DefaultBudget.
func NewAssembler(budget int) Assembler {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return Assembler{budget: budget}
}

// Budget returns the configured token budget.
func (a Assembler) Budget() int { return a.budget }

// Assemble lays out the candidates into sections and enforces the budget.
// structural is caller-provided overview text, included when non-empty.
func (a Assembler) Assemble(inputs []Input, classification retrieval.Classification, structural string) AssembledContext {
	framework, primary, supporting := partition(inputs, classification)

	ctx := AssembledContext{Budget: a.budget}
	var blocks []string
	carry := 0

	for _, section := range sectionOrder {
		sectionBudget := int(float64(a.budget)*sectionFractions[section]) + carry

		var body string
		var used int
		switch section {
		case SectionStructural:
			body, used = a.emitStructural(structural, sectionBudget, ctx.TokensUsed)
		case SectionPrimary:
			body, used = a.emitUnits(primary, section, sectionBudget, &ctx)
		case SectionSupporting:
			body, used = a.emitUnits(supporting, section, sectionBudget, &ctx)
		case SectionFramework:
			body, used = a.emitUnits(framework, section, sectionBudget, &ctx)
		}

		carry = sectionBudget - used
		if carry < 0 {
			carry = 0
		}
		if body == "" {
			continue
		}
		ctx.TokensUsed += used
		ctx.Sections = append(ctx.Sections, section)
		blocks = append(blocks, body)
	}

	ctx.Text = strings.Join(blocks, "\n---\n\n")
	return ctx
}

// partition splits candidates into section lists. Framework units
// (rails_source with framework context) are removed from primary and
// supporting; supporting holds graph expansions; everything else is
// primary.
func partition(inputs []Input, classification retrieval.Classification) (framework, primary, supporting []Input) {
	for _, in := range inputs {
		switch {
		case classification.FrameworkContext && in.Unit.Type == unit.TypeRailsSrc:
			framework = append(framework, in)
		case in.Candidate.Source == retrieval.SourceGraphExpansion:
			supporting = append(supporting, in)
		default:
			primary = append(primary, in)
		}
	}
	return framework, primary, supporting
}

func (a Assembler) emitStructural(structural string, sectionBudget, usedSoFar int) (string, int) {
	if structural == "" {
		return "", 0
	}
	tokens := EstimateTokens(structural)
	if tokens > sectionBudget || usedSoFar+tokens > a.budget {
		return "", 0
	}
	return structural + "\n", tokens
}

// emitUnits renders units in ranked order into one section. A unit that
// cannot fit its header plus MinUsefulTokens is skipped entirely; a unit
// whose source overflows the remaining section budget is truncated and
// flagged. Once the total budget is exhausted, later candidates are
// dropped rather than partially included.
func (a Assembler) emitUnits(inputs []Input, section Section, sectionBudget int, ctx *AssembledContext) (string, int) {
	var b strings.Builder
	used := 0

	for _, in := range inputs {
		remaining := sectionBudget - used
		totalRemaining := a.budget - ctx.TokensUsed - used
		if totalRemaining < remaining {
			remaining = totalRemaining
		}
		if remaining <= 0 {
			break
		}

		header := unitHeader(in.Unit)
		headerTokens := EstimateTokens(header)
		sourceTokens := EstimateTokens(in.Unit.SourceCode)

		if headerTokens+minInt(sourceTokens, MinUsefulTokens) > remaining {
			continue
		}

		body := in.Unit.SourceCode
		truncated := false
		if headerTokens+sourceTokens > remaining {
			body = truncateToTokens(body, remaining-HeaderAllowance-headerTokens)
			body += "\n" + TruncationMarker
			truncated = true
		}

		block := header + body + "\n\n"
		used += EstimateTokens(block)
		b.WriteString(block)

		ctx.Sources = append(ctx.Sources, SourceEntry{
			Identifier: in.Unit.Identifier,
			Type:       in.Unit.Type,
			Score:      in.Candidate.Score,
			FilePath:   in.Unit.FilePath,
			Truncated:  truncated,
			Section:    section,
		})
	}
	return b.String(), used
}

func unitHeader(u unit.ExtractedUnit) string {
	return fmt.Sprintf("## %s (%s)\nFile: %s\n", u.Identifier, u.Type, u.FilePath)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
