package assembly

import "github.com/codescope/codescope/domain/unit"

// Section is a budgeted region of the assembled context.
type Section string

// Section values, in emission order.
const (
	SectionStructural Section = "structural"
	SectionPrimary    Section = "primary"
	SectionSupporting Section = "supporting"
	SectionFramework  Section = "framework"
)

// sectionOrder fixes emission order and budget roll-forward order.
var sectionOrder = []Section{SectionStructural, SectionPrimary, SectionSupporting, SectionFramework}

// sectionFractions allocates the budget; the fractions sum to 1.0. Unused
// budget in an earlier section rolls forward into later ones.
var sectionFractions = map[Section]float64{
	SectionStructural: 0.10,
	SectionPrimary:    0.45,
	SectionSupporting: 0.25,
	SectionFramework:  0.20,
}

// SourceEntry attributes one emitted unit. An identifier emitted in two
// sections appears twice, once per section.
type SourceEntry struct {
	Identifier string    `json:"identifier"`
	Type       unit.Type `json:"type"`
	Score      float64   `json:"score"`
	FilePath   string    `json:"file_path"`
	Truncated  bool      `json:"truncated,omitempty"`
	Section    Section   `json:"section"`
}

// AssembledContext is the final token-budgeted text plus its attribution.
type AssembledContext struct {
	Text       string        `json:"text"`
	TokensUsed int           `json:"tokens_used"`
	Budget     int           `json:"budget"`
	Sources    []SourceEntry `json:"sources"`
	Sections   []Section     `json:"sections"`
}
