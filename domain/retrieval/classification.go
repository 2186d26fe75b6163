// Package retrieval provides query classification and the result types of
// the retrieval pipeline.
package retrieval

import "github.com/codescope/codescope/domain/unit"

// Intent is what the caller wants from the codebase.
type Intent string

// Intent values.
const (
	IntentUnderstand Intent = "understand"
	IntentLocate     Intent = "locate"
	IntentTrace      Intent = "trace"
	IntentDebug      Intent = "debug"
	IntentImplement  Intent = "implement"
	IntentReference  Intent = "reference"
	IntentCompare    Intent = "compare"
	IntentFramework  Intent = "framework"
)

// Scope is how wide the answer should range.
type Scope string

// Scope values.
const (
	ScopePinpoint      Scope = "pinpoint"
	ScopeFocused       Scope = "focused"
	ScopeExploratory   Scope = "exploratory"
	ScopeComprehensive Scope = "comprehensive"
)

// Classification is the structured reading of a query. It is produced once
// per retrieval by the Classifier and drives strategy selection.
type Classification struct {
	Intent           Intent    `json:"intent"`
	Scope            Scope     `json:"scope"`
	TargetType       unit.Type `json:"target_type,omitempty"`
	FrameworkContext bool      `json:"framework_context"`
	Keywords         []string  `json:"keywords"`
}
