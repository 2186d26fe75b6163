package retrieval

import (
	"strings"
	"unicode"

	"github.com/codescope/codescope/domain/unit"
)

// frameworkNames is the fixed set of framework-library tokens that flip
// FrameworkContext on.
var frameworkNames = map[string]bool{
	"rails": true, "activerecord": true, "activejob": true,
	"actionmailer": true, "actioncable": true, "activestorage": true,
	"actionpack": true, "sidekiq": true, "hotwire": true, "turbo": true,
	"devise": true, "pundit": true,
}

// stopWords are dropped from the keyword list.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "do": true, "does": true,
	"for": true, "from": true, "has": true, "have": true, "how": true,
	"in": true, "into": true, "is": true, "it": true, "its": true,
	"me": true, "my": true, "of": true, "on": true, "or": true,
	"show": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "we": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "why": true, "with": true, "work": true,
	"works": true, "you": true,
}

// targetNouns maps unit types to the nouns that select them. Order fixes
// the first-match priority when a query mentions several.
var targetNouns = []struct {
	unitType unit.Type
	nouns    []string
}{
	{unit.TypeModel, []string{"model", "models", "schema", "columns", "activerecord", "validation", "validations"}},
	{unit.TypeController, []string{"controller", "controllers", "endpoint", "endpoints", "request", "action", "filter"}},
	{unit.TypeService, []string{"service", "services", "interactor"}},
	{unit.TypeJob, []string{"job", "jobs", "worker", "workers", "sidekiq", "queue", "background"}},
	{unit.TypeMailer, []string{"mailer", "mailers", "email", "emails", "notification"}},
	{unit.TypeGraphQL, []string{"graphql", "mutation", "resolver", "fields"}},
	{unit.TypePolicy, []string{"policy", "policies", "authorization"}},
	{unit.TypeComponent, []string{"component", "components", "partial"}},
}

// Classifier turns a query string into a Classification. It is a pure
// function: deterministic, allocation-light, no I/O.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() Classifier {
	return Classifier{}
}

// Classify reads intent, scope, target type, framework context, and
// keywords from the query.
func (c Classifier) Classify(query string) Classification {
	lower := strings.ToLower(query)
	tokens := tokenize(lower)
	has := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		has[t] = true
	}

	targetType := matchTargetType(has)
	framework := false
	for t := range has {
		if frameworkNames[t] {
			framework = true
			break
		}
	}

	return Classification{
		Intent:           matchIntent(lower, has, targetType, framework),
		Scope:            matchScope(has),
		TargetType:       targetType,
		FrameworkContext: framework,
		Keywords:         keywords(tokens),
	}
}

// matchIntent applies the intent rules in priority order; the first hit
// wins.
func matchIntent(lower string, has map[string]bool, targetType unit.Type, framework bool) Intent {
	switch {
	case has["where"] || has["find"] || strings.Contains(lower, "which file"):
		return IntentLocate
	case has["calls"] || has["trace"] ||
		strings.Contains(lower, "who calls") ||
		strings.Contains(lower, "depends on") ||
		strings.Contains(lower, "what depends"):
		return IntentTrace
	case has["fix"] || has["bug"] || has["error"] || has["broken"]:
		return IntentDebug
	case (has["add"] || has["create"] || has["build"]) && targetType != "":
		return IntentImplement
	case framework && (has["how"] || has["what"] || has["does"]):
		return IntentFramework
	case has["interface"] || has["api"] ||
		strings.Contains(lower, "list all") ||
		strings.Contains(lower, "list available"):
		return IntentReference
	case has["compare"] || strings.Contains(lower, "difference between"):
		return IntentCompare
	default:
		return IntentUnderstand
	}
}

func matchScope(has map[string]bool) Scope {
	switch {
	case has["exactly"] || has["specific"] || has["just"] || has["only"]:
		return ScopePinpoint
	case has["all"] || has["every"] || has["entire"]:
		return ScopeComprehensive
	case has["related"] || has["similar"] || has["associated"]:
		return ScopeExploratory
	default:
		return ScopeFocused
	}
}

func matchTargetType(has map[string]bool) unit.Type {
	for _, entry := range targetNouns {
		for _, noun := range entry.nouns {
			if has[noun] {
				return entry.unitType
			}
		}
	}
	return ""
}

// tokenize splits on whitespace and punctuation, keeping letters and
// digits together.
func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// keywords drops stop words and short tokens, preserving order of first
// occurrence and deduplicating.
func keywords(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) < 2 || stopWords[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
