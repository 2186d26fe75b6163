// Package assembly builds a section-ordered, token-budgeted text context
// from ranked candidates.
package assembly

// Token accounting constants.
const (
	// DefaultBudget is the hard token budget when the caller does not
	// override it.
	DefaultBudget = 8000

	// HeaderAllowance is the per-unit slack reserved for the unit header
	// when truncating source to fit.
	HeaderAllowance = 50

	// MinUsefulTokens is the smallest truncated body worth emitting; a
	// unit that cannot fit its header plus this many tokens is skipped.
	MinUsefulTokens = 200

	// bytesPerToken is the deterministic estimator divisor. It
	// underestimates code by 15-25% versus a real tokenizer, and tests
	// must use it too so budget assertions stay deterministic.
	bytesPerToken = 4
)

// EstimateTokens estimates the token count of text as ceil(bytes/4).
func EstimateTokens(text string) int {
	n := len(text)
	return (n + bytesPerToken - 1) / bytesPerToken
}

// bytesForTokens returns the largest byte length whose estimate stays
// within tokens.
func bytesForTokens(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return tokens * bytesPerToken
}

// truncateToTokens cuts text so its estimate fits within tokens, avoiding
// a split in the middle of a UTF-8 sequence.
func truncateToTokens(text string, tokens int) string {
	limit := bytesForTokens(tokens)
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && (text[cut]&0xC0) == 0x80 {
		cut--
	}
	return text[:cut]
}
