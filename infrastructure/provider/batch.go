package provider

import (
	"fmt"
	"unicode/utf8"
)

// CharBudget constrains embedding batches to stay within model token
// limits. It holds a character budget and a maximum batch size: each
// batch's total (truncated) text must not exceed maxChars, each batch
// contains at most maxBatchSize texts, and individual texts are truncated
// to maxChars.
type CharBudget struct {
	maxChars     int
	maxBatchSize int
}

// NewCharBudget creates a CharBudget with the given character limit.
// maxChars must be positive.
func NewCharBudget(maxChars int) (CharBudget, error) {
	if maxChars <= 0 {
		return CharBudget{}, fmt.Errorf("NewCharBudget: maxChars must be positive, got %d", maxChars)
	}
	return CharBudget{maxChars: maxChars, maxBatchSize: 1}, nil
}

// DefaultCharBudget returns a conservative budget of 16 000 characters
// (~5 300 tokens at ~3 chars/token), safe for 8 192-token models like
// text-embedding-3-small.
func DefaultCharBudget() CharBudget {
	b, _ := NewCharBudget(16000)
	return b
}

// WithMaxBatchSize returns a new CharBudget with the given maximum number
// of texts per batch. Values <= 0 are clamped to 1.
func (b CharBudget) WithMaxBatchSize(n int) CharBudget {
	if n <= 0 {
		n = 1
	}
	b.maxBatchSize = n
	return b
}

// Truncate returns text capped to the character (rune) limit.
func (b CharBudget) Truncate(text string) string {
	if utf8.RuneCountInString(text) <= b.maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:b.maxChars])
}

// Batches partitions indices into groups whose total truncated character
// count stays within the budget and whose size does not exceed
// maxBatchSize. A single text whose truncated form still exceeds the
// budget is placed alone in its own batch. Indices let callers map the
// returned vectors back to their source records.
func (b CharBudget) Batches(texts []string) [][]int {
	if len(texts) == 0 {
		return nil
	}

	var batches [][]int
	i := 0

	for i < len(texts) {
		start := i
		batchChars := 0

		for i < len(texts) {
			if i-start >= b.maxBatchSize && i > start {
				break
			}

			textLen := min(utf8.RuneCountInString(texts[i]), b.maxChars)

			if batchChars+textLen > b.maxChars && i > start {
				break
			}

			batchChars += textLen
			i++
		}

		batch := make([]int, 0, i-start)
		for j := start; j < i; j++ {
			batch = append(batch, j)
		}
		batches = append(batches, batch)
	}

	return batches
}
