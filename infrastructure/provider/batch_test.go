package provider

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewCharBudget_RejectsNonPositive(t *testing.T) {
	if _, err := NewCharBudget(0); err == nil {
		t.Error("expected zero rejected")
	}
	if _, err := NewCharBudget(-5); err == nil {
		t.Error("expected a negative budget rejected")
	}
}

func TestCharBudget_Truncate(t *testing.T) {
	b, err := NewCharBudget(5)
	if err != nil {
		t.Fatal(err)
	}

	if got := b.Truncate("short"); got != "short" {
		t.Errorf("expected text within budget untouched, got %q", got)
	}
	if got := b.Truncate("overlong"); got != "overl" {
		t.Errorf("expected truncation to 5 runes, got %q", got)
	}
	// Rune-based, not byte-based.
	if got := b.Truncate("héllo wörld"); got != "héllo" {
		t.Errorf("expected 5 runes kept, got %q", got)
	}
}

func TestCharBudget_Batches(t *testing.T) {
	b, err := NewCharBudget(10)
	if err != nil {
		t.Fatal(err)
	}
	b = b.WithMaxBatchSize(10)

	texts := []string{"aaaa", "bbbb", "cccc", "dd"}
	// 4+4 fits, adding 4 more would exceed 10; then 4+2 fits.
	want := [][]int{{0, 1}, {2, 3}}
	if got := b.Batches(texts); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCharBudget_MaxBatchSize(t *testing.T) {
	b, err := NewCharBudget(1000)
	if err != nil {
		t.Fatal(err)
	}
	b = b.WithMaxBatchSize(2)

	got := b.Batches([]string{"a", "b", "c", "d", "e"})
	want := [][]int{{0, 1}, {2, 3}, {4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCharBudget_OversizedTextGetsOwnBatch(t *testing.T) {
	b, err := NewCharBudget(10)
	if err != nil {
		t.Fatal(err)
	}
	b = b.WithMaxBatchSize(10)

	texts := []string{strings.Repeat("x", 50), "ab"}
	got := b.Batches(texts)
	want := [][]int{{0}, {1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected the oversized text isolated, got %v", got)
	}
}

func TestCharBudget_Empty(t *testing.T) {
	b := DefaultCharBudget()
	if got := b.Batches(nil); got != nil {
		t.Errorf("expected nil for no texts, got %v", got)
	}
}
