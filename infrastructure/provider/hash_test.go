package provider

import (
	"context"
	"math"
	"testing"
)

func TestHashProvider_Deterministic(t *testing.T) {
	p := NewHashProvider(64)
	ctx := context.Background()

	first, err := p.Embed(ctx, []string{"class User\nend"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Embed(ctx, []string{"class User\nend"})
	if err != nil {
		t.Fatal(err)
	}
	for i := range first[0] {
		if first[0][i] != second[0][i] {
			t.Fatal("identical text must produce identical vectors")
		}
	}
}

func TestHashProvider_DistinctTexts(t *testing.T) {
	p := NewHashProvider(64)
	vectors, err := p.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatal(err)
	}

	same := true
	for i := range vectors[0] {
		if vectors[0][i] != vectors[1][i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts must produce different vectors")
	}
}

func TestHashProvider_UnitNorm(t *testing.T) {
	p := NewHashProvider(96)
	vectors, err := p.Embed(context.Background(), []string{"normalize me"})
	if err != nil {
		t.Fatal(err)
	}

	var norm float64
	for _, v := range vectors[0] {
		norm += v * v
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-9 {
		t.Errorf("expected a unit vector, got norm %f", math.Sqrt(norm))
	}
	if len(vectors[0]) != 96 {
		t.Errorf("expected dimension 96, got %d", len(vectors[0]))
	}
}

func TestHashProvider_DefaultDimension(t *testing.T) {
	if got := NewHashProvider(0).Dimension(); got != 64 {
		t.Errorf("expected the default dimension 64, got %d", got)
	}
}

func TestHashProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashProvider(8).Embed(ctx, []string{"x"}); err == nil {
		t.Error("expected the cancelled context surfaced")
	}
}
