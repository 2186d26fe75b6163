package provider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// HashProvider is a deterministic offline embedder. Vectors are derived
// from a SHA-256 expansion of the text, so identical inputs always produce
// identical vectors and tests need no network. The vectors carry no
// semantic signal; they only preserve exact-match similarity.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a HashProvider with the given dimension.
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = 64
	}
	return &HashProvider{dimension: dimension}
}

// Dimension returns the configured vector dimension.
func (p *HashProvider) Dimension() int { return p.dimension }

// Embed derives one deterministic unit vector per text.
func (p *HashProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = p.vector(text)
	}
	return vectors, nil
}

func (p *HashProvider) vector(text string) []float64 {
	out := make([]float64, p.dimension)
	seed := sha256.Sum256([]byte(text))

	// Expand the digest into as many bytes as the dimension needs by
	// chaining hashes of the previous block.
	block := seed
	var norm float64
	for i := range out {
		offset := (i * 8) % sha256.Size
		if i > 0 && offset == 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.BigEndian.Uint64(block[offset : offset+8])
		// Map to [-1, 1).
		out[i] = float64(int64(bits)) / math.MaxInt64
		norm += out[i] * out[i]
	}

	if norm > 0 {
		scale := 1 / math.Sqrt(norm)
		for i := range out {
			out[i] *= scale
		}
	}
	return out
}

var _ Embedder = (*HashProvider)(nil)
