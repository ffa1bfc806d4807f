// Package hashing implements a local, deterministic feature-hashing
// embedder. Token term frequencies are hashed into a fixed number of
// buckets and L2-normalised, so no corpus preparation pass is needed and
// the same text always embeds to the same vector.
package hashing

import (
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const defaultDimension = 256

// Embedder maps text to a fixed-dimension vector via feature hashing.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

// NewEmbedder creates a feature-hashing embedder with the given dimension.
// A non-positive dimension selects the default.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return fmt.Sprintf("hashing-%d", e.dimension) }

// Dimension returns the dimensionality of the produced vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns the L2-normalised hashed term-frequency vector for text.
// Text without any tokens embeds to the zero vector.
func (e *Embedder) Embed(text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	tokens := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		bucket := int(sum % uint32(e.dimension))
		// The next hash bit decides the sign, which keeps hash collisions
		// from only ever accumulating.
		if sum&0x80000000 != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// EmbedBatch embeds all texts in input order.
func (e *Embedder) EmbedBatch(texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}
