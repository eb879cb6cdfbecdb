package nn

import (
	"fmt"
	"math/rand/v2"
)

// Embedding maps token ids to rows of a VocabSize x Dim table. Index 0, the
// padding id, has a trainable row like any other.
type Embedding struct {
	VocabSize int
	Dim       int
	W         *Param
}

// NewEmbedding creates an embedding table; call Build before use.
func NewEmbedding(vocabSize, dim int) *Embedding {
	return &Embedding{VocabSize: vocabSize, Dim: dim}
}

// Build allocates the table with U(-0.05, 0.05) weights.
func (e *Embedding) Build(rng *rand.Rand) error {
	if e.VocabSize <= 0 || e.Dim <= 0 {
		return fmt.Errorf("%w: embedding %d x %d", ErrShape, e.VocabSize, e.Dim)
	}
	e.W = newParam("embedding", e.VocabSize, e.Dim)
	e.W.Sparse = true
	uniform(rng, e.W.Value, -0.05, 0.05)
	return nil
}

// Forward gathers one row per id.
func (e *Embedding) Forward(ids []int32) (*Tensor, error) {
	out := NewTensor(len(ids), e.Dim)
	for t, id := range ids {
		if id < 0 || int(id) >= e.VocabSize {
			return nil, fmt.Errorf("%w: id %d at position %d, vocabulary %d", ErrIndex, id, t, e.VocabSize)
		}
		copy(out.Row(t), e.W.Row(int(id)))
	}
	return out, nil
}

// Backward scatters dy into the rows that were looked up.
func (e *Embedding) Backward(ids []int32, dy *Tensor, g *Gradients) {
	for t, id := range ids {
		axpy(1, dy.Row(t), g.Row(e.W, id))
	}
}

func (e *Embedding) Describe() string {
	return fmt.Sprintf("embedding (%d x %d)", e.VocabSize, e.Dim)
}
