package nn

import (
	"errors"
	"fmt"
)

// ErrShape is returned when layer input shapes are incompatible.
var ErrShape = errors.New("nn: shape mismatch")

// ErrIndex is returned when a token id falls outside the embedding table.
var ErrIndex = errors.New("nn: token index out of range")

// Shape is a (positions, channels) pair.
type Shape struct {
	Len int
	Dim int
}

// Size is the number of elements.
func (s Shape) Size() int { return s.Len * s.Dim }

// Flat reports whether the shape is a single vector.
func (s Shape) Flat() bool { return s.Len == 1 }

func (s Shape) String() string {
	if s.Flat() {
		return fmt.Sprintf("(%d)", s.Dim)
	}
	return fmt.Sprintf("(%d, %d)", s.Len, s.Dim)
}

// Tensor is a row-major (Len, Dim) block of float32.
type Tensor struct {
	Len  int
	Dim  int
	Data []float32
}

// NewTensor allocates a zeroed tensor.
func NewTensor(length, dim int) *Tensor {
	return &Tensor{Len: length, Dim: dim, Data: make([]float32, length*dim)}
}

// Vector wraps v as a flat tensor without copying.
func Vector(v []float32) *Tensor {
	return &Tensor{Len: 1, Dim: len(v), Data: v}
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape { return Shape{Len: t.Len, Dim: t.Dim} }

// Row returns position i as a slice aliasing Data.
func (t *Tensor) Row(i int) []float32 {
	return t.Data[i*t.Dim : (i+1)*t.Dim]
}

func dot(a, b []float32) float32 {
	var s float32
	for i, v := range a {
		s += v * b[i]
	}
	return s
}

// axpy computes y += alpha * x.
func axpy(alpha float32, x, y []float32) {
	for i, v := range x {
		y[i] += alpha * v
	}
}
