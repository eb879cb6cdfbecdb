package nn

import (
	"fmt"
	"math/rand/v2"
)

// GlobalMaxPool1D keeps, for each channel, the maximum over all positions.
type GlobalMaxPool1D struct{}

type poolCache struct {
	inLen  int
	argmax []int
}

func (p *GlobalMaxPool1D) Build(in Shape, _ *rand.Rand) (Shape, error) {
	if in.Len < 1 {
		return Shape{}, fmt.Errorf("%w: global max pool over %d positions", ErrShape, in.Len)
	}
	return Shape{Len: 1, Dim: in.Dim}, nil
}

func (p *GlobalMaxPool1D) Params() []*Param { return nil }

func (p *GlobalMaxPool1D) Forward(x *Tensor, _ Pass) (*Tensor, any) {
	out := NewTensor(1, x.Dim)
	argmax := make([]int, x.Dim)
	copy(out.Data, x.Row(0))
	for t := 1; t < x.Len; t++ {
		for c, v := range x.Row(t) {
			if v > out.Data[c] {
				out.Data[c] = v
				argmax[c] = t
			}
		}
	}
	return out, poolCache{inLen: x.Len, argmax: argmax}
}

// Backward routes each channel's gradient to the position that won the max.
func (p *GlobalMaxPool1D) Backward(cache any, dy *Tensor, _ *Gradients) *Tensor {
	pc := cache.(poolCache)
	dx := NewTensor(pc.inLen, dy.Dim)
	for c, t := range pc.argmax {
		dx.Data[t*dy.Dim+c] = dy.Data[c]
	}
	return dx
}

func (p *GlobalMaxPool1D) Describe() string { return "global max pool" }
