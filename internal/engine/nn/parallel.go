package nn

import (
	"fmt"
	"math/rand/v2"
)

// Parallel feeds the same input to several branches and concatenates their
// flat outputs in branch order.
type Parallel struct {
	Branches [][]Layer

	shapes [][]Shape // output shape of every layer, per branch
	widths []int
}

type parallelCache struct {
	caches [][]any
}

func (p *Parallel) Build(in Shape, rng *rand.Rand) (Shape, error) {
	if len(p.Branches) == 0 {
		return Shape{}, fmt.Errorf("%w: parallel without branches", ErrShape)
	}
	p.shapes = make([][]Shape, len(p.Branches))
	p.widths = make([]int, len(p.Branches))
	total := 0
	for b, branch := range p.Branches {
		s := in
		for _, l := range branch {
			var err error
			s, err = l.Build(s, rng)
			if err != nil {
				return Shape{}, fmt.Errorf("branch %d: %w", b, err)
			}
			p.shapes[b] = append(p.shapes[b], s)
		}
		if !s.Flat() {
			return Shape{}, fmt.Errorf("%w: branch %d ends with %s, want a flat vector", ErrShape, b, s)
		}
		p.widths[b] = s.Dim
		total += s.Dim
	}
	return Shape{Len: 1, Dim: total}, nil
}

func (p *Parallel) Params() []*Param {
	var ps []*Param
	for _, branch := range p.Branches {
		for _, l := range branch {
			ps = append(ps, l.Params()...)
		}
	}
	return ps
}

func (p *Parallel) Forward(x *Tensor, pass Pass) (*Tensor, any) {
	out := make([]float32, 0, sum(p.widths))
	pc := parallelCache{caches: make([][]any, len(p.Branches))}
	for b, branch := range p.Branches {
		h := x
		pc.caches[b] = make([]any, len(branch))
		for i, l := range branch {
			h, pc.caches[b][i] = l.Forward(h, pass)
		}
		out = append(out, h.Data...)
	}
	return Vector(out), pc
}

func (p *Parallel) Backward(cache any, dy *Tensor, g *Gradients) *Tensor {
	pc := cache.(parallelCache)
	var dx *Tensor
	off := 0
	for b, branch := range p.Branches {
		d := Vector(dy.Data[off : off+p.widths[b]])
		off += p.widths[b]
		for i := len(branch) - 1; i >= 0; i-- {
			d = branch[i].Backward(pc.caches[b][i], d, g)
		}
		if dx == nil {
			dx = &Tensor{Len: d.Len, Dim: d.Dim, Data: append([]float32(nil), d.Data...)}
			continue
		}
		axpy(1, d.Data, dx.Data)
	}
	return dx
}

func (p *Parallel) Describe() string {
	return fmt.Sprintf("parallel (%d branches, concatenated)", len(p.Branches))
}

func sum(v []int) int {
	s := 0
	for _, x := range v {
		s += x
	}
	return s
}
