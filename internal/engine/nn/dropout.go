package nn

import (
	"fmt"
	"math/rand/v2"
)

// Dropout zeroes a fraction Rate of activations during training and scales
// the survivors by 1/(1-Rate). It is the identity at inference.
type Dropout struct {
	Rate float64
}

func (d *Dropout) Build(in Shape, _ *rand.Rand) (Shape, error) {
	if d.Rate < 0 || d.Rate >= 1 {
		return Shape{}, fmt.Errorf("nn: dropout rate %g outside [0, 1)", d.Rate)
	}
	return in, nil
}

func (d *Dropout) Params() []*Param { return nil }

func (d *Dropout) Forward(x *Tensor, pass Pass) (*Tensor, any) {
	if !pass.Train || d.Rate == 0 {
		return x, nil
	}
	scale := float32(1 / (1 - d.Rate))
	mask := make([]float32, len(x.Data))
	out := NewTensor(x.Len, x.Dim)
	for i, v := range x.Data {
		if pass.Rng.Float64() >= d.Rate {
			mask[i] = scale
			out.Data[i] = v * scale
		}
	}
	return out, mask
}

func (d *Dropout) Backward(cache any, dy *Tensor, _ *Gradients) *Tensor {
	mask, ok := cache.([]float32)
	if !ok {
		return dy
	}
	dx := NewTensor(dy.Len, dy.Dim)
	for i, m := range mask {
		dx.Data[i] = dy.Data[i] * m
	}
	return dx
}

func (d *Dropout) Describe() string {
	return fmt.Sprintf("dropout (%g)", d.Rate)
}
