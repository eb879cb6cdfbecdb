package nn

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Dense is a fully connected layer over a flat input.
type Dense struct {
	Units      int
	Activation Activation

	inDim int
	W     *Param // Units x inDim
	B     *Param // 1 x Units
}

type denseCache struct {
	x []float32
	y []float32
}

func (d *Dense) Build(in Shape, rng *rand.Rand) (Shape, error) {
	if !in.Flat() {
		return Shape{}, fmt.Errorf("%w: dense needs a flat input, got %s", ErrShape, in)
	}
	if d.Units <= 0 {
		return Shape{}, fmt.Errorf("%w: dense with %d units", ErrShape, d.Units)
	}
	d.inDim = in.Dim
	d.W = newParam(fmt.Sprintf("dense%d_kernel", d.Units), d.Units, in.Dim)
	d.B = newParam(fmt.Sprintf("dense%d_bias", d.Units), 1, d.Units)
	glorotUniform(rng, d.W.Value, in.Dim, d.Units)
	return Shape{Len: 1, Dim: d.Units}, nil
}

func (d *Dense) Params() []*Param { return []*Param{d.W, d.B} }

func (d *Dense) Forward(x *Tensor, _ Pass) (*Tensor, any) {
	y := make([]float32, d.Units)
	for u := 0; u < d.Units; u++ {
		y[u] = d.B.Value[u] + dot(d.W.Row(u), x.Data)
	}
	switch d.Activation {
	case ReLU:
		relu(y)
	case Softmax:
		softmax(y)
	}
	return Vector(y), denseCache{x: x.Data, y: y}
}

func (d *Dense) Backward(cache any, dy *Tensor, g *Gradients) *Tensor {
	dc := cache.(denseCache)
	dz := append([]float32(nil), dy.Data...)
	switch d.Activation {
	case ReLU:
		reluGrad(dc.y, dz)
	case Softmax:
		// dz_i = y_i * (dy_i - sum_j dy_j y_j)
		s := dot(dy.Data, dc.y)
		for i, yi := range dc.y {
			dz[i] = yi * (dy.Data[i] - s)
		}
	}

	dW := g.Dense(d.W)
	dB := g.Dense(d.B)
	dx := make([]float32, d.inDim)
	for u, v := range dz {
		if v == 0 {
			continue
		}
		dB[u] += v
		axpy(v, dc.x, dW[u*d.inDim:(u+1)*d.inDim])
		axpy(v, d.W.Row(u), dx)
	}
	return Vector(dx)
}

func (d *Dense) Describe() string {
	return fmt.Sprintf("dense (%d, %s)", d.Units, d.Activation)
}

// softmax normalises v in place, shifting by the max for stability.
func softmax(v []float32) {
	if len(v) == 0 {
		return
	}
	maxV := v[0]
	for _, x := range v[1:] {
		if x > maxV {
			maxV = x
		}
	}
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - maxV))
		v[i] = float32(e)
		sum += e
	}
	inv := float32(1 / sum)
	for i := range v {
		v[i] *= inv
	}
}
