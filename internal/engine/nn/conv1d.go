package nn

import (
	"fmt"
	"math/rand/v2"
)

// Conv1D slides Filters kernels of width Kernel over the positions of its
// input with stride 1 and no padding, so the output has Len-Kernel+1
// positions.
type Conv1D struct {
	Filters    int
	Kernel     int
	Activation Activation

	in Shape
	W  *Param // Filters x (Kernel*inDim); row f is kernel f flattened position-major
	B  *Param // 1 x Filters
}

type convCache struct {
	x *Tensor
	y *Tensor
}

func (c *Conv1D) Build(in Shape, rng *rand.Rand) (Shape, error) {
	if c.Filters <= 0 || c.Kernel <= 0 {
		return Shape{}, fmt.Errorf("%w: conv1d with %d filters of width %d", ErrShape, c.Filters, c.Kernel)
	}
	if in.Len < c.Kernel {
		return Shape{}, fmt.Errorf("%w: conv1d width %d over %d positions", ErrShape, c.Kernel, in.Len)
	}
	if c.Activation == Softmax {
		return Shape{}, fmt.Errorf("nn: conv1d does not support softmax")
	}
	c.in = in
	c.W = newParam(fmt.Sprintf("conv%d_kernel", c.Kernel), c.Filters, c.Kernel*in.Dim)
	c.B = newParam(fmt.Sprintf("conv%d_bias", c.Kernel), 1, c.Filters)
	glorotUniform(rng, c.W.Value, c.Kernel*in.Dim, c.Kernel*c.Filters)
	return Shape{Len: in.Len - c.Kernel + 1, Dim: c.Filters}, nil
}

func (c *Conv1D) Params() []*Param { return []*Param{c.W, c.B} }

func (c *Conv1D) Forward(x *Tensor, _ Pass) (*Tensor, any) {
	outLen := x.Len - c.Kernel + 1
	width := c.Kernel * x.Dim
	y := NewTensor(outLen, c.Filters)
	for t := 0; t < outLen; t++ {
		window := x.Data[t*x.Dim : t*x.Dim+width]
		row := y.Row(t)
		for f := 0; f < c.Filters; f++ {
			row[f] = c.B.Value[f] + dot(c.W.Row(f), window)
		}
	}
	if c.Activation == ReLU {
		relu(y.Data)
	}
	return y, convCache{x: x, y: y}
}

func (c *Conv1D) Backward(cache any, dy *Tensor, g *Gradients) *Tensor {
	cc := cache.(convCache)
	x := cc.x
	dz := dy
	if c.Activation == ReLU {
		dz = &Tensor{Len: dy.Len, Dim: dy.Dim, Data: append([]float32(nil), dy.Data...)}
		reluGrad(cc.y.Data, dz.Data)
	}

	width := c.Kernel * x.Dim
	dW := g.Dense(c.W)
	dB := g.Dense(c.B)
	dx := NewTensor(x.Len, x.Dim)
	for t := 0; t < dz.Len; t++ {
		window := x.Data[t*x.Dim : t*x.Dim+width]
		dWindow := dx.Data[t*x.Dim : t*x.Dim+width]
		for f, d := range dz.Row(t) {
			if d == 0 {
				continue
			}
			dB[f] += d
			axpy(d, window, dW[f*width:(f+1)*width])
			axpy(d, c.W.Row(f), dWindow)
		}
	}
	return dx
}

func (c *Conv1D) Describe() string {
	return fmt.Sprintf("conv1d (%d filters, width %d, %s)", c.Filters, c.Kernel, c.Activation)
}
