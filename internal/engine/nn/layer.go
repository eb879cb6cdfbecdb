package nn

import "math/rand/v2"

// Pass carries per-pass state into Forward.
type Pass struct {
	Train bool       // enables dropout
	Rng   *rand.Rand // dropout masks; may be nil when Train is false
}

// Layer is one stage of a model after the embedding lookup.
type Layer interface {
	// Build allocates parameters for the input shape and returns the output shape.
	Build(in Shape, rng *rand.Rand) (Shape, error)
	// Params lists trainable parameters; empty for parameter-free layers.
	Params() []*Param
	// Forward computes the output and an opaque cache for Backward.
	Forward(x *Tensor, pass Pass) (*Tensor, any)
	// Backward accumulates parameter gradients into g and returns dL/dx.
	Backward(cache any, dy *Tensor, g *Gradients) *Tensor
	// Describe is a one-line summary used by Model.Summary.
	Describe() string
}

// Activation is the non-linearity applied by Conv1D and Dense.
type Activation int

const (
	Linear Activation = iota
	ReLU
	Softmax
)

func (a Activation) String() string {
	switch a {
	case ReLU:
		return "relu"
	case Softmax:
		return "softmax"
	default:
		return "linear"
	}
}

func relu(v []float32) {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
}

// reluGrad zeroes dy wherever the activated output was not positive.
func reluGrad(y, dy []float32) {
	for i, v := range y {
		if v <= 0 {
			dy[i] = 0
		}
	}
}
