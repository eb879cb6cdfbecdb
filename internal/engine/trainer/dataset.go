package trainer

import (
	"fmt"

	"github.com/kratzket/try-git/internal/engine/nn"
)

// Dataset is a prepared split: padded id sequences and one-hot targets.
type Dataset struct {
	X [][]int32
	Y [][]float32
}

// Len returns the number of samples.
func (d Dataset) Len() int { return len(d.X) }

func (d Dataset) validate(m *nn.Model) error {
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("trainer: %d sequences but %d targets", len(d.X), len(d.Y))
	}
	for i := range d.X {
		if len(d.X[i]) != m.SeqLen {
			return fmt.Errorf("%w: sample %d has %d ids, model %s expects %d", nn.ErrShape, i, len(d.X[i]), m.Name, m.SeqLen)
		}
		if len(d.Y[i]) != m.OutputDim() {
			return fmt.Errorf("%w: sample %d has %d targets, model %s outputs %d", nn.ErrShape, i, len(d.Y[i]), m.Name, m.OutputDim())
		}
	}
	return nil
}

// chunks splits n items into at most k contiguous ranges of near-equal size.
func chunks(n, k int) [][2]int {
	if k > n {
		k = n
	}
	if k < 1 {
		return nil
	}
	out := make([][2]int, 0, k)
	size, rem := n/k, n%k
	lo := 0
	for i := 0; i < k; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		out = append(out, [2]int{lo, hi})
		lo = hi
	}
	return out
}
