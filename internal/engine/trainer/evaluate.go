package trainer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kratzket/try-git/internal/engine/nn"
)

// Metrics summarises a model over one dataset in inference mode.
type Metrics struct {
	Samples  int
	Loss     float64 // mean categorical cross-entropy
	Accuracy float64
	// Recall maps class name to the fraction of its samples predicted
	// correctly. Classes with no samples are absent.
	Recall map[string]float64
}

type tally struct {
	loss    float64
	correct int
	support []int
	hits    []int
}

func newTally(classes int) *tally {
	return &tally{support: make([]int, classes), hits: make([]int, classes)}
}

func (t *tally) observe(p, target []float32) {
	l, _ := nn.CategoricalCrossEntropy(p, target)
	t.loss += l
	want := nn.Argmax(target)
	t.support[want]++
	if nn.Argmax(p) == want {
		t.correct++
		t.hits[want]++
	}
}

func (t *tally) merge(o *tally) {
	t.loss += o.loss
	t.correct += o.correct
	for i := range t.support {
		t.support[i] += o.support[i]
		t.hits[i] += o.hits[i]
	}
}

// Evaluate runs m over ds without dropout using up to workers goroutines.
// classes names the output columns for Recall and may be nil.
func Evaluate(ctx context.Context, m *nn.Model, ds Dataset, classes []string, workers int) (Metrics, error) {
	if err := ds.validate(m); err != nil {
		return Metrics{}, err
	}
	if ds.Len() == 0 {
		return Metrics{}, nil
	}
	if workers < 1 {
		workers = 1
	}

	parts := chunks(ds.Len(), workers)
	tallies := make([]*tally, len(parts))
	g, ctx := errgroup.WithContext(ctx)
	for w, r := range parts {
		tallies[w] = newTally(m.OutputDim())
		g.Go(func() error {
			for i := r[0]; i < r[1]; i++ {
				if i%64 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				p, err := m.Predict(ds.X[i])
				if err != nil {
					return fmt.Errorf("trainer: evaluate sample %d: %w", i, err)
				}
				tallies[w].observe(p, ds.Y[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Metrics{}, err
	}

	total := tallies[0]
	for _, t := range tallies[1:] {
		total.merge(t)
	}
	n := float64(ds.Len())
	met := Metrics{
		Samples:  ds.Len(),
		Loss:     total.loss / n,
		Accuracy: float64(total.correct) / n,
	}
	if len(classes) == m.OutputDim() {
		met.Recall = make(map[string]float64, len(classes))
		for c, name := range classes {
			if total.support[c] > 0 {
				met.Recall[name] = float64(total.hits[c]) / float64(total.support[c])
			}
		}
	}
	return met, nil
}
