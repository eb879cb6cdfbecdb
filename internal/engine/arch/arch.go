// Package arch turns architecture descriptions into buildable nn models.
package arch

import (
	"fmt"
	"math/rand/v2"

	"github.com/kratzket/try-git/internal/config"
	"github.com/kratzket/try-git/internal/engine/nn"
)

// New assembles and initialises the model described by mc for inputs of
// seqLen token ids drawn from vocabSize, with numClasses softmax outputs.
//
// One kernel size gives
//
//	embedding -> dropout -> conv -> global max pool -> dense -> dropout -> softmax
//
// and several give one conv + pool branch per size, concatenated, followed by
// the pooled dropout.
func New(mc config.ModelConfig, seqLen, vocabSize, numClasses int, rng *rand.Rand) (*nn.Model, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("arch: %s: need at least one class", mc.Name)
	}

	var layers []nn.Layer
	if mc.EmbeddingDropout > 0 {
		layers = append(layers, &nn.Dropout{Rate: mc.EmbeddingDropout})
	}

	branch := func(k int) []nn.Layer {
		return []nn.Layer{
			&nn.Conv1D{Filters: mc.Filters, Kernel: k, Activation: nn.ReLU},
			&nn.GlobalMaxPool1D{},
		}
	}
	if len(mc.KernelSizes) == 1 {
		layers = append(layers, branch(mc.KernelSizes[0])...)
	} else {
		p := &nn.Parallel{}
		for _, k := range mc.KernelSizes {
			p.Branches = append(p.Branches, branch(k))
		}
		layers = append(layers, p)
	}
	if mc.PooledDropout > 0 {
		layers = append(layers, &nn.Dropout{Rate: mc.PooledDropout})
	}

	layers = append(layers, &nn.Dense{Units: mc.Hidden, Activation: nn.ReLU})
	if mc.HiddenDropout > 0 {
		layers = append(layers, &nn.Dropout{Rate: mc.HiddenDropout})
	}
	layers = append(layers, &nn.Dense{Units: numClasses, Activation: nn.Softmax})

	m := nn.NewModel(mc.Name, seqLen, nn.NewEmbedding(vocabSize, mc.EmbeddingDim), layers...)
	if err := m.Build(rng); err != nil {
		return nil, fmt.Errorf("arch: %w", err)
	}
	return m, nil
}
