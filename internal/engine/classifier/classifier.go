package classifier

import (
	"github.com/kratzket/try-git/internal/model"
)

// Classifier turns a softmax distribution into a labelled prediction.
type Classifier struct {
	Threshold float64
}

// New creates a Classifier with the given confidence threshold.
func New(threshold float64) *Classifier {
	return &Classifier{Threshold: threshold}
}

// Classify picks the most probable class. Ties go to the lower index. If the
// top probability is below the threshold, or probs and classes disagree in
// length, the label is model.Unclassified. The probabilities are copied into
// the result.
func (c *Classifier) Classify(probs []float32, classes []string) model.Prediction {
	if len(probs) == 0 || len(probs) != len(classes) {
		return model.Prediction{Label: model.Unclassified}
	}

	best := 0
	for i, p := range probs[1:] {
		if p > probs[best] {
			best = i + 1
		}
	}

	pred := model.Prediction{
		Label:         classes[best],
		Confidence:    float64(probs[best]),
		Probabilities: append([]float32(nil), probs...),
	}
	if pred.Confidence < c.Threshold {
		pred.Label = model.Unclassified
	}
	return pred
}

// TopK returns the k most probable classes in descending order of probability.
func (c *Classifier) TopK(probs []float32, classes []string, k int) []model.Prediction {
	if len(probs) != len(classes) || k <= 0 {
		return nil
	}
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	// Selection over a small class count.
	k = min(k, len(idx))
	for i := 0; i < k; i++ {
		m := i
		for j := i + 1; j < len(idx); j++ {
			if probs[idx[j]] > probs[idx[m]] {
				m = j
			}
		}
		idx[i], idx[m] = idx[m], idx[i]
	}
	out := make([]model.Prediction, k)
	for i := 0; i < k; i++ {
		out[i] = model.Prediction{Label: classes[idx[i]], Confidence: float64(probs[idx[i]])}
	}
	return out
}
