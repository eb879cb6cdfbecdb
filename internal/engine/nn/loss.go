package nn

import "math"

// ProbEpsilon bounds probabilities away from zero inside the log.
const ProbEpsilon = 1e-7

// CategoricalCrossEntropy returns -sum(target * log(p)) and dL/dp for one
// sample. target is a one-hot (or soft) distribution of the same width as p.
func CategoricalCrossEntropy(p, target []float32) (float64, []float32) {
	grad := make([]float32, len(p))
	var loss float64
	for i, y := range target {
		if y == 0 {
			continue
		}
		pi := math.Min(math.Max(float64(p[i]), ProbEpsilon), 1-ProbEpsilon)
		loss -= float64(y) * math.Log(pi)
		grad[i] = float32(-float64(y) / pi)
	}
	return loss, grad
}

// Argmax returns the index of the largest value, the first on ties.
func Argmax(v []float32) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
