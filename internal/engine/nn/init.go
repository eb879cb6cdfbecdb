package nn

import (
	"math"
	"math/rand/v2"
)

func uniform(rng *rand.Rand, v []float32, lo, hi float64) {
	for i := range v {
		v[i] = float32(lo + (hi-lo)*rng.Float64())
	}
}

// glorotUniform draws from U(-l, l) with l = sqrt(6 / (fanIn + fanOut)).
func glorotUniform(rng *rand.Rand, v []float32, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	uniform(rng, v, -limit, limit)
}
