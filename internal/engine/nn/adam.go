package nn

import "math"

// Adam implements the Adam optimiser with the bias-corrected step size
// folded into the learning rate. By default every row of a sparse parameter
// has its moments decayed on each step, rows outside the gradient counting
// as zero. With Lazy set only rows present in the gradient are touched.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	Lazy         bool

	t    int
	m, v map[*Param][]float32
}

// NewAdam returns Adam with the usual defaults for everything except the
// learning rate.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		m:            make(map[*Param][]float32),
		v:            make(map[*Param][]float32),
	}
}

// Steps returns how many updates have been applied.
func (a *Adam) Steps() int { return a.t }

// Step applies one update from g to params.
func (a *Adam) Step(params []*Param, g *Gradients) {
	a.t++
	t := float64(a.t)
	corr1 := 1 - math.Pow(a.Beta1, t)
	corr2 := 1 - math.Pow(a.Beta2, t)
	lr := float32(a.LearningRate * math.Sqrt(corr2) / corr1)
	eps := float32(a.Epsilon * math.Sqrt(corr2))
	b1, b2 := float32(a.Beta1), float32(a.Beta2)

	for _, p := range params {
		m, ok := a.m[p]
		if !ok {
			m = make([]float32, p.Size())
			a.m[p] = m
			a.v[p] = make([]float32, p.Size())
		}
		v := a.v[p]

		if p.Sparse && a.Lazy {
			for row, grad := range g.Rows(p) {
				off := int(row) * p.Cols
				update(p.Value[off:off+p.Cols], m[off:off+p.Cols], v[off:off+p.Cols], grad, lr, b1, b2, eps)
			}
			continue
		}
		if p.Sparse {
			rows := g.Rows(p)
			for row := 0; row < p.Rows; row++ {
				off := row * p.Cols
				update(p.Value[off:off+p.Cols], m[off:off+p.Cols], v[off:off+p.Cols], rows[int32(row)], lr, b1, b2, eps)
			}
			continue
		}
		update(p.Value, m, v, g.Dense(p), lr, b1, b2, eps)
	}
}

// update applies one step to w; a nil grad is a zero gradient.
func update(w, m, v, grad []float32, lr, b1, b2, eps float32) {
	for i := range w {
		var gi float32
		if grad != nil {
			gi = grad[i]
		}
		m[i] = b1*m[i] + (1-b1)*gi
		v[i] = b2*v[i] + (1-b2)*gi*gi
		w[i] -= lr * m[i] / (float32(math.Sqrt(float64(v[i]))) + eps)
	}
}
