package nn

// Param is a trainable weight matrix stored row-major as Rows x Cols.
type Param struct {
	Name  string
	Rows  int
	Cols  int
	Value []float32

	// Sparse marks parameters whose gradients touch only a few rows per
	// step (embedding tables). Their gradients are kept per row.
	Sparse bool

	id int // position in the owning model's parameter list
}

func newParam(name string, rows, cols int) *Param {
	return &Param{Name: name, Rows: rows, Cols: cols, Value: make([]float32, rows*cols)}
}

// Size is the number of scalar weights.
func (p *Param) Size() int { return len(p.Value) }

// Row returns row i of the parameter.
func (p *Param) Row(i int) []float32 {
	return p.Value[i*p.Cols : (i+1)*p.Cols]
}

// Gradients accumulates parameter gradients for one worker.
type Gradients struct {
	params []*Param
	dense  [][]float32
	sparse []map[int32][]float32
}

// NewGradients allocates zeroed gradient buffers for params, which must be
// the list returned by Model.Params.
func NewGradients(params []*Param) *Gradients {
	g := &Gradients{
		params: params,
		dense:  make([][]float32, len(params)),
		sparse: make([]map[int32][]float32, len(params)),
	}
	for i, p := range params {
		if p.Sparse {
			g.sparse[i] = make(map[int32][]float32)
		} else {
			g.dense[i] = make([]float32, p.Size())
		}
	}
	return g
}

// Dense returns the gradient buffer of a dense parameter.
func (g *Gradients) Dense(p *Param) []float32 {
	return g.dense[p.id]
}

// Row returns the gradient row of a sparse parameter, creating it on first use.
func (g *Gradients) Row(p *Param, row int32) []float32 {
	m := g.sparse[p.id]
	r, ok := m[row]
	if !ok {
		r = make([]float32, p.Cols)
		m[row] = r
	}
	return r
}

// Rows returns the touched rows of a sparse parameter.
func (g *Gradients) Rows(p *Param) map[int32][]float32 {
	return g.sparse[p.id]
}

// Reset zeroes every buffer.
func (g *Gradients) Reset() {
	for i := range g.params {
		if g.sparse[i] != nil {
			clear(g.sparse[i])
			continue
		}
		clear(g.dense[i])
	}
}

// Add accumulates other into g. Both must come from the same parameter list.
func (g *Gradients) Add(other *Gradients) {
	for i := range g.params {
		if g.sparse[i] != nil {
			for row, src := range other.sparse[i] {
				dst, ok := g.sparse[i][row]
				if !ok {
					dst = make([]float32, len(src))
					g.sparse[i][row] = dst
				}
				axpy(1, src, dst)
			}
			continue
		}
		axpy(1, other.dense[i], g.dense[i])
	}
}

// Scale multiplies every gradient by f.
func (g *Gradients) Scale(f float32) {
	for i := range g.params {
		if g.sparse[i] != nil {
			for _, r := range g.sparse[i] {
				for j := range r {
					r[j] *= f
				}
			}
			continue
		}
		for j := range g.dense[i] {
			g.dense[i][j] *= f
		}
	}
}
