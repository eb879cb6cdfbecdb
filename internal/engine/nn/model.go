package nn

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/dustin/go-humanize"
)

// Model is an embedding lookup followed by a stack of layers ending in a
// flat output, typically a softmax Dense.
type Model struct {
	Name   string
	SeqLen int
	Embed  *Embedding
	Layers []Layer

	shapes []Shape // output shape of every layer
	params []*Param
	built  bool
}

// Tape records one forward pass for Backward.
type Tape struct {
	ids    []int32
	caches []any
}

// NewModel assembles a model over sequences of seqLen token ids.
func NewModel(name string, seqLen int, embed *Embedding, layers ...Layer) *Model {
	return &Model{Name: name, SeqLen: seqLen, Embed: embed, Layers: layers}
}

// Build initialises every parameter from rng and checks layer shapes.
func (m *Model) Build(rng *rand.Rand) error {
	if m.SeqLen <= 0 {
		return fmt.Errorf("%w: sequence length %d", ErrShape, m.SeqLen)
	}
	if err := m.Embed.Build(rng); err != nil {
		return fmt.Errorf("model %s: %w", m.Name, err)
	}

	s := Shape{Len: m.SeqLen, Dim: m.Embed.Dim}
	m.shapes = m.shapes[:0]
	for i, l := range m.Layers {
		var err error
		s, err = l.Build(s, rng)
		if err != nil {
			return fmt.Errorf("model %s: layer %d (%s): %w", m.Name, i, l.Describe(), err)
		}
		m.shapes = append(m.shapes, s)
	}
	if !s.Flat() {
		return fmt.Errorf("%w: model %s ends with %s, want a flat vector", ErrShape, m.Name, s)
	}

	m.params = append(m.params[:0], m.Embed.W)
	for _, l := range m.Layers {
		m.params = append(m.params, l.Params()...)
	}
	for i, p := range m.params {
		p.id = i
	}
	m.built = true
	return nil
}

// Params lists every trainable parameter, embedding table first.
func (m *Model) Params() []*Param { return m.params }

// NumParams is the total number of trainable scalars.
func (m *Model) NumParams() int {
	n := 0
	for _, p := range m.params {
		n += p.Size()
	}
	return n
}

// OutputDim is the width of the model output.
func (m *Model) OutputDim() int {
	if len(m.shapes) == 0 {
		return m.Embed.Dim
	}
	return m.shapes[len(m.shapes)-1].Dim
}

// Forward runs one sequence through the model and returns the output vector
// together with the tape Backward needs.
func (m *Model) Forward(ids []int32, pass Pass) ([]float32, *Tape, error) {
	if !m.built {
		return nil, nil, fmt.Errorf("nn: model %s is not built", m.Name)
	}
	if len(ids) != m.SeqLen {
		return nil, nil, fmt.Errorf("%w: model %s expects %d ids, got %d", ErrShape, m.Name, m.SeqLen, len(ids))
	}
	h, err := m.Embed.Forward(ids)
	if err != nil {
		return nil, nil, err
	}
	tape := &Tape{ids: ids, caches: make([]any, len(m.Layers))}
	for i, l := range m.Layers {
		h, tape.caches[i] = l.Forward(h, pass)
	}
	return h.Data, tape, nil
}

// Backward propagates dOut (dL/doutput) through the tape into g.
func (m *Model) Backward(tape *Tape, dOut []float32, g *Gradients) {
	d := Vector(dOut)
	for i := len(m.Layers) - 1; i >= 0; i-- {
		d = m.Layers[i].Backward(tape.caches[i], d, g)
	}
	m.Embed.Backward(tape.ids, d, g)
}

// Predict returns the inference-mode output for one sequence.
func (m *Model) Predict(ids []int32) ([]float32, error) {
	out, _, err := m.Forward(ids, Pass{})
	return out, err
}

// Summary renders a layer table with output shapes and parameter counts.
func (m *Model) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model: %q\n", m.Name)
	fmt.Fprintf(&b, "%-48s %-14s %12s\n", "Layer", "Output shape", "Params")
	b.WriteString(strings.Repeat("=", 76) + "\n")

	row := func(indent int, desc string, s Shape, params []*Param) {
		n := 0
		for _, p := range params {
			n += p.Size()
		}
		name := strings.Repeat("  ", indent) + desc
		fmt.Fprintf(&b, "%-48s %-14s %12s\n", name, s, humanize.Comma(int64(n)))
	}

	row(0, m.Embed.Describe(), Shape{Len: m.SeqLen, Dim: m.Embed.Dim}, []*Param{m.Embed.W})
	for i, l := range m.Layers {
		row(0, l.Describe(), m.shapes[i], l.Params())
		if p, ok := l.(*Parallel); ok {
			for bi, branch := range p.Branches {
				for li, bl := range branch {
					row(1, fmt.Sprintf("[%d] %s", bi, bl.Describe()), p.shapes[bi][li], bl.Params())
				}
			}
		}
	}
	b.WriteString(strings.Repeat("=", 76) + "\n")
	fmt.Fprintf(&b, "Total params: %s\n", humanize.Comma(int64(m.NumParams())))
	return b.String()
}
