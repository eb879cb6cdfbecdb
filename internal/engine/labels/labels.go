package labels

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kratzket/try-git/internal/model"
)

// ErrUnknownLabel is returned when a label was not seen during Fit.
var ErrUnknownLabel = errors.New("labels: unknown label")

// ErrNotFitted is returned when encoding before Fit.
var ErrNotFitted = errors.New("labels: encoder is not fitted")

// Encoder maps the closed set of training labels to one-hot vectors. Classes
// are sorted, so the encoding does not depend on record order.
type Encoder struct {
	classes []string
	index   map[string]int
}

// Fit builds the class set from labels. Empty labels are a class like any
// other, so callers that want to skip them must filter first.
func Fit(labels []string) *Encoder {
	seen := make(map[string]bool)
	var classes []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)

	e := &Encoder{classes: classes, index: make(map[string]int, len(classes))}
	for i, c := range classes {
		e.index[c] = i
	}
	return e
}

// NumClasses is the one-hot width.
func (e *Encoder) NumClasses() int {
	return len(e.classes)
}

// Classes returns the sorted class labels; position i is one-hot column i.
func (e *Encoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Index returns the column for label.
func (e *Encoder) Index(label string) (int, bool) {
	i, ok := e.index[label]
	return i, ok
}

// Inverse returns the label of column i.
func (e *Encoder) Inverse(i int) (string, bool) {
	if i < 0 || i >= len(e.classes) {
		return "", false
	}
	return e.classes[i], true
}

// Indices maps labels to class columns. It fails on the first unseen label
// rather than producing an undefined encoding.
func (e *Encoder) Indices(labels []string) ([]int, error) {
	if len(e.classes) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := e.index[l]
		if !ok {
			return nil, fmt.Errorf("%w %q at row %d", ErrUnknownLabel, l, i)
		}
		out[i] = idx
	}
	return out, nil
}

// Transform returns one one-hot row per label, each of width NumClasses.
func (e *Encoder) Transform(labels []string) ([][]float32, error) {
	idx, err := e.Indices(labels)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(idx))
	for i, c := range idx {
		row := make([]float32, len(e.classes))
		row[c] = 1
		out[i] = row
	}
	return out, nil
}

// Filter splits records into those whose label is known and those whose
// label was never seen in training. unseen counts dropped records per label.
func (e *Encoder) Filter(records []model.Narrative) (known []model.Narrative, unseen map[string]int) {
	known = make([]model.Narrative, 0, len(records))
	for _, r := range records {
		if _, ok := e.index[r.Label]; ok {
			known = append(known, r)
			continue
		}
		if unseen == nil {
			unseen = make(map[string]int)
		}
		unseen[r.Label]++
	}
	return known, unseen
}
