package model

// Narrative is one labelled incident record, produced by dataset loaders and
// consumed by the preprocessing stages.
type Narrative struct {
	DocumentNo string // source document id, may be empty
	Text       string // free-text incident description
	Label      string // injured body part code
}

// Texts returns the narrative texts in record order.
func Texts(ns []Narrative) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Text
	}
	return out
}

// Labels returns the labels in record order.
func Labels(ns []Narrative) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Label
	}
	return out
}
