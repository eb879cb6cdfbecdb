package model

// Unclassified is the label assigned when no class reaches the confidence threshold.
const Unclassified = "UNCLASSIFIED"

// Prediction is the classifier's answer for one narrative.
type Prediction struct {
	Label         string    `json:"label"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float32 `json:"probabilities,omitempty"` // softmax output, one entry per class
}
