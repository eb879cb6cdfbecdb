package narrcnn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kratzket/try-git/internal/config"
	"github.com/kratzket/try-git/internal/dataset"
	"github.com/kratzket/try-git/internal/engine"
	"github.com/kratzket/try-git/internal/logging"
	"github.com/kratzket/try-git/internal/model"
	"github.com/kratzket/try-git/internal/pipeline"
)

// ErrNotFitted is returned by Classify before a successful Fit.
var ErrNotFitted = errors.New("narrcnn: classifier is not fitted")

// Unclassified is the label of predictions below the confidence threshold.
const Unclassified = model.Unclassified

// Record is one labelled narrative.
type Record struct {
	Text  string
	Label string
}

// Prediction is the classification of one narrative.
type Prediction struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Top           []Ranked           `json:"top,omitempty"` // set with WithTopK
}

// Ranked is one of the most probable labels of a narrative.
type Ranked struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Epoch holds the metrics of one training epoch.
type Epoch struct {
	Epoch       int           `json:"epoch"`
	Loss        float64       `json:"loss"`
	Accuracy    float64       `json:"accuracy"`
	ValLoss     float64       `json:"val_loss,omitempty"`
	ValAccuracy float64       `json:"val_accuracy,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// History is the result of Fit.
type History struct {
	Model  string  `json:"model"`
	Params int     `json:"params"`
	Epochs []Epoch `json:"epochs"`
	// Unseen counts validation records dropped because their label does
	// not occur in the training records.
	Unseen map[string]int `json:"unseen,omitempty"`
	// Dropped counts records of either split skipped for a blank label.
	Dropped int `json:"dropped,omitempty"`
}

// Classifier trains one architecture and classifies narratives with it.
type Classifier struct {
	cfg  *config.Config
	log  *zap.Logger
	topK int

	mu      sync.RWMutex
	engine  *engine.Engine
	classes []string
}

// New validates the options and returns an unfitted Classifier.
func New(opts ...Option) (*Classifier, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg, err := o.toConfig()
	if err != nil {
		return nil, fmt.Errorf("narrcnn: %w", err)
	}
	if o.topK < 0 {
		return nil, fmt.Errorf("narrcnn: top k must not be negative, got %d", o.topK)
	}
	return &Classifier{cfg: cfg, log: logging.OrNop(o.logger), topK: o.topK}, nil
}

// Fit learns the vocabulary, label set and weights from train, reporting
// validation metrics on valid after every epoch. Labels are trimmed and
// records with a blank label are skipped. A later Fit replaces the previous
// model only when it succeeds.
func (c *Classifier) Fit(ctx context.Context, train, valid []Record) (History, error) {
	trainN, d1 := dataset.Clean(toNarratives(train))
	validN, d2 := dataset.Clean(toNarratives(valid))
	if len(trainN) == 0 {
		return History{Dropped: d1 + d2}, errors.New("narrcnn: no labelled training records")
	}
	p := pipeline.New(c.cfg, nil, pipeline.WithLogger(c.log))
	prep, err := p.Prepare(trainN, validN)
	if err != nil {
		return History{Dropped: d1 + d2}, err
	}
	prep.DroppedBlank = d1 + d2
	runs, err := p.Train(ctx, prep)
	hist := History{Model: c.cfg.Models[0].Name, Unseen: prep.Unseen, Dropped: prep.DroppedBlank}
	if len(runs) > 0 {
		hist.Params = runs[0].Params
		for _, e := range runs[0].Epochs {
			hist.Epochs = append(hist.Epochs, Epoch{
				Epoch:       e.Epoch,
				Loss:        e.Loss,
				Accuracy:    e.Accuracy,
				ValLoss:     e.ValLoss,
				ValAccuracy: e.ValAccuracy,
				Duration:    e.Duration,
			})
		}
	}
	if err != nil {
		return hist, err
	}

	c.mu.Lock()
	c.engine = prep.Engine
	c.classes = prep.Engine.Encoder().Classes()
	c.mu.Unlock()
	return hist, nil
}

// Classes returns the label set learned by Fit, sorted.
func (c *Classifier) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.classes...)
}

// Classify predicts the label of one narrative.
func (c *Classifier) Classify(text string) (Prediction, error) {
	preds, err := c.ClassifyBatch([]string{text})
	if err != nil {
		return Prediction{}, err
	}
	return preds[0], nil
}

// ClassifyBatch predicts the labels of several narratives.
func (c *Classifier) ClassifyBatch(texts []string) ([]Prediction, error) {
	c.mu.RLock()
	eng, classes := c.engine, c.classes
	c.mu.RUnlock()
	if eng == nil {
		return nil, ErrNotFitted
	}

	preds, err := eng.ProcessBatch(texts)
	if err != nil {
		return nil, fmt.Errorf("narrcnn: %w", err)
	}
	out := make([]Prediction, len(preds))
	for i, p := range preds {
		out[i] = fromInternal(p, classes)
		for _, alt := range eng.Alternatives(p.Probabilities, c.topK) {
			out[i].Top = append(out[i].Top, Ranked{Label: alt.Label, Probability: alt.Confidence})
		}
	}
	return out, nil
}

func fromInternal(p model.Prediction, classes []string) Prediction {
	out := Prediction{Label: p.Label, Confidence: p.Confidence}
	if len(p.Probabilities) == len(classes) {
		out.Probabilities = make(map[string]float64, len(classes))
		for i, c := range classes {
			out.Probabilities[c] = float64(p.Probabilities[i])
		}
	}
	return out
}

func toNarratives(rs []Record) []model.Narrative {
	out := make([]model.Narrative, len(rs))
	for i, r := range rs {
		out[i] = model.Narrative{Text: r.Text, Label: strings.TrimSpace(r.Label)}
	}
	return out
}
