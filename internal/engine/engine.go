package engine

import (
	"errors"
	"fmt"

	"github.com/kratzket/try-git/internal/config"
	"github.com/kratzket/try-git/internal/engine/classifier"
	"github.com/kratzket/try-git/internal/engine/labels"
	"github.com/kratzket/try-git/internal/engine/nn"
	"github.com/kratzket/try-git/internal/engine/sequence"
	"github.com/kratzket/try-git/internal/engine/text"
	"github.com/kratzket/try-git/internal/engine/trainer"
	"github.com/kratzket/try-git/internal/model"
)

// ErrNoModel is returned by Process before a model is attached.
var ErrNoModel = errors.New("engine: no model attached")

// Engine orchestrates the tokenize → pad → predict → classify path shared by
// training preparation and inference.
type Engine struct {
	tokenizer  *text.Tokenizer
	encoder    *labels.Encoder
	maxLen     int
	classifier *classifier.Classifier
	model      *nn.Model
}

// New creates an Engine from fitted preprocessing components.
func New(tok *text.Tokenizer, enc *labels.Encoder, maxLen int, cls *classifier.Classifier) *Engine {
	return &Engine{
		tokenizer:  tok,
		encoder:    enc,
		maxLen:     maxLen,
		classifier: cls,
	}
}

// TokenizerOptions maps preprocessing settings to tokenizer options.
func TokenizerOptions(p config.PrepConfig) []text.Option {
	return []text.Option{
		text.WithNumWords(p.NumWords),
		text.WithOOVToken(p.OOVToken),
		text.WithFilters(p.Filters),
		text.WithLowercase(p.Lowercase),
		text.WithAccentFolding(p.FoldAccents),
	}
}

// Fit builds the tokenizer and label encoder from the training records only.
func Fit(train []model.Narrative, prep config.PrepConfig, threshold float64) *Engine {
	tok := text.NewTokenizer(TokenizerOptions(prep)...)
	tok.Fit(model.Texts(train))
	return New(tok, labels.Fit(model.Labels(train)), prep.MaxLen, classifier.New(threshold))
}

// Tokenizer returns the fitted tokenizer.
func (e *Engine) Tokenizer() *text.Tokenizer { return e.tokenizer }

// Encoder returns the fitted label encoder.
func (e *Engine) Encoder() *labels.Encoder { return e.encoder }

// MaxLen is the fixed sequence length fed to models.
func (e *Engine) MaxLen() int { return e.maxLen }

// VocabSize is the embedding table height models need.
func (e *Engine) VocabSize() int { return e.tokenizer.VocabSize() }

// SetModel attaches the model used by Process. Its input length and output
// width must match the engine.
func (e *Engine) SetModel(m *nn.Model) error {
	if m.SeqLen != e.maxLen {
		return fmt.Errorf("%w: model %s takes %d ids, engine pads to %d", nn.ErrShape, m.Name, m.SeqLen, e.maxLen)
	}
	if m.OutputDim() != e.encoder.NumClasses() {
		return fmt.Errorf("%w: model %s outputs %d classes, encoder has %d", nn.ErrShape, m.Name, m.OutputDim(), e.encoder.NumClasses())
	}
	e.model = m
	return nil
}

// Encode converts texts to padded id sequences of length MaxLen.
func (e *Engine) Encode(texts []string) ([][]int32, error) {
	seqs, err := sequence.Pad(e.tokenizer.TextsToSequences(texts), e.maxLen)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return seqs, nil
}

// Prepare encodes records into a training dataset. Every label must be
// known to the encoder; filter with Encoder().Filter first.
func (e *Engine) Prepare(records []model.Narrative) (trainer.Dataset, error) {
	x, err := e.Encode(model.Texts(records))
	if err != nil {
		return trainer.Dataset{}, err
	}
	y, err := e.encoder.Transform(model.Labels(records))
	if err != nil {
		return trainer.Dataset{}, fmt.Errorf("engine: %w", err)
	}
	return trainer.Dataset{X: x, Y: y}, nil
}

// Process classifies a single narrative.
func (e *Engine) Process(narrative string) (model.Prediction, error) {
	preds, err := e.ProcessBatch([]string{narrative})
	if err != nil {
		return model.Prediction{}, err
	}
	return preds[0], nil
}

// ProcessBatch classifies a slice of narratives.
func (e *Engine) ProcessBatch(narratives []string) ([]model.Prediction, error) {
	if e.model == nil {
		return nil, ErrNoModel
	}
	seqs, err := e.Encode(narratives)
	if err != nil {
		return nil, err
	}
	classes := e.encoder.Classes()
	out := make([]model.Prediction, 0, len(seqs))
	for i, ids := range seqs {
		probs, err := e.model.Predict(ids)
		if err != nil {
			return nil, fmt.Errorf("engine: narrative %d: %w", i, err)
		}
		out = append(out, e.classifier.Classify(probs, classes))
	}
	return out, nil
}

// Alternatives ranks the k most probable classes of a probability vector
// returned in a Prediction.
func (e *Engine) Alternatives(probs []float32, k int) []model.Prediction {
	return e.classifier.TopK(probs, e.encoder.Classes(), k)
}
