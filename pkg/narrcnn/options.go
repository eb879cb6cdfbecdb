package narrcnn

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kratzket/try-git/internal/config"
)

// ErrUnknownArchitecture is returned by New for an architecture name
// without a preset.
var ErrUnknownArchitecture = errors.New("unknown architecture")

type options struct {
	arch                string
	embeddingDim        int
	maxLen              int
	epochs              int
	batchSize           int
	learningRate        float64
	seed                uint64
	workers             int
	confidenceThreshold float64
	topK                int
	logger              *zap.Logger
}

// Option configures a Classifier.
type Option func(*options)

// WithArchitecture selects "single" (one convolution width) or "multi"
// (parallel widths 2 to 5). Default: "single".
func WithArchitecture(name string) Option {
	return func(o *options) { o.arch = name }
}

// WithEmbeddingDim overrides the word vector size of the architecture.
func WithEmbeddingDim(dim int) Option {
	return func(o *options) { o.embeddingDim = dim }
}

// WithMaxLen sets the padded sequence length. Default: 200.
func WithMaxLen(n int) Option {
	return func(o *options) { o.maxLen = n }
}

// WithEpochs sets the number of training epochs. Default: 5.
func WithEpochs(n int) Option {
	return func(o *options) { o.epochs = n }
}

// WithBatchSize sets the mini-batch size. Default: 32.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithLearningRate sets the Adam learning rate. Default: 0.001.
func WithLearningRate(lr float64) Option {
	return func(o *options) { o.learningRate = lr }
}

// WithSeed fixes weight initialisation, shuffling and dropout.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithWorkers bounds training parallelism. 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithConfidenceThreshold sets the minimum top probability for a label.
// Below it, predictions are UNCLASSIFIED. Default: 0.
func WithConfidenceThreshold(t float64) Option {
	return func(o *options) { o.confidenceThreshold = t }
}

// WithTopK attaches the k most probable labels to every prediction.
// Default: 0, none.
func WithTopK(k int) Option {
	return func(o *options) { o.topK = k }
}

// WithLogger sets the logger used during training. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func defaultOptions() options {
	d := config.DefaultConfig()
	return options{
		arch:         "single",
		maxLen:       d.Prep.MaxLen,
		epochs:       d.Train.Epochs,
		batchSize:    d.Train.BatchSize,
		learningRate: d.Train.LearningRate,
		seed:         d.Train.Seed,
	}
}

// toConfig expands options into a single-model run configuration.
func (o options) toConfig() (*config.Config, error) {
	mc, ok := config.Preset(o.arch)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownArchitecture, o.arch)
	}
	if o.embeddingDim > 0 {
		mc.EmbeddingDim = o.embeddingDim
	}

	cfg := config.DefaultConfig()
	cfg.Prep.MaxLen = o.maxLen
	cfg.Train.Epochs = o.epochs
	cfg.Train.BatchSize = o.batchSize
	cfg.Train.LearningRate = o.learningRate
	cfg.Train.Seed = o.seed
	cfg.Train.Workers = o.workers
	cfg.Train.ConfidenceThreshold = o.confidenceThreshold
	cfg.Models = []config.ModelConfig{mc}
	return cfg, cfg.Validate()
}
