package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kratzket/try-git/internal/config"
	"github.com/kratzket/try-git/internal/dataset"
	"github.com/kratzket/try-git/internal/dataset/remote"
	"github.com/kratzket/try-git/internal/engine"
	"github.com/kratzket/try-git/internal/engine/arch"
	"github.com/kratzket/try-git/internal/engine/sequence"
	"github.com/kratzket/try-git/internal/engine/trainer"
	"github.com/kratzket/try-git/internal/logging"
	"github.com/kratzket/try-git/internal/model"
	"github.com/kratzket/try-git/internal/output"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithSummaryWriter prints every model's layer table to w before training.
func WithSummaryWriter(w io.Writer) Option {
	return func(p *Pipeline) { p.summary = w }
}

// WithRunIDs replaces the uuid run id generator.
func WithRunIDs(f func() string) Option {
	return func(p *Pipeline) { p.newID = f }
}

// Pipeline runs the load → preprocess → train stages for every configured
// model and reports epochs to an output.
type Pipeline struct {
	cfg     *config.Config
	out     output.Output
	log     *zap.Logger
	summary io.Writer
	newID   func() string
}

// New creates a Pipeline. out may be nil when reports are not wanted.
func New(cfg *config.Config, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:   cfg,
		out:   out,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrNop(p.log)
	return p
}

// Prepared is the output of the preprocessing stages.
type Prepared struct {
	Engine       *engine.Engine
	TrainRecords []model.Narrative
	ValidRecords []model.Narrative
	Train        trainer.Dataset
	Valid        trainer.Dataset
	DroppedBlank int            // records without a label, both splits
	Unseen       map[string]int // validation labels absent from training, with counts
}

// Load reads both splits and drops records without a label.
func (p *Pipeline) Load(ctx context.Context) (train, valid []model.Narrative, dropped int, err error) {
	client := remote.New(remote.WithToken(p.cfg.Data.Token))
	train, err = dataset.Load(ctx, p.cfg.Data.TrainPath, p.cfg.Data.Format, dataset.WithRemote(client))
	if err != nil {
		return nil, nil, 0, fmt.Errorf("pipeline: load train: %w", err)
	}
	valid, err = dataset.Load(ctx, p.cfg.Data.ValidPath, p.cfg.Data.Format, dataset.WithRemote(client))
	if err != nil {
		return nil, nil, 0, fmt.Errorf("pipeline: load valid: %w", err)
	}
	train, d1 := dataset.Clean(train)
	valid, d2 := dataset.Clean(valid)
	if len(train) == 0 {
		return nil, nil, 0, fmt.Errorf("pipeline: %w: no labelled training records", dataset.ErrEmpty)
	}
	p.log.Info("data loaded",
		zap.Int("train", len(train)),
		zap.Int("valid", len(valid)),
		zap.Int("dropped_unlabelled", d1+d2),
	)
	return train, valid, d1 + d2, nil
}

// Prepare fits the tokenizer and label encoder on train and encodes both
// splits. Validation records whose label never occurs in train are dropped
// and counted in Unseen.
func (p *Pipeline) Prepare(train, valid []model.Narrative) (*Prepared, error) {
	eng := engine.Fit(train, p.cfg.Prep, p.cfg.Train.ConfidenceThreshold)

	known, unseen := eng.Encoder().Filter(valid)
	for _, label := range sortedKeys(unseen) {
		p.log.Warn("validation label not seen in training, records dropped",
			zap.String("label", label), zap.Int("records", unseen[label]))
	}

	trainDS, err := eng.Prepare(train)
	if err != nil {
		return nil, fmt.Errorf("pipeline: prepare train: %w", err)
	}
	validDS, err := eng.Prepare(known)
	if err != nil {
		return nil, fmt.Errorf("pipeline: prepare valid: %w", err)
	}

	p.log.Info("preprocessing fitted",
		zap.Int("vocabulary", eng.Tokenizer().Len()),
		zap.Int("embedding_rows", eng.VocabSize()),
		zap.Int("classes", eng.Encoder().NumClasses()),
		zap.Int("max_len", eng.MaxLen()),
	)
	return &Prepared{
		Engine:       eng,
		TrainRecords: train,
		ValidRecords: known,
		Train:        trainDS,
		Valid:        validDS,
		Unseen:       unseen,
	}, nil
}

// Run executes every stage and trains each configured model in turn. When
// ctx is cancelled the interrupted run is included in the result, marked
// Interrupted, alongside the context error.
func (p *Pipeline) Run(ctx context.Context) ([]model.RunSummary, error) {
	train, valid, dropped, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	prep, err := p.Prepare(train, valid)
	if err != nil {
		return nil, err
	}
	prep.DroppedBlank = dropped
	return p.Train(ctx, prep)
}

// Train fits every configured model on prepared data. Afterwards the
// prepared engine classifies with the last model that finished training.
func (p *Pipeline) Train(ctx context.Context, prep *Prepared) ([]model.RunSummary, error) {
	var summaries []model.RunSummary
	for i, mc := range p.cfg.Models {
		sum, err := p.trainOne(ctx, i, mc, prep)
		if sum.RunID != "" {
			summaries = append(summaries, sum)
		}
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

func (p *Pipeline) trainOne(ctx context.Context, i int, mc config.ModelConfig, prep *Prepared) (model.RunSummary, error) {
	eng := prep.Engine
	rng := rand.New(rand.NewPCG(p.cfg.Train.Seed, uint64(i)+1<<32))
	m, err := arch.New(mc, eng.MaxLen(), eng.VocabSize(), eng.Encoder().NumClasses(), rng)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("pipeline: %w", err)
	}
	if p.summary != nil {
		fmt.Fprintln(p.summary, m.Summary())
	}

	runID := p.newID()
	log := p.log.With(zap.String("run_id", runID))
	log.Info("model built", zap.String("model", mc.Name), zap.String("params", humanize.Comma(int64(m.NumParams()))))

	tr := trainer.New(
		trainer.WithEpochs(p.cfg.Train.Epochs),
		trainer.WithBatchSize(p.cfg.Train.BatchSize),
		trainer.WithLearningRate(p.cfg.Train.LearningRate),
		trainer.WithSeed(p.cfg.Train.Seed+uint64(i)),
		trainer.WithShuffle(p.cfg.Train.Shuffle),
		trainer.WithLazyAdam(p.cfg.Train.LazyAdam),
		trainer.WithWorkers(p.cfg.Train.Workers),
		trainer.WithClasses(eng.Encoder().Classes()),
		trainer.WithRunID(runID),
		trainer.WithOutput(p.out),
		trainer.WithLogger(log),
	)

	start := time.Now()
	hist, err := tr.Fit(ctx, m, prep.Train, prep.Valid)
	sum := model.RunSummary{
		RunID:    runID,
		Model:    mc.Name,
		Params:   m.NumParams(),
		Epochs:   hist.Epochs,
		Duration: time.Since(start),
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			sum.Interrupted = true
			return sum, err
		}
		return sum, fmt.Errorf("pipeline: train %s: %w", mc.Name, err)
	}
	if err := eng.SetModel(m); err != nil {
		return sum, fmt.Errorf("pipeline: %w", err)
	}
	return sum, nil
}

// Stats describes the data and preprocessing without training.
type Stats struct {
	TrainRecords int
	ValidRecords int // after dropping unseen labels
	DroppedBlank int
	Unseen       map[string]int
	Vocabulary   int
	Classes      []ClassCount
	TrainLengths sequence.LengthStats
	ValidLengths sequence.LengthStats
}

// ClassCount is the number of records per class in each split.
type ClassCount struct {
	Label string
	Train int
	Valid int
}

// Inspect loads and preprocesses the data and reports statistics.
func (p *Pipeline) Inspect(ctx context.Context) (*Prepared, Stats, error) {
	train, valid, dropped, err := p.Load(ctx)
	if err != nil {
		return nil, Stats{}, err
	}
	prep, err := p.Prepare(train, valid)
	if err != nil {
		return nil, Stats{}, err
	}
	prep.DroppedBlank = dropped

	tok := prep.Engine.Tokenizer()
	st := Stats{
		TrainRecords: len(prep.TrainRecords),
		ValidRecords: len(prep.ValidRecords),
		DroppedBlank: dropped,
		Unseen:       prep.Unseen,
		Vocabulary:   tok.Len(),
		TrainLengths: sequence.Stats(tok.TextsToSequences(model.Texts(prep.TrainRecords)), p.cfg.Prep.MaxLen),
		ValidLengths: sequence.Stats(tok.TextsToSequences(model.Texts(prep.ValidRecords)), p.cfg.Prep.MaxLen),
	}
	counts := map[string]*ClassCount{}
	for _, c := range prep.Engine.Encoder().Classes() {
		counts[c] = &ClassCount{Label: c}
	}
	for _, r := range prep.TrainRecords {
		counts[r.Label].Train++
	}
	for _, r := range prep.ValidRecords {
		counts[r.Label].Valid++
	}
	for _, c := range prep.Engine.Encoder().Classes() {
		st.Classes = append(st.Classes, *counts[c])
	}
	return prep, st, nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	if p.out == nil {
		return nil
	}
	return p.out.Close()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
