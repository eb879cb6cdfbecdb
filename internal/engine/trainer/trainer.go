// Package trainer fits nn models with mini-batch Adam and reports progress
// once per epoch.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kratzket/try-git/internal/engine/nn"
	"github.com/kratzket/try-git/internal/logging"
	"github.com/kratzket/try-git/internal/model"
	"github.com/kratzket/try-git/internal/output"
)

// Option configures a Trainer.
type Option func(*Trainer)

// WithEpochs sets the number of passes over the training data. Default: 5.
func WithEpochs(n int) Option { return func(t *Trainer) { t.epochs = n } }

// WithBatchSize sets the mini-batch size. Default: 32.
func WithBatchSize(n int) Option { return func(t *Trainer) { t.batchSize = n } }

// WithLearningRate sets the Adam step size. Default: 0.001.
func WithLearningRate(lr float64) Option { return func(t *Trainer) { t.lr = lr } }

// WithSeed seeds shuffling and dropout masks.
func WithSeed(seed uint64) Option { return func(t *Trainer) { t.seed = seed } }

// WithShuffle toggles per-epoch shuffling of the training set. Default: on.
func WithShuffle(on bool) Option { return func(t *Trainer) { t.shuffle = on } }

// WithLazyAdam restricts embedding updates to the rows looked up in each
// batch. Default: off, every row's moments decay on every step.
func WithLazyAdam(on bool) Option { return func(t *Trainer) { t.lazy = on } }

// WithWorkers bounds the goroutines sharing each batch. 0 uses GOMAXPROCS.
func WithWorkers(n int) Option { return func(t *Trainer) { t.workers = n } }

// WithClasses names the output columns for per-class validation recall.
func WithClasses(classes []string) Option { return func(t *Trainer) { t.classes = classes } }

// WithRunID tags every epoch report.
func WithRunID(id string) Option { return func(t *Trainer) { t.runID = id } }

// WithOutput sends every epoch report to out.
func WithOutput(out output.Output) Option { return func(t *Trainer) { t.out = out } }

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option { return func(t *Trainer) { t.log = l } }

// Trainer runs mini-batch gradient descent. Within a batch, samples are split
// across workers that each accumulate into private gradient buffers; the
// buffers are summed in worker order and averaged before one Adam step, so a
// fixed seed and worker count reproduce a run exactly.
type Trainer struct {
	epochs    int
	batchSize int
	lr        float64
	seed      uint64
	shuffle   bool
	lazy      bool
	workers   int
	classes   []string
	runID     string
	out       output.Output
	log       *zap.Logger
}

// New creates a Trainer with the given options.
func New(opts ...Option) *Trainer {
	t := &Trainer{
		epochs:    5,
		batchSize: 32,
		lr:        0.001,
		shuffle:   true,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.workers <= 0 {
		t.workers = runtime.GOMAXPROCS(0)
	}
	t.log = logging.OrNop(t.log)
	return t
}

// History is the per-epoch record of one Fit call.
type History struct {
	Epochs []model.EpochReport
	Steps  int // optimizer updates applied
}

// worker holds the per-goroutine state reused across batches.
type worker struct {
	grads *nn.Gradients
	rng   *rand.Rand
	loss  float64
	hits  int
}

// Fit trains m on train, evaluating on valid after each epoch when valid is
// non-empty. Cancellation is checked between batches; the history up to the
// last completed epoch is returned together with the context error.
func (t *Trainer) Fit(ctx context.Context, m *nn.Model, train, valid Dataset) (History, error) {
	var hist History
	if t.epochs <= 0 || t.batchSize <= 0 {
		return hist, fmt.Errorf("trainer: epochs %d and batch size %d must be positive", t.epochs, t.batchSize)
	}
	if train.Len() == 0 {
		return hist, errors.New("trainer: empty training set")
	}
	if err := train.validate(m); err != nil {
		return hist, err
	}
	if err := valid.validate(m); err != nil {
		return hist, err
	}

	params := m.Params()
	opt := nn.NewAdam(t.lr)
	opt.Lazy = t.lazy
	nw := min(t.workers, t.batchSize)
	workers := make([]*worker, nw)
	for w := range workers {
		workers[w] = &worker{
			grads: nn.NewGradients(params),
			rng:   rand.New(rand.NewPCG(t.seed, uint64(w)+1)),
		}
	}
	shuffler := rand.New(rand.NewPCG(t.seed, 0))
	order := make([]int, train.Len())
	for i := range order {
		order[i] = i
	}

	log := t.log.With(zap.String("model", m.Name))
	log.Info("training started",
		zap.Int("samples", train.Len()),
		zap.Int("val_samples", valid.Len()),
		zap.Int("params", m.NumParams()),
		zap.Int("epochs", t.epochs),
		zap.Int("batch_size", t.batchSize),
		zap.Int("workers", nw),
	)

	for epoch := 1; epoch <= t.epochs; epoch++ {
		start := time.Now()
		if t.shuffle {
			shuffler.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var lossSum float64
		var hits int
		for lo := 0; lo < len(order); lo += t.batchSize {
			if err := ctx.Err(); err != nil {
				log.Warn("training interrupted", zap.Int("epoch", epoch), zap.Int("steps", opt.Steps()))
				hist.Steps = opt.Steps()
				return hist, err
			}
			batch := order[lo:min(lo+t.batchSize, len(order))]
			l, h, err := t.step(ctx, m, train, batch, workers)
			if err != nil {
				return hist, err
			}
			opt.Step(params, workers[0].grads)
			lossSum += l
			hits += h
		}

		rep := model.EpochReport{
			RunID:     t.runID,
			Model:     m.Name,
			Epoch:     epoch,
			Epochs:    t.epochs,
			Timestamp: time.Now().UTC(),
			Samples:   train.Len(),
			Loss:      lossSum / float64(train.Len()),
			Accuracy:  float64(hits) / float64(train.Len()),
		}
		if valid.Len() > 0 {
			met, err := Evaluate(ctx, m, valid, t.classes, t.workers)
			if err != nil {
				if ctx.Err() != nil {
					hist.Steps = opt.Steps()
					return hist, ctx.Err()
				}
				return hist, err
			}
			rep.ValSamples = met.Samples
			rep.ValLoss = met.Loss
			rep.ValAccuracy = met.Accuracy
			rep.ValRecall = met.Recall
		}
		rep.Duration = time.Since(start)

		log.Info("epoch complete",
			zap.Int("epoch", epoch),
			zap.Float64("loss", rep.Loss),
			zap.Float64("accuracy", rep.Accuracy),
			zap.Float64("val_loss", rep.ValLoss),
			zap.Float64("val_accuracy", rep.ValAccuracy),
			zap.Duration("elapsed", rep.Duration),
		)
		hist.Epochs = append(hist.Epochs, rep)
		if t.out != nil {
			if err := t.out.Write(ctx, rep); err != nil {
				return hist, fmt.Errorf("trainer: output: %w", err)
			}
		}
	}
	hist.Steps = opt.Steps()
	return hist, nil
}

// step runs forward and backward passes for one batch and leaves the mean
// gradient in workers[0].grads. It returns the summed loss and the number of
// correct predictions.
func (t *Trainer) step(ctx context.Context, m *nn.Model, ds Dataset, batch []int, workers []*worker) (float64, int, error) {
	parts := chunks(len(batch), len(workers))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(len(workers))
	for w, r := range parts {
		wk := workers[w]
		wk.grads.Reset()
		wk.loss, wk.hits = 0, 0
		g.Go(func() error {
			pass := nn.Pass{Train: true, Rng: wk.rng}
			for _, i := range batch[r[0]:r[1]] {
				p, tape, err := m.Forward(ds.X[i], pass)
				if err != nil {
					return fmt.Errorf("trainer: sample %d: %w", i, err)
				}
				l, dp := nn.CategoricalCrossEntropy(p, ds.Y[i])
				m.Backward(tape, dp, wk.grads)
				wk.loss += l
				if nn.Argmax(p) == nn.Argmax(ds.Y[i]) {
					wk.hits++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	lead := workers[0]
	loss, hits := lead.loss, lead.hits
	for _, wk := range workers[1:len(parts)] {
		lead.grads.Add(wk.grads)
		loss += wk.loss
		hits += wk.hits
	}
	lead.grads.Scale(1 / float32(len(batch)))
	return loss, hits, nil
}
