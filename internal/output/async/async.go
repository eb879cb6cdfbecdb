package async

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kratzket/try-git/internal/model"
	"github.com/kratzket/try-git/internal/output"
)

const (
	defaultBufferSize   = 64
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 64.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately (dropping the report) when
// the buffer is full, instead of blocking.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithLogger sets the logger used for drop and drain warnings.
func WithLogger(l *zap.Logger) Option {
	return func(a *Async) { a.log = l }
}

// Async decouples report production from consumption via a buffered channel,
// so a slow sink never stalls the training loop. A background goroutine
// drains the channel to the wrapped output. Errors from the inner output are
// passed to errFunc rather than propagated to the caller.
type Async struct {
	inner      output.Output
	ch         chan model.EpochReport
	done       chan struct{}
	errFunc    func(error)
	log        *zap.Logger
	bufSize    int
	dropOnFull bool
	closeOnce  sync.Once
}

// New wraps an output.Output in an async channel-based writer.
// The background drain goroutine starts immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		log:     zap.L(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.errFunc == nil {
		a.errFunc = func(err error) { a.log.Warn("async output write error", zap.Error(err)) }
	}
	a.ch = make(chan model.EpochReport, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write sends the report into the channel. By default it blocks while the
// channel is full. With WithDropOnFull it returns nil immediately and the
// report is lost.
func (a *Async) Write(_ context.Context, report model.EpochReport) error {
	if a.dropOnFull {
		select {
		case a.ch <- report:
		default:
			a.log.Warn("async output buffer full, dropping report",
				zap.String("model", report.Model), zap.Int("epoch", report.Epoch))
		}
		return nil
	}
	a.ch <- report
	return nil
}

// Close closes the channel, waits for the drain goroutine to finish
// (with a timeout), then closes the inner output.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			a.log.Warn("async output drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for report := range a.ch {
		if err := a.inner.Write(context.Background(), report); err != nil {
			a.errFunc(err)
		}
	}
}
