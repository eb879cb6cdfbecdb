package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kratzket/try-git/internal/model"
	"github.com/kratzket/try-git/internal/output"
)

const (
	defaultBatchSize     = 10
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
	defaultBackoff       = time.Second
	maxRetries           = 3
)

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithBatchSize sets the number of reports accumulated before a flush. Default: 10.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval sets the maximum time between flushes. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.client.Timeout = d }
}

// WithBackoff sets the delay before the first retry; it doubles per attempt.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// WithVerbosity sets the field stripping applied to posted reports.
func WithVerbosity(v output.Verbosity) Option {
	return func(o *Output) { o.verbosity = v }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// WithLogger sets the logger used by the default error callback.
func WithLogger(l *zap.Logger) Option {
	return func(o *Output) { o.log = l }
}

// Output POSTs batched epoch reports to an HTTP endpoint as a JSON array.
// Reports accumulate in an internal buffer and are flushed when batchSize is
// reached or flushInterval elapses. Retries on 5xx with exponential backoff.
type Output struct {
	client        *http.Client
	url           string
	headers       map[string]string
	batchSize     int
	flushInterval time.Duration
	backoff       time.Duration
	verbosity     output.Verbosity
	errFunc       func(error)
	log           *zap.Logger
	mu            sync.Mutex
	pending       []model.EpochReport
	timer         *time.Timer
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		client:        &http.Client{Timeout: defaultTimeout},
		url:           url,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		backoff:       defaultBackoff,
		verbosity:     output.Standard,
		log:           zap.L(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.errFunc == nil {
		o.errFunc = func(err error) { o.log.Warn("webhook flush error", zap.String("url", o.url), zap.Error(err)) }
	}
	return o
}

// Write appends a report to the batch. When batchSize is reached, the batch
// is flushed immediately. A timer is started on the first report so the
// batch flushes even if batchSize is never reached.
func (o *Output) Write(ctx context.Context, report model.EpochReport) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, output.FormatReport(report, o.verbosity))

	if len(o.pending) >= o.batchSize {
		return o.flushLocked(ctx)
	}

	if len(o.pending) == 1 {
		o.timer = time.AfterFunc(o.flushInterval, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.flushLocked(context.Background()); err != nil {
				o.errFunc(err)
			}
		})
	}
	return nil
}

// Close flushes any remaining reports and stops the timer.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	return o.flushLocked(context.Background())
}

// flushLocked sends the pending batch. Caller must hold o.mu.
func (o *Output) flushLocked(ctx context.Context) error {
	if len(o.pending) == 0 {
		return nil
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}

	batch := o.pending
	o.pending = nil

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	return o.postWithRetry(ctx, body)
}

func (o *Output) postWithRetry(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(o.backoff << (attempt - 1)):
			case <-ctx.Done():
				return fmt.Errorf("webhook: %w", ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range o.headers {
			req.Header.Set(k, v)
		}

		resp, err := o.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
