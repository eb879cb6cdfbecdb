package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kratzket/try-git/internal/model"
	"github.com/kratzket/try-git/internal/output"
)

func testReport(epoch int) model.EpochReport {
	return model.EpochReport{
		RunID:     "run-7",
		Model:     "multi",
		Epoch:     epoch,
		Epochs:    5,
		Timestamp: time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
		Loss:      0.9,
		ValRecall: map[string]float64{"BACK": 0.4},
	}
}

// recorder is an httptest handler collecting posted batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]model.EpochReport
	headers []http.Header
	status  int
}

func (rc *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var batch []model.EpochReport
	_ = json.Unmarshal(body, &batch)
	rc.mu.Lock()
	rc.batches = append(rc.batches, batch)
	rc.headers = append(rc.headers, r.Header.Clone())
	rc.mu.Unlock()
	if rc.status != 0 {
		w.WriteHeader(rc.status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (rc *recorder) count() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.batches)
}

func TestBatchFlushAtBatchSize(t *testing.T) {
	rc := &recorder{}
	srv := httptest.NewServer(rc)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(3), WithFlushInterval(10*time.Second))
	for i := 1; i <= 3; i++ {
		require.NoError(t, out.Write(context.Background(), testReport(i)))
	}

	require.Equal(t, 1, rc.count())
	assert.Len(t, rc.batches[0], 3)
	assert.Equal(t, "application/json", rc.headers[0].Get("Content-Type"))
	require.NoError(t, out.Close())
}

func TestTimerFlushBeforeBatchSize(t *testing.T) {
	rc := &recorder{}
	srv := httptest.NewServer(rc)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(100), WithFlushInterval(50*time.Millisecond))
	require.NoError(t, out.Write(context.Background(), testReport(1)))

	assert.Eventually(t, func() bool { return rc.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, out.Close())
	assert.Equal(t, 1, rc.count())
}

func TestCloseFlushesRemaining(t *testing.T) {
	rc := &recorder{}
	srv := httptest.NewServer(rc)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(100), WithFlushInterval(time.Hour))
	for i := 1; i <= 4; i++ {
		require.NoError(t, out.Write(context.Background(), testReport(i)))
	}
	assert.Zero(t, rc.count())

	require.NoError(t, out.Close())
	require.Equal(t, 1, rc.count())
	assert.Len(t, rc.batches[0], 4)
}

func TestCustomHeaders(t *testing.T) {
	rc := &recorder{}
	srv := httptest.NewServer(rc)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithHeaders(map[string]string{"Authorization": "Bearer tok"}))
	require.NoError(t, out.Write(context.Background(), testReport(1)))

	assert.Equal(t, "Bearer tok", rc.headers[0].Get("Authorization"))
}

func TestMinimalVerbosityStripsRecall(t *testing.T) {
	rc := &recorder{}
	srv := httptest.NewServer(rc)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithVerbosity(output.Minimal))
	require.NoError(t, out.Write(context.Background(), testReport(1)))

	require.Equal(t, 1, rc.count())
	assert.Nil(t, rc.batches[0][0].ValRecall)
}

func TestRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithBackoff(time.Millisecond))
	require.NoError(t, out.Write(context.Background(), testReport(1)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithBackoff(time.Millisecond))
	err := out.Write(context.Background(), testReport(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithBackoff(time.Millisecond))
	err := out.Write(context.Background(), testReport(1))
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestTimerFlushErrorCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	errs := make(chan error, 1)
	out := New(srv.URL, WithBatchSize(10), WithFlushInterval(20*time.Millisecond),
		WithOnError(func(err error) { errs <- err }))
	require.NoError(t, out.Write(context.Background(), testReport(1)))

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "400")
	case <-time.After(2 * time.Second):
		t.Fatal("error callback not invoked")
	}
	require.NoError(t, out.Close())
}

func TestCloseWithNothingPending(t *testing.T) {
	out := New("http://127.0.0.1:1")
	assert.NoError(t, out.Close())
}
