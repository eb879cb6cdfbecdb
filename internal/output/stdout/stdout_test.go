package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kratzket/try-git/internal/model"
	"github.com/kratzket/try-git/internal/output"
)

func testReport() model.EpochReport {
	return model.EpochReport{
		RunID:       "run-1",
		Model:       "multi",
		Epoch:       1,
		Epochs:      5,
		Timestamp:   time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC),
		Samples:     640,
		Loss:        1.7,
		Accuracy:    0.42,
		ValSamples:  160,
		ValLoss:     1.5,
		ValAccuracy: 0.47,
		ValRecall:   map[string]float64{"FINGER(S)/THUMB": 0.9},
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String()
}

func TestOutputCompactJSON(t *testing.T) {
	result := captureStdout(t, func() {
		out := New(output.Standard, false)
		require.NoError(t, out.Write(context.Background(), testReport()))
	})

	lines := strings.Split(strings.TrimSpace(result), "\n")
	require.Len(t, lines, 1)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &m))
	assert.Equal(t, "multi", m["model"])
	assert.Contains(t, m, "val_recall")
}

func TestOutputPrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewWithWriter(&buf, output.Standard, true)
	require.NoError(t, out.Write(context.Background(), testReport()))

	assert.Contains(t, buf.String(), "  ")
	assert.GreaterOrEqual(t, len(strings.Split(strings.TrimSpace(buf.String()), "\n")), 3)
}

func TestOutputMinimalOmitsRecall(t *testing.T) {
	var buf bytes.Buffer
	out := NewWithWriter(&buf, output.Minimal, false)
	require.NoError(t, out.Write(context.Background(), testReport()))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.NotContains(t, m, "val_recall")
	assert.Equal(t, float64(1), m["epoch"])
	assert.NoError(t, out.Close())
}
