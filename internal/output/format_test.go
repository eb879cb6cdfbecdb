package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kratzket/try-git/internal/model"
)

func baseReport() model.EpochReport {
	return model.EpochReport{
		RunID:       "run-1",
		Model:       "single",
		Epoch:       2,
		Epochs:      5,
		Timestamp:   time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC),
		Duration:    3 * time.Second,
		Samples:     1200,
		Loss:        0.84,
		Accuracy:    0.71,
		ValSamples:  300,
		ValLoss:     0.92,
		ValAccuracy: 0.68,
		ValRecall:   map[string]float64{"HAND": 0.8, "BACK": 0.5},
	}
}

func TestFormatReportMinimal(t *testing.T) {
	r := FormatReport(baseReport(), Minimal)

	assert.Nil(t, r.ValRecall)
	assert.Zero(t, r.Duration)
	assert.Equal(t, "single", r.Model)
	assert.InDelta(t, 0.68, r.ValAccuracy, 1e-12)
}

func TestFormatReportKeepsRecall(t *testing.T) {
	for _, v := range []Verbosity{Standard, Full} {
		r := FormatReport(baseReport(), v)
		assert.Len(t, r.ValRecall, 2, v.String())
		assert.Equal(t, 3*time.Second, r.Duration)
	}
}

func TestFormatReportLevelsDiffer(t *testing.T) {
	minimal := FormatReport(baseReport(), Minimal)
	standard := FormatReport(baseReport(), Standard)
	full := FormatReport(baseReport(), Full)

	assert.NotEqual(t, standard, full)
	assert.NotEqual(t, minimal, standard)

	assert.Zero(t, standard.Samples)
	assert.Zero(t, standard.ValSamples)
	assert.Equal(t, baseReport(), full)
}

func TestMinimalJSONOmitsStrippedFields(t *testing.T) {
	data, err := json.Marshal(FormatReport(baseReport(), Minimal))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"duration", "samples", "val_samples", "val_recall"} {
		assert.NotContains(t, m, key)
	}
	assert.Contains(t, m, "val_loss")
}

func TestFormatReportDoesNotMutateInput(t *testing.T) {
	in := baseReport()
	_ = FormatReport(in, Minimal)
	assert.Len(t, in.ValRecall, 2)
}

func TestParseVerbosity(t *testing.T) {
	tests := []struct {
		in   string
		want Verbosity
	}{
		{"minimal", Minimal},
		{"", Standard},
		{"Standard", Standard},
		{"full", Full},
	}
	for _, tt := range tests {
		got, err := ParseVerbosity(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseVerbosity("loud")
	assert.Error(t, err)
}

func TestJSONTagNames(t *testing.T) {
	data, err := json.Marshal(baseReport())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"run_id", "model", "epoch", "epochs", "timestamp", "loss", "accuracy", "val_loss", "val_accuracy", "val_recall"} {
		assert.Contains(t, m, key)
	}
}

func TestJSONOmitsEmptyValidation(t *testing.T) {
	r := baseReport()
	r.ValSamples, r.ValLoss, r.ValAccuracy, r.ValRecall = 0, 0, 0, nil
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"val_samples", "val_loss", "val_accuracy", "val_recall"} {
		assert.NotContains(t, m, key)
	}
}
