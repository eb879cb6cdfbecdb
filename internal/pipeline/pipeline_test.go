package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kratzket/try-git/internal/config"
	_ "github.com/kratzket/try-git/internal/dataset/delimited"
	"github.com/kratzket/try-git/internal/engine/testdata"
	"github.com/kratzket/try-git/internal/model"
)

// csvRow mirrors the columns of the source tables.
type csvRow struct {
	DocumentNo string `csv:"DOCUMENT_NO"`
	Narrative  string `csv:"NARRATIVE"`
	Label      string `csv:"INJ_BODY_PART"`
}

func writeCSV(t *testing.T, path string, records []model.Narrative) {
	t.Helper()
	rows := make([]csvRow, len(records))
	for i, r := range records {
		rows[i] = csvRow{DocumentNo: r.DocumentNo, Narrative: r.Text, Label: r.Label}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gocsv.MarshalFile(&rows, f))
}

// testConfig writes the embedded corpus as train/valid tables and returns a
// configuration with small models.
func testConfig(t *testing.T, extraValid ...model.Narrative) *config.Config {
	t.Helper()
	train, valid, err := testdata.Split(5)
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Data.TrainPath = filepath.Join(dir, "train.csv")
	cfg.Data.ValidPath = filepath.Join(dir, "valid.csv")
	writeCSV(t, cfg.Data.TrainPath, append(train, model.Narrative{DocumentNo: "1", Text: "NO BODY PART RECORDED"}))
	writeCSV(t, cfg.Data.ValidPath, append(valid, extraValid...))

	cfg.Prep.MaxLen = 32
	cfg.Train.Epochs = 3
	cfg.Train.BatchSize = 8
	cfg.Train.LearningRate = 0.01
	cfg.Train.Workers = 2
	for i := range cfg.Models {
		cfg.Models[i].EmbeddingDim = 12
		cfg.Models[i].Hidden = 10
	}
	cfg.Models[0].Filters = 8
	cfg.Models[1].Filters = 4
	return cfg
}

type memOutput struct {
	mu      sync.Mutex
	reports []model.EpochReport
	closed  bool
	onWrite func()
}

func (o *memOutput) Write(_ context.Context, r model.EpochReport) error {
	o.mu.Lock()
	o.reports = append(o.reports, r)
	o.mu.Unlock()
	if o.onWrite != nil {
		o.onWrite()
	}
	return nil
}

func (o *memOutput) Close() error { o.closed = true; return nil }

func sequentialIDs() func() string {
	n := 0
	return func() string { n++; return fmt.Sprintf("run-%d", n) }
}

func TestRunTrainsEveryModel(t *testing.T) {
	cfg := testConfig(t)
	out := &memOutput{}
	var summary bytes.Buffer
	p := New(cfg, out, WithRunIDs(sequentialIDs()), WithSummaryWriter(&summary))

	runs, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "single", runs[0].Model)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "multi", runs[1].Model)
	assert.Equal(t, "run-2", runs[1].RunID)
	for _, r := range runs {
		assert.False(t, r.Interrupted)
		assert.Positive(t, r.Params)
		require.Len(t, r.Epochs, 3)
		last, ok := r.Last()
		require.True(t, ok)
		assert.Equal(t, 9, last.ValSamples)
		assert.Equal(t, 39, last.Samples, "unlabelled training row is dropped")
	}

	assert.Len(t, out.reports, 6)
	assert.Contains(t, summary.String(), "Total params")
	require.NoError(t, p.Close())
	assert.True(t, out.closed)
}

func TestRunDropsUnseenValidationLabels(t *testing.T) {
	cfg := testConfig(t,
		model.Narrative{DocumentNo: "9001", Text: "EE BURNED HIS FOREARM ON THE EXHAUST", Label: "FOREARM"},
		model.Narrative{DocumentNo: "9002", Text: "EE CUT HIS FOREARM ON A PLATE", Label: "FOREARM"},
	)
	cfg.Models = cfg.Models[:1]
	cfg.Train.Epochs = 1

	core, logs := observer.New(zap.WarnLevel)
	p := New(cfg, nil, WithLogger(zap.New(core)))

	train, valid, dropped, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	prep, err := p.Prepare(train, valid)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"FOREARM": 2}, prep.Unseen)
	assert.Equal(t, 9, prep.Valid.Len())
	warn := logs.FilterMessage("validation label not seen in training, records dropped")
	require.Equal(t, 1, warn.Len())
	assert.Equal(t, "FOREARM", warn.All()[0].ContextMap()["label"])

	runs, err := p.Train(context.Background(), prep)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	pred, err := prep.Engine.Process("EE GOT DUST IN HIS EYE")
	require.NoError(t, err)
	assert.Len(t, pred.Probabilities, 4)
}

func TestRunInterrupted(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &memOutput{onWrite: cancel}
	runs, err := New(cfg, out).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Interrupted)
	assert.Len(t, runs[0].Epochs, 1)
}

func TestRunLoadErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.TrainPath = filepath.Join(t.TempDir(), "missing.csv")
	_, err := New(cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load train")

	cfg = testConfig(t)
	cfg.Data.ValidPath = filepath.Join(t.TempDir(), "valid.parquet")
	_, err = New(cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load valid")
}

func TestInspect(t *testing.T) {
	cfg := testConfig(t)
	_, st, err := New(cfg, nil).Inspect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 39, st.TrainRecords)
	assert.Equal(t, 9, st.ValidRecords)
	assert.Equal(t, 1, st.DroppedBlank)
	assert.Positive(t, st.Vocabulary)
	require.Len(t, st.Classes, 4)

	var train, valid int
	for _, c := range st.Classes {
		train += c.Train
		valid += c.Valid
	}
	assert.Equal(t, 39, train)
	assert.Equal(t, 9, valid)
	assert.Equal(t, 39, st.TrainLengths.Count)
	assert.Zero(t, st.TrainLengths.Truncated, "corpus narratives are shorter than 32 words")
}

func TestNilLoggerIsNop(t *testing.T) {
	cfg := testConfig(t)
	_, st, err := New(cfg, nil, WithLogger(nil)).Inspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 39, st.TrainRecords)
}
