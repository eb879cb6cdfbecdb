package model

import "time"

// EpochReport is emitted after every training epoch.
type EpochReport struct {
	RunID       string             `json:"run_id"`
	Model       string             `json:"model"`
	Epoch       int                `json:"epoch"`  // 1-based
	Epochs      int                `json:"epochs"` // configured total
	Timestamp   time.Time          `json:"timestamp"`
	Duration    time.Duration      `json:"duration,omitempty"`
	Samples     int                `json:"samples,omitempty"`
	Loss        float64            `json:"loss"`
	Accuracy    float64            `json:"accuracy"`
	ValSamples  int                `json:"val_samples,omitempty"`
	ValLoss     float64            `json:"val_loss,omitempty"`
	ValAccuracy float64            `json:"val_accuracy,omitempty"`
	ValRecall   map[string]float64 `json:"val_recall,omitempty"` // per-class recall on validation
}

// RunSummary describes one finished (or interrupted) training run.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Model       string        `json:"model"`
	Params      int           `json:"params"`
	Epochs      []EpochReport `json:"epochs"`
	Duration    time.Duration `json:"duration"`
	Interrupted bool          `json:"interrupted,omitempty"`
}

// Last returns the most recent epoch report, or false if none was recorded.
func (s RunSummary) Last() (EpochReport, bool) {
	if len(s.Epochs) == 0 {
		return EpochReport{}, false
	}
	return s.Epochs[len(s.Epochs)-1], true
}
