package output

import (
	"fmt"
	"strings"

	"github.com/kratzket/try-git/internal/model"
)

// Verbosity controls how much of a report is written.
type Verbosity int

const (
	Minimal  Verbosity = iota // losses and accuracies only
	Standard                  // adds per-class validation recall and epoch duration
	Full                      // adds sample counts
)

func (v Verbosity) String() string {
	switch v {
	case Minimal:
		return "minimal"
	case Standard:
		return "standard"
	case Full:
		return "full"
	}
	return fmt.Sprintf("verbosity(%d)", int(v))
}

// ParseVerbosity maps a config string to a Verbosity. Empty means Standard.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(s) {
	case "minimal":
		return Minimal, nil
	case "", "standard":
		return Standard, nil
	case "full":
		return Full, nil
	}
	return Standard, fmt.Errorf("output: unknown verbosity %q", s)
}

// FormatReport returns a copy of the report with fields stripped according to
// verbosity. Below Full the sample counts are dropped; at Minimal ValRecall
// and Duration go too.
func FormatReport(r model.EpochReport, verbosity Verbosity) model.EpochReport {
	if verbosity < Full {
		r.Samples = 0
		r.ValSamples = 0
	}
	if verbosity == Minimal {
		r.ValRecall = nil
		r.Duration = 0
	}
	return r
}
