package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kratzket/try-git/internal/model"
	"github.com/kratzket/try-git/internal/output"
)

// Output writes JSON-encoded epoch reports to stdout.
type Output struct {
	enc       *json.Encoder
	verbosity output.Verbosity
}

// New creates a stdout Output with verbosity-aware field omission
// and optional pretty-printed JSON.
func New(verbosity output.Verbosity, pretty bool) *Output {
	return NewWithWriter(os.Stdout, verbosity, pretty)
}

// NewWithWriter is New writing to w instead of stdout.
func NewWithWriter(w io.Writer, verbosity output.Verbosity, pretty bool) *Output {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{enc: enc, verbosity: verbosity}
}

func (o *Output) Write(_ context.Context, report model.EpochReport) error {
	if err := o.enc.Encode(output.FormatReport(report, o.verbosity)); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
