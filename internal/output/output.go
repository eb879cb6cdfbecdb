package output

import (
	"context"

	"github.com/kratzket/try-git/internal/model"
)

// Output defines the interface for epoch report destinations.
type Output interface {
	Write(ctx context.Context, report model.EpochReport) error
	Close() error
}
