// Package dataset loads labelled narrative tables through a registry of
// format readers.
package dataset

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kratzket/try-git/internal/dataset/remote"
	"github.com/kratzket/try-git/internal/model"
)

var (
	// ErrUnknownFormat is returned when no reader is registered for a format.
	ErrUnknownFormat = errors.New("dataset: unknown format")
	// ErrEmpty is returned for a table without a header or without rows.
	ErrEmpty = errors.New("dataset: empty table")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("dataset: missing column")
)

// Column names of the narrative tables.
const (
	ColumnDocumentNo = "DOCUMENT_NO"
	ColumnNarrative  = "NARRATIVE"
	ColumnLabel      = "INJ_BODY_PART"
)

// Reader decodes one table format.
type Reader interface {
	Read(ctx context.Context, r io.Reader) ([]model.Narrative, error)
}

// Constructor creates a Reader.
type Constructor func() Reader

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

// Register adds a reader constructor under a format name such as "csv".
func Register(format string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(format)] = ctor
}

// Get returns the reader constructor for a format.
func Get(format string) (Constructor, error) {
	mu.RLock()
	defer mu.RUnlock()
	ctor, ok := registry[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return ctor, nil
}

// Formats returns the registered format names, sorted.
func Formats() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectFormat derives the format from a file name or URL path, ignoring a
// trailing .gz.
func DetectFormat(path string) string {
	base := strings.TrimSuffix(strings.ToLower(filePath(path)), ".gz")
	return strings.TrimPrefix(filepath.Ext(base), ".")
}

// filePath strips the scheme, host and query from URLs.
func filePath(path string) string {
	if remote.IsURL(path) {
		if u, err := url.Parse(path); err == nil {
			return u.Path
		}
	}
	return path
}

type loadOptions struct {
	client *remote.Client
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithRemote sets the client used for http(s) paths. Default: remote.New().
func WithRemote(c *remote.Client) LoadOption {
	return func(o *loadOptions) { o.client = c }
}

// Load reads the table at path, a local file or an http(s) URL. An empty
// format is detected from the extension; paths ending in .gz are
// decompressed.
func Load(ctx context.Context, path, format string, opts ...LoadOption) ([]model.Narrative, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	if format == "" {
		format = DetectFormat(path)
	}
	ctor, err := Get(format)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}

	src, err := open(ctx, path, o)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer src.Close()

	var r io.Reader = src
	if strings.HasSuffix(strings.ToLower(filePath(path)), ".gz") {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	records, err := ctor().Read(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return records, nil
}

func open(ctx context.Context, path string, o loadOptions) (io.ReadCloser, error) {
	if !remote.IsURL(path) {
		return os.Open(path)
	}
	c := o.client
	if c == nil {
		c = remote.New()
	}
	body, err := c.Fetch(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// Clean drops records whose label is blank and returns how many were dropped.
func Clean(records []model.Narrative) ([]model.Narrative, int) {
	kept := records[:0:0]
	dropped := 0
	for _, r := range records {
		if strings.TrimSpace(r.Label) == "" {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}
