// Package delimited reads comma and tab separated narrative tables.
package delimited

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/kratzket/try-git/internal/dataset"
	"github.com/kratzket/try-git/internal/model"
)

func init() {
	dataset.Register("csv", func() dataset.Reader { return &Reader{Comma: ','} })
	dataset.Register("tsv", func() dataset.Reader { return &Reader{Comma: '\t'} })
}

// row is one line of a narrative table. Other columns are ignored.
type row struct {
	DocumentNo string `csv:"DOCUMENT_NO"`
	Narrative  string `csv:"NARRATIVE"`
	Label      string `csv:"INJ_BODY_PART"`
}

// Reader decodes a delimited table with a header row.
type Reader struct {
	Comma rune
}

// Read decodes every row of r. Header names are matched case-insensitively
// after trimming spaces and a UTF-8 byte order mark.
func (d *Reader) Read(ctx context.Context, r io.Reader) ([]model.Narrative, error) {
	cr := csv.NewReader(r)
	cr.Comma = d.Comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var rows []row
	if err := gocsv.UnmarshalCSV(&headerReader{Reader: cr}, &rows); err != nil {
		return nil, fmt.Errorf("delimited: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Narrative, len(rows))
	for i, rw := range rows {
		out[i] = model.Narrative{
			DocumentNo: strings.TrimSpace(rw.DocumentNo),
			Text:       rw.Narrative,
			Label:      strings.TrimSpace(rw.Label),
		}
	}
	return out, nil
}

// headerReader normalises and checks the header row before gocsv maps it.
type headerReader struct {
	*csv.Reader
	seenHeader bool
}

func (h *headerReader) Read() ([]string, error) {
	rec, err := h.Reader.Read()
	if err != nil {
		if err == io.EOF && !h.seenHeader {
			return nil, dataset.ErrEmpty
		}
		return nil, err
	}
	if !h.seenHeader {
		h.seenHeader = true
		if err := normaliseHeader(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (h *headerReader) ReadAll() ([][]string, error) {
	var all [][]string
	for {
		rec, err := h.Read()
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, rec)
	}
}

func normaliseHeader(header []string) error {
	present := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		name = strings.ToUpper(strings.TrimSpace(name))
		header[i] = name
		present[name] = true
	}
	for _, want := range []string{dataset.ColumnNarrative, dataset.ColumnLabel} {
		if !present[want] {
			return fmt.Errorf("%w %s", dataset.ErrMissingColumn, want)
		}
	}
	return nil
}
