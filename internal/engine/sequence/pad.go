package sequence

import (
	"errors"
	"fmt"
)

// Side selects which end of a sequence is padded or truncated.
type Side int

const (
	Pre  Side = iota // pad / truncate at the front
	Post             // pad / truncate at the back
)

// ErrMaxLen is returned when the target length is not positive.
var ErrMaxLen = errors.New("sequence: maxLen must be positive")

type options struct {
	padding    Side
	truncating Side
	value      int32
}

// Option configures Pad.
type Option func(*options)

// WithPadding sets where the fill value is inserted. Default: Pre.
func WithPadding(s Side) Option {
	return func(o *options) { o.padding = s }
}

// WithTruncating sets which end is cut from long sequences. Default: Pre,
// which keeps the last maxLen items.
func WithTruncating(s Side) Option {
	return func(o *options) { o.truncating = s }
}

// WithValue sets the fill value. Default: 0.
func WithValue(v int32) Option {
	return func(o *options) { o.value = v }
}

// Pad returns copies of seqs that are exactly maxLen long.
func Pad(seqs [][]int32, maxLen int, opts ...Option) ([][]int32, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrMaxLen, maxLen)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	out := make([][]int32, len(seqs))
	for i, s := range seqs {
		out[i] = padOne(s, maxLen, o)
	}
	return out, nil
}

func padOne(s []int32, maxLen int, o options) []int32 {
	if len(s) > maxLen {
		if o.truncating == Pre {
			s = s[len(s)-maxLen:]
		} else {
			s = s[:maxLen]
		}
	}

	row := make([]int32, maxLen)
	fill := maxLen - len(s)
	if o.value != 0 {
		for i := range row {
			row[i] = o.value
		}
	}
	if o.padding == Pre {
		copy(row[fill:], s)
	} else {
		copy(row, s)
	}
	return row
}

// LengthStats summarises raw sequence lengths before padding.
type LengthStats struct {
	Count     int
	Min       int
	Max       int
	Mean      float64
	Empty     int // sequences with no known words
	Truncated int // sequences longer than the target length
}

// Stats reports length statistics of seqs against maxLen.
func Stats(seqs [][]int32, maxLen int) LengthStats {
	st := LengthStats{Count: len(seqs)}
	if len(seqs) == 0 {
		return st
	}
	st.Min = len(seqs[0])
	total := 0
	for _, s := range seqs {
		n := len(s)
		total += n
		if n < st.Min {
			st.Min = n
		}
		if n > st.Max {
			st.Max = n
		}
		if n == 0 {
			st.Empty++
		}
		if n > maxLen {
			st.Truncated++
		}
	}
	st.Mean = float64(total) / float64(len(seqs))
	return st
}
