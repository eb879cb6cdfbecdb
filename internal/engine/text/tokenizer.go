package text

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// PadToken names index 0, which is never assigned to a word.
const PadToken = "[PAD]"

// DefaultFilters is the punctuation replaced by spaces before splitting.
const DefaultFilters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

type options struct {
	numWords    int
	oovToken    string
	filters     string
	lowercase   bool
	foldAccents bool
}

// Option configures a Tokenizer.
type Option func(*options)

// WithNumWords keeps only the numWords-1 most frequent words when encoding.
// 0 (default) keeps the whole vocabulary.
func WithNumWords(n int) Option {
	return func(o *options) { o.numWords = n }
}

// WithOOVToken reserves index 1 for words outside the vocabulary. Without it,
// unknown words are dropped from sequences.
func WithOOVToken(tok string) Option {
	return func(o *options) { o.oovToken = tok }
}

// WithFilters sets the characters treated as separators. Default: DefaultFilters.
func WithFilters(chars string) Option {
	return func(o *options) { o.filters = chars }
}

// WithLowercase toggles lower-casing. Default: true.
func WithLowercase(on bool) Option {
	return func(o *options) { o.lowercase = on }
}

// WithAccentFolding toggles removal of combining marks after NFD
// decomposition, so "café" and "cafe" share an index. Default: false.
func WithAccentFolding(on bool) Option {
	return func(o *options) { o.foldAccents = on }
}

// Tokenizer maps narrative words to positive integer indices ranked by
// frequency in the fitted text. Index 1 is the most frequent word (or the OOV
// token when configured); ties keep first-seen order.
//
// A Tokenizer is not safe for concurrent Fit calls; encoding after fitting is
// read-only and may run concurrently.
type Tokenizer struct {
	opts    options
	filters map[rune]bool

	counts map[string]int
	order  []string // words in first-seen order

	wordIndex map[string]int32
	indexWord []string // indexWord[i] is the word with index i; [0] is PadToken
	oovIndex  int32    // 0 when no OOV token is configured
}

// NewTokenizer creates an unfitted tokenizer.
func NewTokenizer(opts ...Option) *Tokenizer {
	o := options{filters: DefaultFilters, lowercase: true}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Tokenizer{
		opts:    o,
		filters: make(map[rune]bool, len(o.filters)),
		counts:  make(map[string]int),
	}
	for _, r := range o.filters {
		t.filters[r] = true
	}
	t.rebuild()
	return t
}

// Fit updates word counts from texts and rebuilds the index. Calling Fit
// again accumulates counts, so fitting in chunks equals fitting once.
func (t *Tokenizer) Fit(texts []string) {
	for _, s := range texts {
		for _, w := range t.Words(s) {
			if _, ok := t.counts[w]; !ok {
				t.order = append(t.order, w)
			}
			t.counts[w]++
		}
	}
	t.rebuild()
}

// rebuild ranks words by descending count with a stable sort over first-seen
// order, then assigns indices from 1 (2 when the OOV token takes 1).
func (t *Tokenizer) rebuild() {
	ranked := make([]string, len(t.order))
	copy(ranked, t.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return t.counts[ranked[i]] > t.counts[ranked[j]]
	})

	t.indexWord = make([]string, 1, len(ranked)+2)
	t.indexWord[0] = PadToken
	t.wordIndex = make(map[string]int32, len(ranked)+1)
	t.oovIndex = 0

	if t.opts.oovToken != "" {
		t.oovIndex = 1
		t.wordIndex[t.opts.oovToken] = 1
		t.indexWord = append(t.indexWord, t.opts.oovToken)
	}
	for _, w := range ranked {
		if _, dup := t.wordIndex[w]; dup {
			continue // the OOV token also occurs as a word
		}
		t.wordIndex[w] = int32(len(t.indexWord))
		t.indexWord = append(t.indexWord, w)
	}
}

// Words normalises text and splits it into words: control characters are
// removed, text is lower-cased and accent-folded when configured, filter
// characters become separators.
func (t *Tokenizer) Words(s string) []string {
	s = cleanText(s)
	if t.opts.lowercase {
		s = strings.ToLower(s)
	}
	if t.opts.foldAccents {
		s = stripAccents(s)
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return t.filters[r] || unicode.IsSpace(r)
	})
}

// TextToSequence encodes one text. Words outside the vocabulary, or ranked
// beyond NumWords, are dropped, or replaced by the OOV index when configured.
func (t *Tokenizer) TextToSequence(s string) []int32 {
	words := t.Words(s)
	seq := make([]int32, 0, len(words))
	limit := int32(t.opts.numWords)
	for _, w := range words {
		idx, ok := t.wordIndex[w]
		if ok && limit > 0 && idx >= limit {
			ok = false
		}
		if !ok {
			if t.oovIndex != 0 {
				seq = append(seq, t.oovIndex)
			}
			continue
		}
		seq = append(seq, idx)
	}
	return seq
}

// TextsToSequences encodes every text in order.
func (t *Tokenizer) TextsToSequences(texts []string) [][]int32 {
	out := make([][]int32, len(texts))
	for i, s := range texts {
		out[i] = t.TextToSequence(s)
	}
	return out
}

// Lookup returns the index of word, if it is in the vocabulary.
func (t *Tokenizer) Lookup(word string) (int32, bool) {
	idx, ok := t.wordIndex[word]
	return idx, ok
}

// Word returns the word with the given index.
func (t *Tokenizer) Word(idx int32) (string, bool) {
	if idx < 0 || int(idx) >= len(t.indexWord) {
		return "", false
	}
	return t.indexWord[idx], true
}

// Count returns how often word occurred in the fitted text.
func (t *Tokenizer) Count(word string) int {
	return t.counts[word]
}

// WordIndex returns a copy of the word -> index mapping.
func (t *Tokenizer) WordIndex() map[string]int32 {
	m := make(map[string]int32, len(t.wordIndex))
	for w, i := range t.wordIndex {
		m[w] = i
	}
	return m
}

// Len returns the number of indexed words, including the OOV token.
func (t *Tokenizer) Len() int {
	return len(t.wordIndex)
}

// VocabSize is the number of embedding rows needed to look up any emitted
// index: one more than the largest index, capped by NumWords.
func (t *Tokenizer) VocabSize() int {
	n := len(t.indexWord)
	if t.opts.numWords > 0 && t.opts.numWords < n {
		return t.opts.numWords
	}
	return n
}

// cleanText removes control characters and replaces whitespace with spaces.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == 0 || r == unicode.ReplacementChar || isControl(r) {
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripAccents removes combining diacritical marks after NFD normalization.
func stripAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}
