package text

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// WriteVocab writes the vocabulary one word per line; the line number
// (0-indexed) is the word's index, so line 0 is PadToken.
func (t *Tokenizer) WriteVocab(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, word := range t.indexWord {
		if _, err := bw.WriteString(word); err != nil {
			return fmt.Errorf("vocab: write: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("vocab: write: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("vocab: flush: %w", err)
	}
	return nil
}

// ReadVocab restores a tokenizer from a file written by WriteVocab. Word
// counts are not stored, so Count reports zero and a later Fit re-ranks from
// the new counts only.
func ReadVocab(r io.Reader, opts ...Option) (*Tokenizer, error) {
	t := NewTokenizer(opts...)

	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read error: %w", err)
	}
	if len(words) == 0 {
		return nil, errors.New("vocab: file is empty")
	}
	if words[0] != PadToken {
		return nil, fmt.Errorf("vocab: line 0 is %q, want %s", words[0], PadToken)
	}

	t.indexWord = words
	t.wordIndex = make(map[string]int32, len(words)-1)
	for i, w := range words[1:] {
		if _, dup := t.wordIndex[w]; dup {
			return nil, fmt.Errorf("vocab: duplicate word %q on line %d", w, i+1)
		}
		t.wordIndex[w] = int32(i + 1)
	}
	if tok := t.opts.oovToken; tok != "" {
		idx, ok := t.wordIndex[tok]
		if !ok {
			return nil, fmt.Errorf("vocab: missing OOV token %s", tok)
		}
		t.oovIndex = idx
	}
	return t, nil
}
