// Package testdata embeds a small labelled corpus of mining incident
// narratives for tests across the module.
package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/kratzket/try-git/internal/model"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is one labelled narrative as stored in corpus.json.
type CorpusEntry struct {
	DocumentNo string `json:"document_no"`
	Narrative  string `json:"narrative"`
	BodyPart   string `json:"inj_body_part"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}

// Narratives returns the corpus as model records.
func Narratives() ([]model.Narrative, error) {
	entries, err := LoadCorpus()
	if err != nil {
		return nil, err
	}
	out := make([]model.Narrative, len(entries))
	for i, e := range entries {
		out[i] = model.Narrative{DocumentNo: e.DocumentNo, Text: e.Narrative, Label: e.BodyPart}
	}
	return out, nil
}

// Split returns the corpus with every k-th record (starting at offset k-1)
// held out for validation.
func Split(k int) (train, valid []model.Narrative, err error) {
	all, err := Narratives()
	if err != nil {
		return nil, nil, err
	}
	for i, n := range all {
		if k > 0 && i%k == k-1 {
			valid = append(valid, n)
			continue
		}
		train = append(train, n)
	}
	return train, valid, nil
}
