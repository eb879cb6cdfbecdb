package text

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var narratives = []string{
	"EE was cutting rock with a hammer when a piece struck his LEFT eye.",
	"While shoveling, EE strained his lower back.",
	"EE slipped on ice and fractured his left wrist.",
	"A rock fell from the rib and struck EE on the back.",
}

func TestWords(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercase and punctuation", "EE struck his LEFT eye.", []string{"ee", "struck", "his", "left", "eye"}},
		{"hyphen splits", "right-hand thumb", []string{"right", "hand", "thumb"}},
		{"apostrophe kept", "operator's hand", []string{"operator's", "hand"}},
		{"tabs and newlines", "back\tstrain\nlifting", []string{"back", "strain", "lifting"}},
		{"control chars dropped", "kn\x00ee", []string{"knee"}},
		{"empty", "", nil},
		{"only punctuation", "!!! ...", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Words(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccentFolding(t *testing.T) {
	plain := NewTokenizer()
	assert.Equal(t, []string{"café"}, plain.Words("Café"))

	folded := NewTokenizer(WithAccentFolding(true))
	assert.Equal(t, []string{"cafe", "naive"}, folded.Words("Café naïve"))
}

func TestFitRanksByFrequency(t *testing.T) {
	tok := NewTokenizer()
	tok.Fit([]string{"b a c", "a b", "a d"})

	// a=3, b=2, then c and d tie at 1 and keep first-seen order.
	idx := tok.WordIndex()
	assert.Equal(t, map[string]int32{"a": 1, "b": 2, "c": 3, "d": 4}, idx)
	assert.Equal(t, 5, tok.VocabSize())
	assert.Equal(t, 3, tok.Count("a"))

	w, ok := tok.Word(0)
	require.True(t, ok)
	assert.Equal(t, PadToken, w)
}

func TestFitIsDeterministic(t *testing.T) {
	a := NewTokenizer()
	a.Fit(narratives)
	b := NewTokenizer()
	b.Fit(narratives)
	assert.Equal(t, a.WordIndex(), b.WordIndex())
}

func TestFitAccumulates(t *testing.T) {
	once := NewTokenizer()
	once.Fit(narratives)

	chunked := NewTokenizer()
	chunked.Fit(narratives[:2])
	chunked.Fit(narratives[2:])

	assert.Equal(t, once.WordIndex(), chunked.WordIndex())
}

func TestVocabularyKeysComeFromText(t *testing.T) {
	tok := NewTokenizer()
	tok.Fit(narratives)

	seen := make(map[string]bool)
	for _, s := range narratives {
		for _, w := range tok.Words(s) {
			seen[w] = true
		}
	}
	for w := range tok.WordIndex() {
		assert.True(t, seen[w], "word %q not in fitted text", w)
	}
	assert.Equal(t, len(seen), tok.Len())
}

func TestTextToSequenceDropsUnknown(t *testing.T) {
	tok := NewTokenizer()
	tok.Fit([]string{"ee hurt back", "ee hurt knee"})

	seq := tok.TextToSequence("EE hurt his elbow and back")
	ee, _ := tok.Lookup("ee")
	hurt, _ := tok.Lookup("hurt")
	back, _ := tok.Lookup("back")
	assert.Equal(t, []int32{ee, hurt, back}, seq)
}

func TestTextToSequenceOOV(t *testing.T) {
	tok := NewTokenizer(WithOOVToken("<unk>"))
	tok.Fit([]string{"ee hurt back", "ee hurt knee"})

	oov, ok := tok.Lookup("<unk>")
	require.True(t, ok)
	assert.EqualValues(t, 1, oov)

	ee, _ := tok.Lookup("ee")
	assert.EqualValues(t, 2, ee)

	seq := tok.TextToSequence("ee elbow")
	assert.Equal(t, []int32{ee, 1}, seq)
}

func TestNumWordsLimit(t *testing.T) {
	tok := NewTokenizer(WithNumWords(3))
	tok.Fit([]string{"a a a b b c"})

	// Only indices 1 and 2 survive.
	assert.Equal(t, []int32{1, 2}, tok.TextToSequence("a b c"))
	assert.Equal(t, 3, tok.VocabSize())

	withOOV := NewTokenizer(WithNumWords(3), WithOOVToken("<unk>"))
	withOOV.Fit([]string{"a a a b b c"})
	assert.Equal(t, []int32{2, 1, 1}, withOOV.TextToSequence("a b c"))
}

func TestTextsToSequencesIndicesInRange(t *testing.T) {
	tok := NewTokenizer()
	tok.Fit(narratives)

	for _, seq := range tok.TextsToSequences(narratives) {
		require.NotEmpty(t, seq)
		for _, idx := range seq {
			assert.Greater(t, idx, int32(0))
			assert.Less(t, int(idx), tok.VocabSize())
		}
	}
}

func TestVocabRoundTrip(t *testing.T) {
	tok := NewTokenizer(WithOOVToken("<unk>"))
	tok.Fit(narratives)

	var buf bytes.Buffer
	require.NoError(t, tok.WriteVocab(&buf))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Equal(t, tok.VocabSize(), len(lines))
	assert.Equal(t, PadToken, lines[0])
	assert.Equal(t, "<unk>", lines[1])

	restored, err := ReadVocab(&buf, WithOOVToken("<unk>"))
	require.NoError(t, err)
	assert.Equal(t, tok.WordIndex(), restored.WordIndex())
	assert.Equal(t, tok.TextsToSequences(narratives), restored.TextsToSequences(narratives))
}

func TestReadVocabErrors(t *testing.T) {
	_, err := ReadVocab(strings.NewReader(""))
	assert.ErrorContains(t, err, "empty")

	_, err = ReadVocab(strings.NewReader("ee\nback\n"))
	assert.ErrorContains(t, err, "line 0")

	_, err = ReadVocab(strings.NewReader("[PAD]\nee\nee\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ReadVocab(strings.NewReader("[PAD]\nee\n"), WithOOVToken("<unk>"))
	assert.ErrorContains(t, err, "OOV")
}
