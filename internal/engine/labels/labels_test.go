package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kratzket/try-git/internal/model"
)

func TestFitSortsClasses(t *testing.T) {
	enc := Fit([]string{"WRIST", "BACK", "EYE(S)", "BACK", "WRIST"})

	assert.Equal(t, 3, enc.NumClasses())
	assert.Equal(t, []string{"BACK", "EYE(S)", "WRIST"}, enc.Classes())

	i, ok := enc.Index("EYE(S)")
	require.True(t, ok)
	assert.Equal(t, 1, i)

	l, ok := enc.Inverse(2)
	require.True(t, ok)
	assert.Equal(t, "WRIST", l)

	_, ok = enc.Inverse(3)
	assert.False(t, ok)
}

func TestTransformOneHot(t *testing.T) {
	train := []string{"KNEE", "BACK", "HAND", "KNEE"}
	enc := Fit(train)

	rows, err := enc.Transform(train)
	require.NoError(t, err)
	require.Len(t, rows, len(train))
	for i, row := range rows {
		assert.Len(t, row, enc.NumClasses())
		var sum float32
		for _, v := range row {
			sum += v
		}
		assert.Equal(t, float32(1), sum, "row %d", i)
		idx, _ := enc.Index(train[i])
		assert.Equal(t, float32(1), row[idx])
	}
}

func TestTransformTwoClassesKeepsFullWidth(t *testing.T) {
	enc := Fit([]string{"BACK", "KNEE"})
	rows, err := enc.Transform([]string{"KNEE"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}}, rows)
}

func TestTransformUnknownLabel(t *testing.T) {
	enc := Fit([]string{"BACK", "KNEE"})

	_, err := enc.Transform([]string{"BACK", "TOE(S)"})
	require.ErrorIs(t, err, ErrUnknownLabel)
	assert.Contains(t, err.Error(), "TOE(S)")
	assert.Contains(t, err.Error(), "row 1")
}

func TestTransformNotFitted(t *testing.T) {
	_, err := Fit(nil).Transform([]string{"BACK"})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestFilter(t *testing.T) {
	enc := Fit([]string{"BACK", "KNEE"})
	records := []model.Narrative{
		{Text: "strained back", Label: "BACK"},
		{Text: "stubbed toe", Label: "TOE(S)"},
		{Text: "twisted knee", Label: "KNEE"},
		{Text: "stubbed toe again", Label: "TOE(S)"},
	}

	known, unseen := enc.Filter(records)
	assert.Len(t, known, 2)
	assert.Equal(t, map[string]int{"TOE(S)": 2}, unseen)

	known, unseen = enc.Filter(known)
	assert.Len(t, known, 2)
	assert.Nil(t, unseen)
}
