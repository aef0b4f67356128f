package pages

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

func TestParse(t *testing.T) {
	cases := map[string][]int{
		"2":        {2},
		"5,6":      {5, 6},
		"6-9":      {6, 7, 8, 9},
		"1,3-4":    {1, 3, 4},
		" 4, 1-2 ": {1, 2, 4},
		"3,3,2-3":  {2, 3},
	}
	for spec, want := range cases {
		got, beyond, err := Parse(spec, 20)
		require.NoError(t, err, spec)
		assert.Equal(t, want, got, spec)
		assert.Zero(t, beyond, spec)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, spec := range []string{"", "a", "0", "4-2", "1,,2", "1-", "-3"} {
		_, _, err := Parse(spec, 10)
		require.Error(t, err, spec)
		assert.ErrorIs(t, err, common.ErrInvalidInput, spec)
	}
}

func TestParseStopsAtMaxPage(t *testing.T) {
	got, beyond, err := Parse("2,9-12", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 9, 10}, got)
	assert.Equal(t, 2, beyond)

	got, beyond, err = Parse("11-12", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, beyond)
}

func TestParseHugeRangeIsNotExpanded(t *testing.T) {
	got, beyond, err := Parse("1-2000000000,5-9223372036854775807", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
	assert.Equal(t, math.MaxInt-10, beyond)
}

func TestSplit(t *testing.T) {
	chunks := Split("Balance Sheet", []int{1, 3, 4, 7, 8}, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{1, 3}, chunks[0].Pages)
	assert.Equal(t, []int{4, 7}, chunks[1].Pages)
	assert.Equal(t, []int{8}, chunks[2].Pages)
	assert.Equal(t, 2, chunks[2].Index)
	assert.Equal(t, "Balance Sheet", chunks[1].Section)
	assert.Equal(t, 7, chunks[1].Max())
	assert.Equal(t, "4,7", chunks[1].Selection())
}

func TestSplitNonPositiveSize(t *testing.T) {
	assert.Len(t, Split("s", []int{1, 2}, 0), 2)
	assert.Empty(t, Split("s", nil, 2))
}
