package slicer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_EvenDivision(t *testing.T) {
	t.Parallel()

	ranges, err := Plan(30, 10)
	require.NoError(t, err)
	require.Len(t, ranges, 3)

	assert.Equal(t, Range{Index: 0, Start: 0, End: 10}, ranges[0])
	assert.Equal(t, Range{Index: 1, Start: 10, End: 20}, ranges[1])
	assert.Equal(t, Range{Index: 2, Start: 20, End: 30}, ranges[2])
}

func TestPlan_FinalChunkShorter(t *testing.T) {
	t.Parallel()

	ranges, err := Plan(25, 10)
	require.NoError(t, err)
	require.Len(t, ranges, 3)

	assert.EqualValues(t, 5, ranges[2].Len())
}

func TestPlan_ZeroByteFileProducesOneEmptyRange(t *testing.T) {
	t.Parallel()

	ranges, err := Plan(0, 10)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.EqualValues(t, 0, ranges[0].Len())
}

func TestPlan_RejectsNonPositiveChunkSize(t *testing.T) {
	t.Parallel()

	_, err := Plan(10, 0)
	assert.Error(t, err)
}

func TestPlan_RejectsNegativeFileSize(t *testing.T) {
	t.Parallel()

	_, err := Plan(-1, 10)
	assert.Error(t, err)
}

func TestCount_MatchesPlanLength(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ fileSize, chunkSize int64 }{
		{30, 10}, {25, 10}, {0, 10}, {1, 10}, {100, 1},
	} {
		ranges, err := Plan(tc.fileSize, tc.chunkSize)
		require.NoError(t, err)
		assert.Equal(t, len(ranges), Count(tc.fileSize, tc.chunkSize))
	}
}

func TestRead_ReturnsExactBytes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := dir + "/data.bin"
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := Read(f, Range{Index: 0, Start: 3, End: 7})
	require.NoError(t, err)
	assert.Equal(t, []byte("3456"), got)
}

func TestRead_EmptyRangeReturnsEmptySlice(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := dir + "/empty.bin"
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := Read(f, Range{Index: 0, Start: 0, End: 0})
	require.NoError(t, err)
	assert.Empty(t, got)
}
