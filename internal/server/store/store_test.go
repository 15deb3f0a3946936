package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unlimitedStat(string) (uint64, error) {
	return 1 << 40, nil //nolint:mnd // effectively unlimited for test purposes
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s := New(t.TempDir(), "temp_", 0, 0, nil)
	s.StatFunc = unlimitedStat

	return s
}

func TestWriteThenExistsAndSize(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Write("sess-1", 0, []byte("hello ")))
	assert.True(t, s.Exists("sess-1", 0))

	size, err := s.Size("sess-1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	assert.False(t, s.Exists("sess-1", 1))
}

func TestWrite_IsIdempotentOverwrite(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Write("sess-1", 0, []byte("aaaaaaaaaa")))
	require.NoError(t, s.Write("sess-1", 0, []byte("bb")))

	size, err := s.Size("sess-1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size, "replaying a write truncates the prior artifact")
}

func TestListAll_MissingChunkFails(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Write("sess-1", 0, []byte("a")))
	require.NoError(t, s.Write("sess-1", 2, []byte("c")))

	_, err := s.ListAll("sess-1", 3)
	require.ErrorIs(t, err, ErrMissingChunk)
}

func TestListAll_AllPresentSucceeds(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	for i, b := range [][]byte{[]byte("a"), []byte("b"), []byte("c")} {
		require.NoError(t, s.Write("sess-1", i, b))
	}

	paths, err := s.ListAll("sess-1", 3)
	require.NoError(t, err)
	assert.Len(t, paths, 3)

	for _, p := range paths {
		_, statErr := os.Stat(p)
		assert.NoError(t, statErr)
	}
}

func TestCleanup_RemovesSessionDir(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Write("sess-1", 0, []byte("a")))

	s.Cleanup("sess-1")

	assert.False(t, s.Exists("sess-1", 0))
}

func TestCleanup_IsSafeOnAbsentSession(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.Cleanup("never-existed") // must not panic
}

func TestWrite_InsufficientDiskSpace(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), "temp_", 1<<30, 0, nil) //nolint:mnd // 1GiB min free, unmet by tiny stat below
	s.StatFunc = func(string) (uint64, error) { return 10, nil }

	err := s.Write("sess-1", 0, []byte("x"))
	require.Error(t, err)
}
