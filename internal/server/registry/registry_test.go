package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_CreatesThenReuses(t *testing.T) {
	t.Parallel()

	r := New()

	s, err := r.GetOrCreate("sess-1", 4)
	require.NoError(t, err)
	assert.Equal(t, StateActive, s.State)
	assert.Equal(t, 4, s.TotalChunks)

	s2, err := r.GetOrCreate("sess-1", 4)
	require.NoError(t, err)
	assert.Equal(t, s.CreatedAt, s2.CreatedAt)
}

func TestGetOrCreate_TotalChunksMismatchRejected(t *testing.T) {
	t.Parallel()

	r := New()

	_, err := r.GetOrCreate("sess-1", 4)
	require.NoError(t, err)

	_, err = r.GetOrCreate("sess-1", 5)
	require.Error(t, err)

	var mismatch *ErrTotalChunksMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Existing)
	assert.Equal(t, 5, mismatch.Requested)
}

func TestAddChunk_IdempotentByteCounting(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.GetOrCreate("sess-1", 4)
	require.NoError(t, err)

	s, err := r.AddChunk("sess-1", 2, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.UploadedBytes)

	// Replaying the same index must not double-count bytes.
	s, err = r.AddChunk("sess-1", 2, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.UploadedBytes)
	assert.Len(t, s.ReceivedChunks, 1)
}

func TestSession_MissingChunksAndNextExpected(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.GetOrCreate("sess-1", 4)
	require.NoError(t, err)

	_, err = r.AddChunk("sess-1", 0, 10)
	require.NoError(t, err)
	_, err = r.AddChunk("sess-1", 2, 10)
	require.NoError(t, err)

	s, ok := r.Get("sess-1")
	require.True(t, ok)

	assert.Equal(t, []int{1, 3}, s.MissingChunks())
	assert.Equal(t, 1, s.NextExpectedChunk())
	assert.True(t, s.CanResume())
}

func TestSession_CompletionInvariant(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.GetOrCreate("sess-1", 2)
	require.NoError(t, err)

	_, err = r.AddChunk("sess-1", 0, 5)
	require.NoError(t, err)
	_, err = r.AddChunk("sess-1", 1, 5)
	require.NoError(t, err)

	require.NoError(t, r.MarkCompleted("sess-1"))

	s, ok := r.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, StateCompleted, s.State)
	assert.Len(t, s.ReceivedChunks, s.TotalChunks)
	assert.False(t, s.CanResume())
}

func TestRemove_IsIdempotent(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.GetOrCreate("sess-1", 2)
	require.NoError(t, err)

	r.Remove("sess-1")
	r.Remove("sess-1") // must not panic

	_, ok := r.Get("sess-1")
	assert.False(t, ok)
}

func TestCleanup_OnlyRemovesAgedTerminalSessions(t *testing.T) {
	t.Parallel()

	r := New()

	_, err := r.GetOrCreate("active", 2)
	require.NoError(t, err)

	_, err = r.GetOrCreate("done", 2)
	require.NoError(t, err)
	require.NoError(t, r.MarkCompleted("done"))

	// Force done's LastUpdatedAt into the past by sleeping past a tiny maxAge.
	time.Sleep(5 * time.Millisecond)

	removed := r.Cleanup(1 * time.Millisecond)
	assert.Contains(t, removed, "done")

	_, ok := r.Get("active")
	assert.True(t, ok, "active sessions must never be cleaned up")
}

func TestNewSessionID_ProducesUniqueValues(t *testing.T) {
	t.Parallel()

	a := NewSessionID()
	b := NewSessionID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36) // canonical UUID string length
}
