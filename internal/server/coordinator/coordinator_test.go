package coordinator

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkrelay/chunkrelay/internal/apperr"
	"github.com/chunkrelay/chunkrelay/internal/server/assembler"
	"github.com/chunkrelay/chunkrelay/internal/server/registry"
	"github.com/chunkrelay/chunkrelay/internal/server/store"
	"github.com/chunkrelay/chunkrelay/internal/server/validator"
)

func unlimitedStat(string) (uint64, error) { return 1 << 40, nil } //nolint:mnd

func newTestCoordinator(t *testing.T) (*Coordinator, string) {
	t.Helper()

	dir := t.TempDir()

	st := store.New(dir, "temp_", 0, 0, nil)
	st.StatFunc = unlimitedStat

	asm := assembler.New(dir, 0, 0, nil)
	asm.StatFunc = unlimitedStat

	limits := validator.Limits{MaxChunkSize: 1 << 20, MaxChunkCount: 1000} //nolint:mnd

	c := New(registry.New(), st, asm, limits, nil, nil)

	return c, dir
}

func req(sessionID string, idx, total int) validator.ChunkRequest {
	return validator.ChunkRequest{SessionID: sessionID, ChunkIndex: idx, TotalChunks: total}
}

func TestSaveChunk_ThenFinalize_HappyPath(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)

	_, err := c.SaveChunk(req("sess-1", 0, 3), 0, 0, []byte("Hello "))
	require.NoError(t, err)
	_, err = c.SaveChunk(req("sess-1", 1, 3), 0, 0, []byte("World "))
	require.NoError(t, err)
	_, err = c.SaveChunk(req("sess-1", 2, 3), 0, 0, []byte("!"))
	require.NoError(t, err)

	session, destPath, err := c.Finalize("sess-1")
	require.NoError(t, err)
	assert.Equal(t, registry.StateCompleted, session.State)

	content, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, "Hello World !", string(content))

	_, ok := c.Registry.Get("sess-1")
	assert.False(t, ok, "session must be removed from registry after successful finalize")
}

func TestFinalize_IncompleteUploadRejected(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)

	_, err := c.SaveChunk(req("sess-1", 0, 4), 0, 0, []byte("a"))
	require.NoError(t, err)
	_, err = c.SaveChunk(req("sess-1", 2, 4), 0, 0, []byte("c"))
	require.NoError(t, err)

	_, _, err = c.Finalize("sess-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrIncompleteUpload)

	session, ok := c.Registry.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, registry.StateActive, session.State)
}

func TestFinalize_CalledTwice_SecondReturnsNotFound(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)

	_, err := c.SaveChunk(req("sess-1", 0, 1), 0, 0, []byte("a"))
	require.NoError(t, err)

	_, _, err = c.Finalize("sess-1")
	require.NoError(t, err)

	_, _, err = c.Finalize("sess-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSaveChunk_DuplicateChunkIsIdempotent(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)

	s1, err := c.SaveChunk(req("sess-1", 0, 2), 0, 0, []byte("aaaa"))
	require.NoError(t, err)
	s2, err := c.SaveChunk(req("sess-1", 0, 2), 0, 0, []byte("aaaa"))
	require.NoError(t, err)

	assert.Equal(t, s1.UploadedBytes, s2.UploadedBytes)
	assert.Len(t, s2.ReceivedChunks, 1)
}

func TestCancel_RemovesDiskAndRegistryEntry(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)

	_, err := c.SaveChunk(req("sess-1", 0, 2), 0, 0, []byte("a"))
	require.NoError(t, err)

	c.Cancel("sess-1")

	_, ok := c.Registry.Get("sess-1")
	assert.False(t, ok)
	assert.False(t, c.Store.Exists("sess-1", 0))
}

func TestCancel_IsSafeOnAbsentSession(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	c.Cancel("never-existed") // must not panic
}

func TestSaveChunk_TotalChunksMismatchRejected(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)

	_, err := c.SaveChunk(req("sess-1", 0, 4), 0, 0, []byte("a"))
	require.NoError(t, err)

	_, err = c.SaveChunk(req("sess-1", 0, 5), 0, 0, []byte("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
