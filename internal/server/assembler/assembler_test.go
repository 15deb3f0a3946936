package assembler

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkrelay/chunkrelay/internal/server/store"
)

func unlimitedStat(string) (uint64, error) {
	return 1 << 40, nil //nolint:mnd // effectively unlimited for test purposes
}

func newTestAssembler(t *testing.T, baseDir string) (*Assembler, *store.Store) {
	t.Helper()

	st := store.New(baseDir, "temp_", 0, 0, nil)
	st.StatFunc = unlimitedStat

	a := New(baseDir, 0, 0, nil)
	a.StatFunc = unlimitedStat

	return a, st
}

func TestAssemble_HappyPathInOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, st := newTestAssembler(t, dir)

	require.NoError(t, st.Write("sess-1", 0, []byte("Hello ")))
	require.NoError(t, st.Write("sess-1", 1, []byte("World ")))
	require.NoError(t, st.Write("sess-1", 2, []byte("!")))

	dest, err := a.Assemble(st, "sess-1", "hello.txt", 3)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "Hello World !", string(got))
}

func TestAssemble_OrderIndependentOfSubmissionOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, st := newTestAssembler(t, dir)

	// Submit out of order: 2, 0, 1.
	require.NoError(t, st.Write("sess-1", 2, []byte("!")))
	require.NoError(t, st.Write("sess-1", 0, []byte("Hello ")))
	require.NoError(t, st.Write("sess-1", 1, []byte("World ")))

	dest, err := a.Assemble(st, "sess-1", "hello.txt", 3)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "Hello World !", string(got))
}

func TestAssemble_NoFileNameUsesSessionIDBin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, st := newTestAssembler(t, dir)

	require.NoError(t, st.Write("sess-1", 0, []byte("x")))

	dest, err := a.Assemble(st, "sess-1", "", 1)
	require.NoError(t, err)
	assert.Equal(t, "sess-1.bin", dest[len(dir)+1:])
}

func TestAssemble_FilenameCollisionAppendsSuffix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, st := newTestAssembler(t, dir)

	require.NoError(t, os.WriteFile(dir+"/dup.txt", []byte("existing"), 0o644))

	require.NoError(t, st.Write("sess-1", 0, []byte("new")))

	dest, err := a.Assemble(st, "sess-1", "dup.txt", 1)
	require.NoError(t, err)
	assert.Equal(t, dir+"/dup_1.txt", dest)
}

func TestAssemble_MissingChunkFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, st := newTestAssembler(t, dir)

	require.NoError(t, st.Write("sess-1", 0, []byte("a")))
	// chunk 1 never written

	_, err := a.Assemble(st, "sess-1", "out.bin", 2)
	require.Error(t, err)
}
