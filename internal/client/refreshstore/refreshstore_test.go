package refreshstore

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrips(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil)

	rec := Record{SessionID: "sess-1", FilePath: "/tmp/a.bin", FileSize: 100, ChunkSize: 10}
	require.NoError(t, s.Save(rec))

	got, err := s.Load("/tmp/a.bin")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.EqualValues(t, 100, got.FileSize)
}

func TestLoad_MissingReturnsNil(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil)

	got, err := s.Load("/tmp/never-saved.bin")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// backdate overwrites the on-disk record for filePath with one stamped
// savedAt time.Now().Add(-age), simulating a record written long ago.
func backdate(t *testing.T, s *Store, rec Record, age time.Duration) {
	t.Helper()

	rec.SavedAt = time.Now().Add(-age)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.recordPath(rec.FilePath), data, 0o600))
}

func TestLoad_ExpiredRecordIsDiscardedAndDeleted(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil)
	rec := Record{SessionID: "sess-1", FilePath: "/tmp/a.bin"}

	require.NoError(t, s.Save(rec))
	backdate(t, s, rec, TTL+time.Minute)

	got, err := s.Load("/tmp/a.bin")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, statErr := os.Stat(s.recordPath("/tmp/a.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoad_RecordJustUnderTTLSurvives(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil)
	rec := Record{SessionID: "sess-1", FilePath: "/tmp/a.bin"}

	require.NoError(t, s.Save(rec))
	backdate(t, s, rec, TTL-time.Second)

	got, err := s.Load("/tmp/a.bin")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestDelete_RemovesRecord(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil)

	require.NoError(t, s.Save(Record{SessionID: "sess-1", FilePath: "/tmp/a.bin"}))
	require.NoError(t, s.Delete("/tmp/a.bin"))

	got, err := s.Load("/tmp/a.bin")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCleanExpired_RemovesOnlyStaleRecords(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil)

	require.NoError(t, s.Save(Record{SessionID: "fresh", FilePath: "/tmp/fresh.bin"}))

	staleRec := Record{SessionID: "stale", FilePath: "/tmp/stale.bin"}
	require.NoError(t, s.Save(staleRec))
	backdate(t, s, staleRec, TTL+time.Hour)

	n, err := s.CleanExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fresh, err := s.Load("/tmp/fresh.bin")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

func TestLoad_CorruptRecordIsDeletedAndReturnsError(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil)
	require.NoError(t, os.MkdirAll(s.dir, 0o700))

	path := s.recordPath("/tmp/corrupt.bin")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := s.Load("/tmp/corrupt.bin")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
