package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkrelay/chunkrelay/internal/client/pump"
	"github.com/chunkrelay/chunkrelay/internal/client/transport"
)

type noopSender struct{}

func (noopSender) Send(context.Context, string, transport.Chunk) (transport.Result, error) {
	return transport.Result{StatusCode: 200}, nil
}

type noopFinalizer struct{ err error }

func (f noopFinalizer) Finalize(context.Context, string) error { return f.err }

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()

	path := t.TempDir() + "/f.bin"
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestResolve_NoExistingRecordGeneratesFreshID(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir(), nil)

	id, resumed, err := m.Resolve("/tmp/never-uploaded.bin")
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.NotEmpty(t, id)
}

func TestStart_PersistsThenRemovesRefreshRecordOnSuccess(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir(), nil)
	path := writeTempFile(t, []byte("hello world"))

	id, _, err := m.Resolve(path)
	require.NoError(t, err)

	task, err := pump.New(pump.Options{
		SessionID: id, BaseURL: "http://example", FilePath: path, FileName: "f.bin",
		ChunkSize: 4, Concurrency: 2, Sender: noopSender{}, Finalizer: noopFinalizer{},
	})
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background(), task, 4))

	rec, err := m.refresh.Load(path)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStart_KeepsRefreshRecordOnFailure(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir(), nil)
	path := writeTempFile(t, []byte("hello world"))

	id, _, err := m.Resolve(path)
	require.NoError(t, err)

	task, err := pump.New(pump.Options{
		SessionID: id, BaseURL: "http://example", FilePath: path, FileName: "f.bin",
		ChunkSize: 4, Concurrency: 2, Sender: noopSender{}, Finalizer: noopFinalizer{err: errors.New("boom")},
	})
	require.NoError(t, err)

	require.Error(t, m.Start(context.Background(), task, 4))

	rec, loadErr := m.refresh.Load(path)
	require.NoError(t, loadErr)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.SessionID)
}

func TestActive_TracksRunningTasks(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir(), nil)
	path := writeTempFile(t, make([]byte, 1000))

	task, err := pump.New(pump.Options{
		SessionID: "sess-active", BaseURL: "http://example", FilePath: path, FileName: "f.bin",
		ChunkSize: 10, Concurrency: 1, Sender: slowSender{}, Finalizer: noopFinalizer{},
	})
	require.NoError(t, err)

	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = m.Start(context.Background(), task, 10)
	}()

	require.Eventually(t, func() bool {
		return len(m.Active()) == 1
	}, time.Second, 5*time.Millisecond)

	m.CancelAll()
	<-done

	assert.Empty(t, m.Active())
}

type slowSender struct{}

func (slowSender) Send(ctx context.Context, _ string, _ transport.Chunk) (transport.Result, error) {
	select {
	case <-time.After(5 * time.Second):
		return transport.Result{StatusCode: 200}, nil
	case <-ctx.Done():
		return transport.Result{}, ctx.Err()
	}
}
