package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkrelay/chunkrelay/internal/server/audit"
	"github.com/chunkrelay/chunkrelay/internal/server/registry"
)

type recordingPush struct {
	events []string
}

func (p *recordingPush) Notify(_, event string) { p.events = append(p.events, event) }

type recordingAudit struct {
	events []audit.Event
}

func (a *recordingAudit) Record(_ context.Context, e audit.Event) error {
	a.events = append(a.events, e)
	return nil
}

func TestFanout_ForwardsEveryEventToPush(t *testing.T) {
	t.Parallel()

	push := &recordingPush{}
	f := New(push, nil, nil, nil)

	f.Notify("sess-1", "chunk_received")
	f.Notify("sess-1", "completed")

	assert.Equal(t, []string{"chunk_received", "completed"}, push.events)
}

func TestFanout_OnlyRecordsTerminalEventsToAudit(t *testing.T) {
	t.Parallel()

	aud := &recordingAudit{}
	f := New(nil, aud, nil, nil)

	f.Notify("sess-1", "chunk_received")
	f.Notify("sess-1", "completed")

	require.Len(t, aud.events, 1)
	assert.Equal(t, "completed", aud.events[0].Kind)
}

func TestFanout_EnrichesAuditEventFromRegistry(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	_, err := reg.GetOrCreate("sess-1", 1)
	require.NoError(t, err)
	_, err = reg.AddChunk("sess-1", 0, 42)
	require.NoError(t, err)

	aud := &recordingAudit{}
	f := New(nil, aud, reg, nil)

	f.Notify("sess-1", "completed")

	require.Len(t, aud.events, 1)
	assert.EqualValues(t, 42, aud.events[0].Bytes)
}

func TestFanout_NilDependenciesAreSafe(t *testing.T) {
	t.Parallel()

	f := New(nil, nil, nil, nil)
	assert.NotPanics(t, func() { f.Notify("sess-1", "completed") })
}
