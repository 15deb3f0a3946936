// Package notify fans coordinator lifecycle events out to every
// subscriber that cares about them: the live websocket push hub and the
// durable audit log.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/chunkrelay/chunkrelay/internal/server/audit"
	"github.com/chunkrelay/chunkrelay/internal/server/registry"
)

// PushNotifier is the subset of ws.Hub the fan-out depends on.
type PushNotifier interface {
	Notify(sessionID, event string)
}

// AuditRecorder is the subset of audit.Log the fan-out depends on.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Event) error
}

// terminalEvents are the events worth writing to the durable audit trail;
// per-chunk events would make the log noisy without adding value.
var terminalEvents = map[string]bool{"completed": true, "failed": true, "cancelled": true}

// Fanout implements coordinator.Notifier, forwarding every event to Push
// (if set) and persisting terminal events to Audit (if set).
type Fanout struct {
	Push     PushNotifier
	Audit    AuditRecorder
	Registry *registry.Registry
	Logger   *slog.Logger
}

// New builds a Fanout. Either dependency may be nil to disable that leg.
func New(push PushNotifier, auditLog AuditRecorder, reg *registry.Registry, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}

	return &Fanout{Push: push, Audit: auditLog, Registry: reg, Logger: logger}
}

// Notify implements coordinator.Notifier.
func (f *Fanout) Notify(sessionID, event string) {
	if f.Push != nil {
		f.Push.Notify(sessionID, event)
	}

	if f.Audit == nil || !terminalEvents[event] {
		return
	}

	e := audit.Event{SessionID: sessionID, Kind: event, Timestamp: time.Now()}

	if f.Registry != nil {
		if s, ok := f.Registry.Get(sessionID); ok {
			e.Bytes = s.UploadedBytes
			e.ErrorMsg = s.ErrorMessage
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := f.Audit.Record(ctx, e); err != nil {
		f.Logger.Warn("notify: failed to record audit event", slog.String("error", err.Error()))
	}
}
