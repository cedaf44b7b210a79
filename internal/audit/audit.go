// Package audit records operational events (syncs, restores, restarts,
// device approvals) to external systems.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// EventType defines the kind of operational event.
type EventType string

const (
	EventSync          EventType = "sync"
	EventRestore       EventType = "restore"
	EventRestart       EventType = "restart"
	EventDeviceApprove EventType = "device_approve"
	EventOrphanCleanup EventType = "orphan_cleanup"
)

// Event represents one operational event to be exported.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Success    bool      `json:"success"`
	Files      int       `json:"files"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for audit events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// LogSink writes events to the structured log. It is the fallback when no
// external sink is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(_ context.Context, e Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("audit event",
		"type", e.Type,
		"occurred_at", e.OccurredAt,
		"success", e.Success,
		"files", e.Files,
		"detail", e.Detail,
	)
	return nil
}

// Emit sends an event through the sink, logging and swallowing sink errors.
// Audit is observability, not correctness; operations never fail on it.
func Emit(ctx context.Context, sink Sink, e Event) {
	if sink == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	if err := sink.Send(ctx, e); err != nil {
		slog.Warn("audit send failed", "type", e.Type, "error", err)
	}
}
