// Package audit records sensitive portal mutations. Every successful
// sensitive mutation yields exactly one event, appended to the store after
// the mutation commits and mirrored as a structured log line. Policy code
// never writes here; only gateways do.
package audit

import (
	"context"
	"strings"
	"time"

	"legitheque.org/internal/ids"
	"legitheque.org/internal/obs"
)

// Action is one of the fixed sensitive-mutation actions.
type Action string

const (
	ActionCreateDocument Action = "CREATE_DOCUMENT"
	ActionUpdateDocument Action = "UPDATE_DOCUMENT"
	ActionDeleteDocument Action = "DELETE_DOCUMENT"
	ActionCreateUser     Action = "CREATE_USER"
	ActionActivateUser   Action = "ACTIVATE_USER"
	ActionDeactivateUser Action = "DEACTIVATE_USER"
	ActionDeleteUser     Action = "DELETE_USER"
)

// Event is an immutable record of a sensitive state change.
type Event struct {
	ID          string
	ActorUserID string
	Action      Action
	EntityType  string
	EntityID    string
	SectorID    string
	Reason      string
	OccurredAt  time.Time
}

// Store appends immutable events.
type Store interface {
	Append(ctx context.Context, event *Event) error
}

// Recorder writes audit events to the store and mirrors them to the shared
// structured log.
type Recorder struct {
	store Store
	now   func() time.Time
}

// RecorderOption configures Recorder behavior.
type RecorderOption func(*Recorder)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends the event. A store failure after a committed mutation is a
// fatal inconsistency: it is logged for manual reconciliation and returned,
// never retried.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = ids.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now().UTC()
	}
	if err := r.store.Append(ctx, &event); err != nil {
		obs.LogRequest(map[string]any{
			"ts":        r.now().UTC().Format(time.RFC3339Nano),
			"type":      "audit_failure",
			"action":    string(event.Action),
			"entity":    event.EntityType,
			"entity_id": event.EntityID,
			"error":     err.Error(),
		})
		return err
	}

	entry := map[string]any{
		"ts":        event.OccurredAt.Format(time.RFC3339Nano),
		"type":      "audit",
		"action":    string(event.Action),
		"entity":    event.EntityType,
		"entity_id": event.EntityID,
	}
	if event.ActorUserID != "" {
		entry["actor_user_id"] = event.ActorUserID
	}
	if event.SectorID != "" {
		entry["sector_id"] = event.SectorID
	}
	if event.Reason != "" {
		entry["reason"] = event.Reason
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	obs.LogRequest(entry)
	return nil
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so audit log
// lines can be correlated with the request log.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
