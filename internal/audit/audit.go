// Package audit appends immutable records of security-relevant actions.
// Entries are write-once: nothing in this package mutates or deletes them.
package audit

import (
	"context"
	"time"

	"mecone.com/internal/ids"
	"mecone.com/internal/obs"
)

// Action tags drawn from the known set of audited operations.
type Action string

const (
	ActionCreate        Action = "CREATE"
	ActionUpdate        Action = "UPDATE"
	ActionDelete        Action = "DELETE"
	ActionLogin         Action = "LOGIN"
	ActionLogout        Action = "LOGOUT"
	ActionPasswordReset Action = "PASSWORD_RESET"
	ActionAPIAccess     Action = "API_ACCESS"
)

// Entry is one append-only audit record. UserID is empty for
// system-initiated events.
type Entry struct {
	ID        string
	UserID    string
	Action    Action
	TableName string
	RecordID  string
	OldValues map[string]any
	NewValues map[string]any
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Store persists entries. Append-only; no read path is exposed to the core.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

// Keys stripped from snapshots before persistence. Redaction lives here, at
// the recorder boundary, so no call site can forget it.
var sensitiveKeys = map[string]struct{}{
	"password":          {},
	"passwordHash":      {},
	"password_hash":     {},
	"temporaryPassword": {},
	"newPassword":       {},
}

const redactedPlaceholder = "[REDACTED]"

// Redact returns a copy of the snapshot with sensitive keys masked. Nil maps
// stay nil.
func Redact(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		if _, sensitive := sensitiveKeys[k]; sensitive {
			out[k] = redactedPlaceholder
			continue
		}
		out[k] = v
	}
	return out
}

// Recorder appends entries after redacting snapshots and stamping identity
// and time.
type Recorder struct {
	store Store
	now   func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one entry. Snapshots are redacted centrally; the caller
// never needs to strip secrets itself.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	entry.OldValues = Redact(entry.OldValues)
	entry.NewValues = Redact(entry.NewValues)
	return r.store.Append(ctx, &entry)
}

// RecordBestEffort appends an entry and logs a failure instead of returning
// it. Used on paths where a broken audit sink must not block the primary
// action (login, logout, per-request access trail).
func (r *Recorder) RecordBestEffort(ctx context.Context, entry Entry) {
	if err := r.Record(ctx, entry); err != nil {
		obs.Error("audit append failed", map[string]any{
			"action": string(entry.Action),
			"table":  entry.TableName,
			"error":  err.Error(),
		})
	}
}
