package mailsync

import (
	"sync"
	"time"

	"mailpilot/internal/model"
)

// tracker owns the mutable status of one sync epoch. The coordinator is the
// only writer; Snapshot serves concurrent pollers through the status
// register.
type tracker struct {
	mu     sync.Mutex
	status model.SyncStatus
	now    func() time.Time
}

func newTracker(instanceID, mailboxID string, epoch int, cursor string, now func() time.Time) *tracker {
	t := &tracker{now: now}
	t.status = model.SyncStatus{
		InstanceID: instanceID,
		MailboxID:  mailboxID,
		Epoch:      epoch,
		Phase:      model.PhaseSyncing,
		Cursor:     cursor,
		StartedAt:  now(),
		UpdatedAt:  now(),
	}
	return t
}

// Snapshot returns a point-in-time copy, safe for concurrent polling.
func (t *tracker) Snapshot() model.SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.status
	s.Errors = append([]model.ItemError(nil), t.status.Errors...)
	return s
}

func (t *tracker) SetPhase(phase model.SyncPhase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Phase = phase
	t.status.UpdatedAt = t.now()
}

func (t *tracker) Phase() model.SyncPhase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.Phase
}

func (t *tracker) AddFetched(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.EmailsFetched += n
	t.status.UpdatedAt = t.now()
}

func (t *tracker) AddProcessed(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.EmailsProcessed += n
	t.status.UpdatedAt = t.now()
}

func (t *tracker) AddTriaged(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.EmailsTriaged += n
	t.status.UpdatedAt = t.now()
}

func (t *tracker) AddAlerts(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.AlertsCreated += n
	t.status.UpdatedAt = t.now()
}

func (t *tracker) AddSignals(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.SignalsLinked += n
	t.status.UpdatedAt = t.now()
}

// SetCursor advances the cursor. Called once per page, after the page's
// results are durably stored; never rewound within an epoch.
func (t *tracker) SetCursor(cursor string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Cursor = cursor
	t.status.UpdatedAt = t.now()
}

func (t *tracker) RecordError(messageID, stage, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Errors = append(t.status.Errors, model.ItemError{
		MessageID: messageID,
		Stage:     stage,
		Message:   message,
		At:        t.now(),
	})
	t.status.UpdatedAt = t.now()
}

func (t *tracker) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.UpdatedAt = t.now()
}

// Checkpoint builds the durable resume state from the current status.
func (t *tracker) Checkpoint() model.SyncCheckpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.SyncCheckpoint{
		MailboxID:       t.status.MailboxID,
		InstanceID:      t.status.InstanceID,
		Epoch:           t.status.Epoch,
		Cursor:          t.status.Cursor,
		Phase:           t.status.Phase,
		EmailsFetched:   t.status.EmailsFetched,
		EmailsProcessed: t.status.EmailsProcessed,
		UpdatedAt:       t.now(),
	}
}
