package model

import "time"

type SyncPhase string

const (
	PhaseSyncing    SyncPhase = "syncing"
	PhaseProcessing SyncPhase = "processing"
	PhaseCompleted  SyncPhase = "completed"
	PhaseFailed     SyncPhase = "failed"
)

// ItemError records one per-item failure inside a sync epoch. Item failures
// never abort sibling items.
type ItemError struct {
	MessageID string    `json:"message_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// SyncStatus is the live status of one sync epoch. Created at epoch start,
// mutated throughout, superseded at continuation. emailsProcessed never
// exceeds emailsFetched.
type SyncStatus struct {
	InstanceID      string      `json:"instance_id"`
	MailboxID       string      `json:"mailbox_id"`
	Epoch           int         `json:"epoch"`
	Phase           SyncPhase   `json:"phase"`
	EmailsFetched   int         `json:"emails_fetched"`
	EmailsProcessed int         `json:"emails_processed"`
	EmailsTriaged   int         `json:"emails_triaged"`
	AlertsCreated   int         `json:"alerts_created"`
	SignalsLinked   int         `json:"signals_linked"`
	Cursor          string      `json:"cursor"`
	Errors          []ItemError `json:"errors"`
	StartedAt       time.Time   `json:"started_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// SyncCheckpoint is the durable resume state for a mailbox, written once per
// page after the page's results are stored. A restart resumes from here.
type SyncCheckpoint struct {
	MailboxID       string    `json:"mailbox_id"`
	InstanceID      string    `json:"instance_id"`
	Epoch           int       `json:"epoch"`
	Cursor          string    `json:"cursor"`
	Phase           SyncPhase `json:"phase"`
	EmailsFetched   int       `json:"emails_fetched"`
	EmailsProcessed int       `json:"emails_processed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DeadLetter is an item that kept failing across epochs and was pulled out
// of the retry loop.
type DeadLetter struct {
	MessageID string    `json:"message_id"`
	MailboxID string    `json:"mailbox_id"`
	UserID    string    `json:"user_id"`
	Stage     string    `json:"stage"`
	Reason    string    `json:"reason"`
	Attempts  int64     `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditRecord is one append-only audit log entry.
type AuditRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	InstanceID string    `json:"instance_id"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
