package mq

import "time"

// Routing keys for the sync workflow.
const (
	RoutingKeySyncStart    = "sync.start"
	RoutingKeySyncContinue = "sync.continue"
)

// SyncRequestedPayload starts a sync epoch for a mailbox. A sync.continue
// message carries the resume state of the previous epoch.
type SyncRequestedPayload struct {
	InstanceID  string    `json:"instance_id"`
	MailboxID   string    `json:"mailbox_id"`
	UserID      string    `json:"user_id"`
	Grant       string    `json:"grant"`
	Cursor      string    `json:"cursor,omitempty"`
	Epoch       int       `json:"epoch"`
	Ongoing     bool      `json:"ongoing"`
	RequestedAt time.Time `json:"requested_at"`
}
