package mq

import "time"

const (
	RoutingKeyReplyRequested = "reply.requested"
)

// ReplyRequestedPayload asks the worker to generate smart-reply suggestions
// for a thread.
type ReplyRequestedPayload struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	ThreadID    string    `json:"thread_id"`
	RequestedAt time.Time `json:"requested_at"`
}
