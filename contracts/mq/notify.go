package mq

import "time"

// Routing keys for the notification sink. All fire-and-forget: a publish
// failure must never fail the workflow that raised it.
const (
	RoutingKeyAlertTriggered      = "alert.triggered"
	RoutingKeyNotificationCreated = "notification.created"
	RoutingKeyTaskCreated         = "task.created"
)

// AlertPayload is an urgent-email alert or an important-email notification.
type AlertPayload struct {
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id"`
	Priority  string    `json:"priority"`
	Subject   string    `json:"subject"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskPayload asks the task system to create a follow-up task for an email.
type TaskPayload struct {
	UserID                string    `json:"user_id"`
	MessageID             string    `json:"message_id"`
	Title                 string    `json:"title"`
	SuggestedAction       string    `json:"suggested_action"`
	EstimatedResponseTime string    `json:"estimated_response_time"`
	CreatedAt             time.Time `json:"created_at"`
}

// SignalPayload links a confirmed watch-list ticker mention to an email.
type SignalPayload struct {
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id"`
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
}

const RoutingKeySignalLinked = "signal.linked"
