package model

import "time"

// EmailMessage is one message fetched from a mailbox provider.
type EmailMessage struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// MailboxPage is one page of a paginated mailbox listing. An empty
// NextCursor signals end-of-mailbox.
type MailboxPage struct {
	Items      []EmailMessage `json:"items"`
	NextCursor string         `json:"next_cursor"`
}

// SendRequest is an outbound message handed to the mailbox provider.
type SendRequest struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	InReplyTo string `json:"in_reply_to,omitempty"`
}
