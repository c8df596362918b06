package model

import "time"

type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneConcise      Tone = "concise"
)

// ReplyDraft is one raw variant returned by the AI generator, before
// validation.
type ReplyDraft struct {
	Tone       Tone    `json:"tone"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// ReplySuggestion is a validated draft persisted for the user. Synthesized
// marks the generic acknowledgment produced when no generated draft survived
// validation.
type ReplySuggestion struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	Tone        Tone      `json:"tone"`
	Content     string    `json:"content"`
	Confidence  float64   `json:"confidence"`
	Synthesized bool      `json:"synthesized"`
	CreatedAt   time.Time `json:"created_at"`
}

// StyleProfile is the user's writing-style profile and signature, loaded
// together before generation.
type StyleProfile struct {
	Style     string `json:"style"`
	Signature string `json:"signature"`
}
