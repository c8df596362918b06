package model

import "time"

type Priority string

const (
	PriorityUrgent    Priority = "urgent"
	PriorityImportant Priority = "important"
	PriorityNormal    Priority = "normal"
	PriorityLow       Priority = "low"
)

// ValidPriority reports whether s is a known priority value.
func ValidPriority(s string) bool {
	switch Priority(s) {
	case PriorityUrgent, PriorityImportant, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

type Category string

const (
	CategoryNewsletter Category = "newsletter"
	CategoryFinancial  Category = "financial"
	CategoryScheduling Category = "scheduling"
	CategoryShopping   Category = "shopping"
	CategorySecurity   Category = "security"
	CategorySupport    Category = "support"
	CategoryPromotion  Category = "promotion"
	CategoryGeneral    Category = "general"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Entities are extracted locally from the message text; extraction is pure
// and never fails.
type Entities struct {
	People    []string `json:"people"`
	Companies []string `json:"companies"`
	Amounts   []string `json:"amounts"`
	Dates     []string `json:"dates"`
}

// TickerSignal is a ticker-like token cross-referenced against the user's
// watch-list. Confirmed means the symbol is on the watch-list.
type TickerSignal struct {
	Symbol    string `json:"symbol"`
	Confirmed bool   `json:"confirmed"`
}

// Classification is the raw AI classifier output.
type Classification struct {
	Priority              string   `json:"priority"`
	Category              string   `json:"category"`
	Summary               string   `json:"summary"`
	SuggestedAction       string   `json:"suggested_action"`
	Tickers               []string `json:"tickers"`
	RequiresResponse      bool     `json:"requires_response"`
	EstimatedResponseTime string   `json:"estimated_response_time"`
}

// TriageResult is the full triage outcome for one email. A result is always
// produced: classifier failures degrade to a conservative default instead of
// propagating. Immutable once stored.
type TriageResult struct {
	MessageID             string         `json:"message_id"`
	ThreadID              string         `json:"thread_id"`
	Priority              Priority       `json:"priority"`
	PriorityConfidence    float64        `json:"priority_confidence"`
	Category              Category       `json:"category"`
	Summary               string         `json:"summary"`
	SuggestedAction       string         `json:"suggested_action"`
	Tickers               []TickerSignal `json:"tickers"`
	Sentiment             Sentiment      `json:"sentiment"`
	SentimentConfidence   float64        `json:"sentiment_confidence"`
	Entities              Entities       `json:"entities"`
	RequiresResponse      bool           `json:"requires_response"`
	EstimatedResponseTime string         `json:"estimated_response_time"`
	Degraded              bool           `json:"degraded"`
	TriagedAt             time.Time      `json:"triaged_at"`
}

// ConfirmedSignals returns the tickers confirmed against the watch-list.
func (r TriageResult) ConfirmedSignals() []string {
	var out []string
	for _, t := range r.Tickers {
		if t.Confirmed {
			out = append(out, t.Symbol)
		}
	}
	return out
}
