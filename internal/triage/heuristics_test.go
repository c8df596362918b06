package triage

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailpilot/internal/model"
)

func TestClassifyCategory(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    model.Category
	}{
		{"newsletter", "Weekly roundup", "Click here to unsubscribe from this list", model.CategoryNewsletter},
		{"financial", "Your invoice", "Invoice #42 attached, payment due Friday", model.CategoryFinancial},
		{"scheduling", "Sync up?", "Can we schedule a meeting for Thursday?", model.CategoryScheduling},
		{"shopping", "Order confirmed", "Your package is out for delivery", model.CategoryShopping},
		{"security", "Security alert", "We detected a suspicious login attempt", model.CategorySecurity},
		{"support", "Re: help", "Your support ticket has been updated", model.CategorySupport},
		{"promotion", "Big savings", "Get 20% off with promo code SAVE", model.CategoryPromotion},
		{"general fallback", "Lunch", "Want to grab food later?", model.CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCategory(tt.subject, tt.body))
		})
	}
}

// An email matching several tiers always lands in the earliest one, so
// category assignment stays deterministic.
func TestClassifyCategoryWaterfallOrder(t *testing.T) {
	got := ClassifyCategory("Monthly statement", "unsubscribe below. Your invoice is attached.")
	assert.Equal(t, model.CategoryNewsletter, got)

	got = ClassifyCategory("Billing", "invoice attached, also let's schedule a meeting")
	assert.Equal(t, model.CategoryFinancial, got)
}

func TestDetectUrgency(t *testing.T) {
	tests := []struct {
		name         string
		subject      string
		body         string
		aiSuggestion string
		wantPriority model.Priority
		wantConf     float64
	}{
		{"urgent keyword", "URGENT: server down", "please fix", "", model.PriorityUrgent, 0.9},
		{"important keyword", "Action required", "sign the form", "", model.PriorityImportant, 0.75},
		{"low keyword", "Newsletter", "unsubscribe anytime", "", model.PriorityLow, 0.6},
		{"ai suggestion used", "Hello", "just checking in", "important", model.PriorityImportant, 0.7},
		{"invalid ai suggestion ignored", "Hello", "just checking in", "sky-high", model.PriorityNormal, 0.5},
		{"default normal", "Hello", "just checking in", "", model.PriorityNormal, 0.5},
		{"urgent outranks low", "URGENT", "unsubscribe link below", "", model.PriorityUrgent, 0.9},
		{"keywords outrank ai", "Action required", "sign the form", "low", model.PriorityImportant, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			priority, conf := DetectUrgency(tt.subject, tt.body, tt.aiSuggestion)
			assert.Equal(t, tt.wantPriority, priority)
			assert.InDelta(t, tt.wantConf, conf, 1e-9)
		})
	}
}

func TestScoreSentiment(t *testing.T) {
	sentiment, conf := ScoreSentiment("Thank you!", "Really appreciate the great work")
	assert.Equal(t, model.SentimentPositive, sentiment)
	assert.Greater(t, conf, 0.5)

	sentiment, conf = ScoreSentiment("Problem with my order", "This is unacceptable, I want a refund")
	assert.Equal(t, model.SentimentNegative, sentiment)
	assert.Greater(t, conf, 0.5)

	sentiment, conf = ScoreSentiment("Meeting notes", "See attached agenda")
	assert.Equal(t, model.SentimentNeutral, sentiment)
	assert.InDelta(t, 0.5, conf, 1e-9)
}

func TestScoreSentimentConfidenceCap(t *testing.T) {
	body := strings.Repeat("terrible broken unacceptable ", 10)
	sentiment, conf := ScoreSentiment("Complaint", body)
	assert.Equal(t, model.SentimentNegative, sentiment)
	assert.InDelta(t, 0.95, conf, 1e-9)
}

func TestExtractEntities(t *testing.T) {
	subject := "Invoice due 2026-03-15"
	body := "Hi John,\n\nPlease wire $50,000 to Acme Capital by Friday. " +
		"Dr. Smith approved the $1,200.50 consulting fee on Mar 3rd.\n"

	entities := ExtractEntities(subject, body)

	assert.Equal(t, []string{"$50,000", "$1,200.50"}, entities.Amounts)
	assert.Contains(t, entities.Dates, "2026-03-15")
	assert.Contains(t, entities.Dates, "Friday")
	assert.Contains(t, entities.People, "John")
	assert.Contains(t, entities.People, "Dr. Smith")
	assert.Contains(t, entities.Companies, "Acme Capital")
}

func TestExtractEntitiesDedupesAndCaps(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "charge of $%d.00 and again $%d.00, ", i, i)
	}
	entities := ExtractEntities("Receipt", sb.String())

	require.Len(t, entities.Amounts, 10)
	seen := make(map[string]bool)
	for _, a := range entities.Amounts {
		assert.False(t, seen[a], "duplicate amount %s", a)
		seen[a] = true
	}
}

func TestExtractTickerCandidates(t *testing.T) {
	got := ExtractTickerCandidates(
		"URGENT: $TSLA earnings",
		"Watching AAPL and MSFT. FYI the CEO said ASAP.",
		[]string{"nvda", "AAPL"},
	)
	// Stop-listed shouty words never surface; AI symbols merge in upper-cased
	// without duplicating text matches.
	assert.Equal(t, []string{"TSLA", "AAPL", "MSFT", "NVDA"}, got)
}

func TestCrossReferenceTickers(t *testing.T) {
	signals := CrossReferenceTickers([]string{"AAPL", "GME"}, []string{"aapl", "TSLA"})
	require.Len(t, signals, 2)
	assert.Equal(t, model.TickerSignal{Symbol: "AAPL", Confirmed: true}, signals[0])
	assert.Equal(t, model.TickerSignal{Symbol: "GME", Confirmed: false}, signals[1])
}
