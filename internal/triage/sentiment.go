package triage

import (
	"strings"

	"mailpilot/internal/model"
)

// Sentiment scoring counts weighted keyword buckets. Confidence scales with
// the net bucket-count difference and is capped at 0.95.
var positiveWords = []string{
	"thank", "great", "appreciate", "congratulations", "excellent",
	"happy", "pleased", "wonderful", "love", "perfect", "awesome", "glad",
}

var negativeWords = []string{
	"problem", "issue", "complaint", "angry", "disappointed", "failed",
	"error", "unacceptable", "cancel", "refund", "wrong", "frustrated",
	"terrible", "worst", "broken",
}

const (
	sentimentBaseConfidence = 0.5
	sentimentStep           = 0.1
	sentimentMaxConfidence  = 0.95
)

// ScoreSentiment classifies text as positive, negative or neutral. Pure,
// never fails.
func ScoreSentiment(subject, body string) (model.Sentiment, float64) {
	text := strings.ToLower(subject + " " + body)

	positive := countOccurrences(text, positiveWords)
	negative := countOccurrences(text, negativeWords)

	diff := positive - negative
	if diff == 0 {
		return model.SentimentNeutral, sentimentBaseConfidence
	}

	if diff < 0 {
		diff = -diff
	}
	confidence := sentimentBaseConfidence + sentimentStep*float64(diff)
	if confidence > sentimentMaxConfidence {
		confidence = sentimentMaxConfidence
	}

	if positive > negative {
		return model.SentimentPositive, confidence
	}
	return model.SentimentNegative, confidence
}

func countOccurrences(text string, words []string) int {
	count := 0
	for _, w := range words {
		count += strings.Count(text, w)
	}
	return count
}
