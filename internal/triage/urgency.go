package triage

import (
	"strings"

	"mailpilot/internal/model"
)

// Urgency detection is an ordered waterfall: local keyword tiers outrank
// the AI classifier's own suggestion, which outranks the normal default.
// Each tier carries a fixed confidence.
var urgentKeywords = []string{
	"urgent", "asap", "immediately", "emergency", "critical",
	"deadline today", "right away", "time sensitive",
}

var importantKeywords = []string{
	"important", "priority", "action required", "please review",
	"needs your attention", "reminder",
}

var lowPriorityKeywords = []string{
	"unsubscribe", "newsletter", "no reply", "no-reply",
	"promotional", "sale", "digest",
}

const (
	urgentConfidence    = 0.9
	importantConfidence = 0.75
	lowConfidence       = 0.6
	aiConfidence        = 0.7
	normalConfidence    = 0.5
)

// DetectUrgency resolves the priority for a message. aiSuggestion is the
// classifier's own priority and is only consulted when no keyword tier
// matched. Pure, never fails.
func DetectUrgency(subject, body, aiSuggestion string) (model.Priority, float64) {
	text := strings.ToLower(subject + " " + body)

	if containsAny(text, urgentKeywords) {
		return model.PriorityUrgent, urgentConfidence
	}
	if containsAny(text, importantKeywords) {
		return model.PriorityImportant, importantConfidence
	}
	if containsAny(text, lowPriorityKeywords) {
		return model.PriorityLow, lowConfidence
	}
	if model.ValidPriority(aiSuggestion) {
		return model.Priority(aiSuggestion), aiConfidence
	}
	return model.PriorityNormal, normalConfidence
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
