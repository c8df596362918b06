package triage

import (
	"regexp"
	"strings"

	"mailpilot/internal/model"
)

// Entity extraction is purely pattern-based and never fails. Lists are
// de-duplicated and capped so a pathological body cannot blow up a result
// row.
const maxEntitiesPerKind = 10

var (
	amountPattern = regexp.MustCompile(`\$\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\$\d+(?:\.\d{1,2})?`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`),
		regexp.MustCompile(`\b(?:Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday)\b`),
		regexp.MustCompile(`\b(?:today|tomorrow|next week|end of day|EOD|COB)\b`),
	}

	personPattern = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`)

	// Greeting-anchored names: "Hi John," / "Dear Jane Smith,".
	greetingPattern = regexp.MustCompile(`(?:Hi|Hello|Dear|Hey)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s*[,!]`)

	companyPattern = regexp.MustCompile(`\b[A-Z][A-Za-z&]+(?:\s+[A-Z][A-Za-z&]+)*\s+(?:Inc|LLC|Corp|Corporation|Ltd|Co|Group|Capital|Partners|Bank)\.?\b`)
)

// ExtractEntities pulls people, companies, amounts and dates out of the
// subject and body.
func ExtractEntities(subject, body string) model.Entities {
	text := subject + "\n" + body

	entities := model.Entities{
		Amounts:   collect(amountPattern.FindAllString(text, -1)),
		Companies: collect(companyPattern.FindAllString(text, -1)),
	}

	var dates []string
	for _, p := range datePatterns {
		dates = append(dates, p.FindAllString(text, -1)...)
	}
	entities.Dates = collect(dates)

	people := personPattern.FindAllString(text, -1)
	for _, m := range greetingPattern.FindAllStringSubmatch(text, -1) {
		people = append(people, m[1])
	}
	entities.People = collect(people)

	return entities
}

// collect de-duplicates while preserving first-seen order and caps the list.
func collect(matches []string) []string {
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
		if len(out) >= maxEntitiesPerKind {
			break
		}
	}
	return out
}
