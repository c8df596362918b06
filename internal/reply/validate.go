package reply

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Draft validation bounds. Drafts outside these are dropped, never repaired.
const (
	minDraftLength = 10
	maxDraftLength = 50000
)

// Leftover template placeholders the generator sometimes fails to fill in.
// A draft shipping "[Your Name]" to a customer is worse than no draft.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\{\{[^}]*\}\}`),
	regexp.MustCompile(`(?i)\[(?:your |the )?(?:name|recipient|sender|company|date|signature|subject)\]`),
	regexp.MustCompile(`(?i)<(?:your |the )?(?:name|recipient|sender|company|date|signature|placeholder)>`),
	regexp.MustCompile(`(?i)\[insert[^\]]*\]`),
}

// ValidateDraft checks one generated draft: non-empty, length within bounds,
// no leftover placeholders.
func ValidateDraft(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("draft is empty")
	}

	n := utf8.RuneCountInString(trimmed)
	if n < minDraftLength {
		return fmt.Errorf("draft too short: %d chars, minimum %d", n, minDraftLength)
	}
	if n > maxDraftLength {
		return fmt.Errorf("draft too long: %d chars, maximum %d", n, maxDraftLength)
	}

	for _, p := range placeholderPatterns {
		if m := p.FindString(trimmed); m != "" {
			return fmt.Errorf("draft contains unfilled placeholder %q", m)
		}
	}
	return nil
}
