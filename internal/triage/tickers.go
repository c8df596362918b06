package triage

import (
	"regexp"
	"strings"

	"mailpilot/internal/model"
)

// Ticker-like tokens: $AAPL style cashtags plus bare 2-5 letter upper-case
// tokens, filtered through a stop-list of shouty English words that show up
// in email subjects.
var (
	cashtagPattern    = regexp.MustCompile(`\$([A-Z]{1,5})\b`)
	bareTickerPattern = regexp.MustCompile(`\b([A-Z]{2,5})\b`)

	tickerStopwords = map[string]bool{
		"THE": true, "AND": true, "FOR": true, "YOU": true, "ARE": true,
		"NOT": true, "ALL": true, "NEW": true, "NOW": true, "GET": true,
		"ASAP": true, "URGENT": true, "FYI": true, "RSVP": true, "CEO": true,
		"CFO": true, "USD": true, "EUR": true, "EOD": true, "COB": true,
		"PS": true, "RE": true, "FW": true, "FWD": true, "HR": true,
		"IT": true, "PDF": true, "FAQ": true, "TODO": true, "AM": true,
		"PM": true, "EST": true, "PST": true, "UTC": true,
	}
)

// ExtractTickerCandidates finds ticker-like tokens in the text and merges
// them with the symbols the AI classifier reported. Pure, never fails.
func ExtractTickerCandidates(subject, body string, aiTickers []string) []string {
	text := subject + " " + body

	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || tickerStopwords[sym] || seen[sym] {
			return
		}
		seen[sym] = true
		out = append(out, sym)
	}

	for _, m := range cashtagPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range bareTickerPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, sym := range aiTickers {
		add(sym)
	}

	return out
}

// CrossReferenceTickers marks candidates present on the user's watch-list as
// confirmed signals; the rest stay unconfirmed candidates.
func CrossReferenceTickers(candidates []string, watchlist []string) []model.TickerSignal {
	watched := make(map[string]bool, len(watchlist))
	for _, sym := range watchlist {
		watched[strings.ToUpper(strings.TrimSpace(sym))] = true
	}

	signals := make([]model.TickerSignal, 0, len(candidates))
	for _, sym := range candidates {
		signals = append(signals, model.TickerSignal{
			Symbol:    sym,
			Confirmed: watched[sym],
		})
	}
	return signals
}
