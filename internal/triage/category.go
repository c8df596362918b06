package triage

import (
	"strings"

	"mailpilot/internal/model"
)

// categoryRule is one step of the category waterfall. Rules are evaluated
// in order and the first match wins, so categories stay mutually exclusive
// with the most specific checked first.
type categoryRule struct {
	category model.Category
	keywords []string
}

var categoryWaterfall = []categoryRule{
	{model.CategoryNewsletter, []string{"unsubscribe", "newsletter", "weekly digest", "mailing list"}},
	{model.CategoryFinancial, []string{"invoice", "payment", "wire transfer", "transaction", "statement", "balance", "billing"}},
	{model.CategoryScheduling, []string{"meeting", "calendar", "schedule", "appointment", "invite", "reschedule"}},
	{model.CategoryShopping, []string{"order", "shipping", "delivery", "tracking number", "receipt", "your package"}},
	{model.CategorySecurity, []string{"password", "verify your", "security alert", "login attempt", "two-factor", "suspicious"}},
	{model.CategorySupport, []string{"support ticket", "ticket #", "case number", "help desk", "support request"}},
	{model.CategoryPromotion, []string{"% off", "discount", "sale ends", "limited time", "special offer", "promo code"}},
}

// ClassifyCategory runs the keyword waterfall over subject and body.
// Falls through to general. Pure, never fails.
func ClassifyCategory(subject, body string) model.Category {
	text := strings.ToLower(subject + " " + body)

	for _, rule := range categoryWaterfall {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}

	return model.CategoryGeneral
}
