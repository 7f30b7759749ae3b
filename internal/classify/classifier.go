package classify

import (
	"context"
	"strings"
)

// Canonical is the closed set of category labels the system accepts.
var Canonical = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Education",
	"Income",
	"Savings",
	"Investments",
	"Travel",
	"Groceries",
	"Rent",
	"Transfer",
	"Others",
}

// categoryAliases maps informal labels back onto canonical ones.
var categoryAliases = map[string][]string{
	"Food & Dining":    {"food", "dining", "restaurant", "restaurants", "eating out"},
	"Transportation":   {"transport", "commute", "fuel", "taxi", "cab", "ride"},
	"Shopping":         {"retail", "ecommerce", "store", "mall", "purchase"},
	"Entertainment":    {"movies", "music", "games", "subscriptions", "leisure"},
	"Bills & Utilities": {"utilities", "utility", "bill", "bills", "recharge", "electricity", "water", "gas"},
	"Healthcare":       {"medical", "health", "doctor", "pharmacy", "hospital"},
	"Education":        {"learning", "courses", "tuition", "study"},
	"Income":           {"salary", "paycheck", "pay", "income", "credit", "deposit"},
	"Savings":          {"savings", "saving"},
	"Investments":      {"investment", "investments", "stocks", "mutual funds", "sip"},
	"Travel":           {"travel", "trip", "hotel", "flight", "vacation"},
	"Groceries":        {"grocery", "groceries", "supermarket"},
	"Rent":             {"rent", "rental", "lease"},
	"Transfer":         {"transfer", "upi transfer", "self transfer"},
	"Others":           {"other", "misc", "miscellaneous", "general", "uncategorized", "unknown"},
}

// ambiguousCategories are labels that justify a refinement pass.
var ambiguousCategories = map[string]struct{}{
	"others":        {},
	"other":         {},
	"misc":          {},
	"miscellaneous": {},
	"uncategorized": {},
	"unknown":       {},
	"general":       {},
	"auto":          {},
	"autodetect":    {},
	"category":      {},
}

// Normalize maps free-form category text onto a canonical label, or ""
// when nothing matches.
func Normalize(text string) string {
	clean := strings.ToLower(strings.TrimSpace(text))
	if clean == "" {
		return ""
	}

	// Alias passes walk Canonical rather than ranging the alias map so a
	// label matching aliases of several categories resolves the same way
	// every run.
	for _, canonical := range Canonical {
		if clean == strings.ToLower(canonical) {
			return canonical
		}
	}
	for _, canonical := range Canonical {
		for _, alias := range categoryAliases[canonical] {
			if clean == alias {
				return canonical
			}
		}
	}
	for _, canonical := range Canonical {
		if strings.Contains(clean, strings.ToLower(canonical)) {
			return canonical
		}
	}
	for _, canonical := range Canonical {
		for _, alias := range categoryAliases[canonical] {
			if strings.Contains(clean, alias) {
				return canonical
			}
		}
	}
	return ""
}

// ShouldRefine reports whether a category is vague enough to be worth a
// refinement call.
func ShouldRefine(category string) bool {
	clean := strings.ToLower(strings.TrimSpace(category))
	if clean == "" {
		return true
	}
	_, ambiguous := ambiguousCategories[clean]
	return ambiguous
}

// Entry is one transaction submitted for refinement.
type Entry struct {
	ID              string
	Description     string
	Merchant        string
	Amount          string
	Type            string
	CurrentCategory string
}

// Refiner suggests better categories for ambiguous transactions. A refiner
// is strictly best-effort: it returns whatever subset it could classify,
// keyed by entry ID, and swallows its own failures.
type Refiner interface {
	RefineBatch(ctx context.Context, entries []Entry) map[string]string
}

// NoopRefiner is the offline default; it refines nothing.
type NoopRefiner struct{}

func (NoopRefiner) RefineBatch(context.Context, []Entry) map[string]string { return nil }
