// Amount parsing for statement cells.
//
// Bank exports write amounts in many shapes: "1,234.56", "₹450", "Rs 200",
// "1200 Dr", "(300.00)". ParseStatementAmount normalizes all of them to a
// signed decimal.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarkers = []string{"₹", "rs.", "rs", "inr", "dr", "cr"}

// ParseStatementAmount converts a raw statement cell into a signed decimal.
//
// It strips thousands separators, rupee markers, and Dr/Cr suffixes, and
// treats both a leading minus and accounting parentheses as negative.
// An empty cell (including "-" and "--" placeholders) returns
// ErrMissingAmount so callers can distinguish an absent column from a
// malformed one; malformed values return ErrInvalidAmount.
func ParseStatementAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return decimal.Zero, ErrMissingAmount
	}

	cleaned = strings.ReplaceAll(cleaned, ",", "")
	lower := strings.ToLower(cleaned)
	for _, marker := range currencyMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 {
			cleaned = cleaned[:idx] + cleaned[idx+len(marker):]
			lower = strings.ToLower(cleaned)
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" || cleaned == "-" || cleaned == "--" {
		return decimal.Zero, ErrMissingAmount
	}

	negative := false
	if strings.Contains(cleaned, "(") && strings.Contains(cleaned, ")") {
		negative = true
		cleaned = strings.NewReplacer("(", "", ")", "").Replace(cleaned)
		cleaned = strings.TrimSpace(cleaned)
	}
	if strings.HasPrefix(cleaned, "-") {
		negative = true
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}

	if negative {
		amount = amount.Abs().Neg()
	}
	return amount, nil
}
