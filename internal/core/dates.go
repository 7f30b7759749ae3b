package core

import (
	"fmt"
	"strings"
	"time"
)

// statementDateLayouts is the fixed fallback order for statement dates.
// Day-first layouts come before month-first so "05/09/2025" reads as
// September 5th; an unambiguous ISO form is tried first.
var statementDateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"2006/1/2",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"2-January-2006",
}

// ParseStatementDate parses a date cell, trying each supported layout in
// order. The result is midnight UTC. All layouts exhausted is a row-level
// error for the caller, never a substituted default.
func ParseStatementDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range statementDateLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, trimmed)
}
