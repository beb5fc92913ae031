package ledger

import (
	"sort"

	"github.com/rohanpagar58/daily-ledger-app/internal/models"
)

// clampNonNegative floors a value at zero. Negative balances are never
// persisted, and malformed amounts coerce to zero rather than failing.
func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// SortEntries orders entries oldest first by their date/time pair, with
// insertion order breaking ties. Storage ordering is not trusted here because
// persisted date/time strings may carry legacy format drift.
func SortEntries(entries []models.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti := EntryTime(entries[i].Date, entries[i].Time)
		tj := EntryTime(entries[j].Date, entries[j].Time)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// Replay walks entries (already sorted oldest first) carrying a running
// balance forward from base, rewriting every derived field in place:
// opening and remaining balances, the combined timestamp, and a normalized
// HH:MM:SS time string.
func Replay(base float64, entries []models.Entry) {
	balance := clampNonNegative(base)
	for i := range entries {
		e := &entries[i]
		e.Credited = clampNonNegative(e.Credited)
		e.Debited = clampNonNegative(e.Debited)
		e.OpeningBalance = balance
		balance = clampNonNegative(balance + e.Credited - e.Debited)
		e.RemainingBalance = balance

		at := EntryTime(e.Date, e.Time)
		e.EntryAt = at
		e.Time = at.Format(TimeLayout)
	}
}
