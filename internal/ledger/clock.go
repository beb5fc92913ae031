package ledger

import (
	"time"
)

const (
	// DateLayout and TimeLayout are the persisted string formats for an
	// entry's business date and wall-clock time.
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"

	entryTimeLayout      = "2006-01-02 15:04:05"
	entryTimeShortLayout = "2006-01-02 15:04"
)

// EntryTime combines an entry's persisted date and time strings into a single
// comparable timestamp. It parses the strict YYYY-MM-DD HH:MM:SS form first
// and falls back to the same form without seconds. If both parses fail the
// zero time is returned so a corrupt entry sorts first instead of aborting
// recalculation. The stored combined timestamp column is only a cache; this
// pair is authoritative.
func EntryTime(date, clock string) time.Time {
	if t, err := time.Parse(entryTimeLayout, date+" "+clock); err == nil {
		return t
	}
	if t, err := time.Parse(entryTimeShortLayout, date+" "+clock); err == nil {
		return t
	}
	return time.Time{}
}
