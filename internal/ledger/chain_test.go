package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rohanpagar58/daily-ledger-app/internal/models"
)

func entry(date, clock string, credited, debited float64) models.Entry {
	return models.Entry{
		Date:     date,
		Time:     clock,
		Credited: credited,
		Debited:  debited,
	}
}

func TestSortEntries(t *testing.T) {
	t.Run("orders by date then time", func(t *testing.T) {
		entries := []models.Entry{
			entry("2025-07-02", "08:00:00", 10, 0),
			entry("2025-07-01", "23:00:00", 20, 0),
			entry("2025-07-02", "07:00:00", 30, 0),
		}

		SortEntries(entries)

		assert.Equal(t, "2025-07-01", entries[0].Date)
		assert.Equal(t, "07:00:00", entries[1].Time)
		assert.Equal(t, "08:00:00", entries[2].Time)
	})

	t.Run("corrupt datetime sorts first", func(t *testing.T) {
		entries := []models.Entry{
			entry("2025-07-01", "09:00:00", 10, 0),
			entry("garbage", "", 20, 0),
		}

		SortEntries(entries)

		assert.Equal(t, "garbage", entries[0].Date)
	})

	t.Run("ties broken by insertion order", func(t *testing.T) {
		first := entry("2025-07-01", "09:00:00", 10, 0)
		first.ID = "first"
		first.CreatedAt = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

		second := entry("2025-07-01", "09:00:00", 20, 0)
		second.ID = "second"
		second.CreatedAt = first.CreatedAt.Add(time.Second)

		entries := []models.Entry{second, first}
		SortEntries(entries)

		assert.Equal(t, "first", entries[0].ID)
		assert.Equal(t, "second", entries[1].ID)
	})

	t.Run("minute precision fallback still orders", func(t *testing.T) {
		entries := []models.Entry{
			entry("2025-07-01", "09:31", 10, 0),
			entry("2025-07-01", "09:30:59", 20, 0),
		}

		SortEntries(entries)

		assert.Equal(t, "09:30:59", entries[0].Time)
	})
}

func TestReplay(t *testing.T) {
	t.Run("chain invariant holds", func(t *testing.T) {
		entries := []models.Entry{
			entry("2025-07-01", "09:00:00", 500, 0),
			entry("2025-07-01", "10:00:00", 0, 200),
			entry("2025-07-02", "09:00:00", 150, 0),
			entry("2025-07-03", "09:00:00", 0, 50),
		}

		Replay(1000, entries)

		prev := 1000.0
		for _, e := range entries {
			assert.Equal(t, prev, e.OpeningBalance)
			expected := e.OpeningBalance + e.Credited - e.Debited
			if expected < 0 {
				expected = 0
			}
			assert.Equal(t, expected, e.RemainingBalance)
			prev = e.RemainingBalance
		}
		assert.Equal(t, 1400.0, entries[len(entries)-1].RemainingBalance)
	})

	t.Run("balances never go negative", func(t *testing.T) {
		entries := []models.Entry{
			entry("2025-07-01", "09:00:00", 0, 5000),
			entry("2025-07-01", "10:00:00", 100, 0),
		}

		Replay(1000, entries)

		assert.Equal(t, 1000.0, entries[0].OpeningBalance)
		assert.Equal(t, 0.0, entries[0].RemainingBalance)
		assert.Equal(t, 0.0, entries[1].OpeningBalance)
		assert.Equal(t, 100.0, entries[1].RemainingBalance)
	})

	t.Run("negative base clamped", func(t *testing.T) {
		entries := []models.Entry{entry("2025-07-01", "09:00:00", 100, 0)}

		Replay(-50, entries)

		assert.Equal(t, 0.0, entries[0].OpeningBalance)
		assert.Equal(t, 100.0, entries[0].RemainingBalance)
	})

	t.Run("malformed amounts coerce to zero", func(t *testing.T) {
		entries := []models.Entry{entry("2025-07-01", "09:00:00", -300, -10)}

		Replay(1000, entries)

		assert.Equal(t, 0.0, entries[0].Credited)
		assert.Equal(t, 0.0, entries[0].Debited)
		assert.Equal(t, 1000.0, entries[0].RemainingBalance)
	})

	t.Run("self-heals timestamp and time string", func(t *testing.T) {
		entries := []models.Entry{entry("2025-07-01", "09:30", 100, 0)}

		Replay(0, entries)

		assert.Equal(t, "09:30:00", entries[0].Time)
		assert.Equal(t, time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC), entries[0].EntryAt)
	})

	t.Run("idempotent", func(t *testing.T) {
		entries := []models.Entry{
			entry("2025-07-01", "09:00:00", 500, 0),
			entry("2025-07-01", "10:00:00", 0, 200),
		}

		Replay(1000, entries)
		once := make([]models.Entry, len(entries))
		copy(once, entries)

		Replay(1000, entries)
		assert.Equal(t, once, entries)
	})

	t.Run("backdated entry corrects downstream chain", func(t *testing.T) {
		// Bank opening 1000. A: D1 +500, B: D1 -200, then C backdated to
		// D0 +100. Replaying the full chain from the bank opening must give
		// C 1000/1100, A 1100/1600, B 1600/1400.
		a := entry("2025-07-02", "09:00:00", 500, 0)
		a.ID = "A"
		b := entry("2025-07-02", "10:00:00", 0, 200)
		b.ID = "B"
		c := entry("2025-07-01", "12:00:00", 100, 0)
		c.ID = "C"

		entries := []models.Entry{a, b, c}
		SortEntries(entries)
		Replay(1000, entries)

		assert.Equal(t, "C", entries[0].ID)
		assert.Equal(t, 1000.0, entries[0].OpeningBalance)
		assert.Equal(t, 1100.0, entries[0].RemainingBalance)

		assert.Equal(t, "A", entries[1].ID)
		assert.Equal(t, 1100.0, entries[1].OpeningBalance)
		assert.Equal(t, 1600.0, entries[1].RemainingBalance)

		assert.Equal(t, "B", entries[2].ID)
		assert.Equal(t, 1600.0, entries[2].OpeningBalance)
		assert.Equal(t, 1400.0, entries[2].RemainingBalance)

		// Final balance is opening + all credits - all debits.
		assert.Equal(t, 1000.0+600-200, entries[2].RemainingBalance)
	})
}
