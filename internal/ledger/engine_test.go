package ledger

import (
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohanpagar58/daily-ledger-app/internal/models"
)

func newMockEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEngine(db), mock
}

func entryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "bank_id", "bank_name", "shop_identifier", "entry_date", "entry_time",
		"entry_at", "credited", "debited", "opening_balance", "remaining_balance", "created_at",
	})
}

func bankRow(id, shop string, opening float64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "shop_identifier", "name", "opening_balance", "created_at"}).
		AddRow(id, shop, "HDFC", opening, time.Now())
}

func TestRecalculate(t *testing.T) {
	const (
		bankID = "6b5de203-5ae1-4a96-9a9c-26c7ef0e43b2"
		shop   = "rohan-stores"
	)
	createdAt := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)

	t.Run("backdated entry rewrites downstream balances", func(t *testing.T) {
		engine, mock := newMockEngine(t)

		mock.ExpectQuery(`FROM banks`).
			WithArgs(bankID, shop).
			WillReturnRows(bankRow(bankID, shop, 1000))
		mock.ExpectQuery(`entry_date < \$3`).
			WithArgs(bankID, shop, "2025-07-01").
			WillReturnRows(entryRows())
		// Rows come back in storage order; the engine must sort before replaying.
		mock.ExpectQuery(`entry_date >= \$3`).
			WithArgs(bankID, shop, "2025-07-01").
			WillReturnRows(entryRows().
				AddRow("A", bankID, "HDFC", shop, "2025-07-02", "09:00:00",
					time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC), 500, 0, 1000, 1500, createdAt).
				AddRow("B", bankID, "HDFC", shop, "2025-07-02", "10:00:00",
					time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC), 0, 200, 1500, 1300, createdAt).
				AddRow("C", bankID, "HDFC", shop, "2025-07-01", "12:00:00",
					time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), 100, 0, 0, 0, createdAt))
		mock.ExpectExec(`UPDATE entries SET`).
			WithArgs(
				"C", 1000.0, 1100.0, 100.0, 0.0, time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), "12:00:00",
				"A", 1100.0, 1600.0, 500.0, 0.0, time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC), "09:00:00",
				"B", 1600.0, 1400.0, 0.0, 200.0, time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC), "10:00:00",
			).
			WillReturnResult(sqlmock.NewResult(0, 3))

		err := engine.Recalculate(shop, bankID, "2025-07-01")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("base comes from latest prior entry", func(t *testing.T) {
		engine, mock := newMockEngine(t)

		mock.ExpectQuery(`FROM banks`).
			WithArgs(bankID, shop).
			WillReturnRows(bankRow(bankID, shop, 1000))
		mock.ExpectQuery(`entry_date < \$3`).
			WithArgs(bankID, shop, "2025-07-05").
			WillReturnRows(entryRows().
				AddRow("old-2", bankID, "HDFC", shop, "2025-07-04", "10:00:00",
					time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC), 0, 100, 2000, 1900, createdAt).
				AddRow("old-1", bankID, "HDFC", shop, "2025-07-03", "09:00:00",
					time.Date(2025, 7, 3, 9, 0, 0, 0, time.UTC), 0, 0, 2000, 2000, createdAt))
		mock.ExpectQuery(`entry_date >= \$3`).
			WithArgs(bankID, shop, "2025-07-05").
			WillReturnRows(entryRows().
				AddRow("new", bankID, "HDFC", shop, "2025-07-05", "09:00:00",
					time.Date(2025, 7, 5, 9, 0, 0, 0, time.UTC), 50, 0, 0, 0, createdAt))
		mock.ExpectExec(`UPDATE entries SET`).
			WithArgs("new", 1900.0, 1950.0, 50.0, 0.0,
				time.Date(2025, 7, 5, 9, 0, 0, 0, time.UTC), "09:00:00").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := engine.Recalculate(shop, bankID, "2025-07-05")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing bank is a no-op", func(t *testing.T) {
		engine, mock := newMockEngine(t)

		mock.ExpectQuery(`FROM banks`).
			WithArgs(bankID, shop).
			WillReturnError(sql.ErrNoRows)

		err := engine.Recalculate(shop, bankID, "2025-07-01")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no entries means no write", func(t *testing.T) {
		engine, mock := newMockEngine(t)

		mock.ExpectQuery(`FROM banks`).
			WithArgs(bankID, shop).
			WillReturnRows(bankRow(bankID, shop, 1000))
		mock.ExpectQuery(`WHERE bank_id = \$1 AND shop_identifier = \$2`).
			WithArgs(bankID, shop).
			WillReturnRows(entryRows())

		err := engine.Recalculate(shop, bankID, "")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fetch failure surfaces", func(t *testing.T) {
		engine, mock := newMockEngine(t)

		mock.ExpectQuery(`FROM banks`).
			WithArgs(bankID, shop).
			WillReturnRows(bankRow(bankID, shop, 1000))
		mock.ExpectQuery(`entry_date < \$3`).
			WithArgs(bankID, shop, "2025-07-01").
			WillReturnError(errors.New("connection reset"))

		err := engine.Recalculate(shop, bankID, "2025-07-01")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "load entries before")
	})
}

func TestResolveOpeningBalance(t *testing.T) {
	bank := &models.Bank{
		ID:             "6b5de203-5ae1-4a96-9a9c-26c7ef0e43b2",
		ShopIdentifier: "rohan-stores",
		Name:           "HDFC",
		OpeningBalance: 750,
	}

	t.Run("latest entry at or before the date wins", func(t *testing.T) {
		engine, mock := newMockEngine(t)

		mock.ExpectQuery(`entry_date <= \$3`).
			WithArgs(bank.ID, bank.ShopIdentifier, "2025-07-10").
			WillReturnRows(sqlmock.NewRows([]string{"remaining_balance"}).AddRow(1234.5))

		got, err := engine.ResolveOpeningBalance(bank, "2025-07-10")
		assert.NoError(t, err)
		assert.Equal(t, 1234.5, got)
	})

	t.Run("falls back to bank opening balance", func(t *testing.T) {
		engine, mock := newMockEngine(t)

		mock.ExpectQuery(`entry_date <= \$3`).
			WithArgs(bank.ID, bank.ShopIdentifier, "2025-07-10").
			WillReturnError(sql.ErrNoRows)

		got, err := engine.ResolveOpeningBalance(bank, "2025-07-10")
		assert.NoError(t, err)
		assert.Equal(t, 750.0, got)
	})

	t.Run("negative stored balance clamped", func(t *testing.T) {
		engine, mock := newMockEngine(t)

		mock.ExpectQuery(`entry_date <= \$3`).
			WithArgs(bank.ID, bank.ShopIdentifier, "2025-07-10").
			WillReturnRows(sqlmock.NewRows([]string{"remaining_balance"}).AddRow(-40))

		got, err := engine.ResolveOpeningBalance(bank, "2025-07-10")
		assert.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})
}

func TestLockFor(t *testing.T) {
	engine := NewEngine(nil)

	a := engine.lockFor("bank-a")
	assert.Same(t, a, engine.lockFor("bank-a"))
	assert.NotSame(t, a, engine.lockFor("bank-b"))
}

func TestRecalculateSerializesPerBank(t *testing.T) {
	const (
		bankID = "6b5de203-5ae1-4a96-9a9c-26c7ef0e43b2"
		shop   = "rohan-stores"
	)
	engine, mock := newMockEngine(t)

	// Expectations are ordered; two interleaved recalculations of the same
	// bank would violate the order, so meeting them proves the lock holds.
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`FROM banks`).
			WithArgs(bankID, shop).
			WillReturnRows(bankRow(bankID, shop, 1000))
		mock.ExpectQuery(`WHERE bank_id = \$1 AND shop_identifier = \$2`).
			WithArgs(bankID, shop).
			WillReturnRows(entryRows())
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, engine.Recalculate(shop, bankID, ""))
		}()
	}
	wg.Wait()

	assert.NoError(t, mock.ExpectationsWereMet())
}
