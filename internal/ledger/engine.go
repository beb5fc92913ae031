package ledger

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/rohanpagar58/daily-ledger-app/internal/models"
)

// Engine maintains the opening -> remaining balance chain for each bank. It
// holds no state beyond its storage handle and the per-bank locks that
// serialize recalculation: two concurrent recalculations of the same bank
// would otherwise race on the read-then-write sequence and leave the later
// writer's snapshot as the persisted chain.
type Engine struct {
	db    *sql.DB
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

const entryColumns = `id, bank_id, bank_name, shop_identifier, entry_date, entry_time,
	       entry_at, credited, debited, opening_balance, remaining_balance, created_at`

// Recalculate recomputes balances for one bank, for every entry dated on or
// after fromDate. An empty fromDate rebuilds the whole chain (bank edits,
// bulk deletions). A bank missing for this shop is a benign race with a
// concurrent delete and a silent no-op, not an error.
func (e *Engine) Recalculate(shopIdentifier, bankID, fromDate string) error {
	lock := e.lockFor(bankID)
	lock.Lock()
	defer lock.Unlock()

	bank, err := e.fetchBank(shopIdentifier, bankID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load bank %s: %w", bankID, err)
	}

	base := bank.OpeningBalance
	if fromDate != "" {
		prior, err := e.fetchEntriesBefore(shopIdentifier, bankID, fromDate)
		if err != nil {
			return fmt.Errorf("load entries before %s: %w", fromDate, err)
		}
		if len(prior) > 0 {
			SortEntries(prior)
			base = prior[len(prior)-1].RemainingBalance
		}
	}
	base = clampNonNegative(base)

	entries, err := e.fetchEntriesFrom(shopIdentifier, bankID, fromDate)
	if err != nil {
		return fmt.Errorf("load entries from %s: %w", fromDate, err)
	}
	if len(entries) == 0 {
		return nil
	}

	SortEntries(entries)
	Replay(base, entries)

	if err := e.writeChain(entries); err != nil {
		return fmt.Errorf("write balance chain: %w", err)
	}

	log.Printf("[LEDGER] Recalculated %d entries for bank %s from %q", len(entries), bankID, fromDate)
	return nil
}

// ResolveOpeningBalance returns the opening balance a new entry posted to
// targetDate should carry: the remaining balance of the most recent entry at
// or before that date, or the bank's configured opening balance when none
// exists. The result is never negative.
func (e *Engine) ResolveOpeningBalance(bank *models.Bank, targetDate string) (float64, error) {
	var remaining sql.NullFloat64
	err := e.db.QueryRow(`
		SELECT remaining_balance FROM entries
		WHERE bank_id = $1 AND shop_identifier = $2 AND entry_date <= $3
		ORDER BY entry_at DESC, created_at DESC
		LIMIT 1`,
		bank.ID, bank.ShopIdentifier, targetDate).Scan(&remaining)
	if err == sql.ErrNoRows {
		return clampNonNegative(bank.OpeningBalance), nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolve opening balance for bank %s: %w", bank.ID, err)
	}
	return clampNonNegative(remaining.Float64), nil
}

// lockFor returns the mutex serializing recalculation for one bank id.
func (e *Engine) lockFor(bankID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[bankID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[bankID] = l
	}
	return l
}

func (e *Engine) fetchBank(shopIdentifier, bankID string) (*models.Bank, error) {
	bank := &models.Bank{}
	err := e.db.QueryRow(`
		SELECT id, shop_identifier, name, opening_balance, created_at
		FROM banks
		WHERE id = $1 AND shop_identifier = $2`,
		bankID, shopIdentifier).Scan(
		&bank.ID, &bank.ShopIdentifier, &bank.Name, &bank.OpeningBalance, &bank.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return bank, nil
}

func (e *Engine) fetchEntriesBefore(shopIdentifier, bankID, date string) ([]models.Entry, error) {
	return e.queryEntries(`
		SELECT `+entryColumns+`
		FROM entries
		WHERE bank_id = $1 AND shop_identifier = $2 AND entry_date < $3`,
		bankID, shopIdentifier, date)
}

func (e *Engine) fetchEntriesFrom(shopIdentifier, bankID, fromDate string) ([]models.Entry, error) {
	if fromDate == "" {
		return e.queryEntries(`
			SELECT `+entryColumns+`
			FROM entries
			WHERE bank_id = $1 AND shop_identifier = $2`,
			bankID, shopIdentifier)
	}
	return e.queryEntries(`
		SELECT `+entryColumns+`
		FROM entries
		WHERE bank_id = $1 AND shop_identifier = $2 AND entry_date >= $3`,
		bankID, shopIdentifier, fromDate)
}

func (e *Engine) queryEntries(query string, args ...interface{}) ([]models.Entry, error) {
	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		en, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, en)
	}
	return entries, rows.Err()
}

// scanEntry reads one entry row, coercing nullable or malformed stored
// values instead of failing: missing date/time become empty strings (which
// sort first), missing amounts become zero. Reports stay available even over
// corrupted historical data.
func scanEntry(rows *sql.Rows) (models.Entry, error) {
	var (
		en                 models.Entry
		date, clock        sql.NullString
		entryAt            sql.NullTime
		credited, debited  sql.NullFloat64
		opening, remaining sql.NullFloat64
	)
	err := rows.Scan(
		&en.ID, &en.BankID, &en.BankName, &en.ShopIdentifier, &date, &clock,
		&entryAt, &credited, &debited, &opening, &remaining, &en.CreatedAt,
	)
	if err != nil {
		return models.Entry{}, err
	}
	en.Date = date.String
	en.Time = clock.String
	if entryAt.Valid {
		en.EntryAt = entryAt.Time
	}
	en.Credited = credited.Float64
	en.Debited = debited.Float64
	en.OpeningBalance = opening.Float64
	en.RemainingBalance = remaining.Float64
	return en, nil
}

// writeChain persists every recomputed entry in a single bulk update keyed by
// entry id, so a long chain is never visible half rewritten for longer than
// one statement.
func (e *Engine) writeChain(entries []models.Entry) error {
	var (
		sb   strings.Builder
		args []interface{}
	)

	sb.WriteString(`
		UPDATE entries SET
			opening_balance = v.opening_balance,
			remaining_balance = v.remaining_balance,
			credited = v.credited,
			debited = v.debited,
			entry_at = v.entry_at,
			entry_time = v.entry_time
		FROM (VALUES `)

	for i, en := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 7
		fmt.Fprintf(&sb, "($%d::uuid, $%d::numeric, $%d::numeric, $%d::numeric, $%d::numeric, $%d::timestamp, $%d::text)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args,
			en.ID, en.OpeningBalance, en.RemainingBalance,
			en.Credited, en.Debited, en.EntryAt, en.Time)
	}

	sb.WriteString(`) AS v(id, opening_balance, remaining_balance, credited, debited, entry_at, entry_time)
		WHERE entries.id = v.id`)

	_, err := e.db.Exec(sb.String(), args...)
	return err
}
