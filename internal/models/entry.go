package models

import (
	"time"
)

// Entry is a single credit or debit posted against a bank. Date and Time are
// the authoritative ordering pair; EntryAt caches their combination and is
// re-derived during recalculation. OpeningBalance and RemainingBalance are
// derived fields maintained by the ledger engine.
type Entry struct {
	ID               string    `json:"id" db:"id"`
	BankID           string    `json:"bankId" db:"bank_id"`
	BankName         string    `json:"bankName" db:"bank_name"`
	ShopIdentifier   string    `json:"shopIdentifier" db:"shop_identifier"`
	Date             string    `json:"date" db:"entry_date"`
	Time             string    `json:"time" db:"entry_time"`
	EntryAt          time.Time `json:"entryAt" db:"entry_at"`
	Credited         float64   `json:"credited" db:"credited"`
	Debited          float64   `json:"debited" db:"debited"`
	OpeningBalance   float64   `json:"openingBalance" db:"opening_balance"`
	RemainingBalance float64   `json:"remainingBalance" db:"remaining_balance"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}
