package models

import (
	"time"
)

// Bank belongs to exactly one shop. OpeningBalance is the base of the
// balance chain when no entry precedes a given date.
type Bank struct {
	ID             string    `json:"id" db:"id"`
	ShopIdentifier string    `json:"shopIdentifier" db:"shop_identifier"`
	Name           string    `json:"name" db:"name"`
	OpeningBalance float64   `json:"openingBalance" db:"opening_balance"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}
