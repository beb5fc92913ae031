package models

import (
	"time"
)

// Shop is the tenant root. Identifier is the shop's email or mobile number
// and scopes every bank and entry record the shop owns.
type Shop struct {
	Identifier   string    `json:"identifier" db:"identifier"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
