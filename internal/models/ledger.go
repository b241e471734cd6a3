package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the settlement state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusSettled EntryStatus = "settled"
)

// Valid reports whether s is a known status.
func (s EntryStatus) Valid() bool {
	return s == EntryStatusPending || s == EntryStatusSettled
}

// LedgerEntry is a single credit extended by an account, optionally to one of its customers.
// Amount never changes after creation; only Status and SettledAt move, and only once.
type LedgerEntry struct {
	ID            int64           `json:"id" db:"id"`
	AccountID     int64           `json:"user_id" db:"user_id"`
	CustomerID    *int64          `json:"customer_id" db:"customer_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Description   *string         `json:"description" db:"description"`
	Status        EntryStatus     `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	SettledAt     *time.Time      `json:"settled_at" db:"settled_at"`
	CustomerName  *string         `json:"customerName,omitempty"`
	CustomerPhone *string         `json:"customerPhone,omitempty"`
}

// IsSettled reports whether the entry reached its terminal state.
func (e *LedgerEntry) IsSettled() bool {
	return e.Status == EntryStatusSettled
}
