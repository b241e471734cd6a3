package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is someone an account extends credit to. A customer belongs to exactly one account.
type Customer struct {
	ID          int64               `json:"id" db:"id"`
	AccountID   int64               `json:"user_id" db:"user_id"`
	FullName    string              `json:"full_name" db:"full_name"`
	PhoneNumber string              `json:"phone_number" db:"phone_number"`
	CreditLimit decimal.NullDecimal `json:"credit_limit" db:"credit_limit" swaggertype:"number"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}

// EffectiveLimit resolves the bound for this customer: its own override, else the
// account-wide limit. Invalid means unbounded.
func (c *Customer) EffectiveLimit(global decimal.NullDecimal) decimal.NullDecimal {
	if c.CreditLimit.Valid {
		return c.CreditLimit
	}
	return global
}
