package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a shop owner. PhoneNumber is the login handle and is unique.
type Account struct {
	ID                int64               `json:"id" example:"1"`
	FullName          string              `json:"full_name" example:"Ravi Kumar"`
	PhoneNumber       string              `json:"phone_number" example:"9876543210"`
	PasswordHash      string              `json:"-"`
	GlobalCreditLimit decimal.NullDecimal `json:"global_credit_limit" swaggertype:"number"`
	CreatedAt         time.Time           `json:"created_at"`
}
