package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DaySummary aggregates one calendar day of entries by status.
type DaySummary struct {
	Day          string          `json:"day" example:"2026-10-17"`
	Label        string          `json:"label" example:"Oct 17"`
	SettledTotal decimal.Decimal `json:"settled" swaggertype:"number"`
	PendingTotal decimal.Decimal `json:"pending" swaggertype:"number"`
}

// NewDaySummary builds a summary row for the calendar day of t.
func NewDaySummary(t time.Time, settled, pending decimal.Decimal) DaySummary {
	return DaySummary{
		Day:          t.Format("2006-01-02"),
		Label:        t.Format("Jan 02"),
		SettledTotal: settled,
		PendingTotal: pending,
	}
}

// TopCustomer is the customer with the largest credit across all statuses.
type TopCustomer struct {
	Customer    Customer        `json:"customer"`
	TotalCredit decimal.Decimal `json:"total_credit" swaggertype:"number"`
}

// CustomerUsage shows how much of its effective limit a customer has drawn.
type CustomerUsage struct {
	CustomerID     int64               `json:"id"`
	FullName       string              `json:"full_name"`
	PendingTotal   decimal.Decimal     `json:"pending_total" swaggertype:"number"`
	EffectiveLimit decimal.NullDecimal `json:"effective_limit" swaggertype:"number"`
	UsagePercent   decimal.NullDecimal `json:"usage_percent" swaggertype:"number"`
}
