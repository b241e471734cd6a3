package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// DB is the slice of *sql.DB the services need. It lets tests hand in a sqlmock
// connection and lets the store be swapped without touching the ledger rules.
type DB interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}

// Auditor records ledger mutations. *audit.Logger is the production one.
type Auditor interface {
	LogEntryCreated(accountID, entryID int64, customerID *int64, amount decimal.Decimal)
	LogEntrySettled(accountID, entryID int64, amount decimal.Decimal)
	LogLimitRejected(accountID int64, customerID *int64, amount, pending, limit decimal.Decimal)
	LogCustomerDeleted(accountID, customerID int64, entriesRemoved int64)
}
