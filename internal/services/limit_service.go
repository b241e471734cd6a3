package services

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/creditbook/backend/internal/models"
	"github.com/shopspring/decimal"
)

// LimitService owns the account-wide credit limit and the per-customer overrides.
// There is no cache: every read goes to the store.
type LimitService struct {
	db DB
}

func NewLimitService(db DB) *LimitService {
	return &LimitService{db: db}
}

// GetGlobalLimit returns the account's default limit. An invalid NullDecimal means unbounded.
func (s *LimitService) GetGlobalLimit(ctx context.Context, accountID int64) (decimal.NullDecimal, error) {
	return globalLimit(ctx, s.db, accountID)
}

// SetGlobalLimit replaces the account's default limit.
func (s *LimitService) SetGlobalLimit(ctx context.Context, accountID int64, limit decimal.Decimal) (decimal.Decimal, error) {
	if limit.IsNegative() {
		return decimal.Zero, invalidArgument("global_credit_limit", "must be zero or greater")
	}
	if err := checkMoney("global_credit_limit", limit); err != nil {
		return decimal.Zero, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET global_credit_limit = $1 WHERE id = $2
	`, limit, accountID)
	if err != nil {
		log.Printf("[LIMIT] Failed to update global limit for account %d: %v", accountID, err)
		return decimal.Zero, storeError(err)
	}
	if err := requireRow(result); err != nil {
		return decimal.Zero, err
	}

	log.Printf("[LIMIT] Global limit for account %d set to %s", accountID, limit.StringFixed(2))
	return limit, nil
}

// ClearGlobalLimit removes the account's default limit, leaving customers without
// an override unbounded.
func (s *LimitService) ClearGlobalLimit(ctx context.Context, accountID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET global_credit_limit = NULL WHERE id = $1
	`, accountID)
	if err != nil {
		return storeError(err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	log.Printf("[LIMIT] Global limit for account %d cleared", accountID)
	return nil
}

// SetCustomerLimit sets (or, with an invalid NullDecimal, clears) a customer's override.
func (s *LimitService) SetCustomerLimit(ctx context.Context, accountID, customerID int64, limit decimal.NullDecimal) (*models.Customer, error) {
	if limit.Valid {
		if limit.Decimal.IsNegative() {
			return nil, invalidArgument("credit_limit", "must be zero or greater")
		}
		if err := checkMoney("credit_limit", limit.Decimal); err != nil {
			return nil, err
		}
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE customers SET credit_limit = $1
		WHERE id = $2 AND user_id = $3
		RETURNING `+customerColumns,
		limit, customerID, accountID)

	customer, err := scanCustomer(row)
	if err != nil {
		return nil, err
	}

	log.Printf("[LIMIT] Customer %d limit override updated (set=%v)", customerID, limit.Valid)
	return customer, nil
}

func globalLimit(ctx context.Context, q Querier, accountID int64) (decimal.NullDecimal, error) {
	var limit decimal.NullDecimal
	err := q.QueryRowContext(ctx, `
		SELECT global_credit_limit FROM users WHERE id = $1
	`, accountID).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.NullDecimal{}, ErrNotFound
	}
	if err != nil {
		return decimal.NullDecimal{}, storeError(err)
	}
	return limit, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError(err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
