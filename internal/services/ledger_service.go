package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/creditbook/backend/internal/audit"
	"github.com/creditbook/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	entryColumns = `id, user_id, customer_id, amount, description, status, created_at, settled_at`

	// joinedEntryColumns reads credits as c joined to customers as cu.
	joinedEntryColumns = `c.id, c.user_id, c.customer_id, c.amount, c.description, c.status, c.created_at, c.settled_at,
		cu.full_name, cu.phone_number`

	maxDescriptionLength = 500
)

// CreateEntryInput is the validated payload for extending credit.
// A nil CustomerID records credit against the account itself.
type CreateEntryInput struct {
	CustomerID  *int64
	Amount      decimal.Decimal
	Description *string
}

// TotalsFilter narrows ComputeTotals. Nil fields do not filter.
type TotalsFilter struct {
	CustomerID *int64
	Status     *models.EntryStatus
}

// LedgerService creates limit-checked credit entries and settles them.
//
// The pending total of a scope never exceeds its effective limit: the limit
// check and the insert share one transaction that holds the scope's anchor row
// (the customer, or the account for unscoped entries) FOR UPDATE, so
// concurrent creates in the same scope are serialized.
type LedgerService struct {
	db    DB
	audit Auditor
	clock Clock
}

func NewLedgerService(db DB) *LedgerService {
	return &LedgerService{
		db:    db,
		audit: audit.NewLogger(),
		clock: systemClock,
	}
}

// CreateEntry records a pending credit after checking the effective limit.
func (s *LedgerService) CreateEntry(ctx context.Context, accountID int64, in CreateEntryInput) (*models.LedgerEntry, error) {
	if !in.Amount.IsPositive() {
		return nil, invalidArgument("amount", "must be greater than zero")
	}
	if err := checkMoney("amount", in.Amount); err != nil {
		return nil, err
	}
	description, err := normalizeDescription(in.Description)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError(err)
	}
	defer tx.Rollback()

	limit, err := s.lockScope(ctx, tx, accountID, in.CustomerID)
	if err != nil {
		return nil, err
	}

	if limit.Valid {
		pending, err := s.pendingTotal(ctx, tx, accountID, in.CustomerID)
		if err != nil {
			return nil, err
		}
		if err := checkLimit(limit.Decimal, pending, in.Amount); err != nil {
			s.audit.LogLimitRejected(accountID, in.CustomerID, in.Amount, pending, limit.Decimal)
			log.Printf("[LEDGER] Entry rejected for account %d: %v", accountID, err)
			return nil, err
		}
	}

	entry, err := scanEntry(tx.QueryRowContext(ctx, `
		INSERT INTO credits (user_id, customer_id, amount, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+entryColumns,
		accountID, in.CustomerID, in.Amount, description, models.EntryStatusPending, s.clock()))
	if err != nil {
		log.Printf("[LEDGER] Failed to insert entry for account %d: %v", accountID, err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeError(err)
	}

	s.audit.LogEntryCreated(accountID, entry.ID, entry.CustomerID, entry.Amount)
	return entry, nil
}

// SettleEntry moves a pending entry to settled. Settling twice is an error, not a no-op.
func (s *LedgerService) SettleEntry(ctx context.Context, accountID, entryID int64) (*models.LedgerEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx, `
		UPDATE credits
		SET status = $1, settled_at = $2
		WHERE id = $3 AND user_id = $4 AND status = $5
		RETURNING `+entryColumns,
		models.EntryStatusSettled, s.clock(), entryID, accountID, models.EntryStatusPending))
	if errors.Is(err, ErrNotFound) {
		return nil, s.settleFailure(ctx, accountID, entryID)
	}
	if err != nil {
		return nil, err
	}

	s.audit.LogEntrySettled(accountID, entry.ID, entry.Amount)
	log.Printf("[LEDGER] Entry %d settled for account %d", entry.ID, accountID)
	return entry, nil
}

// settleFailure explains why the guarded update touched nothing.
func (s *LedgerService) settleFailure(ctx context.Context, accountID, entryID int64) error {
	var status models.EntryStatus
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM credits WHERE id = $1 AND user_id = $2
	`, entryID, accountID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return storeError(err)
	}
	if status == models.EntryStatusSettled {
		return ErrAlreadySettled
	}
	return fmt.Errorf("entry %d in unexpected status %q", entryID, status)
}

// GetEntry returns one entry with its customer's display fields.
func (s *LedgerService) GetEntry(ctx context.Context, accountID, entryID int64) (*models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+joinedEntryColumns+`
		FROM credits c
		LEFT JOIN customers cu ON c.customer_id = cu.id
		WHERE c.id = $1 AND c.user_id = $2
	`, entryID, accountID)
	if err != nil {
		return nil, storeError(err)
	}
	entries, err := collectJoinedEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// ListCustomerEntries returns a customer's entries, newest first.
func (s *LedgerService) ListCustomerEntries(ctx context.Context, accountID, customerID int64) ([]models.LedgerEntry, error) {
	if _, err := getCustomer(ctx, s.db, accountID, customerID, false); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+joinedEntryColumns+`
		FROM credits c
		LEFT JOIN customers cu ON c.customer_id = cu.id
		WHERE c.user_id = $1 AND c.customer_id = $2
		ORDER BY c.created_at DESC, c.id DESC
	`, accountID, customerID)
	if err != nil {
		return nil, storeError(err)
	}
	return collectJoinedEntries(rows)
}

// ComputeTotals sums entry amounts for the account, optionally narrowed to one
// customer and/or one status.
func (s *LedgerService) ComputeTotals(ctx context.Context, accountID int64, filter TotalsFilter) (decimal.Decimal, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return decimal.Zero, invalidArgument("status", "must be pending or settled")
	}
	if filter.CustomerID != nil {
		if _, err := getCustomer(ctx, s.db, accountID, *filter.CustomerID, false); err != nil {
			return decimal.Zero, err
		}
	}

	conditions := []string{"user_id = $1"}
	args := []any{accountID}
	argIndex := 2

	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argIndex))
		args = append(args, *filter.CustomerID)
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
	}

	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM credits WHERE `+strings.Join(conditions, " AND "),
		args...).Scan(&total)
	if err != nil {
		return decimal.Zero, storeError(err)
	}
	return total, nil
}

// lockScope locks the anchor row of the entry's scope and returns the effective limit.
func (s *LedgerService) lockScope(ctx context.Context, tx *sql.Tx, accountID int64, customerID *int64) (decimal.NullDecimal, error) {
	if customerID == nil {
		var limit decimal.NullDecimal
		err := tx.QueryRowContext(ctx, `
			SELECT global_credit_limit FROM users WHERE id = $1 FOR UPDATE
		`, accountID).Scan(&limit)
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.NullDecimal{}, ErrNotFound
		}
		if err != nil {
			return decimal.NullDecimal{}, storeError(err)
		}
		return limit, nil
	}

	customer, err := getCustomer(ctx, tx, accountID, *customerID, true)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if customer.CreditLimit.Valid {
		return customer.CreditLimit, nil
	}
	global, err := globalLimit(ctx, tx, accountID)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return customer.EffectiveLimit(global), nil
}

// pendingTotal sums pending amounts in the scope: one customer, or the
// account's entries that carry no customer.
func (s *LedgerService) pendingTotal(ctx context.Context, q Querier, accountID int64, customerID *int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	var err error
	if customerID != nil {
		err = q.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(amount), 0) FROM credits
			WHERE user_id = $1 AND customer_id = $2 AND status = $3
		`, accountID, *customerID, models.EntryStatusPending).Scan(&total)
	} else {
		err = q.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(amount), 0) FROM credits
			WHERE user_id = $1 AND customer_id IS NULL AND status = $2
		`, accountID, models.EntryStatusPending).Scan(&total)
	}
	if err != nil {
		return decimal.Zero, storeError(err)
	}
	return total, nil
}

// checkLimit rejects when the scope is already at or over its limit, or when
// the new amount would carry it past the limit.
func checkLimit(limit, pending, amount decimal.Decimal) error {
	if pending.GreaterThanOrEqual(limit) || pending.Add(amount).GreaterThan(limit) {
		return &LimitExceededError{Limit: limit, Pending: pending, Requested: amount}
	}
	return nil
}

func normalizeDescription(description *string) (*string, error) {
	if description == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*description)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxDescriptionLength {
		return nil, invalidArgument("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}
	return &trimmed, nil
}

func scanEntry(row *sql.Row) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.AccountID, &e.CustomerID, &e.Amount, &e.Description, &e.Status, &e.CreatedAt, &e.SettledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}
	return &e, nil
}

func collectJoinedEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.AccountID, &e.CustomerID, &e.Amount, &e.Description, &e.Status, &e.CreatedAt, &e.SettledAt,
			&e.CustomerName, &e.CustomerPhone,
		); err != nil {
			return nil, storeError(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err)
	}
	return entries, nil
}
