package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/creditbook/backend/internal/audit"
	"github.com/creditbook/backend/internal/models"
	"github.com/shopspring/decimal"
)

const customerColumns = `id, user_id, full_name, phone_number, credit_limit, created_at`

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// CreateCustomerInput is the validated payload for registering a customer.
type CreateCustomerInput struct {
	FullName    string
	PhoneNumber string
	CreditLimit *decimal.Decimal
}

// CustomerService registers and looks up customers, always scoped to the owning account.
// Phone numbers are not unique across customers.
type CustomerService struct {
	db          DB
	audit       Auditor
	clock       Clock
	searchLimit int
}

func NewCustomerService(db DB, searchLimit int) *CustomerService {
	if searchLimit <= 0 {
		searchLimit = 50
	}
	return &CustomerService{
		db:          db,
		audit:       audit.NewLogger(),
		clock:       systemClock,
		searchLimit: searchLimit,
	}
}

// CreateCustomer registers a customer under accountID.
func (s *CustomerService) CreateCustomer(ctx context.Context, accountID int64, in CreateCustomerInput) (*models.Customer, error) {
	fullName := strings.TrimSpace(in.FullName)
	phone := strings.TrimSpace(in.PhoneNumber)
	if fullName == "" {
		return nil, invalidArgument("full_name", "is required")
	}
	if phone == "" {
		return nil, invalidArgument("phone_number", "is required")
	}

	var limit decimal.NullDecimal
	if in.CreditLimit != nil {
		if in.CreditLimit.IsNegative() {
			return nil, invalidArgument("credit_limit", "must be zero or greater")
		}
		if err := checkMoney("credit_limit", *in.CreditLimit); err != nil {
			return nil, err
		}
		limit = decimal.NewNullDecimal(*in.CreditLimit)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (user_id, full_name, phone_number, credit_limit, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+customerColumns,
		accountID, fullName, phone, limit, s.clock())

	customer, err := scanCustomer(row)
	if err != nil {
		log.Printf("[CUSTOMER] Failed to create customer for account %d: %v", accountID, err)
		return nil, err
	}

	log.Printf("[CUSTOMER] Customer %d created for account %d", customer.ID, accountID)
	return customer, nil
}

// GetCustomer returns the customer only if accountID owns it.
func (s *CustomerService) GetCustomer(ctx context.Context, accountID, customerID int64) (*models.Customer, error) {
	return getCustomer(ctx, s.db, accountID, customerID, false)
}

// ListCustomers returns the account's customers, newest first.
func (s *CustomerService) ListCustomers(ctx context.Context, accountID int64) ([]models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, accountID)
	if err != nil {
		return nil, storeError(err)
	}
	return collectCustomers(rows)
}

// SearchCustomers matches phone numbers for digit-only queries and names otherwise.
func (s *CustomerService) SearchCustomers(ctx context.Context, accountID int64, query string) ([]models.Customer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidArgument("q", "search query is required")
	}

	column := "full_name"
	if digitsOnly.MatchString(query) {
		column = "phone_number"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE user_id = $1 AND `+column+` ILIKE $2
		ORDER BY full_name ASC
		LIMIT $3
	`, accountID, "%"+escapeLike(query)+"%", s.searchLimit)
	if err != nil {
		return nil, storeError(err)
	}
	return collectCustomers(rows)
}

// DeleteCustomer removes the customer and every ledger entry referencing it in one transaction.
func (s *CustomerService) DeleteCustomer(ctx context.Context, accountID, customerID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(err)
	}
	defer tx.Rollback()

	entries, err := tx.ExecContext(ctx, `
		DELETE FROM credits WHERE customer_id = $1 AND user_id = $2
	`, customerID, accountID)
	if err != nil {
		return storeError(err)
	}
	removed, err := entries.RowsAffected()
	if err != nil {
		log.Printf("[CUSTOMER] Failed to count removed entries for customer %d: %v", customerID, err)
		return storeError(err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM customers WHERE id = $1 AND user_id = $2
	`, customerID, accountID)
	if err != nil {
		return storeError(err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeError(err)
	}

	s.audit.LogCustomerDeleted(accountID, customerID, removed)
	log.Printf("[CUSTOMER] Customer %d deleted for account %d with %d entries", customerID, accountID, removed)
	return nil
}

// getCustomer looks a customer up inside the owner's scope. With lock set the
// row is held FOR UPDATE until the surrounding transaction ends.
func getCustomer(ctx context.Context, q Querier, accountID, customerID int64, lock bool) (*models.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE id = $1 AND user_id = $2`
	if lock {
		query += `
		FOR UPDATE`
	}
	return scanCustomer(q.QueryRowContext(ctx, query, customerID, accountID))
}

func scanCustomer(row *sql.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.AccountID, &c.FullName, &c.PhoneNumber, &c.CreditLimit, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}
	return &c, nil
}

func collectCustomers(rows *sql.Rows) ([]models.Customer, error) {
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.AccountID, &c.FullName, &c.PhoneNumber, &c.CreditLimit, &c.CreatedAt); err != nil {
			return nil, storeError(err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err)
	}
	return customers, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
