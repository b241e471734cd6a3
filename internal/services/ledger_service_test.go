package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/creditbook/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ledgerNow = time.Date(2026, 10, 17, 14, 30, 0, 0, time.UTC)

const (
	lockCustomerQuery = "SELECT (.+) FROM customers WHERE id = \\$1 AND user_id = \\$2 FOR UPDATE"
	lockAccountQuery  = "SELECT global_credit_limit FROM users WHERE id = \\$1 FOR UPDATE"
	globalLimitQuery  = "SELECT global_credit_limit FROM users WHERE id = \\$1"
	customerPending   = "SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM credits WHERE user_id = \\$1 AND customer_id = \\$2 AND status = \\$3"
	unscopedPending   = "SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM credits WHERE user_id = \\$1 AND customer_id IS NULL AND status = \\$2"
	insertEntry       = "INSERT INTO credits \\(user_id, customer_id, amount, description, status, created_at\\)"
	settleUpdate      = "UPDATE credits SET status = \\$1, settled_at = \\$2 WHERE id = \\$3 AND user_id = \\$4 AND status = \\$5"
)

func newTestLedgerService(t *testing.T) (*LedgerService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service := NewLedgerService(db)
	service.clock = func() time.Time { return ledgerNow }
	return service, mock
}

func customerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "full_name", "phone_number", "credit_limit", "created_at"})
}

func entryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "customer_id", "amount", "description", "status", "created_at", "settled_at"})
}

func joinedEntryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "customer_id", "amount", "description", "status", "created_at", "settled_at", "full_name", "phone_number"})
}

func sumRow(total string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"coalesce"}).AddRow(total)
}

func int64Ptr(v int64) *int64 { return &v }

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// expectCustomerScope locks customer 7 of account 1. A nil override falls back to the global limit.
func expectCustomerScope(mock sqlmock.Sqlmock, override, global any) {
	mock.ExpectBegin()
	mock.ExpectQuery(lockCustomerQuery).
		WithArgs(int64(7), int64(1)).
		WillReturnRows(customerRows().AddRow(7, 1, "Anita Sharma", "9123456780", override, ledgerNow))
	if override == nil {
		mock.ExpectQuery(globalLimitQuery).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"global_credit_limit"}).AddRow(global))
	}
}

func expectInsert(mock sqlmock.Sqlmock, id int64, customerID any, amt string) {
	mock.ExpectQuery(insertEntry).
		WithArgs(int64(1), customerID, amount(amt), nil, models.EntryStatusPending, ledgerNow).
		WillReturnRows(entryRows().AddRow(id, 1, customerID, amt, nil, "pending", ledgerNow, nil))
}

func TestLedgerService_CreateEntry_GlobalLimit(t *testing.T) {
	service, mock := newTestLedgerService(t)
	ctx := context.Background()
	in := func(amt string) CreateEntryInput {
		return CreateEntryInput{CustomerID: int64Ptr(7), Amount: amount(amt)}
	}

	t.Run("600 fits under 1000", func(t *testing.T) {
		expectCustomerScope(mock, nil, "1000.00")
		mock.ExpectQuery(customerPending).WithArgs(int64(1), int64(7), "pending").WillReturnRows(sumRow("0"))
		expectInsert(mock, 1, int64(7), "600.00")
		mock.ExpectCommit()

		entry, err := service.CreateEntry(ctx, 1, in("600"))
		require.NoError(t, err)
		assert.Equal(t, models.EntryStatusPending, entry.Status)
		assert.True(t, entry.Amount.Equal(amount("600")))
		assert.Nil(t, entry.SettledAt)
	})

	t.Run("500 on top of 600 exceeds 1000", func(t *testing.T) {
		expectCustomerScope(mock, nil, "1000.00")
		mock.ExpectQuery(customerPending).WithArgs(int64(1), int64(7), "pending").WillReturnRows(sumRow("600.00"))
		mock.ExpectRollback()

		entry, err := service.CreateEntry(ctx, 1, in("500"))
		assert.Nil(t, entry)
		assert.ErrorIs(t, err, ErrLimitExceeded)

		var limitErr *LimitExceededError
		require.True(t, errors.As(err, &limitErr))
		assert.True(t, limitErr.Available().Equal(amount("400")))
	})

	t.Run("400 brings pending exactly to the limit", func(t *testing.T) {
		expectCustomerScope(mock, nil, "1000.00")
		mock.ExpectQuery(customerPending).WithArgs(int64(1), int64(7), "pending").WillReturnRows(sumRow("600.00"))
		expectInsert(mock, 2, int64(7), "400.00")
		mock.ExpectCommit()

		_, err := service.CreateEntry(ctx, 1, in("400"))
		assert.NoError(t, err)
	})

	t.Run("any amount fails once pending reached the limit", func(t *testing.T) {
		expectCustomerScope(mock, nil, "1000.00")
		mock.ExpectQuery(customerPending).WithArgs(int64(1), int64(7), "pending").WillReturnRows(sumRow("1000.00"))
		mock.ExpectRollback()

		_, err := service.CreateEntry(ctx, 1, in("1"))
		assert.ErrorIs(t, err, ErrLimitExceeded)
		assert.Equal(t, KindLimitExceeded, KindOf(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_CreateEntry_Scopes(t *testing.T) {
	ctx := context.Background()

	t.Run("customer override wins over global limit", func(t *testing.T) {
		service, mock := newTestLedgerService(t)
		expectCustomerScope(mock, "200.00", nil)
		mock.ExpectQuery(customerPending).WithArgs(int64(1), int64(7), "pending").WillReturnRows(sumRow("150.00"))
		mock.ExpectRollback()

		_, err := service.CreateEntry(ctx, 1, CreateEntryInput{CustomerID: int64Ptr(7), Amount: amount("60")})

		var limitErr *LimitExceededError
		require.True(t, errors.As(err, &limitErr))
		assert.True(t, limitErr.Limit.Equal(amount("200")))
		assert.True(t, limitErr.Pending.Equal(amount("150")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no limit anywhere skips the pending sum", func(t *testing.T) {
		service, mock := newTestLedgerService(t)
		expectCustomerScope(mock, nil, nil)
		expectInsert(mock, 3, int64(7), "99999.00")
		mock.ExpectCommit()

		_, err := service.CreateEntry(ctx, 1, CreateEntryInput{CustomerID: int64Ptr(7), Amount: amount("99999")})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unscoped entry locks the account and sums entries without a customer", func(t *testing.T) {
		service, mock := newTestLedgerService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"global_credit_limit"}).AddRow("500.00"))
		mock.ExpectQuery(unscopedPending).WithArgs(int64(1), "pending").WillReturnRows(sumRow("100.00"))
		expectInsert(mock, 4, nil, "50.00")
		mock.ExpectCommit()

		entry, err := service.CreateEntry(ctx, 1, CreateEntryInput{Amount: amount("50")})
		require.NoError(t, err)
		assert.Nil(t, entry.CustomerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("customer of another account is not found", func(t *testing.T) {
		service, mock := newTestLedgerService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockCustomerQuery).WithArgs(int64(7), int64(1)).WillReturnRows(customerRows())
		mock.ExpectRollback()

		_, err := service.CreateEntry(ctx, 1, CreateEntryInput{CustomerID: int64Ptr(7), Amount: amount("10")})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("description is trimmed and stored", func(t *testing.T) {
		service, mock := newTestLedgerService(t)
		expectCustomerScope(mock, nil, nil)
		mock.ExpectQuery(insertEntry).
			WithArgs(int64(1), int64(7), amount("25"), "Rice 5kg", models.EntryStatusPending, ledgerNow).
			WillReturnRows(entryRows().AddRow(5, 1, 7, "25.00", "Rice 5kg", "pending", ledgerNow, nil))
		mock.ExpectCommit()

		description := "  Rice 5kg  "
		entry, err := service.CreateEntry(ctx, 1, CreateEntryInput{CustomerID: int64Ptr(7), Amount: amount("25"), Description: &description})
		require.NoError(t, err)
		assert.Equal(t, "Rice 5kg", *entry.Description)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_CreateEntry_Validation(t *testing.T) {
	service, mock := newTestLedgerService(t)
	ctx := context.Background()
	longDescription := strings.Repeat("x", maxDescriptionLength+1)

	tests := []struct {
		name  string
		input CreateEntryInput
	}{
		{"negative amount", CreateEntryInput{Amount: amount("-5")}},
		{"zero amount", CreateEntryInput{Amount: decimal.Zero}},
		{"description too long", CreateEntryInput{Amount: amount("1"), Description: &longDescription}},
		{"sub-cent amount", CreateEntryInput{CustomerID: int64Ptr(7), Amount: amount("0.001")}},
		{"three decimal places", CreateEntryInput{Amount: amount("10.005")}},
		{"amount too large", CreateEntryInput{Amount: amount("1000000000000")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := service.CreateEntry(ctx, 1, tt.input)
			assert.Nil(t, entry)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	// No store call may happen before validation passes.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_CreateEntry_StoreUnavailable(t *testing.T) {
	service, mock := newTestLedgerService(t)
	mock.ExpectBegin().WillReturnError(context.DeadlineExceeded)

	_, err := service.CreateEntry(context.Background(), 1, CreateEntryInput{Amount: amount("10")})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLedgerService_SettleEntry(t *testing.T) {
	service, mock := newTestLedgerService(t)
	ctx := context.Background()

	t.Run("pending entry settles and leaves the pending total", func(t *testing.T) {
		mock.ExpectQuery(settleUpdate).
			WithArgs(models.EntryStatusSettled, ledgerNow, int64(10), int64(1), models.EntryStatusPending).
			WillReturnRows(entryRows().AddRow(10, 1, 7, "300.00", nil, "settled", ledgerNow.Add(-time.Hour), ledgerNow))

		entry, err := service.SettleEntry(ctx, 1, 10)
		require.NoError(t, err)
		assert.True(t, entry.IsSettled())
		require.NotNil(t, entry.SettledAt)
		assert.Equal(t, ledgerNow, *entry.SettledAt)

		pending := models.EntryStatusPending
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM credits WHERE user_id = \\$1 AND status = \\$2").
			WithArgs(int64(1), "pending").
			WillReturnRows(sumRow("0"))
		total, err := service.ComputeTotals(ctx, 1, TotalsFilter{Status: &pending})
		require.NoError(t, err)
		assert.True(t, total.IsZero())

		settled := models.EntryStatusSettled
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM credits WHERE user_id = \\$1 AND status = \\$2").
			WithArgs(int64(1), "settled").
			WillReturnRows(sumRow("300.00"))
		total, err = service.ComputeTotals(ctx, 1, TotalsFilter{Status: &settled})
		require.NoError(t, err)
		assert.True(t, total.Equal(amount("300")))
	})

	t.Run("settling twice fails", func(t *testing.T) {
		mock.ExpectQuery(settleUpdate).WillReturnRows(entryRows())
		mock.ExpectQuery("SELECT status FROM credits WHERE id = \\$1 AND user_id = \\$2").
			WithArgs(int64(10), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("settled"))

		_, err := service.SettleEntry(ctx, 1, 10)
		assert.ErrorIs(t, err, ErrAlreadySettled)
	})

	t.Run("unknown or foreign entry is not found", func(t *testing.T) {
		mock.ExpectQuery(settleUpdate).WillReturnRows(entryRows())
		mock.ExpectQuery("SELECT status FROM credits WHERE id = \\$1 AND user_id = \\$2").
			WithArgs(int64(99), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))

		_, err := service.SettleEntry(ctx, 1, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_ComputeTotals(t *testing.T) {
	service, mock := newTestLedgerService(t)
	ctx := context.Background()

	t.Run("all statuses for the account", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM credits WHERE user_id = \\$1$").
			WithArgs(int64(1)).
			WillReturnRows(sumRow("1250.50"))

		total, err := service.ComputeTotals(ctx, 1, TotalsFilter{})
		require.NoError(t, err)
		assert.Equal(t, "1250.5", total.String())
	})

	t.Run("one customer and status", func(t *testing.T) {
		pending := models.EntryStatusPending
		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id = \\$1 AND user_id = \\$2$").
			WithArgs(int64(7), int64(1)).
			WillReturnRows(customerRows().AddRow(7, 1, "Anita Sharma", "9123456780", nil, ledgerNow))
		mock.ExpectQuery(customerPending).
			WithArgs(int64(1), int64(7), "pending").
			WillReturnRows(sumRow("80.00"))

		total, err := service.ComputeTotals(ctx, 1, TotalsFilter{CustomerID: int64Ptr(7), Status: &pending})
		require.NoError(t, err)
		assert.True(t, total.Equal(amount("80")))
	})

	t.Run("unknown status", func(t *testing.T) {
		bogus := models.EntryStatus("void")
		_, err := service.ComputeTotals(ctx, 1, TotalsFilter{Status: &bogus})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_GetEntry(t *testing.T) {
	service, mock := newTestLedgerService(t)
	ctx := context.Background()

	t.Run("joins customer display fields", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM credits c LEFT JOIN customers cu ON c.customer_id = cu.id WHERE c.id = \\$1 AND c.user_id = \\$2").
			WithArgs(int64(3), int64(1)).
			WillReturnRows(joinedEntryRows().AddRow(3, 1, 7, "45.00", "Milk", "pending", ledgerNow, nil, "Anita Sharma", "9123456780"))

		entry, err := service.GetEntry(ctx, 1, 3)
		require.NoError(t, err)
		require.NotNil(t, entry.CustomerName)
		assert.Equal(t, "Anita Sharma", *entry.CustomerName)
	})

	t.Run("entry without customer keeps null display fields", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM credits c LEFT JOIN customers cu").
			WithArgs(int64(4), int64(1)).
			WillReturnRows(joinedEntryRows().AddRow(4, 1, nil, "10.00", nil, "pending", ledgerNow, nil, nil, nil))

		entry, err := service.GetEntry(ctx, 1, 4)
		require.NoError(t, err)
		assert.Nil(t, entry.CustomerID)
		assert.Nil(t, entry.CustomerName)
	})

	t.Run("missing entry", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM credits c LEFT JOIN customers cu").
			WithArgs(int64(5), int64(1)).
			WillReturnRows(joinedEntryRows())

		_, err := service.GetEntry(ctx, 1, 5)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_ListCustomerEntries(t *testing.T) {
	service, mock := newTestLedgerService(t)
	ctx := context.Background()

	t.Run("newest first for an owned customer", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id = \\$1 AND user_id = \\$2$").
			WithArgs(int64(7), int64(1)).
			WillReturnRows(customerRows().AddRow(7, 1, "Anita Sharma", "9123456780", nil, ledgerNow))
		mock.ExpectQuery("WHERE c.user_id = \\$1 AND c.customer_id = \\$2 ORDER BY c.created_at DESC, c.id DESC").
			WithArgs(int64(1), int64(7)).
			WillReturnRows(joinedEntryRows().
				AddRow(9, 1, 7, "20.00", nil, "pending", ledgerNow, nil, "Anita Sharma", "9123456780").
				AddRow(8, 1, 7, "30.00", nil, "settled", ledgerNow.Add(-time.Hour), ledgerNow, "Anita Sharma", "9123456780"))

		entries, err := service.ListCustomerEntries(ctx, 1, 7)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(9), entries[0].ID)
	})

	t.Run("foreign customer", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id = \\$1 AND user_id = \\$2$").
			WithArgs(int64(8), int64(1)).
			WillReturnRows(customerRows())

		_, err := service.ListCustomerEntries(ctx, 1, 8)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckLimit(t *testing.T) {
	tests := []struct {
		name    string
		limit   string
		pending string
		amount  string
		wantErr bool
	}{
		{"well under", "1000", "0", "600", false},
		{"exactly at limit", "1000", "600", "400", false},
		{"one cent over", "1000", "600", "400.01", true},
		{"already at limit", "1000", "1000", "0.01", true},
		{"already over limit", "1000", "1200", "1", true},
		{"zero limit blocks everything", "0", "0", "0.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkLimit(amount(tt.limit), amount(tt.pending), amount(tt.amount))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrLimitExceeded)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLedgerService_Audit(t *testing.T) {
	service, mock := newTestLedgerService(t)
	auditor := new(MockAuditor)
	service.audit = auditor
	ctx := context.Background()

	t.Run("rejection is audited with the numbers", func(t *testing.T) {
		auditor.On("LogLimitRejected", int64(1), int64Ptr(7), "500.00", "600.00", "1000.00").Once()

		expectCustomerScope(mock, nil, "1000.00")
		mock.ExpectQuery(customerPending).WithArgs(int64(1), int64(7), "pending").WillReturnRows(sumRow("600.00"))
		mock.ExpectRollback()

		_, err := service.CreateEntry(ctx, 1, CreateEntryInput{CustomerID: int64Ptr(7), Amount: amount("500")})
		assert.ErrorIs(t, err, ErrLimitExceeded)
	})

	t.Run("creation and settlement are audited", func(t *testing.T) {
		auditor.On("LogEntryCreated", int64(1), int64(3), int64Ptr(7), "400.00").Once()
		auditor.On("LogEntrySettled", int64(1), int64(3), "400.00").Once()

		expectCustomerScope(mock, nil, "1000.00")
		mock.ExpectQuery(customerPending).WithArgs(int64(1), int64(7), "pending").WillReturnRows(sumRow("600.00"))
		expectInsert(mock, 3, int64(7), "400.00")
		mock.ExpectCommit()
		mock.ExpectQuery(settleUpdate).
			WithArgs("settled", ledgerNow, int64(3), int64(1), "pending").
			WillReturnRows(entryRows().AddRow(3, 1, 7, "400.00", nil, "settled", ledgerNow, ledgerNow))

		_, err := service.CreateEntry(ctx, 1, CreateEntryInput{CustomerID: int64Ptr(7), Amount: amount("400")})
		require.NoError(t, err)
		_, err = service.SettleEntry(ctx, 1, 3)
		require.NoError(t, err)
	})

	auditor.AssertExpectations(t)
	assert.NoError(t, mock.ExpectationsWereMet())
}
