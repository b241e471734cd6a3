package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ErrorKind is the stable, machine-readable class of a service error.
type ErrorKind string

const (
	KindInvalidArgument ErrorKind = "INVALID_ARGUMENT"
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindLimitExceeded   ErrorKind = "LIMIT_EXCEEDED"
	KindAlreadySettled  ErrorKind = "ALREADY_SETTLED"
	KindAlreadyExists   ErrorKind = "ALREADY_EXISTS"
	KindUnavailable     ErrorKind = "UNAVAILABLE"
	KindInternal        ErrorKind = "INTERNAL"

	// Boundary-only kinds: no service error maps to these.
	KindUnauthenticated ErrorKind = "UNAUTHENTICATED"
	KindRateLimited     ErrorKind = "RATE_LIMITED"
)

var (
	// ErrInvalidArgument is returned when a caller-supplied value fails validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound covers both absent entities and entities owned by another account.
	ErrNotFound = errors.New("not found")

	// ErrLimitExceeded is returned when a new entry would push pending credit past the effective limit.
	ErrLimitExceeded = errors.New("credit limit exceeded")

	// ErrAlreadySettled is returned when settling an entry that is already settled.
	ErrAlreadySettled = errors.New("transaction already settled")

	// ErrAlreadyExists is returned on a uniqueness conflict (account phone number).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnavailable is returned when the store is unreachable or timed out.
	ErrUnavailable = errors.New("store unavailable")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

func invalidArgument(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// LimitExceededError carries the numbers behind a rejected entry.
type LimitExceededError struct {
	Limit     decimal.Decimal
	Pending   decimal.Decimal
	Requested decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	if e.Pending.GreaterThanOrEqual(e.Limit) {
		return fmt.Sprintf("credit limit of %s already reached (pending %s)", e.Limit.StringFixed(2), e.Pending.StringFixed(2))
	}
	return fmt.Sprintf("amount %s exceeds credit limit of %s (pending %s, available %s)",
		e.Requested.StringFixed(2), e.Limit.StringFixed(2), e.Pending.StringFixed(2), e.Available().StringFixed(2))
}

func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}

// Available is the headroom left under the limit, never negative.
func (e *LimitExceededError) Available() decimal.Decimal {
	available := e.Limit.Sub(e.Pending)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// KindOf classifies err for callers that need a stable code.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrLimitExceeded):
		return KindLimitExceeded
	case errors.Is(err, ErrAlreadySettled):
		return KindAlreadySettled
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// IsClientError returns true if the error is due to caller input or entity state.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindInvalidArgument, KindLimitExceeded, KindAlreadySettled, KindAlreadyExists:
		return true
	}
	return false
}

// unavailableError keeps the driver error reachable through errors.Is/As
// while also matching ErrUnavailable.
type unavailableError struct {
	cause error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnavailable, e.cause)
}

func (e *unavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *unavailableError) Unwrap() error {
	return e.cause
}

// storeError classifies a database error. It never swallows: the original
// error is always reachable with errors.Is / errors.As.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return &unavailableError{cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &unavailableError{cause: err}
	}
	switch sqlState(err) {
	case "23505":
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case "23514", "22003":
		// check_violation, numeric_value_out_of_range
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return err
}

// queryError classifies a failure under ctx. Drivers report a cancelled
// statement with their own error, so an expired ctx decides the class.
func queryError(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrUnavailable) {
		return &unavailableError{cause: fmt.Errorf("%w: %v", ctx.Err(), err)}
	}
	return storeError(err)
}

// sqlState extracts the SQLSTATE code from either supported driver.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUndefinedTable reports a missing relation (SQLSTATE 42P01).
func isUndefinedTable(err error) bool {
	return sqlState(err) == "42P01"
}
