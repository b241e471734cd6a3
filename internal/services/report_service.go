package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/creditbook/backend/internal/config"
	"github.com/creditbook/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Window names accepted by EntriesInWindow.
const (
	Window15Days = "15d"
	WindowMonth  = "1m"
	WindowAll    = "all"
)

// ReportService serves read-only views over the ledger. It never writes.
type ReportService struct {
	db     DB
	config *config.ReportingConfig
	clock  Clock
	zone   *time.Location
}

func NewReportService(db DB, cfg *config.ReportingConfig) *ReportService {
	if cfg == nil {
		cfg = &config.ReportingConfig{RecentLimit: 5, SummaryDays: 7, DefaultWindow: Window15Days}
	}
	return &ReportService{
		db:     db,
		config: cfg,
		clock:  systemClock,
		zone:   loadZone(cfg.TimeZone),
	}
}

// loadZone resolves the reporting time zone, falling back to UTC.
func loadZone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil || loc.String() == "Local" {
		log.Printf("[REPORT] Unknown time zone %q, using UTC", name)
		return time.UTC
	}
	return loc
}

// RecentEntries returns the newest entries. A non-positive limit uses the configured default.
func (s *ReportService) RecentEntries(ctx context.Context, accountID int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = s.config.RecentLimit
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+joinedEntryColumns+`
		FROM credits c
		LEFT JOIN customers cu ON c.customer_id = cu.id
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return s.degradeEntries(ctx, "recent entries", err)
	}
	return collectJoinedEntries(rows)
}

// EntriesInWindow lists entries created inside the window, newest first.
// An empty window uses the configured default.
func (s *ReportService) EntriesInWindow(ctx context.Context, accountID int64, window string) ([]models.LedgerEntry, error) {
	if window == "" {
		window = s.config.DefaultWindow
	}

	now := s.clock()
	var since *time.Time
	switch window {
	case Window15Days:
		t := now.AddDate(0, 0, -15)
		since = &t
	case WindowMonth:
		t := now.AddDate(0, -1, 0)
		since = &t
	case WindowAll:
	default:
		return nil, invalidArgument("filter", "must be one of 15d, 1m, all")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + joinedEntryColumns + `
		FROM credits c
		LEFT JOIN customers cu ON c.customer_id = cu.id
		WHERE c.user_id = $1`
	args := []any{accountID}
	if since != nil {
		query += ` AND c.created_at >= $2`
		args = append(args, *since)
	}
	query += `
		ORDER BY c.created_at DESC, c.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return s.degradeEntries(ctx, "windowed entries", err)
	}
	return collectJoinedEntries(rows)
}

// WeeklySummary groups the trailing days' entries by calendar day of creation,
// earliest day first. Days without entries are omitted. The window start and the
// day grouping both use the reporting time zone, never the session's.
func (s *ReportService) WeeklySummary(ctx context.Context, accountID int64) ([]models.DaySummary, error) {
	days := s.config.SummaryDays
	if days <= 0 {
		days = 7
	}
	now := s.clock().In(s.zone)
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT (created_at AT TIME ZONE $5)::date AS day,
			COALESCE(SUM(CASE WHEN status = $2 THEN amount ELSE 0 END), 0) AS settled,
			COALESCE(SUM(CASE WHEN status = $3 THEN amount ELSE 0 END), 0) AS pending
		FROM credits
		WHERE user_id = $1 AND created_at >= $4
		GROUP BY day
		ORDER BY day ASC
	`, accountID, models.EntryStatusSettled, models.EntryStatusPending, since, s.zone.String())
	if err != nil {
		if s.degrades(err) {
			log.Printf("[REPORT] Weekly summary degraded to empty: %v", err)
			return []models.DaySummary{}, nil
		}
		return nil, queryError(ctx, err)
	}
	defer rows.Close()

	summary := []models.DaySummary{}
	for rows.Next() {
		var day time.Time
		var settled, pending decimal.Decimal
		if err := rows.Scan(&day, &settled, &pending); err != nil {
			return nil, storeError(err)
		}
		summary = append(summary, models.NewDaySummary(day, settled, pending))
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err)
	}
	return summary, nil
}

// TopCustomer returns the customer with the most credit across all statuses,
// or nil when the account has no customer entries.
func (s *ReportService) TopCustomer(ctx context.Context, accountID int64) (*models.TopCustomer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var top models.TopCustomer
	c := &top.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT cu.id, cu.user_id, cu.full_name, cu.phone_number, cu.credit_limit, cu.created_at,
			SUM(c.amount) AS total
		FROM credits c
		JOIN customers cu ON c.customer_id = cu.id
		WHERE c.user_id = $1 AND cu.user_id = $1
		GROUP BY cu.id, cu.user_id, cu.full_name, cu.phone_number, cu.credit_limit, cu.created_at
		ORDER BY total DESC
		LIMIT 1
	`, accountID).Scan(&c.ID, &c.AccountID, &c.FullName, &c.PhoneNumber, &c.CreditLimit, &c.CreatedAt, &top.TotalCredit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if s.degrades(err) {
			log.Printf("[REPORT] Top customer degraded to none: %v", err)
			return nil, nil
		}
		return nil, queryError(ctx, err)
	}
	return &top, nil
}

// CustomerUsage reports each customer's pending credit against its effective limit,
// heaviest usage first.
func (s *ReportService) CustomerUsage(ctx context.Context, accountID int64) ([]models.CustomerUsage, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT cu.id, cu.full_name, cu.credit_limit, u.global_credit_limit,
			COALESCE(SUM(c.amount), 0) AS pending
		FROM customers cu
		JOIN users u ON u.id = cu.user_id
		LEFT JOIN credits c ON c.customer_id = cu.id AND c.status = $2
		WHERE cu.user_id = $1
		GROUP BY cu.id, cu.full_name, cu.credit_limit, u.global_credit_limit
		ORDER BY pending DESC, cu.id ASC
	`, accountID, models.EntryStatusPending)
	if err != nil {
		if s.degrades(err) {
			log.Printf("[REPORT] Customer usage degraded to empty: %v", err)
			return []models.CustomerUsage{}, nil
		}
		return nil, queryError(ctx, err)
	}
	defer rows.Close()

	usage := []models.CustomerUsage{}
	for rows.Next() {
		var u models.CustomerUsage
		var override, global decimal.NullDecimal
		if err := rows.Scan(&u.CustomerID, &u.FullName, &override, &global, &u.PendingTotal); err != nil {
			return nil, storeError(err)
		}
		customer := models.Customer{CreditLimit: override}
		u.EffectiveLimit = customer.EffectiveLimit(global)
		u.UsagePercent = usagePercent(u.PendingTotal, u.EffectiveLimit)
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err)
	}
	return usage, nil
}

// usagePercent is pending/limit*100 rounded to cents; null when unbounded or zero.
func usagePercent(pending decimal.Decimal, limit decimal.NullDecimal) decimal.NullDecimal {
	if !limit.Valid || limit.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(pending.Div(limit.Decimal).Mul(decimal.NewFromInt(100)).Round(2))
}

func (s *ReportService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.QueryTimeout)
}

// degrades reports whether err should become an empty result instead of a failure.
func (s *ReportService) degrades(err error) bool {
	return s.config.DegradeMissingTables && isUndefinedTable(err)
}

func (s *ReportService) degradeEntries(ctx context.Context, view string, err error) ([]models.LedgerEntry, error) {
	if s.degrades(err) {
		log.Printf("[REPORT] %s degraded to empty: %v", view, err)
		return []models.LedgerEntry{}, nil
	}
	return nil, queryError(ctx, err)
}
