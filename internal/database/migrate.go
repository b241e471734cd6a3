package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// schema is idempotent and applied in order at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		full_name VARCHAR(255) NOT NULL,
		phone_number VARCHAR(32) NOT NULL UNIQUE,
		password TEXT NOT NULL,
		global_credit_limit NUMERIC(14,2) CHECK (global_credit_limit >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		full_name VARCHAR(255) NOT NULL,
		phone_number VARCHAR(32) NOT NULL,
		credit_limit NUMERIC(14,2) CHECK (credit_limit >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS credits (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		customer_id BIGINT REFERENCES customers(id),
		amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		description TEXT,
		status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'settled')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		settled_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_user_created_at ON customers(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_credits_user_status ON credits(user_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_credits_customer_status ON credits(customer_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_credits_user_created_at ON credits(user_id, created_at DESC)`,
}

// Migrate applies the schema in a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	log.Printf("Database schema applied (%d statements)", len(schema))
	return nil
}
