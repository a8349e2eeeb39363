package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrations returns the schema statements in application order.
// Every statement is idempotent so Migrate can run on every deploy.
func Migrations() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
		`CREATE TABLE IF NOT EXISTS roles (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(50) UNIQUE NOT NULL,
			description TEXT
		)`,
		`INSERT INTO roles (name, description) VALUES
			('admin', 'Full access to inventory, orders and users'),
			('pharmacist', 'Manages stock, alerts and insights'),
			('staff', 'Records consumption and views stock')
		ON CONFLICT (name) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			full_name VARCHAR(255) NOT NULL,
			role_id UUID REFERENCES roles(id),
			organization_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT users_email_key UNIQUE (email)
		)`,
		`CREATE TABLE IF NOT EXISTS medicine_categories (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(100) UNIQUE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS medicines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			generic_name VARCHAR(255),
			strength VARCHAR(100),
			manufacturer VARCHAR(255),
			category_id UUID REFERENCES medicine_categories(id),
			unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			minimum_stock_level INTEGER NOT NULL DEFAULT 0,
			reorder_quantity INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_batches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL,
			medicine_id UUID NOT NULL REFERENCES medicines(id),
			batch_number VARCHAR(100) NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			expiry_date DATE NOT NULL,
			manufacturing_date DATE,
			location VARCHAR(100),
			received_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_available BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT inventory_batches_quantity_non_negative CHECK (quantity >= 0),
			CONSTRAINT inventory_batches_batch_number_key UNIQUE (organization_id, batch_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_batches_org_expiry
			ON inventory_batches (organization_id, expiry_date) WHERE is_available`,
		`CREATE TABLE IF NOT EXISTS inventory_transactions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			batch_id UUID NOT NULL REFERENCES inventory_batches(id),
			transaction_type VARCHAR(20) NOT NULL,
			quantity_change INTEGER NOT NULL,
			reason TEXT,
			performed_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT inventory_transactions_transaction_type_valid
				CHECK (transaction_type IN ('inbound', 'outbound', 'adjustment', 'disposal'))
		)`,
		`CREATE TABLE IF NOT EXISTS demand_history (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL,
			medicine_id UUID NOT NULL REFERENCES medicines(id),
			transaction_date DATE NOT NULL,
			quantity_consumed INTEGER NOT NULL DEFAULT 0,
			day_of_week SMALLINT NOT NULL,
			month SMALLINT NOT NULL,
			CONSTRAINT demand_history_day_key UNIQUE (organization_id, medicine_id, transaction_date)
		)`,
		`CREATE TABLE IF NOT EXISTS ai_insights (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL,
			insight_type VARCHAR(30) NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			recommendation TEXT NOT NULL,
			priority VARCHAR(10) NOT NULL,
			related_medicine_id UUID REFERENCES medicines(id),
			is_actioned BOOLEAN NOT NULL DEFAULT FALSE,
			actioned_at TIMESTAMPTZ,
			actioned_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// at most one open insight per (organization, type, medicine)
		`CREATE UNIQUE INDEX IF NOT EXISTS ai_insights_open_key
			ON ai_insights (organization_id, insight_type, related_medicine_id) WHERE NOT is_actioned`,
		`CREATE TABLE IF NOT EXISTS stock_alerts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			batch_id UUID NOT NULL REFERENCES inventory_batches(id),
			alert_type VARCHAR(30) NOT NULL,
			alert_level VARCHAR(20) NOT NULL,
			message TEXT NOT NULL,
			is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
			resolved_at TIMESTAMPTZ,
			resolved_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// at most one open alert per (batch, type)
		`CREATE UNIQUE INDEX IF NOT EXISTS stock_alerts_open_key
			ON stock_alerts (batch_id, alert_type) WHERE NOT is_resolved`,
		`CREATE TABLE IF NOT EXISTS suppliers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			contact_name VARCHAR(255),
			email VARCHAR(255),
			phone VARCHAR(50),
			address TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_orders (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL,
			supplier_id UUID NOT NULL REFERENCES suppliers(id),
			order_number VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			expected_delivery_date DATE,
			actual_delivery_date DATE,
			notes TEXT,
			created_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT purchase_orders_order_status_valid
				CHECK (status IN ('pending', 'confirmed', 'shipped', 'delivered', 'cancelled')),
			CONSTRAINT purchase_orders_order_number_key UNIQUE (organization_id, order_number)
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_order_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			purchase_order_id UUID NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
			medicine_id UUID NOT NULL REFERENCES medicines(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price NUMERIC(12,2) NOT NULL,
			line_total NUMERIC(14,2) NOT NULL
		)`,
	}
}

// Migrate applies Migrations inside a single transaction.
func (db *DB) Migrate(ctx context.Context) error {
	statements := Migrations()

	err := db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.Info().Int("statements", len(statements)).Msg("schema migrated")
	return nil
}
