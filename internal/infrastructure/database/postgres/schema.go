package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on every start; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS stores (
		id BIGSERIAL PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		tax_rate NUMERIC(7,4) NOT NULL DEFAULT 0,
		gateways JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		store_id BIGINT NOT NULL REFERENCES stores(id),
		name TEXT NOT NULL,
		sku TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		sale_price NUMERIC(12,2) CHECK (sale_price >= 0),
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_store ON products(store_id)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id BIGSERIAL PRIMARY KEY,
		store_id BIGINT NOT NULL REFERENCES stores(id),
		owner_key TEXT NOT NULL,
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity INT NOT NULL CHECK (quantity > 0),
		variants JSONB NOT NULL DEFAULT '{}',
		variant_key TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (store_id, owner_key, product_id, variant_key)
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id BIGSERIAL PRIMARY KEY,
		store_id BIGINT NOT NULL REFERENCES stores(id),
		code TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('percentage','fixed')),
		value NUMERIC(12,2) NOT NULL CHECK (value >= 0),
		min_subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
		usage_limit INT,
		used_count INT NOT NULL DEFAULT 0,
		starts_at TIMESTAMPTZ,
		expires_at TIMESTAMPTZ,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (store_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS shipping_methods (
		id BIGSERIAL PRIMARY KEY,
		store_id BIGINT NOT NULL REFERENCES stores(id),
		name TEXT NOT NULL,
		base_cost NUMERIC(12,2) NOT NULL DEFAULT 0,
		handling_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		store_id BIGINT NOT NULL REFERENCES stores(id),
		customer_id BIGINT,
		session_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		customer_email TEXT NOT NULL,
		customer_phone TEXT NOT NULL DEFAULT '',
		shipping_address JSONB NOT NULL DEFAULT '{}',
		billing_address JSONB NOT NULL DEFAULT '{}',
		subtotal NUMERIC(12,2) NOT NULL CHECK (subtotal >= 0),
		tax_amount NUMERIC(12,2) NOT NULL CHECK (tax_amount >= 0),
		shipping_amount NUMERIC(12,2) NOT NULL CHECK (shipping_amount >= 0),
		discount_amount NUMERIC(12,2) NOT NULL CHECK (discount_amount >= 0),
		total_amount NUMERIC(12,2) NOT NULL CHECK (total_amount >= 0),
		currency TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_gateway TEXT NOT NULL DEFAULT '',
		payment_transaction_id TEXT NOT NULL DEFAULT '',
		payment_details JSONB NOT NULL DEFAULT '{}',
		coupon_code TEXT NOT NULL DEFAULT '',
		coupon_discount NUMERIC(12,2) NOT NULL DEFAULT 0,
		shipping_method_id BIGINT,
		notes TEXT NOT NULL DEFAULT '',
		cancel_reason TEXT NOT NULL DEFAULT '',
		cancelled_at TIMESTAMPTZ,
		confirmed_at TIMESTAMPTZ,
		fulfilled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_store_customer ON orders(store_id, customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_store_session ON orders(store_id, session_id)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id),
		product_id BIGINT NOT NULL,
		product_name TEXT NOT NULL,
		sku TEXT NOT NULL DEFAULT '',
		unit_price NUMERIC(12,2) NOT NULL CHECK (unit_price >= 0),
		quantity INT NOT NULL CHECK (quantity > 0),
		variants JSONB NOT NULL DEFAULT '{}',
		total_price NUMERIC(12,2) NOT NULL CHECK (total_price >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: schema statement %d: %w", i, err)
		}
	}
	return nil
}
