package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the checkout store.
var Migrations = migrate.NewGroup("checkout")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_checkout_users",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS checkout_users (
    id           TEXT PRIMARY KEY,
    principal_id BIGINT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    login        TEXT NOT NULL DEFAULT '',
    email        TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_checkout_users_principal ON checkout_users (principal_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS checkout_users`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_checkout_products",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS checkout_products (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    price_amount   BIGINT NOT NULL DEFAULT 0 CHECK (price_amount >= 0),
    price_currency TEXT NOT NULL DEFAULT 'rub',
    active         BOOLEAN NOT NULL DEFAULT TRUE,
    download_url   TEXT NOT NULL DEFAULT '',
    popularity     BIGINT NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_checkout_products_popular ON checkout_products (active, popularity DESC, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS checkout_products`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_checkout_cart_lines",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS checkout_cart_lines (
    user_id    TEXT NOT NULL,
    product_id TEXT NOT NULL,
    quantity   INT NOT NULL DEFAULT 1 CHECK (quantity > 0),
    added_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, product_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS checkout_cart_lines`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_checkout_orders",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS checkout_orders (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    total_amount   BIGINT NOT NULL DEFAULT 0,
    total_currency TEXT NOT NULL DEFAULT 'rub',
    status         TEXT NOT NULL DEFAULT 'pending',
    payment_ref    TEXT NOT NULL DEFAULT '',
    lines          JSONB NOT NULL DEFAULT '[]',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    paid_at        TIMESTAMPTZ,
    fulfilled_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_checkout_orders_user ON checkout_orders (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_checkout_orders_pending ON checkout_orders (created_at) WHERE status = 'pending' AND payment_ref != '';
CREATE INDEX IF NOT EXISTS idx_checkout_orders_unfulfilled ON checkout_orders (created_at) WHERE status = 'paid' AND fulfilled_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_checkout_orders_payment_ref ON checkout_orders (payment_ref) WHERE payment_ref != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS checkout_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_checkout_purchases",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS checkout_purchases (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    product_id     TEXT NOT NULL,
    order_id       TEXT NOT NULL REFERENCES checkout_orders (id) ON DELETE RESTRICT,
    price_amount   BIGINT NOT NULL DEFAULT 0,
    price_currency TEXT NOT NULL DEFAULT 'rub',
    purchased_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_checkout_purchases_order_product ON checkout_purchases (order_id, product_id);
CREATE INDEX IF NOT EXISTS idx_checkout_purchases_user_product ON checkout_purchases (user_id, product_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS checkout_purchases`)
				return err
			},
		},
	)
}
