package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the loyalty store.
var Migrations = migrate.NewGroup("loyalty")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_loyalty_businesses",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_businesses (
    id                   TEXT PRIMARY KEY,
    name                 TEXT NOT NULL DEFAULT '',
    points_per_dollar    TEXT NOT NULL DEFAULT '1',
    referrals_for_reward BIGINT NOT NULL DEFAULT 0,
    reward_cents         BIGINT NOT NULL DEFAULT 0,
    reward_currency      TEXT NOT NULL DEFAULT 'usd',
    theme_color          TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_businesses`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loyalty_accounts",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_accounts (
    id             TEXT PRIMARY KEY,
    business_id    TEXT NOT NULL DEFAULT '',
    customer_key   TEXT NOT NULL DEFAULT '',
    points         BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
    referred_by    TEXT NOT NULL DEFAULT '',
    referral_count BIGINT NOT NULL DEFAULT 0,
    source         TEXT NOT NULL DEFAULT 'direct',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_loyalty_accounts_key ON loyalty_accounts (business_id, customer_key);
CREATE INDEX IF NOT EXISTS idx_loyalty_accounts_referred_by ON loyalty_accounts (business_id, referred_by) WHERE referred_by != '';
CREATE INDEX IF NOT EXISTS idx_loyalty_accounts_referrals ON loyalty_accounts (business_id, referral_count DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_loyalty_accounts_recency ON loyalty_accounts (business_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loyalty_transactions",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loyalty_transactions (
    id              TEXT PRIMARY KEY,
    business_id     TEXT NOT NULL DEFAULT '',
    customer_key    TEXT NOT NULL DEFAULT '',
    type            TEXT NOT NULL DEFAULT '',
    amount_spent    TEXT NOT NULL DEFAULT '0',
    points_changed  BIGINT NOT NULL DEFAULT 0,
    reward_cents    BIGINT NOT NULL DEFAULT 0,
    reward_currency TEXT NOT NULL DEFAULT '',
    note            TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loyalty_txns_account ON loyalty_transactions (business_id, customer_key, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_loyalty_txns_business ON loyalty_transactions (business_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loyalty_transactions`)
				return err
			},
		},
	)
}
