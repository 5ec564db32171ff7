package postgres

import (
	"context"
	"fmt"
)

// Amounts are BIGINT hundredths of a coin. CHECK constraints back the
// non-negative balance invariant at the storage layer as well.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		owner_id          UUID PRIMARY KEY,
		owner_kind        TEXT NOT NULL CHECK (owner_kind IN ('Advertiser', 'ContentCreator')),
		available         BIGINT NOT NULL DEFAULT 0 CHECK (available >= 0),
		locked            BIGINT NOT NULL DEFAULT 0 CHECK (locked >= 0),
		total_deposit_usd BIGINT NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id                  UUID PRIMARY KEY,
		advertiser_id       UUID NOT NULL REFERENCES wallets (owner_id),
		title               TEXT NOT NULL,
		description         TEXT NOT NULL,
		requirements        TEXT NOT NULL,
		category            TEXT NOT NULL,
		platform            TEXT NOT NULL,
		budget_per_creator  BIGINT NOT NULL CHECK (budget_per_creator > 0),
		max_creators        INT NOT NULL CHECK (max_creators > 0),
		total_budget_locked BIGINT NOT NULL DEFAULT 0 CHECK (total_budget_locked >= 0),
		status              TEXT NOT NULL,
		deadline            TIMESTAMPTZ NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS campaigns_status_created_idx ON campaigns (status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS campaign_creators (
		campaign_id UUID NOT NULL REFERENCES campaigns (id),
		creator_id  UUID NOT NULL,
		position    INT NOT NULL,
		PRIMARY KEY (campaign_id, creator_id)
	)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id                     UUID PRIMARY KEY,
		campaign_id            UUID NOT NULL REFERENCES campaigns (id),
		creator_id             UUID NOT NULL,
		proposal               TEXT NOT NULL,
		expected_delivery_date TIMESTAMPTZ NOT NULL,
		status                 TEXT NOT NULL,
		applied_at             TIMESTAMPTZ NOT NULL,
		responded_at           TIMESTAMPTZ,
		UNIQUE (campaign_id, creator_id)
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id           UUID PRIMARY KEY,
		campaign_id  UUID NOT NULL REFERENCES campaigns (id),
		creator_id   UUID NOT NULL,
		content_url  TEXT NOT NULL,
		description  TEXT NOT NULL,
		status       TEXT NOT NULL,
		feedback     TEXT NOT NULL DEFAULT '',
		submitted_at TIMESTAMPTZ NOT NULL,
		reviewed_at  TIMESTAMPTZ,
		amount_paid  BIGINT NOT NULL DEFAULT 0,
		admin_fee    BIGINT NOT NULL DEFAULT 0,
		UNIQUE (campaign_id, creator_id)
	)`,
	`CREATE TABLE IF NOT EXISTS escrow_holds (
		campaign_id   UUID NOT NULL REFERENCES campaigns (id),
		creator_id    UUID NOT NULL,
		advertiser_id UUID NOT NULL,
		amount        BIGINT NOT NULL CHECK (amount > 0),
		status        TEXT NOT NULL,
		locked_at     TIMESTAMPTZ NOT NULL,
		released_at   TIMESTAMPTZ,
		PRIMARY KEY (campaign_id, creator_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		seq           BIGSERIAL,
		id            UUID PRIMARY KEY,
		user_id       UUID NOT NULL,
		type          TEXT NOT NULL,
		amount        BIGINT NOT NULL,
		currency      TEXT NOT NULL,
		status        TEXT NOT NULL,
		campaign_id   UUID,
		submission_id UUID,
		external_ref  TEXT,
		description   TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS transactions_external_ref_idx ON transactions (external_ref) WHERE external_ref IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS transactions_user_seq_idx ON transactions (user_id, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id            UUID PRIMARY KEY,
		event_type    TEXT NOT NULL,
		partition_key TEXT NOT NULL,
		payload       BYTEA NOT NULL,
		status        TEXT NOT NULL,
		attempts      INT NOT NULL DEFAULT 0,
		last_error    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		published_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (created_at) WHERE status = 'pending'`,
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.Db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i, err)
		}
	}
	return nil
}
