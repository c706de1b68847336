package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema statements are idempotent so the process can run them on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id      BIGINT PRIMARY KEY,
		username     TEXT NOT NULL DEFAULT '',
		first_name   TEXT NOT NULL DEFAULT '',
		invite_count INT NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS referral_edges (
		referrer_id BIGINT NOT NULL,
		referred_id BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (referrer_id, referred_id)
	)`,
	// Pair uniqueness must hold for the unordered pair: the edge check
	// alone cannot see a concurrent uncommitted insert of the reverse
	// row, so the index is the backstop that makes one of the two
	// racing transactions fail.
	`CREATE UNIQUE INDEX IF NOT EXISTS referral_edges_pair_uq
		ON referral_edges (LEAST(referrer_id, referred_id), GREATEST(referrer_id, referred_id))`,
	`CREATE TABLE IF NOT EXISTS pending_referrals (
		user_id     BIGINT PRIMARY KEY,
		referrer_id BIGINT NOT NULL
	)`,
}

// Bootstrap creates the referral tables if they do not exist yet.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
