package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrDuplicateEdge = errors.New("referral edge already exists")

// isUniqueViolation reports whether err is a Postgres unique_violation,
// raised by the canonical-pair unique index when a concurrent
// transaction committed the same or the reverse edge first.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type ReferralRepository struct {
	db *pgxpool.Pool
}

func NewReferralRepository(db *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// UpsertPending records a referral intent for the referred user,
// replacing any earlier intent from a different referrer.
func (r *ReferralRepository) UpsertPending(ctx context.Context, referredID, referrerID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO pending_referrals (user_id, referrer_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET referrer_id = EXCLUDED.referrer_id`,
		referredID, referrerID,
	)
	return err
}

func (r *ReferralRepository) GetPending(ctx context.Context, referredID int64) (int64, bool, error) {
	var referrerID int64
	err := r.db.QueryRow(ctx,
		`SELECT referrer_id FROM pending_referrals WHERE user_id = $1`,
		referredID,
	).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return referrerID, true, nil
}

func (r *ReferralRepository) DeletePending(ctx context.Context, referredID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM pending_referrals WHERE user_id = $1`,
		referredID,
	)
	return err
}

// EdgeExists reports whether a credited edge exists between the two
// users in either direction.
func (r *ReferralRepository) EdgeExists(ctx context.Context, a, b int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM referral_edges
			WHERE (referrer_id = $1 AND referred_id = $2)
			   OR (referrer_id = $2 AND referred_id = $1)
		)`,
		a, b,
	).Scan(&exists)
	return exists, err
}

func (r *ReferralRepository) CreateEdge(ctx context.Context, referrerID, referredID int64) error {
	exists, err := r.EdgeExists(ctx, referrerID, referredID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateEdge
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO referral_edges (referrer_id, referred_id) VALUES ($1, $2)`,
		referrerID, referredID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEdge
	}
	return err
}

// CreditReferral credits the referrer for the referred user in one
// transaction: re-checks the edge in both directions, increments the
// invite count, inserts the edge and removes the pending intent. A
// crash at any point leaves state at the previous commit.
func (r *ReferralRepository) CreditReferral(ctx context.Context, referrerID, referredID int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM referral_edges
			WHERE (referrer_id = $1 AND referred_id = $2)
			   OR (referrer_id = $2 AND referred_id = $1)
		)`,
		referrerID, referredID,
	).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrDuplicateEdge
	}

	var newCount int64
	err = tx.QueryRow(ctx,
		`UPDATE users SET invite_count = invite_count + 1 WHERE user_id = $1 RETURNING invite_count`,
		referrerID,
	).Scan(&newCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO referral_edges (referrer_id, referred_id) VALUES ($1, $2)`,
		referrerID, referredID,
	); err != nil {
		// The pair index rejects the insert when a concurrent credit of
		// the same or the reverse edge committed after our check above.
		if isUniqueViolation(err) {
			return 0, ErrDuplicateEdge
		}
		return 0, err
	}

	if _, err = tx.Exec(ctx,
		`DELETE FROM pending_referrals WHERE user_id = $1`,
		referredID,
	); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newCount, nil
}
