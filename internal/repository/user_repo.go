package repository

import (
	"context"
	"errors"

	"referral_bot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT user_id, username, first_name, invite_count, created_at
		 FROM users
		 WHERE user_id = $1`,
		id,
	)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.InviteCount, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user with a zero invite count. Idempotent: an
// existing row is left untouched.
func (r *UserRepository) CreateUser(ctx context.Context, id int64, username, firstName string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (user_id, username, first_name, invite_count)
		 VALUES ($1, $2, $3, 0)
		 ON CONFLICT (user_id) DO NOTHING`,
		id, username, firstName,
	)
	return err
}

// IncrementInviteCount bumps the user's invite count by one as a single
// compound update and returns the new count.
func (r *UserRepository) IncrementInviteCount(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`UPDATE users SET invite_count = invite_count + 1 WHERE user_id = $1 RETURNING invite_count`,
		id,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return count, nil
}

// TopReferrers returns up to limit users with at least one invite,
// ordered by invite count descending. Ties keep insertion order.
func (r *UserRepository) TopReferrers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT COALESCE(NULLIF(username, ''), first_name), invite_count
		 FROM users
		 WHERE invite_count > 0
		 ORDER BY invite_count DESC, created_at ASC, user_id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.DisplayName, &e.InviteCount); err != nil {
			return nil, err
		}
		e.Rank = rank
		res = append(res, e)
		rank++
	}
	return res, rows.Err()
}
