package service

import (
	"context"
	"errors"
	"strconv"

	"referral_bot/internal/domain"
	"referral_bot/internal/repository"
)

// Status is the outcome of a finalize attempt. These are expected
// control-flow results the caller branches on, not errors.
type Status string

const (
	StatusCredited        Status = "credited"
	StatusNoReferral      Status = "no_referral"
	StatusSelfReferral    Status = "self_referral"
	StatusUnknownReferrer Status = "unknown_referrer"
	StatusAlreadyCredited Status = "already_credited"
)

// CreditResult reports what Finalize decided. ReferrerID and
// InviteCount are set only when Status is StatusCredited.
type CreditResult struct {
	Status      Status
	ReferrerID  int64
	InviteCount int64
}

// UserStore is the slice of the user table the engine needs.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateUser(ctx context.Context, id int64, username, firstName string) error
	TopReferrers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// ReferralStore covers pending intents and credited edges. The engine
// is the sole writer of edges and invite counts; CreditReferral must
// perform its steps in a single transaction.
type ReferralStore interface {
	UpsertPending(ctx context.Context, referredID, referrerID int64) error
	GetPending(ctx context.Context, referredID int64) (int64, bool, error)
	DeletePending(ctx context.Context, referredID int64) error
	EdgeExists(ctx context.Context, a, b int64) (bool, error)
	CreditReferral(ctx context.Context, referrerID, referredID int64) (int64, error)
}

// ReferralService validates and commits referrals: no self-referrals,
// no double crediting, no cross-referral loops.
type ReferralService struct {
	users     UserStore
	referrals ReferralStore
}

func NewReferralService(users UserStore, referrals ReferralStore) *ReferralService {
	return &ReferralService{users: users, referrals: referrals}
}

// RecordIntent handles a /start argument on arrival, before the
// subscription gate. A referral link naming the user themselves is
// rejected without touching the store; anything else is recorded as a
// pending intent so the user can subscribe later and still be
// credited. Non-numeric arguments are ignored.
func (s *ReferralService) RecordIntent(ctx context.Context, userID int64, rawArg string) (selfReferral bool, err error) {
	if rawArg == "" {
		return false, nil
	}
	referrerID, perr := strconv.ParseInt(rawArg, 10, 64)
	if perr != nil {
		return false, nil
	}
	if referrerID == userID {
		return true, nil
	}
	return false, s.referrals.UpsertPending(ctx, userID, referrerID)
}

// Finalize runs after the caller has confirmed the subscription gate.
// It ensures the user row exists, resolves any pending intent and
// credits the referrer exactly once. The pending row is deleted on
// every terminal outcome, credited or rejected.
func (s *ReferralService) Finalize(ctx context.Context, userID int64, username, firstName string) (CreditResult, error) {
	if err := s.users.CreateUser(ctx, userID, username, firstName); err != nil {
		return CreditResult{}, err
	}

	referrerID, ok, err := s.referrals.GetPending(ctx, userID)
	if err != nil {
		return CreditResult{}, err
	}
	if !ok {
		return CreditResult{Status: StatusNoReferral}, nil
	}

	// A link pointing at an unregistered user is permanently invalid.
	if _, err := s.users.GetUser(ctx, referrerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if derr := s.referrals.DeletePending(ctx, userID); derr != nil {
				return CreditResult{}, derr
			}
			return CreditResult{Status: StatusUnknownReferrer}, nil
		}
		return CreditResult{}, err
	}

	exists, err := s.referrals.EdgeExists(ctx, referrerID, userID)
	if err != nil {
		return CreditResult{}, err
	}
	if exists {
		if derr := s.referrals.DeletePending(ctx, userID); derr != nil {
			return CreditResult{}, derr
		}
		return CreditResult{Status: StatusAlreadyCredited}, nil
	}

	newCount, err := s.referrals.CreditReferral(ctx, referrerID, userID)
	if err != nil {
		// Lost the race to a concurrent credit of the same pair.
		if errors.Is(err, repository.ErrDuplicateEdge) {
			if derr := s.referrals.DeletePending(ctx, userID); derr != nil {
				return CreditResult{}, derr
			}
			return CreditResult{Status: StatusAlreadyCredited}, nil
		}
		return CreditResult{}, err
	}

	return CreditResult{Status: StatusCredited, ReferrerID: referrerID, InviteCount: newCount}, nil
}

// Leaderboard returns the top referrers with at least one invite.
func (s *ReferralService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return s.users.TopReferrers(ctx, limit)
}
