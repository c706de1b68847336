package domain

import "time"

// User is one row per distinct participant of the referral program.
// Created on the first subscription-confirmed /start, never deleted.
type User struct {
	ID          int64     `db:"user_id" json:"user_id"`
	Username    string    `db:"username" json:"username"`
	FirstName   string    `db:"first_name" json:"first_name"`
	InviteCount int64     `db:"invite_count" json:"invite_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DisplayName returns the username, falling back to the first name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// ReferralEdge is a confirmed, credited referral. At most one edge may
// exist per unordered pair of user ids, in either direction.
type ReferralEdge struct {
	ReferrerID int64     `db:"referrer_id" json:"referrer_id"`
	ReferredID int64     `db:"referred_id" json:"referred_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// PendingReferral records a referral intent awaiting the subscription
// gate. Keyed by the referred user; a later link with a different
// referrer replaces it.
type PendingReferral struct {
	UserID     int64 `db:"user_id" json:"user_id"`
	ReferrerID int64 `db:"referrer_id" json:"referrer_id"`
}

// LeaderboardEntry is one ranked row of the top-referrers board.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	DisplayName string `json:"display_name"`
	InviteCount int64  `json:"invite_count"`
}
