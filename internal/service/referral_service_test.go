package service

import (
	"context"
	"sort"
	"testing"

	"referral_bot/internal/domain"
	"referral_bot/internal/repository"
)

// fakeStore is an in-memory stand-in for the pgx-backed repositories.
// It implements both UserStore and ReferralStore.
type fakeStore struct {
	users   map[int64]*domain.User
	order   []int64 // user insertion order, for stable leaderboard ties
	pending map[int64]int64
	edges   map[[2]int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[int64]*domain.User),
		pending: make(map[int64]int64),
		edges:   make(map[[2]int64]bool),
	}
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateUser(_ context.Context, id int64, username, firstName string) error {
	if _, ok := f.users[id]; ok {
		return nil
	}
	f.users[id] = &domain.User{ID: id, Username: username, FirstName: firstName}
	f.order = append(f.order, id)
	return nil
}

func (f *fakeStore) TopReferrers(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	ids := make([]int64, len(f.order))
	copy(ids, f.order)
	pos := make(map[int64]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := f.users[ids[i]], f.users[ids[j]]
		if a.InviteCount != b.InviteCount {
			return a.InviteCount > b.InviteCount
		}
		return pos[a.ID] < pos[b.ID]
	})

	var res []domain.LeaderboardEntry
	for _, id := range ids {
		u := f.users[id]
		if u.InviteCount == 0 {
			continue
		}
		if len(res) == limit {
			break
		}
		res = append(res, domain.LeaderboardEntry{
			Rank:        len(res) + 1,
			DisplayName: u.DisplayName(),
			InviteCount: u.InviteCount,
		})
	}
	return res, nil
}

func (f *fakeStore) UpsertPending(_ context.Context, referredID, referrerID int64) error {
	f.pending[referredID] = referrerID
	return nil
}

func (f *fakeStore) GetPending(_ context.Context, referredID int64) (int64, bool, error) {
	id, ok := f.pending[referredID]
	return id, ok, nil
}

func (f *fakeStore) DeletePending(_ context.Context, referredID int64) error {
	delete(f.pending, referredID)
	return nil
}

func (f *fakeStore) EdgeExists(_ context.Context, a, b int64) (bool, error) {
	return f.edges[[2]int64{a, b}] || f.edges[[2]int64{b, a}], nil
}

func (f *fakeStore) CreditReferral(_ context.Context, referrerID, referredID int64) (int64, error) {
	if f.edges[[2]int64{referrerID, referredID}] || f.edges[[2]int64{referredID, referrerID}] {
		return 0, repository.ErrDuplicateEdge
	}
	u, ok := f.users[referrerID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	u.InviteCount++
	f.edges[[2]int64{referrerID, referredID}] = true
	delete(f.pending, referredID)
	return u.InviteCount, nil
}

func newTestService() (*ReferralService, *fakeStore) {
	store := newFakeStore()
	return NewReferralService(store, store), store
}

func TestRecordIntent_SelfReferral(t *testing.T) {
	svc, store := newTestService()

	self, err := svc.RecordIntent(context.Background(), 100, "100")
	if err != nil {
		t.Fatalf("record intent: %v", err)
	}
	if !self {
		t.Fatalf("expected self-referral to be rejected")
	}
	if len(store.pending) != 0 {
		t.Fatalf("self-referral must not create a pending intent")
	}
	if len(store.edges) != 0 {
		t.Fatalf("self-referral must not create an edge")
	}
}

func TestRecordIntent_IgnoresNonNumericArg(t *testing.T) {
	svc, store := newTestService()

	self, err := svc.RecordIntent(context.Background(), 100, "not-a-number")
	if err != nil || self {
		t.Fatalf("expected arg to be ignored, got self=%v err=%v", self, err)
	}
	if len(store.pending) != 0 {
		t.Fatalf("non-numeric arg must not create a pending intent")
	}
}

func TestRecordIntent_ReplacesEarlierIntent(t *testing.T) {
	svc, store := newTestService()

	if _, err := svc.RecordIntent(context.Background(), 200, "100"); err != nil {
		t.Fatalf("record intent: %v", err)
	}
	if _, err := svc.RecordIntent(context.Background(), 200, "300"); err != nil {
		t.Fatalf("record intent: %v", err)
	}
	if got := store.pending[200]; got != 300 {
		t.Fatalf("pending referrer = %d; want 300 (replace semantics)", got)
	}
}

func TestFinalize_NoArgsCreatesUserOnly(t *testing.T) {
	svc, store := newTestService()

	res, err := svc.Finalize(context.Background(), 100, "alice", "Alice")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.Status != StatusNoReferral {
		t.Fatalf("status = %s; want %s", res.Status, StatusNoReferral)
	}
	u, ok := store.users[100]
	if !ok {
		t.Fatalf("user 100 not created")
	}
	if u.InviteCount != 0 {
		t.Fatalf("new user invite count = %d; want 0", u.InviteCount)
	}
}

func TestFinalize_CreditsPendingReferral(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	// Referrer 100 registered earlier.
	if _, err := svc.Finalize(ctx, 100, "alice", "Alice"); err != nil {
		t.Fatalf("register referrer: %v", err)
	}

	// User 200 arrives via 100's link but is not yet subscribed:
	// only the intent is recorded.
	if _, err := svc.RecordIntent(ctx, 200, "100"); err != nil {
		t.Fatalf("record intent: %v", err)
	}
	if store.pending[200] != 100 {
		t.Fatalf("pending intent not recorded")
	}
	if store.users[100].InviteCount != 0 {
		t.Fatalf("invite count changed before the subscription gate")
	}

	// After subscribing, /start again finalizes the credit.
	res, err := svc.Finalize(ctx, 200, "bob", "Bob")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.Status != StatusCredited {
		t.Fatalf("status = %s; want %s", res.Status, StatusCredited)
	}
	if res.ReferrerID != 100 || res.InviteCount != 1 {
		t.Fatalf("credited (%d, %d); want (100, 1)", res.ReferrerID, res.InviteCount)
	}
	if !store.edges[[2]int64{100, 200}] {
		t.Fatalf("edge (100,200) not created")
	}
	if _, ok := store.pending[200]; ok {
		t.Fatalf("pending intent not deleted after credit")
	}
}

func TestFinalize_ReplayDoesNotDoubleCredit(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if _, err := svc.Finalize(ctx, 100, "alice", "Alice"); err != nil {
		t.Fatalf("register referrer: %v", err)
	}
	if _, err := svc.RecordIntent(ctx, 200, "100"); err != nil {
		t.Fatalf("record intent: %v", err)
	}
	if _, err := svc.Finalize(ctx, 200, "bob", "Bob"); err != nil {
		t.Fatalf("first finalize: %v", err)
	}

	// Identical /start sequence replayed.
	if _, err := svc.RecordIntent(ctx, 200, "100"); err != nil {
		t.Fatalf("record intent replay: %v", err)
	}
	res, err := svc.Finalize(ctx, 200, "bob", "Bob")
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if res.Status != StatusAlreadyCredited {
		t.Fatalf("status = %s; want %s", res.Status, StatusAlreadyCredited)
	}
	if store.users[100].InviteCount != 1 {
		t.Fatalf("invite count = %d; want 1 (no double credit)", store.users[100].InviteCount)
	}
	if _, ok := store.pending[200]; ok {
		t.Fatalf("pending intent not deleted on replay")
	}
}

func TestFinalize_CrossReferralBlocked(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if _, err := svc.Finalize(ctx, 100, "alice", "Alice"); err != nil {
		t.Fatalf("register 100: %v", err)
	}
	if _, err := svc.RecordIntent(ctx, 200, "100"); err != nil {
		t.Fatalf("record intent: %v", err)
	}
	if _, err := svc.Finalize(ctx, 200, "bob", "Bob"); err != nil {
		t.Fatalf("finalize 200: %v", err)
	}

	// 200 now "refers" 100 back; the reverse edge must not count.
	if _, err := svc.RecordIntent(ctx, 100, "200"); err != nil {
		t.Fatalf("record reverse intent: %v", err)
	}
	res, err := svc.Finalize(ctx, 100, "alice", "Alice")
	if err != nil {
		t.Fatalf("finalize reverse: %v", err)
	}
	if res.Status != StatusAlreadyCredited {
		t.Fatalf("status = %s; want %s", res.Status, StatusAlreadyCredited)
	}
	if store.users[200].InviteCount != 0 {
		t.Fatalf("reverse referral credited: count = %d", store.users[200].InviteCount)
	}
	if store.edges[[2]int64{200, 100}] {
		t.Fatalf("reverse edge created")
	}
}

// racingStore simulates a concurrent credit committing between the
// engine's edge check and its credit transaction: the check reports no
// edge, but the store already holds one.
type racingStore struct {
	*fakeStore
}

func (r *racingStore) EdgeExists(_ context.Context, _, _ int64) (bool, error) {
	return false, nil
}

func TestFinalize_LostCreditRaceIsAlreadyCredited(t *testing.T) {
	store := newFakeStore()
	svc := NewReferralService(store, &racingStore{fakeStore: store})
	ctx := context.Background()

	if err := store.CreateUser(ctx, 100, "alice", "Alice"); err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	// The winning transaction already committed the reverse edge.
	store.edges[[2]int64{200, 100}] = true
	if err := store.UpsertPending(ctx, 200, 100); err != nil {
		t.Fatalf("upsert pending: %v", err)
	}

	res, err := svc.Finalize(ctx, 200, "bob", "Bob")
	if err != nil {
		t.Fatalf("finalize must absorb the duplicate-edge race, got %v", err)
	}
	if res.Status != StatusAlreadyCredited {
		t.Fatalf("status = %s; want %s", res.Status, StatusAlreadyCredited)
	}
	if store.users[100].InviteCount != 0 {
		t.Fatalf("loser credited anyway: count = %d", store.users[100].InviteCount)
	}
	if _, ok := store.pending[200]; ok {
		t.Fatalf("pending intent not deleted after losing the race")
	}
}

func TestFinalize_UnknownReferrer(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	// 999 never registered.
	if _, err := svc.RecordIntent(ctx, 200, "999"); err != nil {
		t.Fatalf("record intent: %v", err)
	}
	res, err := svc.Finalize(ctx, 200, "bob", "Bob")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.Status != StatusUnknownReferrer {
		t.Fatalf("status = %s; want %s", res.Status, StatusUnknownReferrer)
	}
	if _, ok := store.pending[200]; ok {
		t.Fatalf("invalid pending intent not deleted")
	}
}

func TestLeaderboard_OrderingAndFiltering(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c", "d"} {
		id := int64(100 + i)
		if err := store.CreateUser(ctx, id, name, name); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	store.users[100].InviteCount = 2
	store.users[101].InviteCount = 5
	store.users[102].InviteCount = 2
	// user 103 stays at zero and must not appear

	entries, err := svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d; want 3 (zero-count users excluded)", len(entries))
	}

	want := []struct {
		name  string
		count int64
	}{
		{"b", 5},
		{"a", 2}, // tie with c broken by insertion order
		{"c", 2},
	}
	for i, w := range want {
		e := entries[i]
		if e.Rank != i+1 || e.DisplayName != w.name || e.InviteCount != w.count {
			t.Fatalf("entry %d = %+v; want rank=%d name=%s count=%d", i, e, i+1, w.name, w.count)
		}
	}
}

func TestLeaderboard_RespectsLimit(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		id := int64(1000 + i)
		if err := store.CreateUser(ctx, id, "", "u"); err != nil {
			t.Fatalf("create user: %v", err)
		}
		store.users[id].InviteCount = int64(i + 1)
	}

	entries, err := svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("len = %d; want at most 10", len(entries))
	}
}
