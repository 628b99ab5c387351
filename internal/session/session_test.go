package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/notepid/gloop/internal/boost"
	"github.com/notepid/gloop/internal/localstore"
	"github.com/notepid/gloop/internal/period"
	"github.com/notepid/gloop/internal/reconcile"
	"github.com/notepid/gloop/internal/user"
)

var rule = period.MustRule(period.DefaultTimezone, 0)

// noon in New York on 2025-06-15.
var noon = time.Date(2025, 6, 15, 16, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu      sync.Mutex
	users   map[string]user.Record
	order   []string
	listErr error
	patches []patchCall
	gloops  []string
}

type patchCall struct {
	id    string
	patch user.Patch
}

func newFakeStore(records ...user.Record) *fakeStore {
	f := &fakeStore{users: make(map[string]user.Record)}
	for _, r := range records {
		f.put(r)
	}
	return f
}

func (f *fakeStore) put(r user.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[r.ID]; !ok {
		f.order = append(f.order, r.ID)
	}
	f.users[r.ID] = r
}

func (f *fakeStore) get(id string) user.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeStore) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeStore) patchCalls() []patchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patchCall(nil), f.patches...)
}

func (f *fakeStore) List(context.Context) ([]user.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]user.Record, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.users[id])
	}
	return out, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*user.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &r, nil
}

func (f *fakeStore) Patch(_ context.Context, id string, p user.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patchCall{id: id, patch: p})
	r, ok := f.users[id]
	if !ok {
		return user.ErrNotFound
	}
	f.users[id] = p.Apply(r)
	return nil
}

func (f *fakeStore) RecordGloop(_ context.Context, id string, _ int64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gloops = append(f.gloops, id)
	return nil
}

type incrementingStore struct {
	*fakeStore
	increments int
}

func (f *incrementingStore) IncrementScore(_ context.Context, id string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments++
	r := f.users[id]
	r.TotalScore += amount
	r.DailyScore += amount
	f.users[id] = r
	return nil
}

// gatedStore holds every IncrementScore until gate is closed.
type gatedStore struct {
	*incrementingStore
	gate chan struct{}
}

func (g *gatedStore) IncrementScore(ctx context.Context, id string, amount int64) error {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.incrementingStore.IncrementScore(ctx, id, amount)
}

// flakyStore fails every patch for one id.
type flakyStore struct {
	*fakeStore
	failID string
	failed []user.Patch
}

func (f *flakyStore) Patch(ctx context.Context, id string, p user.Patch) error {
	if id == f.failID {
		f.mu.Lock()
		f.failed = append(f.failed, p)
		f.mu.Unlock()
		return errors.New("store unavailable")
	}
	return f.fakeStore.Patch(ctx, id, p)
}

func (f *flakyStore) failedPatches() []user.Patch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]user.Patch(nil), f.failed...)
}

func tracked(id string, total, daily, credits int64, used int, at time.Time) user.Record {
	return user.Record{
		ID:             id,
		FirstName:      id,
		LastName:       "Glooper",
		TotalScore:     total,
		DailyScore:     daily,
		LastDailyReset: at,
		BoostCredits:   credits,
		Usage:          user.Tracked{Used: used, LastReset: at},
	}
}

type harness struct {
	ctx   context.Context
	clock *quartz.Mock
	store Store
	local *localstore.Store
	s     *Session
}

func newHarness(t *testing.T, store Store) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	mClock := quartz.NewMock(t)
	mClock.Set(noon)

	local, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	s := New(ctx, Config{
		Store:  store,
		Local:  local,
		Policy: reconcile.Policy{Rule: rule},
		Boost:  boost.DefaultConfig(),
		Clock:  mClock,
	})
	t.Cleanup(s.Close)
	return &harness{ctx: ctx, clock: mClock, store: store, local: local, s: s}
}

// start launches the poll loop and waits for the first poll.
func (h *harness) start(t *testing.T) {
	t.Helper()
	trap := h.clock.Trap().TickerFunc("session", "poll")
	defer trap.Close()
	h.s.Start()
	trap.MustWait(h.ctx).MustRelease(h.ctx)
}

func TestStartPollsImmediatelyAndOnInterval(t *testing.T) {
	store := newFakeStore(tracked("a", 10, 1, 0, 0, noon))
	h := newHarness(t, store)
	h.start(t)

	users := h.s.Users()
	require.Len(t, users, 1)
	require.EqualValues(t, 10, users[0].TotalScore)

	store.put(tracked("b", 50, 1, 0, 0, noon))
	h.clock.Advance(DefaultPollInterval).MustWait(h.ctx)

	users = h.s.Users()
	require.Len(t, users, 2)
	require.Equal(t, "b", users[0].ID)
}

func TestPollFetchFailureSkipsCycle(t *testing.T) {
	store := newFakeStore(tracked("a", 10, 1, 0, 0, noon))
	h := newHarness(t, store)
	h.start(t)

	_, err := h.s.Increment("a")
	require.NoError(t, err)

	store.setListErr(errors.New("offline"))
	err = h.s.Poll(h.ctx)
	require.Error(t, err)

	users := h.s.Users()
	require.EqualValues(t, 11, users[0].TotalScore)
}

func TestIncrementIsOptimisticAndWritesThrough(t *testing.T) {
	store := newFakeStore(tracked("a", 10, 3, 0, 0, noon))
	h := newHarness(t, store)
	h.start(t)

	rec, err := h.s.Increment("a")
	require.NoError(t, err)
	require.EqualValues(t, 11, rec.TotalScore)
	require.EqualValues(t, 4, rec.DailyScore)
	require.EqualValues(t, 11, h.s.Users()[0].TotalScore)

	h.s.writes.Wait()
	require.EqualValues(t, 11, store.get("a").TotalScore)
	require.EqualValues(t, 4, store.get("a").DailyScore)
	require.Equal(t, []string{"a"}, store.gloops)

	_, err = h.s.Increment("missing")
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestIncrementUsesAtomicIncrementer(t *testing.T) {
	store := &incrementingStore{fakeStore: newFakeStore(tracked("a", 10, 3, 0, 0, noon))}
	h := newHarness(t, store)
	h.start(t)

	_, err := h.s.Increment("a")
	require.NoError(t, err)
	h.s.writes.Wait()

	require.Equal(t, 1, store.increments)
	require.EqualValues(t, 11, store.get("a").TotalScore)
	require.Empty(t, store.patchCalls())
}

func TestIncrementRollsStaleDailyScore(t *testing.T) {
	yesterday := noon.Add(-24 * time.Hour)
	store := &incrementingStore{fakeStore: newFakeStore(tracked("a", 10, 7, 0, 0, yesterday))}
	h := newHarness(t, store)

	// Load the stale record without the poll loop, which would roll it.
	h.s.mu.Lock()
	h.s.users = []user.Record{store.get("a")}
	h.s.mu.Unlock()

	rec, err := h.s.Increment("a")
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.DailyScore)
	require.True(t, rec.LastDailyReset.Equal(noon))

	h.s.writes.Wait()
	got := store.get("a")
	require.EqualValues(t, 11, got.TotalScore)
	require.EqualValues(t, 1, got.DailyScore)
}

func TestPollKeepsLocalAheadAndPatches(t *testing.T) {
	store := newFakeStore(tracked("a", 10, 3, 0, 0, noon))
	h := newHarness(t, store)
	h.start(t)

	// Simulate a store that has not seen the local increments yet.
	h.s.mu.Lock()
	h.s.users = []user.Record{tracked("a", 15, 8, 0, 0, noon)}
	h.s.mu.Unlock()

	require.NoError(t, h.s.Poll(h.ctx))
	require.EqualValues(t, 15, h.s.Users()[0].TotalScore)

	calls := store.patchCalls()
	require.Len(t, calls, 1)
	require.EqualValues(t, 15, *calls[0].patch.TotalScore)
	require.EqualValues(t, 8, *calls[0].patch.DailyScore)
}

func TestPollDuringIncrementWriteCountsOnce(t *testing.T) {
	store := &gatedStore{
		incrementingStore: &incrementingStore{fakeStore: newFakeStore(tracked("a", 10, 3, 0, 0, noon))},
		gate:              make(chan struct{}),
	}
	h := newHarness(t, store)
	h.start(t)

	_, err := h.s.Increment("a")
	require.NoError(t, err)

	// The store still reports 10 while the write is held.
	require.NoError(t, h.s.Poll(h.ctx))
	require.EqualValues(t, 11, h.s.Users()[0].TotalScore)
	require.Empty(t, store.patchCalls())

	close(store.gate)
	h.s.writes.Wait()
	require.EqualValues(t, 11, store.get("a").TotalScore)
	require.EqualValues(t, 4, store.get("a").DailyScore)

	require.NoError(t, h.s.Poll(h.ctx))
	require.EqualValues(t, 11, h.s.Users()[0].TotalScore)
	require.EqualValues(t, 11, store.get("a").TotalScore)
	require.Empty(t, store.patchCalls())
}

func TestWithoutPendingScores(t *testing.T) {
	patches := map[string]user.Patch{
		"busy":  {TotalScore: user.Ptr[int64](11), DailyScore: user.Ptr[int64](4)},
		"stale": {DailyScore: user.Ptr[int64](6), LastDailyReset: user.Ptr(noon), TotalScore: user.Ptr[int64](30)},
		"idle":  {TotalScore: user.Ptr[int64](7), DailyScore: user.Ptr[int64](7)},
		"boost": {TotalScore: user.Ptr[int64](2), DailyBoostsUsed: user.Ptr(0), LastBoostReset: user.Ptr(noon)},
	}
	pending := map[string]int{"busy": 1, "stale": 2, "boost": 1}

	out := withoutPendingScores(patches, pending)

	require.NotContains(t, out, "busy")
	require.Equal(t, user.Patch{DailyScore: user.Ptr[int64](0), LastDailyReset: user.Ptr(noon)}, out["stale"])
	require.Equal(t, patches["idle"], out["idle"])
	require.Equal(t, user.Patch{DailyBoostsUsed: user.Ptr(0), LastBoostReset: user.Ptr(noon)}, out["boost"])
	require.EqualValues(t, 11, *patches["busy"].TotalScore)
}

func TestPatchFailureDoesNotBlockOthers(t *testing.T) {
	store := &flakyStore{
		fakeStore: newFakeStore(tracked("good", 10, 1, 0, 0, noon), tracked("bad", 10, 1, 0, 0, noon)),
		failID:    "bad",
	}
	h := newHarness(t, store)
	h.start(t)

	h.s.mu.Lock()
	h.s.users = []user.Record{tracked("good", 20, 2, 0, 0, noon), tracked("bad", 30, 3, 0, 0, noon)}
	h.s.mu.Unlock()

	require.NoError(t, h.s.Poll(h.ctx))
	require.EqualValues(t, 20, store.get("good").TotalScore)
	require.EqualValues(t, 10, store.get("bad").TotalScore)
	bad, ok := user.Find(h.s.Users(), "bad")
	require.True(t, ok)
	require.EqualValues(t, 30, bad.TotalScore)

	// The dropped patch is derived again on the next cycle.
	require.NoError(t, h.s.Poll(h.ctx))
	failed := store.failedPatches()
	require.Len(t, failed, 2)
	require.EqualValues(t, 30, *failed[1].TotalScore)
	require.EqualValues(t, 3, *failed[1].DailyScore)

	calls := store.patchCalls()
	require.Len(t, calls, 1)
	require.Equal(t, "good", calls[0].id)
}

func TestTotalNeverDecreasesAcrossPolls(t *testing.T) {
	store := newFakeStore(tracked("a", 100, 10, 0, 0, noon))
	h := newHarness(t, store)
	h.start(t)

	last := h.s.Users()[0].TotalScore
	for i := 0; i < 20; i++ {
		if i%3 == 0 {
			_, err := h.s.Increment("a")
			require.NoError(t, err)
		}
		if i%5 == 0 {
			// Another client's writes land on the store.
			r := store.get("a")
			r.TotalScore += 2
			store.put(r)
		}
		h.clock.Advance(DefaultPollInterval).MustWait(h.ctx)
		cur := h.s.Users()[0].TotalScore
		require.GreaterOrEqual(t, cur, last)
		last = cur
	}
}

func TestActivateBoostTracked(t *testing.T) {
	store := newFakeStore(tracked("me", 0, 0, 2, 0, noon), tracked("them", 5, 5, 0, 0, noon))
	h := newHarness(t, store)
	h.start(t)
	require.NoError(t, h.s.SetCurrentUser(h.ctx, store.get("me")))

	trap := h.clock.Trap().TickerFunc("session", "countdown")
	defer trap.Close()

	var st boost.State
	done := make(chan error, 1)
	go func() {
		var err error
		st, err = h.s.ActivateBoost(h.ctx)
		done <- err
	}()
	trap.MustWait(h.ctx).MustRelease(h.ctx)
	require.NoError(t, <-done)
	require.True(t, st.Active)
	require.Equal(t, 60, st.Remaining)

	me := store.get("me")
	require.EqualValues(t, 1, me.BoostCredits)
	require.Equal(t, 1, me.Usage.(user.Tracked).Used)

	_, err := h.s.ActivateBoost(h.ctx)
	require.ErrorIs(t, err, boost.ErrAlreadyActive)

	rec, err := h.s.Increment("them")
	require.NoError(t, err)
	require.EqualValues(t, 15, rec.TotalScore)

	h.clock.Advance(time.Second).MustWait(h.ctx)
	require.Equal(t, 59, h.s.Boost().Remaining)

	for i := 0; i < 59; i++ {
		h.clock.Advance(time.Second).MustWait(h.ctx)
	}
	require.False(t, h.s.Boost().Active)

	rec, err = h.s.Increment("them")
	require.NoError(t, err)
	require.EqualValues(t, 16, rec.TotalScore)
}

func TestActivateBoostDenied(t *testing.T) {
	store := newFakeStore(
		tracked("broke", 0, 0, 0, 0, noon),
		tracked("capped", 0, 0, 3, boost.DefaultDailyCap, noon),
	)
	h := newHarness(t, store)
	h.start(t)

	_, err := h.s.ActivateBoost(h.ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)

	require.NoError(t, h.s.SetCurrentUser(h.ctx, store.get("broke")))
	_, err = h.s.ActivateBoost(h.ctx)
	require.ErrorIs(t, err, boost.ErrNoCredits)
	require.ErrorIs(t, err, boost.ErrActivationDenied)

	require.NoError(t, h.s.SetCurrentUser(h.ctx, store.get("capped")))
	_, err = h.s.ActivateBoost(h.ctx)
	require.ErrorIs(t, err, boost.ErrDailyCapReached)

	require.False(t, h.s.Boost().Active)
	require.Empty(t, store.patchCalls())
}

func TestActivateBoostLegacyUsesLocalStore(t *testing.T) {
	legacy := tracked("old", 0, 0, 5, 0, noon)
	legacy.Usage = user.Legacy{}
	store := newFakeStore(legacy)
	h := newHarness(t, store)
	h.start(t)
	require.NoError(t, h.s.SetCurrentUser(h.ctx, legacy))

	key := localstore.BoostUsageKey("old", string(rule.Key(noon)))
	require.NoError(t, h.local.Set(h.ctx, key, "9"))

	left, err := h.s.RemainingActivations(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, left)

	trap := h.clock.Trap().TickerFunc("session", "countdown")
	defer trap.Close()
	done := make(chan error, 1)
	go func() {
		_, err := h.s.ActivateBoost(h.ctx)
		done <- err
	}()
	trap.MustWait(h.ctx).MustRelease(h.ctx)
	require.NoError(t, <-done)

	v, ok, err := h.local.Get(h.ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "10", v)

	got := store.get("old")
	require.EqualValues(t, 4, got.BoostCredits)
	_, stillLegacy := got.Usage.(user.Legacy)
	require.True(t, stillLegacy)

	for i := 0; i < 60; i++ {
		h.clock.Advance(time.Second).MustWait(h.ctx)
	}
	_, err = h.s.ActivateBoost(h.ctx)
	require.ErrorIs(t, err, boost.ErrDailyCapReached)
}

func TestActivateBoostWithoutUsageEnforcesCap(t *testing.T) {
	bare := tracked("bare", 0, 0, 5, 0, noon)
	bare.Usage = nil
	store := newFakeStore(bare)
	h := newHarness(t, store)
	h.start(t)
	require.NoError(t, h.s.SetCurrentUser(h.ctx, bare))

	key := localstore.BoostUsageKey("bare", string(rule.Key(noon)))
	require.NoError(t, h.local.Set(h.ctx, key, "10"))

	_, err := h.s.ActivateBoost(h.ctx)
	require.ErrorIs(t, err, boost.ErrDailyCapReached)
	require.EqualValues(t, 5, store.get("bare").BoostCredits)
}

func TestRecentsPersistAndRestore(t *testing.T) {
	store := newFakeStore(tracked("a", 1, 1, 0, 0, noon), tracked("b", 2, 2, 0, 0, noon))
	h := newHarness(t, store)
	h.start(t)

	for _, id := range []string{"a", "b", "a"} {
		_, err := h.s.Increment(id)
		require.NoError(t, err)
	}
	h.s.writes.Wait()

	recents := h.s.Recents()
	require.Len(t, recents, 2)
	require.Equal(t, "a", recents[0].ID)

	other := New(h.ctx, Config{Store: store, Local: h.local, Policy: reconcile.Policy{Rule: rule}, Clock: h.clock})
	other.restore(h.ctx)
	require.Equal(t, recents, other.Recents())

	removed, err := h.s.ClearCache(h.ctx)
	require.NoError(t, err)
	require.Contains(t, removed, localstore.KeyRecents)
	require.Empty(t, h.s.Recents())
}

func TestSetCurrentUserPersists(t *testing.T) {
	store := newFakeStore()
	h := newHarness(t, store)

	me := tracked("me", 0, 0, 0, 0, noon)
	require.NoError(t, h.s.SetCurrentUser(h.ctx, me))

	got, ok := h.s.CurrentUser()
	require.True(t, ok)
	require.Equal(t, "me", got.ID)

	v, ok, err := h.local.Get(h.ctx, localstore.KeyUserID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "me", v)
}

func TestClosedSessionDiscardsResults(t *testing.T) {
	store := newFakeStore(tracked("a", 1, 1, 0, 0, noon))
	h := newHarness(t, store)
	h.start(t)

	h.s.Close()

	store.put(tracked("b", 99, 1, 0, 0, noon))
	require.ErrorIs(t, h.s.Poll(context.Background()), ErrClosed)
	require.Len(t, h.s.Users(), 1)

	_, err := h.s.Increment("a")
	require.ErrorIs(t, err, ErrClosed)

	// Closing twice is fine.
	h.s.Close()
}
