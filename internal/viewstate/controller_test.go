package viewstate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/directory"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/session"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/store"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/subscription"
)

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string][]domain.Account
}

func (f *fakeAccounts) CreateAccount(ctx context.Context, acct *domain.Account) error {
	return errors.New("not implemented")
}

func (f *fakeAccounts) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return nil, store.ErrNotFound
}

func (f *fakeAccounts) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[userID], nil
}

func (f *fakeAccounts) ArchiveAccount(ctx context.Context, id string) error {
	return errors.New("not implemented")
}

type countingRecorder struct {
	mu            sync.Mutex
	started       int
	ended         int
	endedEarly    int
	staleDropped  int
	hydrationDone int
}

func (r *countingRecorder) SwitchStarted() {
	r.mu.Lock()
	r.started++
	r.mu.Unlock()
}

func (r *countingRecorder) SwitchEnded(d time.Duration, early bool) {
	r.mu.Lock()
	r.ended++
	if early {
		r.endedEarly++
	}
	r.mu.Unlock()
}

func (r *countingRecorder) StaleWriteDropped() {
	r.mu.Lock()
	r.staleDropped++
	r.mu.Unlock()
}

func (r *countingRecorder) HydrationDone(d time.Duration) {
	r.mu.Lock()
	r.hydrationDone++
	r.mu.Unlock()
}

func (r *countingRecorder) counts() (started, ended, early, stale int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, r.ended, r.endedEarly, r.staleDropped
}

type fixture struct {
	sessions *session.Manager
	gate     *subscription.Gate
	dir      *directory.Directory
	rec      *countingRecorder
	ctrl     *Controller
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture builds a controller whose user u1 owns three active accounts
// and an active subscription. The loader blocks forever; tests drive cache
// writes through RecordTrades.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	log := discardLogger()

	accounts := &fakeAccounts{accounts: map[string][]domain.Account{
		"u1": {
			{ID: "acc-a", UserID: "u1", Name: "Prop A", Status: domain.AccountActive, StartingBalance: 50000},
			{ID: "acc-b", UserID: "u1", Name: "Personal B", Status: domain.AccountActive, StartingBalance: 10000},
			{ID: "acc-c", UserID: "u1", Name: "Funded C", Status: domain.AccountActive, StartingBalance: 25000},
		},
	}}

	sessions := session.NewManager(func(ctx context.Context) (string, error) {
		return "u1", nil
	}, log)

	gate := subscription.NewGate(func(ctx context.Context, userID string) (*domain.Subscription, error) {
		return &domain.Subscription{
			UserID:           userID,
			Status:           "active",
			CurrentPeriodEnd: time.Now().Add(24 * time.Hour),
		}, nil
	}, log)

	dir := directory.NewDirectory(accounts, log)

	blockingLoader := func(ctx context.Context, accountID string) ([]domain.Trade, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	rec := &countingRecorder{}
	ctrl := NewController(sessions, gate, dir, blockingLoader, opts, rec, log)
	return &fixture{sessions: sessions, gate: gate, dir: dir, rec: rec, ctrl: ctrl}
}

// signIn settles the session and waits for accounts and subscription to
// resolve so tests start from a ready state.
func (f *fixture) signIn(t *testing.T, ctx context.Context) {
	t.Helper()
	f.sessions.Establish("u1")
	f.ctrl.handleSession(ctx, f.sessions.Current())
	waitFor(t, func() bool { return f.ctrl.Ready() && !f.ctrl.IsHydrating() })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func testOptions() Options {
	return Options{
		SwitchWindow:     40 * time.Millisecond,
		SettleBuffer:     20 * time.Millisecond,
		HydrationCeiling: 150 * time.Millisecond,
	}
}

func mkTrades(accountID string, n int) []domain.Trade {
	trades := make([]domain.Trade, n)
	for i := range trades {
		trades[i] = domain.Trade{
			ID:        accountID + "-t" + string(rune('0'+i)),
			AccountID: accountID,
			Symbol:    "ES",
			Side:      domain.SideBuy,
			Qty:       1,
			Price:     5000,
			PnL:       float64(i * 10),
			ExecutedAt: time.Date(2025, 6, 1, 9, 30+i, 0, 0, time.UTC),
		}
	}
	return trades
}

func TestSwitchEndsOnWindowElapsed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())
	f.signIn(t, ctx)

	accts := f.dir.Accounts()
	if err := f.ctrl.SetActiveAccount(ctx, accts[0]); err != nil {
		t.Fatalf("SetActiveAccount: %v", err)
	}
	if !f.ctrl.IsSwitching() {
		t.Fatal("expected switch window open")
	}

	waitFor(t, func() bool { return !f.ctrl.IsSwitching() })

	started, ended, early, _ := f.rec.counts()
	if started != 1 || ended != 1 || early != 0 {
		t.Fatalf("recorder started=%d ended=%d early=%d, want 1/1/0", started, ended, early)
	}
}

func TestSwitchEndsEarlyOnFreshLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())
	f.signIn(t, ctx)

	accts := f.dir.Accounts()
	if err := f.ctrl.SetActiveAccount(ctx, accts[0]); err != nil {
		t.Fatalf("SetActiveAccount: %v", err)
	}

	f.ctrl.RecordTrades(accts[0].ID, mkTrades(accts[0].ID, 3), accts[0].StartingBalance)

	if f.ctrl.IsSwitching() {
		t.Fatal("expected switch window closed on first successful load")
	}
	_, ended, early, _ := f.rec.counts()
	if ended != 1 || early != 1 {
		t.Fatalf("recorder ended=%d early=%d, want 1/1", ended, early)
	}
}

func TestStaleWriteDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())
	f.signIn(t, ctx)

	accts := f.dir.Accounts()
	if err := f.ctrl.SetActiveAccount(ctx, accts[1]); err != nil {
		t.Fatalf("SetActiveAccount: %v", err)
	}

	// A late response from a different account must not reach the cache.
	f.ctrl.RecordTrades(accts[0].ID, mkTrades(accts[0].ID, 5), accts[0].StartingBalance)

	if data, _ := f.ctrl.ReadForRender(accts[0].ID); !data.Empty() {
		t.Fatal("stale write reached the cache")
	}
	if _, _, _, stale := f.rec.counts(); stale != 1 {
		t.Fatalf("stale drops = %d, want 1", stale)
	}
}

func TestPreviousSlotBridgesSwitch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())
	f.signIn(t, ctx)

	accts := f.dir.Accounts()
	a, b := accts[0], accts[1]

	if err := f.ctrl.SetActiveAccount(ctx, a); err != nil {
		t.Fatalf("select a: %v", err)
	}
	f.ctrl.RecordTrades(a.ID, mkTrades(a.ID, 5), a.StartingBalance)

	if err := f.ctrl.SetActiveAccount(ctx, b); err != nil {
		t.Fatalf("select b: %v", err)
	}

	// During the window, before b's data arrives, a's numbers backstop
	// the render.
	data, fromPrev := f.ctrl.ReadForRender(b.ID)
	if !fromPrev {
		t.Fatal("expected previous slot to serve the render")
	}
	if len(data.Trades) != 5 {
		t.Fatalf("previous data has %d trades, want 5", len(data.Trades))
	}

	// b has zero trades; the empty fresh load is still authoritative.
	f.ctrl.RecordTrades(b.ID, nil, b.StartingBalance)
	data, fromPrev = f.ctrl.ReadForRender(b.ID)
	if fromPrev {
		t.Fatal("fresh entry present, previous slot must not be served")
	}
	if len(data.Trades) != 0 {
		t.Fatalf("fresh data has %d trades, want 0", len(data.Trades))
	}
}

func TestPreviousSlotNotServedAfterWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())
	f.signIn(t, ctx)

	accts := f.dir.Accounts()
	a, b := accts[0], accts[1]

	if err := f.ctrl.SetActiveAccount(ctx, a); err != nil {
		t.Fatalf("select a: %v", err)
	}
	f.ctrl.RecordTrades(a.ID, mkTrades(a.ID, 2), a.StartingBalance)

	if err := f.ctrl.SetActiveAccount(ctx, b); err != nil {
		t.Fatalf("select b: %v", err)
	}
	waitFor(t, func() bool { return !f.ctrl.IsSwitching() })

	// The load never completed and the window is closed: render empty,
	// never another account's numbers.
	data, fromPrev := f.ctrl.ReadForRender(b.ID)
	if fromPrev || !data.Empty() {
		t.Fatalf("expected empty render after window, got fromPrev=%v trades=%d",
			fromPrev, len(data.Trades))
	}
}

func TestRapidReswitchRestartsWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())
	f.signIn(t, ctx)

	accts := f.dir.Accounts()
	if err := f.ctrl.SetActiveAccount(ctx, accts[1]); err != nil {
		t.Fatalf("select b: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := f.ctrl.SetActiveAccount(ctx, accts[2]); err != nil {
		t.Fatalf("select c: %v", err)
	}

	// 10ms past the first window's deadline the restarted window is
	// still open.
	time.Sleep(f.ctrl.opts.SwitchWindow)
	if !f.ctrl.IsSwitching() {
		t.Fatal("re-switch did not restart the window")
	}

	waitFor(t, func() bool { return !f.ctrl.IsSwitching() })
	started, ended, _, _ := f.rec.counts()
	if started != 2 || ended != 1 {
		t.Fatalf("recorder started=%d ended=%d, want 2/1", started, ended)
	}
}

func TestHydrationClearsWhenSourcesSettle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())

	f.sessions.Establish("u1")
	f.ctrl.handleSession(ctx, f.sessions.Current())
	waitFor(t, func() bool { return !f.ctrl.IsHydrating() })

	if !f.ctrl.Ready() {
		t.Fatal("expected ready after all sources settled")
	}
}

func TestHydrationCeilingForceClears(t *testing.T) {
	ctx := context.Background()
	log := discardLogger()

	accounts := &fakeAccounts{accounts: map[string][]domain.Account{}}
	sessions := session.NewManager(func(ctx context.Context) (string, error) {
		return "u1", nil
	}, log)

	// The subscription lookup hangs forever; the ceiling must still
	// clear the flag.
	gate := subscription.NewGate(func(ctx context.Context, userID string) (*domain.Subscription, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, log)
	dir := directory.NewDirectory(accounts, log)

	ctrl := NewController(sessions, gate, dir, func(ctx context.Context, accountID string) ([]domain.Trade, error) {
		return nil, nil
	}, testOptions(), nil, log)

	lookupCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sessions.Establish("u1")
	ctrl.handleSession(lookupCtx, sessions.Current())

	if !ctrl.IsHydrating() {
		t.Fatal("expected hydration flag raised on login")
	}
	waitFor(t, func() bool { return !ctrl.IsHydrating() })
}

func TestRouteComputation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())

	// Session still resolving.
	if got := f.ctrl.Snapshot().Route; got != RouteLoading {
		t.Fatalf("route = %q, want %q", got, RouteLoading)
	}

	// Settled signed out.
	f.sessions.Clear()
	if got := f.ctrl.Snapshot().Route; got != RouteAuth {
		t.Fatalf("route = %q, want %q", got, RouteAuth)
	}

	// Signed in, everything settled, no selection yet.
	f.signIn(t, ctx)
	if got := f.ctrl.Snapshot().Route; got != RouteSelectAccount {
		t.Fatalf("route = %q, want %q", got, RouteSelectAccount)
	}

	// Selection made.
	accts := f.dir.Accounts()
	if err := f.ctrl.SetActiveAccount(ctx, accts[0]); err != nil {
		t.Fatalf("SetActiveAccount: %v", err)
	}
	if got := f.ctrl.Snapshot().Route; got != RouteJournal {
		t.Fatalf("route = %q, want %q", got, RouteJournal)
	}
}

func TestPaywallOnFailedLookup(t *testing.T) {
	ctx := context.Background()
	log := discardLogger()

	accounts := &fakeAccounts{accounts: map[string][]domain.Account{
		"u1": {{ID: "acc-a", UserID: "u1", Status: domain.AccountActive}},
	}}
	sessions := session.NewManager(func(ctx context.Context) (string, error) {
		return "u1", nil
	}, log)

	// Billing backend down: the gate fails closed.
	gate := subscription.NewGate(func(ctx context.Context, userID string) (*domain.Subscription, error) {
		return nil, errors.New("billing unavailable")
	}, log)
	dir := directory.NewDirectory(accounts, log)

	ctrl := NewController(sessions, gate, dir, func(ctx context.Context, accountID string) ([]domain.Trade, error) {
		return nil, nil
	}, testOptions(), nil, log)

	sessions.Establish("u1")
	ctrl.handleSession(ctx, sessions.Current())
	waitFor(t, func() bool { return ctrl.Ready() })

	if got := ctrl.Snapshot().Route; got != RoutePaywall {
		t.Fatalf("route = %q, want %q", got, RoutePaywall)
	}
}

func TestLogoutResetsCacheAndPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())
	f.signIn(t, ctx)

	accts := f.dir.Accounts()
	a := accts[0]
	if err := f.ctrl.SetActiveAccount(ctx, a); err != nil {
		t.Fatalf("SetActiveAccount: %v", err)
	}
	f.ctrl.RecordTrades(a.ID, mkTrades(a.ID, 4), a.StartingBalance)

	f.sessions.Clear()
	f.ctrl.handleSession(ctx, f.sessions.Current())

	if data, fromPrev := f.ctrl.ReadForRender(a.ID); fromPrev || !data.Empty() {
		t.Fatal("cache survived logout")
	}
	if got := f.ctrl.Snapshot().Route; got != RouteAuth {
		t.Fatalf("route = %q, want %q", got, RouteAuth)
	}
}

func TestEventsBroadcastOnSwitch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOptions())
	f.signIn(t, ctx)

	id, ch := f.ctrl.Subscribe(16)
	defer f.ctrl.Unsubscribe(id)

	accts := f.dir.Accounts()
	if err := f.ctrl.SetActiveAccount(ctx, accts[0]); err != nil {
		t.Fatalf("SetActiveAccount: %v", err)
	}
	f.ctrl.RecordTrades(accts[0].ID, mkTrades(accts[0].ID, 1), accts[0].StartingBalance)

	var types []EventType
	deadline := time.After(time.Second)
	for len(types) < 3 {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %v", types)
		}
	}

	want := []EventType{EventSwitchStarted, EventCacheUpdated, EventSwitchEnded}
	for i, w := range want {
		if types[i] != w {
			t.Fatalf("event[%d] = %q, want %q (all: %v)", i, types[i], w, types)
		}
	}
}

func TestHeightLock(t *testing.T) {
	f := newFixture(t, testOptions())
	want := testOptions().SwitchWindow + testOptions().SettleBuffer
	if got := f.ctrl.HeightLock(); got != want {
		t.Fatalf("HeightLock = %v, want %v", got, want)
	}
	if got := f.ctrl.Snapshot().HeightLockMS; got != want.Milliseconds() {
		t.Fatalf("HeightLockMS = %d, want %d", got, want.Milliseconds())
	}
}
