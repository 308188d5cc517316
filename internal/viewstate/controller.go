// Package viewstate composes the independently loading session, account,
// subscription, and trade sources into a single consistent answer to the only
// question the view layer asks: which account's journal is on screen, and is
// it safe to render yet.
//
// The controller owns the switch window, the hydration flag, and the
// per-account data cache. It is the single writer of all three; views observe
// them through Snapshot, ReadForRender, and the event subscription.
package viewstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/directory"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/session"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/subscription"
)

// Well-known routes the controller redirects to. Failures always land on a
// known-safe screen instead of an error dialog.
const (
	RouteLoading       = "/loading"
	RouteAuth          = "/auth"
	RoutePaywall       = "/paywall"
	RouteSelectAccount = "/accounts/select"
	RouteJournal       = "/journal"
)

// TradeLoader fetches the trade set for an account. Responses may arrive in
// any order relative to account switches; the controller guards against
// stale ones.
type TradeLoader func(ctx context.Context, accountID string) ([]domain.Trade, error)

// Recorder receives controller lifecycle measurements. The metrics package
// provides the production implementation.
type Recorder interface {
	SwitchStarted()
	SwitchEnded(d time.Duration, early bool)
	StaleWriteDropped()
	HydrationDone(d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) SwitchStarted()                  {}
func (noopRecorder) SwitchEnded(time.Duration, bool) {}
func (noopRecorder) StaleWriteDropped()              {}
func (noopRecorder) HydrationDone(time.Duration)     {}

// Options are the timing windows that bound every transition.
type Options struct {
	// SwitchWindow is the maximum time the UI is dimmed after a switch.
	// The switch ends earlier if the new account's data arrives first.
	SwitchWindow time.Duration
	// SettleBuffer extends the consumer height lock past the switch window.
	SettleBuffer time.Duration
	// HydrationCeiling force-clears the hydration flag so it can never
	// stick if an upstream source hangs.
	HydrationCeiling time.Duration
}

func (o Options) withDefaults() Options {
	if o.SwitchWindow <= 0 {
		o.SwitchWindow = 150 * time.Millisecond
	}
	if o.SettleBuffer <= 0 {
		o.SettleBuffer = 200 * time.Millisecond
	}
	if o.HydrationCeiling <= 0 {
		o.HydrationCeiling = 3 * time.Second
	}
	return o
}

// EventType identifies a controller state change.
type EventType string

const (
	EventSwitchStarted EventType = "switch_started"
	EventSwitchEnded   EventType = "switch_ended"
	EventHydration     EventType = "hydration"
	EventCacheUpdated  EventType = "cache_updated"
)

// Event is broadcast to subscribers on every state change.
type Event struct {
	Type        EventType `json:"type"`
	AccountID   string    `json:"account_id,omitempty"`
	IsSwitching bool      `json:"is_switching"`
	IsHydrating bool      `json:"is_hydrating"`
}

// Snapshot is the composed view state served to the view layer.
type Snapshot struct {
	Ready           bool   `json:"ready"`
	IsSwitching     bool   `json:"is_switching"`
	IsHydrating     bool   `json:"is_hydrating"`
	ActiveAccountID string `json:"active_account_id,omitempty"`
	Route           string `json:"route"`
	HeightLockMS    int64  `json:"height_lock_ms"`
}

// previousEntry retains the last non-empty data set observed before the
// current switch, together with the account it belongs to.
type previousEntry struct {
	accountID string
	data      domain.AccountData
}

// Controller is the account-scoped hydration and transition state machine.
type Controller struct {
	sessions *session.Manager
	gate     *subscription.Gate
	dir      *directory.Directory
	loader   TradeLoader
	rec      Recorder
	opts     Options
	log      *slog.Logger

	mu              sync.Mutex
	switching       bool
	switchStartedAt time.Time
	switchGen       int
	switchTimer     *time.Timer
	switchTarget    string

	hydrating          bool
	hydrationStartedAt time.Time
	hydrationGen       int
	hydrationTimer     *time.Timer

	cache map[string]domain.AccountData
	prev  *previousEntry

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// NewController creates a Controller wired with the given dependencies.
// rec may be nil.
func NewController(
	sessions *session.Manager,
	gate *subscription.Gate,
	dir *directory.Directory,
	loader TradeLoader,
	opts Options,
	rec Recorder,
	log *slog.Logger,
) *Controller {
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Controller{
		sessions: sessions,
		gate:     gate,
		dir:      dir,
		loader:   loader,
		rec:      rec,
		opts:     opts.withDefaults(),
		log:      log,
		cache:    make(map[string]domain.AccountData),
		subs:     make(map[int]chan Event),
	}
}

// Run subscribes to session changes and reacts until ctx is cancelled. The
// current session is processed first, so a Controller started after login
// still hydrates.
func (c *Controller) Run(ctx context.Context) {
	subID, ch := c.sessions.Subscribe(16)
	defer c.sessions.Unsubscribe(subID)

	c.handleSession(ctx, c.sessions.Current())
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			c.handleSession(ctx, s)
		}
	}
}

// handleSession reacts to a session transition. Login and logout both reset
// hydration; the three sources then settle in arbitrary order and the flag
// clears once all of them have.
func (c *Controller) handleSession(ctx context.Context, s domain.Session) {
	if !s.Settled() {
		return
	}

	if !s.SignedIn() {
		c.mu.Lock()
		c.resetLocked()
		c.beginHydrationLocked()
		hydrating := c.hydrating
		c.mu.Unlock()

		c.gate.Reset()
		c.dir.Reset()
		c.emit(Event{Type: EventHydration, IsHydrating: hydrating})
		return
	}

	c.mu.Lock()
	c.beginHydrationLocked()
	hydrating := c.hydrating
	c.mu.Unlock()
	c.emit(Event{Type: EventHydration, IsHydrating: hydrating})

	// Accounts and subscription resolve independently; each settle
	// re-evaluates the gate.
	go func() {
		c.dir.LoadForUser(ctx, s.UserID)
		c.recompute()
	}()
	go func() {
		c.gate.Check(ctx, s.UserID)
		c.recompute()
	}()
}

// recompute clears the hydration flag once auth, accounts, and subscription
// are simultaneously settled.
func (c *Controller) recompute() {
	s := c.sessions.Current()
	settled := s.SignedIn() && !c.dir.Loading() && c.gate.State() != subscription.StateLoading

	c.mu.Lock()
	if !settled || !c.hydrating {
		c.mu.Unlock()
		return
	}
	c.clearHydrationLocked()
	c.mu.Unlock()

	c.emit(Event{Type: EventHydration, IsHydrating: false})
}

// Ready reports whether the main layout gate is open: auth, accounts, and
// subscription all out of their loading states.
func (c *Controller) Ready() bool {
	s := c.sessions.Current()
	if !s.Settled() {
		return false
	}
	if !s.SignedIn() {
		// Nothing more settles for anonymous visitors.
		return true
	}
	return !c.dir.Loading() && c.gate.State() != subscription.StateLoading
}

// SessionSnapshot returns the current session state.
func (c *Controller) SessionSnapshot() domain.Session {
	return c.sessions.Current()
}

// IsSwitching reports whether an account switch window is open.
func (c *Controller) IsSwitching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.switching
}

// IsHydrating reports whether fresh data for the current session is still
// unconfirmed.
func (c *Controller) IsHydrating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hydrating
}

// Snapshot returns the composed view state, including the route consumers
// should be on.
func (c *Controller) Snapshot() Snapshot {
	s := c.sessions.Current()
	ready := c.Ready()
	gateState := c.gate.State()
	active := c.dir.ActiveAccount()

	c.mu.Lock()
	snap := Snapshot{
		Ready:        ready,
		IsSwitching:  c.switching,
		IsHydrating:  c.hydrating,
		HeightLockMS: (c.opts.SwitchWindow + c.opts.SettleBuffer).Milliseconds(),
	}
	c.mu.Unlock()

	if active != nil {
		snap.ActiveAccountID = active.ID
	}

	switch {
	case !s.Settled():
		snap.Route = RouteLoading
	case !s.SignedIn():
		snap.Route = RouteAuth
	case !ready:
		snap.Route = RouteLoading
	case gateState == subscription.StateInactive:
		snap.Route = RoutePaywall
	case active == nil:
		snap.Route = RouteSelectAccount
	default:
		snap.Route = RouteJournal
	}
	return snap
}

// SetActiveAccount makes account the active selection and opens a switch
// window. The outgoing account's rendered data is preserved in the previous
// slot so views can crossfade instead of flashing empty. The window closes
// on the earlier of the new account's first successful load or the fixed
// duration.
func (c *Controller) SetActiveAccount(ctx context.Context, account domain.Account) error {
	outgoing := c.dir.ActiveAccountID()
	if _, err := c.dir.Select(account.ID); err != nil {
		return err
	}

	c.mu.Lock()
	if outgoing != "" && outgoing != account.ID {
		if data, ok := c.cache[outgoing]; ok && !data.Empty() {
			c.prev = &previousEntry{accountID: outgoing, data: data}
		}
	}

	c.switching = true
	c.switchStartedAt = time.Now()
	c.switchTarget = account.ID
	c.switchGen++
	gen := c.switchGen
	if c.switchTimer != nil {
		c.switchTimer.Stop()
	}
	c.switchTimer = time.AfterFunc(c.opts.SwitchWindow, func() {
		c.completeSwitch(gen, false)
	})
	c.mu.Unlock()

	c.rec.SwitchStarted()
	c.log.Debug("account switch started", "accountID", account.ID, "from", outgoing)
	c.emit(Event{Type: EventSwitchStarted, AccountID: account.ID, IsSwitching: true})

	go c.loadTrades(ctx, account)
	return nil
}

// loadTrades fetches the new account's trades and records them. Errors are
// not retried here; the previous slot keeps backstopping the view and the
// user can re-trigger by navigating.
func (c *Controller) loadTrades(ctx context.Context, account domain.Account) {
	trades, err := c.loader(ctx, account.ID)
	if err != nil {
		c.log.Warn("loading trades failed", "accountID", account.ID, "error", err)
		return
	}
	c.RecordTrades(account.ID, trades, account.StartingBalance)
}

// RecordTrades stores a completed trade load into the cache. A response for
// an account that is no longer the active selection is dropped: without this
// guard a slow response from a previously selected account would overwrite
// fresh data. A non-empty existing entry is preserved in the previous slot
// before being overwritten.
func (c *Controller) RecordTrades(accountID string, trades []domain.Trade, startingBalance float64) {
	active := c.dir.ActiveAccountID()

	c.mu.Lock()
	if accountID != active {
		c.mu.Unlock()
		c.rec.StaleWriteDropped()
		c.log.Debug("stale trade load dropped", "accountID", accountID, "active", active)
		return
	}

	if existing, ok := c.cache[accountID]; ok && !existing.Empty() {
		c.prev = &previousEntry{accountID: accountID, data: existing}
	}
	c.cache[accountID] = domain.AccountData{Trades: trades, StartingBalance: startingBalance}

	var ended bool
	var endedAfter time.Duration
	if c.switching && c.switchTarget == accountID {
		// Fresh data for the switch target ends the window early.
		c.switching = false
		c.switchGen++
		if c.switchTimer != nil {
			c.switchTimer.Stop()
		}
		ended = true
		endedAfter = time.Since(c.switchStartedAt)
	}
	switching := c.switching
	hydrating := c.hydrating
	c.mu.Unlock()

	c.emit(Event{Type: EventCacheUpdated, AccountID: accountID, IsSwitching: switching, IsHydrating: hydrating})
	if ended {
		c.rec.SwitchEnded(endedAfter, true)
		c.emit(Event{Type: EventSwitchEnded, AccountID: accountID, IsHydrating: hydrating})
	}
}

// completeSwitch closes the switch window when the fixed duration elapses.
// The generation check makes a restarted window immune to the old timer.
func (c *Controller) completeSwitch(gen int, early bool) {
	c.mu.Lock()
	if gen != c.switchGen || !c.switching {
		c.mu.Unlock()
		return
	}
	c.switching = false
	accountID := c.switchTarget
	d := time.Since(c.switchStartedAt)
	hydrating := c.hydrating
	c.mu.Unlock()

	c.rec.SwitchEnded(d, early)
	c.emit(Event{Type: EventSwitchEnded, AccountID: accountID, IsHydrating: hydrating})
}

// ReadForRender returns the data set a view should draw for accountID. While
// a switch is open and the fresh entry has not arrived, the previous slot is
// served so the old numbers stay visible, dimmed, underneath. Once the
// window closes the fresh entry is authoritative even when empty — another
// account's cached numbers are never served past the grace window.
func (c *Controller) ReadForRender(accountID string) (domain.AccountData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.cache[accountID]; ok {
		return data, false
	}
	if c.switching && c.prev != nil {
		return c.prev.data, true
	}
	return domain.AccountData{}, false
}

// beginHydrationLocked raises the hydration flag and arms the ceiling timer.
// Callers must hold mu.
func (c *Controller) beginHydrationLocked() {
	if c.hydrating {
		return
	}
	c.hydrating = true
	c.hydrationStartedAt = time.Now()
	c.hydrationGen++
	gen := c.hydrationGen
	if c.hydrationTimer != nil {
		c.hydrationTimer.Stop()
	}
	c.hydrationTimer = time.AfterFunc(c.opts.HydrationCeiling, func() {
		c.forceClearHydration(gen)
	})
}

// clearHydrationLocked lowers the flag. Callers must hold mu.
func (c *Controller) clearHydrationLocked() {
	c.hydrating = false
	c.hydrationGen++
	if c.hydrationTimer != nil {
		c.hydrationTimer.Stop()
	}
	c.rec.HydrationDone(time.Since(c.hydrationStartedAt))
}

// forceClearHydration is the ceiling fail-safe: the flag can never stick
// even if a source hangs forever.
func (c *Controller) forceClearHydration(gen int) {
	c.mu.Lock()
	if gen != c.hydrationGen || !c.hydrating {
		c.mu.Unlock()
		return
	}
	c.log.Warn("hydration ceiling reached, force-clearing",
		"after", time.Since(c.hydrationStartedAt))
	c.clearHydrationLocked()
	c.mu.Unlock()

	c.emit(Event{Type: EventHydration, IsHydrating: false})
}

// resetLocked tears down all per-session state. Callers must hold mu.
func (c *Controller) resetLocked() {
	c.cache = make(map[string]domain.AccountData)
	c.prev = nil
	c.switchGen++
	if c.switchTimer != nil {
		c.switchTimer.Stop()
	}
	c.switching = false
	c.switchTarget = ""
}

// HeightLock is the duration consumers must freeze their measured height
// after a switch starts: the switch window plus a settle buffer for new
// content of a different length mounting underneath.
func (c *Controller) HeightLock() time.Duration {
	return c.opts.SwitchWindow + c.opts.SettleBuffer
}

// Subscribe returns a channel receiving controller events. bufSize controls
// the channel buffer; slow consumers will have events dropped.
func (c *Controller) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	c.subsMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch
	c.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Controller) Unsubscribe(id int) {
	c.subsMu.Lock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
	c.subsMu.Unlock()
}

// emit broadcasts an event to all subscribers non-blocking. Never called
// with mu held.
func (c *Controller) emit(e Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- e:
		default:
			// Slow consumer — drop event.
		}
	}
}
