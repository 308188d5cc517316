// Package subscription gates access to the journal behind the user's billing
// status. The gate performs exactly one lookup per auth settle and fails
// closed: any lookup error resolves to inactive rather than leaving the gate
// loading.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/store"
)

// State is the gate's resolution status. Loading is transient; Active and
// Inactive are terminal until the next Reset.
type State string

const (
	StateLoading  State = "loading"
	StateActive   State = "active"
	StateInactive State = "inactive"
)

// LookupFunc fetches the billing record for a user. A nil record with nil
// error means the user has never subscribed.
type LookupFunc func(ctx context.Context, userID string) (*domain.Subscription, error)

// Gate caches the billing resolution for the current user.
type Gate struct {
	lookup LookupFunc
	now    func() time.Time
	log    *slog.Logger

	mu          sync.RWMutex
	state       State
	checkedUser string
}

// NewGate creates a Gate in the loading state.
func NewGate(lookup LookupFunc, log *slog.Logger) *Gate {
	return &Gate{
		lookup: lookup,
		now:    time.Now,
		log:    log,
		state:  StateLoading,
	}
}

// State returns the current resolution.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Check resolves the billing status for userID. Repeated calls for the same
// user return the cached terminal state without a second lookup; the user
// retries by navigating, which goes through Reset first.
func (g *Gate) Check(ctx context.Context, userID string) State {
	g.mu.RLock()
	if g.checkedUser == userID && g.state != StateLoading {
		state := g.state
		g.mu.RUnlock()
		return state
	}
	g.mu.RUnlock()

	rec, err := g.lookup(ctx, userID)

	state := StateInactive
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Never subscribed.
	case err != nil:
		// Fail closed: a broken billing lookup routes to the paywall, it
		// never leaves the gate loading.
		g.log.Warn("subscription lookup failed", "userID", userID, "error", err)
	case rec.ActiveAt(g.now()):
		state = StateActive
	}

	g.mu.Lock()
	g.state = state
	g.checkedUser = userID
	g.mu.Unlock()

	return state
}

// Reset returns the gate to loading, e.g. on logout or when a new user signs
// in. The next Check performs a fresh lookup.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.state = StateLoading
	g.checkedUser = ""
	g.mu.Unlock()
}
