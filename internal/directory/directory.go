// Package directory resolves which trading accounts the signed-in user can
// access and which one is currently selected. Selection is validated against
// the account list: an archived or missing selection reads back as none.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/store"
)

// Directory is the account list plus the active-account selection for the
// current user. It starts loading and settles after the first LoadForUser.
type Directory struct {
	accounts store.AccountStore
	log      *slog.Logger

	mu       sync.RWMutex
	userID   string
	list     []domain.Account
	activeID string
	loading  bool
	gen      int
}

// NewDirectory creates a Directory in the loading state.
func NewDirectory(accounts store.AccountStore, log *slog.Logger) *Directory {
	return &Directory{
		accounts: accounts,
		log:      log,
		loading:  true,
	}
}

// Loading reports whether the account list for the current user has not yet
// settled.
func (d *Directory) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loading
}

// LoadForUser fetches the user's accounts and settles the directory. A fetch
// error fails closed to an empty, settled list — never left loading. An
// existing selection survives the reload only if it still names an active
// account. A result superseded by Reset or a newer load is discarded, so a
// slow fetch can never re-settle the directory with a stale user's list.
func (d *Directory) LoadForUser(ctx context.Context, userID string) []domain.Account {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	list, err := d.accounts.ListAccounts(ctx, userID)
	if err != nil {
		d.log.Warn("listing accounts failed", "userID", userID, "error", err)
		list = nil
	}

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		d.log.Debug("stale account list dropped", "userID", userID)
		return nil
	}
	d.userID = userID
	d.list = list
	d.loading = false
	if d.findActive(d.activeID) == nil {
		d.activeID = ""
	}
	out := make([]domain.Account, len(list))
	copy(out, list)
	d.mu.Unlock()

	return out
}

// Accounts returns a copy of the settled account list.
func (d *Directory) Accounts() []domain.Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Account, len(d.list))
	copy(out, d.list)
	return out
}

// ActiveAccount returns the selected account, or nil when no valid active
// selection exists (none chosen, archived, or missing).
func (d *Directory) ActiveAccount() *domain.Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.findActive(d.activeID)
}

// ActiveAccountID returns the id of the valid active selection, or "".
func (d *Directory) ActiveAccountID() string {
	if a := d.ActiveAccount(); a != nil {
		return a.ID
	}
	return ""
}

// Select makes accountID the active selection. The account must exist in the
// settled list and be active.
func (d *Directory) Select(accountID string) (*domain.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.list {
		if d.list[i].ID != accountID {
			continue
		}
		if d.list[i].Status != domain.AccountActive {
			return nil, fmt.Errorf("selecting account %s: %w", accountID, store.ErrAccountArchived)
		}
		d.activeID = accountID
		a := d.list[i]
		return &a, nil
	}
	return nil, fmt.Errorf("selecting account %s: %w", accountID, store.ErrNotFound)
}

// Reset clears the directory back to loading, e.g. on logout.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.userID = ""
	d.list = nil
	d.activeID = ""
	d.loading = true
	d.gen++
	d.mu.Unlock()
}

// findActive returns the account for id only if it is present and active.
// Callers must hold mu.
func (d *Directory) findActive(id string) *domain.Account {
	if id == "" {
		return nil
	}
	for i := range d.list {
		if d.list[i].ID == id && d.list[i].Status == domain.AccountActive {
			a := d.list[i]
			return &a
		}
	}
	return nil
}
