// Package store persists journal accounts, trades, and subscription records,
// and archives trade history to Parquet files.
package store

import (
	"context"
	"errors"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccountArchived is returned when an operation requires an active
	// account but the account is archived.
	ErrAccountArchived = errors.New("account archived")
)

// AccountStore persists and retrieves trading accounts.
type AccountStore interface {
	// CreateAccount inserts a new account, minting an ID if absent.
	CreateAccount(ctx context.Context, acct *domain.Account) error

	// GetAccount retrieves a single account by its ID.
	GetAccount(ctx context.Context, id string) (*domain.Account, error)

	// ListAccounts returns all accounts owned by the user, active first,
	// then by creation time.
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)

	// ArchiveAccount marks an account as archived.
	ArchiveAccount(ctx context.Context, id string) error
}

// TradeStore persists and retrieves journaled trades.
type TradeStore interface {
	// SaveTrade inserts a trade, minting an ID if absent.
	SaveTrade(ctx context.Context, trade *domain.Trade) error

	// ListTrades returns all trades on an account ordered by execution time.
	ListTrades(ctx context.Context, accountID string) ([]domain.Trade, error)
}

// SubscriptionStore persists billing records.
type SubscriptionStore interface {
	// UpsertSubscription inserts or replaces the record for a user.
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error

	// GetSubscription returns the record for a user, or ErrNotFound.
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
}
