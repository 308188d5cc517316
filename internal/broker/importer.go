// Package broker imports trade executions from brokerage APIs into the
// journal. Each brokerage gets an Importer implementation; the journal core
// never talks to a brokerage directly.
package broker

import (
	"context"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
)

// Result is one account's worth of imported data.
type Result struct {
	// Trades are the filled executions, oldest first.
	Trades []domain.Trade
	// Equity is the account's current equity at import time.
	Equity float64
}

// Importer pulls executions and balances from a brokerage.
type Importer interface {
	// Name returns the brokerage identifier (e.g. "alpaca").
	Name() string

	// Import fetches filled executions and the current equity for an
	// account. Trade IDs are stable across runs so re-imports are
	// idempotent.
	Import(ctx context.Context, account domain.Account) (*Result, error)
}
