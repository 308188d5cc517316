// Package domain defines the core types shared across mytradelog: user
// sessions, trading accounts, journal trades, and subscription records.
package domain

import "time"

// AccountType classifies the kind of trading account being journaled.
type AccountType string

const (
	AccountPropFirm AccountType = "prop_firm"
	AccountPersonal AccountType = "personal"
	AccountFunded   AccountType = "funded"
	AccountDemo     AccountType = "demo"
)

// AccountStatus is the lifecycle state of an account. Archived accounts are
// kept for history but can never be selected as the active account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountArchived AccountStatus = "archived"
)

// Account is a single trading account owned by a user. Immutable from the
// view layer's point of view except for which one is currently active.
type Account struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Name            string        `json:"name"`
	Type            AccountType   `json:"type"`
	Status          AccountStatus `json:"status"`
	Currency        string        `json:"currency"`
	StartingBalance float64       `json:"starting_balance"`
	BrokerName      string        `json:"broker_name,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Session is the authentication state supplied by the session source.
// AuthLoading is true while a login, logout, or token refresh is in flight.
type Session struct {
	UserID      string `json:"user_id,omitempty"`
	AuthLoading bool   `json:"auth_loading"`
}

// Settled reports whether the auth check has finished, signed in or not.
func (s Session) Settled() bool { return !s.AuthLoading }

// SignedIn reports whether a user is authenticated.
func (s Session) SignedIn() bool { return !s.AuthLoading && s.UserID != "" }

// TradeSide is the direction of a journaled execution.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Trade is a single journaled execution on an account.
type Trade struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Symbol     string    `json:"symbol"`
	Side       TradeSide `json:"side"`
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price"`
	PnL        float64   `json:"pnl"`
	ExecutedAt time.Time `json:"executed_at"`
	Notes      string    `json:"notes,omitempty"`
}

// Subscription is the billing record for a user. A nil record means the user
// has never subscribed.
type Subscription struct {
	UserID           string    `json:"user_id"`
	Status           string    `json:"status"`
	CurrentPeriodEnd time.Time `json:"current_period_end"`
}

// ActiveAt reports whether the subscription grants access at the given time.
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s != nil && s.Status == "active" && s.CurrentPeriodEnd.After(now)
}

// AccountData is the renderable trade set for one account, as held by the
// per-account cache.
type AccountData struct {
	Trades          []Trade `json:"trades"`
	StartingBalance float64 `json:"starting_balance"`
}

// Empty reports whether the data set has no trades.
func (d AccountData) Empty() bool { return len(d.Trades) == 0 }
