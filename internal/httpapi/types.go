package httpapi

import (
	"time"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
)

// AccountsResponse lists the signed-in user's accounts.
type AccountsResponse struct {
	Accounts []domain.Account `json:"accounts"`
	ActiveID string           `json:"active_id,omitempty"`
}

// CreateAccountRequest is the body for POST /api/accounts.
type CreateAccountRequest struct {
	Name            string             `json:"name"`
	Type            domain.AccountType `json:"type"`
	Currency        string             `json:"currency"`
	StartingBalance float64            `json:"starting_balance"`
	BrokerName      string             `json:"broker_name"`
}

// RenderResponse is the data set a journal view should draw for an account.
type RenderResponse struct {
	AccountID       string         `json:"account_id"`
	FromPrevious    bool           `json:"from_previous"`
	Trades          []domain.Trade `json:"trades"`
	StartingBalance float64        `json:"starting_balance"`
	TotalPnL        float64        `json:"total_pnl"`
}

// CreateTradeRequest is the body for POST /api/accounts/{accountID}/trades.
type CreateTradeRequest struct {
	Symbol     string           `json:"symbol"`
	Side       domain.TradeSide `json:"side"`
	Qty        float64          `json:"qty"`
	Price      float64          `json:"price"`
	PnL        float64          `json:"pnl"`
	ExecutedAt time.Time        `json:"executed_at"`
	Notes      string           `json:"notes,omitempty"`
}

// BootResponse reports the splash overlay phase.
type BootResponse struct {
	State string `json:"state"`
}

// GaugeResponse is the animated total PnL display value and its phase.
type GaugeResponse struct {
	Value float64 `json:"value"`
	Phase string  `json:"phase"`
}
