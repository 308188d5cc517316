package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/util"
)

// Compile-time interface check.
var _ Importer = (*AlpacaImporter)(nil)

// ordersPageLimit is the Alpaca per-request maximum for order listings.
const ordersPageLimit = 500

// AlpacaImporter implements Importer against the Alpaca trading API.
type AlpacaImporter struct {
	client  *alpaca.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaImporter creates an importer with explicit credentials. limiter
// paces API calls and may be nil.
func NewAlpacaImporter(apiKey, apiSecret, baseURL string, limiter *util.RateLimiter, log *slog.Logger) *AlpacaImporter {
	return &AlpacaImporter{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		limiter: limiter,
		log:     log,
	}
}

// Name returns "alpaca".
func (a *AlpacaImporter) Name() string {
	return "alpaca"
}

// Import fetches the account snapshot and all closed orders, keeping the
// filled ones. The Alpaca order ID becomes the trade ID, so importing the
// same account twice never duplicates rows.
func (a *AlpacaImporter) Import(ctx context.Context, account domain.Account) (*Result, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	acct, err := a.client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("alpaca account: %w", err)
	}
	equity, _ := acct.Equity.Float64()

	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	orders, err := a.client.GetOrders(alpaca.GetOrdersRequest{
		Status: "closed",
		Limit:  ordersPageLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca orders: %w", err)
	}

	trades := make([]domain.Trade, 0, len(orders))
	for i := range orders {
		t, ok := mapOrder(&orders[i], account.ID)
		if !ok {
			continue
		}
		trades = append(trades, t)
	}

	a.log.Info("alpaca import complete",
		"accountID", account.ID, "orders", len(orders), "trades", len(trades))
	return &Result{Trades: trades, Equity: equity}, nil
}

func (a *AlpacaImporter) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

// mapOrder converts a filled Alpaca order into a journal trade. Unfilled
// and cancelled orders are skipped.
func mapOrder(o *alpaca.Order, accountID string) (domain.Trade, bool) {
	if o.FilledAt == nil || o.FilledQty.IsZero() {
		return domain.Trade{}, false
	}

	price := decimal.Zero
	if o.FilledAvgPrice != nil {
		price = *o.FilledAvgPrice
	}

	side := domain.SideBuy
	if strings.EqualFold(string(o.Side), "sell") {
		side = domain.SideSell
	}

	qty, _ := o.FilledQty.Float64()
	px, _ := price.Float64()
	return domain.Trade{
		ID:         o.ID,
		AccountID:  accountID,
		Symbol:     o.Symbol,
		Side:       side,
		Qty:        qty,
		Price:      px,
		ExecutedAt: *o.FilledAt,
	}, true
}
