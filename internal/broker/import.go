package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/store"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/util"
)

// ImportRunner imports a set of accounts concurrently and persists the
// results.
type ImportRunner struct {
	importer   Importer
	trades     store.TradeStore
	maxWorkers int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewImportRunner creates a runner. maxWorkers bounds concurrent account
// imports; values below one run sequentially.
func NewImportRunner(importer Importer, trades store.TradeStore, maxWorkers int, log *slog.Logger) *ImportRunner {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ImportRunner{
		importer:   importer,
		trades:     trades,
		maxWorkers: maxWorkers,
		retryDelay: time.Second,
		log:        log,
	}
}

// Run imports every account and saves the resulting trades. A failing
// account cancels the remaining ones; transient fetch errors are retried
// before giving up.
func (r *ImportRunner) Run(ctx context.Context, accounts []domain.Account) (int, error) {
	var saved int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxWorkers)

	results := make(chan int, len(accounts))
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			n, err := r.importOne(ctx, account)
			if err != nil {
				return fmt.Errorf("import %s (%s): %w", account.Name, r.importer.Name(), err)
			}
			results <- n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(saved), err
	}
	close(results)
	for n := range results {
		saved += int64(n)
	}
	return int(saved), nil
}

func (r *ImportRunner) importOne(ctx context.Context, account domain.Account) (int, error) {
	var result *Result
	err := util.Retry(ctx, 3, r.retryDelay, func(ctx context.Context) error {
		var err error
		result, err = r.importer.Import(ctx, account)
		return err
	})
	if err != nil {
		return 0, err
	}

	for i := range result.Trades {
		if err := r.trades.SaveTrade(ctx, &result.Trades[i]); err != nil {
			return 0, fmt.Errorf("save trade %s: %w", result.Trades[i].ID, err)
		}
	}
	r.log.Info("account imported",
		"accountID", account.ID, "trades", len(result.Trades), "equity", result.Equity)
	return len(result.Trades), nil
}
