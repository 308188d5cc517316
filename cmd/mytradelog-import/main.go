// Command mytradelog-import pulls filled executions from a linked brokerage
// into the journal database. Re-running is safe: trade IDs come from the
// broker, so existing rows are replaced, not duplicated.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/broker"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/config"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/store"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/util"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath   = flag.String("config", "config/mytradelog.yaml", "config file path")
		userID    = flag.String("user", "local", "owner of the accounts to import")
		accountID = flag.String("account", "", "import a single account by ID")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := util.NewDefaultLogger(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials not configured (APCA_API_KEY_ID / APCA_API_SECRET_KEY)")
	}

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	accounts, err := selectAccounts(ctx, db, *userID, *accountID)
	if err != nil {
		log.Fatalf("selecting accounts: %v", err)
	}
	if len(accounts) == 0 {
		logger.Info("no broker-linked accounts to import", "user", *userID)
		return
	}

	limiter := util.NewRateLimiter(cfg.Import.RateLimitPerMin)
	importer := broker.NewAlpacaImporter(
		cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, limiter, logger)
	runner := broker.NewImportRunner(importer, db, cfg.Import.MaxWorkers, logger)

	n, err := runner.Run(ctx, accounts)
	if err != nil {
		logger.Error("import failed", "error", err, "saved", n)
		os.Exit(1)
	}
	logger.Info("import complete", "accounts", len(accounts), "trades", n)
}

// selectAccounts picks the broker-linked active accounts to import, or the
// single requested one.
func selectAccounts(ctx context.Context, db *store.SQLiteStore, userID, accountID string) ([]domain.Account, error) {
	if accountID != "" {
		acct, err := db.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return []domain.Account{*acct}, nil
	}

	all, err := db.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []domain.Account
	for _, a := range all {
		if a.Status == domain.AccountActive && a.BrokerName != "" {
			out = append(out, a)
		}
	}
	return out, nil
}
