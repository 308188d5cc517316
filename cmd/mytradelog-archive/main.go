// Command mytradelog-archive copies journaled trades from the SQLite
// database into per-account monthly Parquet files. Archives merge and
// de-duplicate on trade ID, so repeated runs converge.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/config"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/store"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/util"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath = flag.String("config", "config/mytradelog.yaml", "config file path")
		userID  = flag.String("user", "local", "owner of the accounts to archive")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := util.NewDefaultLogger(cfg.Logging.Level, cfg.Logging.Format)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer db.Close()

	archive := store.NewParquetArchive(cfg.Storage.ArchiveDir)
	ctx := context.Background()

	accounts, err := db.ListAccounts(ctx, *userID)
	if err != nil {
		log.Fatalf("listing accounts: %v", err)
	}

	var total, archived int
	for _, acct := range accounts {
		trades, err := db.ListTrades(ctx, acct.ID)
		if err != nil {
			log.Fatalf("listing trades for %s: %v", acct.ID, err)
		}
		if len(trades) == 0 {
			continue
		}
		if err := archive.WriteTrades(trades); err != nil {
			log.Fatalf("archiving %s: %v", acct.ID, err)
		}
		total += len(trades)
		archived++
		logger.Info("account archived",
			"accountID", acct.ID, "name", acct.Name, "trades", len(trades))
	}

	logger.Info("archive complete",
		"dir", cfg.Storage.ArchiveDir, "accounts", archived, "trades", total)
}
