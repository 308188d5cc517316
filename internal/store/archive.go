package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
)

// ParquetArchive writes immutable per-account trade history to Parquet files,
// one file per account per month.
type ParquetArchive struct {
	DataDir string
}

// NewParquetArchive creates an archive rooted at the given data directory.
func NewParquetArchive(dataDir string) *ParquetArchive {
	return &ParquetArchive{DataDir: dataDir}
}

// TradeArchiveRecord is the Parquet schema for archived trades.
type TradeArchiveRecord struct {
	ID         string  `parquet:"id"`
	AccountID  string  `parquet:"account_id"`
	Symbol     string  `parquet:"symbol"`
	Side       string  `parquet:"side"`
	Qty        float64 `parquet:"qty"`
	Price      float64 `parquet:"price"`
	PnL        float64 `parquet:"pnl"`
	ExecutedAt int64   `parquet:"executed_at,timestamp(millisecond)"` // Unix ms
}

// WriteTrades archives trades grouped by account and month, merging with any
// records already on disk. Re-archiving the same trades is a no-op.
func (a *ParquetArchive) WriteTrades(trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	type key struct {
		accountID string
		month     string // YYYY-MM
	}
	groups := make(map[key][]TradeArchiveRecord)
	for _, t := range trades {
		k := key{accountID: t.AccountID, month: t.ExecutedAt.Format("2006-01")}
		groups[k] = append(groups[k], TradeArchiveRecord{
			ID:         t.ID,
			AccountID:  t.AccountID,
			Symbol:     t.Symbol,
			Side:       string(t.Side),
			Qty:        t.Qty,
			Price:      t.Price,
			PnL:        t.PnL,
			ExecutedAt: t.ExecutedAt.UnixMilli(),
		})
	}

	for k, records := range groups {
		path := a.tradePath(k.accountID, k.month)

		existing, _ := readParquetFile[TradeArchiveRecord](path)
		merged := mergeArchiveRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("archiving trades for %s/%s: %w", k.accountID, k.month, err)
		}
	}
	return nil
}

// ReadTrades reads archived trades for an account within [start, end].
func (a *ParquetArchive) ReadTrades(accountID string, start, end time.Time) ([]domain.Trade, error) {
	var trades []domain.Trade
	for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end); m = m.AddDate(0, 1, 0) {
		path := a.tradePath(accountID, m.Format("2006-01"))
		records, err := readParquetFile[TradeArchiveRecord](path)
		if err != nil {
			// No archive file for this month.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.ExecutedAt)
			if ts.Before(start) || ts.After(end) {
				continue
			}
			trades = append(trades, domain.Trade{
				ID:         r.ID,
				AccountID:  r.AccountID,
				Symbol:     r.Symbol,
				Side:       domain.TradeSide(r.Side),
				Qty:        r.Qty,
				Price:      r.Price,
				PnL:        r.PnL,
				ExecutedAt: ts,
			})
		}
	}
	return trades, nil
}

// ListAccounts returns all account ids present in the archive.
func (a *ParquetArchive) ListAccounts() ([]string, error) {
	dir := filepath.Join(a.DataDir, "accounts")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// tradePath returns the filesystem path for an archive file.
// Layout: <dataDir>/accounts/<accountID>/<YYYY-MM>.parquet
func (a *ParquetArchive) tradePath(accountID, month string) string {
	return filepath.Join(a.DataDir, "accounts", accountID, month+".parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeArchiveRecords deduplicates records by trade id, preferring incoming
// over existing. Results are sorted by execution time.
func mergeArchiveRecords(existing, incoming []TradeArchiveRecord) []TradeArchiveRecord {
	seen := make(map[string]TradeArchiveRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}

	merged := make([]TradeArchiveRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ExecutedAt < merged[j].ExecutedAt
	})
	return merged
}
