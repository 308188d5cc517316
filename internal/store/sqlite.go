package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
)

// Compile-time interface checks.
var _ AccountStore = (*SQLiteStore)(nil)
var _ TradeStore = (*SQLiteStore)(nil)
var _ SubscriptionStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	name             TEXT NOT NULL,
	type             TEXT NOT NULL,
	status           TEXT NOT NULL,
	currency         TEXT NOT NULL,
	starting_balance REAL NOT NULL,
	broker_name      TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

CREATE TABLE IF NOT EXISTS trades (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	qty         REAL NOT NULL,
	price       REAL NOT NULL,
	pnl         REAL NOT NULL,
	executed_at INTEGER NOT NULL,
	notes       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account_id, executed_at);

CREATE TABLE IF NOT EXISTS subscriptions (
	user_id            TEXT PRIMARY KEY,
	status             TEXT NOT NULL,
	current_period_end INTEGER NOT NULL
);
`

// SQLiteStore implements AccountStore, TradeStore, and SubscriptionStore
// backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and applies
// the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// AccountStore implementation
// ---------------------------------------------------------------------------

// CreateAccount inserts a new account, minting an ID if absent.
func (s *SQLiteStore) CreateAccount(ctx context.Context, acct *domain.Account) error {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if acct.Status == "" {
		acct.Status = domain.AccountActive
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, type, status, currency, starting_balance, broker_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.UserID, acct.Name, string(acct.Type), string(acct.Status),
		acct.Currency, acct.StartingBalance, acct.BrokerName, acct.CreatedAt.UnixMilli(),
	)
	return err
}

// GetAccount retrieves a single account by its ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, type, status, currency, starting_balance, broker_name, created_at
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// ListAccounts returns all accounts owned by the user, active first, then by
// creation time.
func (s *SQLiteStore) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, status, currency, starting_balance, broker_name, created_at
		FROM accounts WHERE user_id = ?
		ORDER BY CASE status WHEN 'active' THEN 0 ELSE 1 END, created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// ArchiveAccount marks an account as archived.
func (s *SQLiteStore) ArchiveAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET status = ? WHERE id = ?`, string(domain.AccountArchived), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*domain.Account, error) {
	var a domain.Account
	var typ, status string
	var createdAt int64
	err := r.Scan(&a.ID, &a.UserID, &a.Name, &typ, &status, &a.Currency,
		&a.StartingBalance, &a.BrokerName, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(typ)
	a.Status = domain.AccountStatus(status)
	a.CreatedAt = time.UnixMilli(createdAt)
	return &a, nil
}

// ---------------------------------------------------------------------------
// TradeStore implementation
// ---------------------------------------------------------------------------

// SaveTrade inserts a trade, minting an ID if absent. An existing ID is
// replaced, which makes broker re-imports idempotent.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trades (id, account_id, symbol, side, qty, price, pnl, executed_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.AccountID, trade.Symbol, string(trade.Side),
		trade.Qty, trade.Price, trade.PnL, trade.ExecutedAt.UnixMilli(), trade.Notes,
	)
	return err
}

// ListTrades returns all trades on an account ordered by execution time.
func (s *SQLiteStore) ListTrades(ctx context.Context, accountID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, symbol, side, qty, price, pnl, executed_at, notes
		FROM trades WHERE account_id = ? ORDER BY executed_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		var executedAt int64
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Symbol, &side, &t.Qty,
			&t.Price, &t.PnL, &executedAt, &t.Notes); err != nil {
			return nil, err
		}
		t.Side = domain.TradeSide(side)
		t.ExecutedAt = time.UnixMilli(executedAt)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ---------------------------------------------------------------------------
// SubscriptionStore implementation
// ---------------------------------------------------------------------------

// UpsertSubscription inserts or replaces the billing record for a user.
func (s *SQLiteStore) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO subscriptions (user_id, status, current_period_end)
		VALUES (?, ?, ?)`,
		sub.UserID, sub.Status, sub.CurrentPeriodEnd.UnixMilli(),
	)
	return err
}

// GetSubscription returns the billing record for a user, or ErrNotFound.
func (s *SQLiteStore) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	var periodEnd int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, status, current_period_end FROM subscriptions WHERE user_id = ?`,
		userID).Scan(&sub.UserID, &sub.Status, &periodEnd)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sub.CurrentPeriodEnd = time.UnixMilli(periodEnd)
	return &sub, nil
}
