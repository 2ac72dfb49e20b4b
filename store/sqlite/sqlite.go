/*
Package sqlite provides a SQLite-backed implementation of the ledger stores.

PURPOSE:
  Implements ledger.Store and ledger.JournalStore using SQLite. The
  snapshot is kept in normalized tables rather than one blob, so it can
  be inspected with any SQLite client.

INTERFACES IMPLEMENTED:
  ledger.Store:        Load/Save of the whole snapshot
  ledger.JournalStore: Snapshot + journal entries in one SQL transaction

KEY TABLES:
  users:    One row per user (credential_secret holds a bcrypt hash)
  accounts: One row per account, position keeps per-user ordering
  meta:     Key/value pairs, currently next_user_id
  journal:  Append-only balance change records

SAVE SEMANTICS:
  Save replaces users/accounts/meta entirely inside one transaction.
  The journal is never updated or deleted, only appended to.

CORRUPT DATA:
  Rows that cannot be parsed (unknown owner, unreadable balance) are
  skipped with a warning, matching the "malformed means empty" rule
  for the snapshot as a whole.

USAGE:
  store, err := sqlite.New("./mockbank.db", logger)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  bank := ledger.New(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/mockbank/ledger"
)

// Store implements the ledger storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *slog.Logger
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection.
	db.SetMaxOpenConns(1)

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	store := &Store{db: db, log: log}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		credential_secret TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
		ON users(email COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS accounts (
		number TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		balance TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user
		ON accounts(user_id, position);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Journal (append-only)
	CREATE TABLE IF NOT EXISTS journal (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		account_number TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		counterparty TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_account
		ON journal(account_number, seq DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT STORE (ledger.Store interface)
// =============================================================================

// Load reads the whole snapshot.
func (s *Store) Load(ctx context.Context) (ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := ledger.EmptySnapshot()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, full_name, email, credential_secret FROM users ORDER BY id ASC`)
	if err != nil {
		return snap, fmt.Errorf("failed to query users: %w", err)
	}
	index := make(map[ledger.UserID]int)
	for rows.Next() {
		var u ledger.User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.CredentialSecret); err != nil {
			rows.Close()
			return snap, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Accounts = []ledger.Account{}
		index[u.ID] = len(snap.Users)
		snap.Users = append(snap.Users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT number, user_id, balance FROM accounts ORDER BY user_id ASC, position ASC`)
	if err != nil {
		return snap, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			number  string
			userID  ledger.UserID
			balance string
		)
		if err := rows.Scan(&number, &userID, &balance); err != nil {
			return snap, fmt.Errorf("failed to scan account: %w", err)
		}
		i, ok := index[userID]
		if !ok {
			s.log.WarnContext(ctx, "skipping account without owner", "account", number, "user_id", userID)
			continue
		}
		d, err := decimal.NewFromString(balance)
		if err != nil {
			s.log.WarnContext(ctx, "skipping account with unreadable balance", "account", number, "error", err)
			continue
		}
		snap.Users[i].Accounts = append(snap.Users[i].Accounts,
			ledger.Account{Number: ledger.AccountNumber(number), Balance: ledger.NewMoney(d)})
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	var next string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'next_user_id'`).Scan(&next)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return snap, fmt.Errorf("failed to read meta: %w", err)
	default:
		if n, perr := strconv.ParseInt(next, 10, 64); perr == nil {
			snap.NextUserID = ledger.UserID(n)
		}
	}

	return snap.Normalize(), nil
}

// Save replaces the whole snapshot.
func (s *Store) Save(ctx context.Context, snap ledger.Snapshot) error {
	return s.SaveWithEntries(ctx, snap, nil)
}

// =============================================================================
// JOURNAL STORE (ledger.JournalStore interface)
// =============================================================================

// SaveWithEntries replaces the snapshot and appends entries in one transaction.
func (s *Store) SaveWithEntries(ctx context.Context, snap ledger.Snapshot, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := writeSnapshot(ctx, sqlTx, snap); err != nil {
		return err
	}
	if err := appendEntries(ctx, sqlTx, entries); err != nil {
		return err
	}

	return sqlTx.Commit()
}

func writeSnapshot(ctx context.Context, tx *sql.Tx, snap ledger.Snapshot) error {
	for _, q := range []string{"DELETE FROM accounts", "DELETE FROM users"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}
	}

	for _, u := range snap.Users {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, full_name, email, credential_secret) VALUES (?, ?, ?, ?)`,
			u.ID, u.FullName, u.Email, u.CredentialSecret)
		if err != nil {
			return fmt.Errorf("failed to write user %d: %w", u.ID, err)
		}
		for pos, a := range u.Accounts {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO accounts (number, user_id, position, balance) VALUES (?, ?, ?, ?)`,
				a.Number, u.ID, pos, a.Balance.Decimal.String())
			if err != nil {
				return fmt.Errorf("failed to write account %s: %w", a.Number, err)
			}
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('next_user_id', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.FormatInt(int64(snap.NextUserID), 10))
	if err != nil {
		return fmt.Errorf("failed to write meta: %w", err)
	}
	return nil
}

func appendEntries(ctx context.Context, tx *sql.Tx, entries []ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM journal`).Scan(&seq); err != nil {
		return fmt.Errorf("failed to read journal sequence: %w", err)
	}

	for _, e := range entries {
		seq++
		_, err := tx.ExecContext(ctx, `
			INSERT INTO journal
			(id, seq, account_number, kind, amount, balance_after, counterparty, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, seq, e.AccountNumber, e.Kind,
			e.Amount.Decimal.String(), e.BalanceAfter.Decimal.String(),
			nullString(string(e.Counterparty)),
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to append journal entry: %w", err)
		}
	}
	return nil
}

// Entries returns the account's journal entries, newest first.
func (s *Store) Entries(ctx context.Context, number ledger.AccountNumber, limit int) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, account_number, kind, amount, balance_after, counterparty, created_at
		FROM journal
		WHERE account_number = ?
		ORDER BY seq DESC
	`
	args := []any{number}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		var (
			e            ledger.Entry
			amount       string
			balanceAfter string
			counterparty sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&e.ID, &e.AccountNumber, &e.Kind, &amount, &balanceAfter, &counterparty, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Amount = parseMoney(amount)
		e.BalanceAfter = parseMoney(balanceAfter)
		e.Counterparty = ledger.AccountNumber(counterparty.String)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseMoney(value string) ledger.Money {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return ledger.Zero
	}
	return ledger.NewMoney(d)
}
