/*
Package postgres provides a PostgreSQL-backed implementation of the ledger
stores using pgx.

PURPOSE:
  The same normalized layout as store/sqlite (users, accounts, meta,
  journal) for deployments that already run PostgreSQL. Only dialect
  differences separate the two.

CONCURRENCY:
  The engine serializes writers itself. Save additionally takes a
  transaction-scoped advisory lock so two engine processes pointed at
  the same database cannot interleave snapshot replacements.

USAGE:
  store, err := postgres.New(ctx, "postgres://localhost/mockbank", logger)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite/sqlite.go: The reference layout
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/mockbank/ledger"
)

// saveLockKey identifies the advisory lock held while a snapshot is replaced.
const saveLockKey = 0x6d6f636b62616e6b

type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New connects to dsn and creates the schema if needed.
func New(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{pool: pool, log: log}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		credential_secret TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (lower(email));

	CREATE TABLE IF NOT EXISTS accounts (
		number TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		balance NUMERIC NOT NULL CHECK (balance >= 0)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts (user_id, position);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS journal (
		id TEXT PRIMARY KEY,
		seq BIGSERIAL,
		account_number TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		balance_after NUMERIC NOT NULL,
		counterparty TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal (account_number, seq DESC);
	`)
	return err
}

// Load reads the whole snapshot.
func (s *Store) Load(ctx context.Context) (ledger.Snapshot, error) {
	snap := ledger.EmptySnapshot()

	rows, err := s.pool.Query(ctx, `SELECT id, full_name, email, credential_secret FROM users ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("failed to query users: %w", err)
	}
	index := make(map[ledger.UserID]int)
	for rows.Next() {
		var (
			id int64
			u  ledger.User
		)
		if err := rows.Scan(&id, &u.FullName, &u.Email, &u.CredentialSecret); err != nil {
			rows.Close()
			return snap, fmt.Errorf("failed to scan user: %w", err)
		}
		u.ID = ledger.UserID(id)
		u.Accounts = []ledger.Account{}
		index[u.ID] = len(snap.Users)
		snap.Users = append(snap.Users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = s.pool.Query(ctx, `SELECT number, user_id, balance::text FROM accounts ORDER BY user_id, position`)
	if err != nil {
		return snap, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			number  string
			userID  int64
			balance string
		)
		if err := rows.Scan(&number, &userID, &balance); err != nil {
			return snap, fmt.Errorf("failed to scan account: %w", err)
		}
		i, ok := index[ledger.UserID(userID)]
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
	err = s.pool.QueryRow(ctx, `SELECT value FROM meta WHERE key = 'next_user_id'`).Scan(&next)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return snap, fmt.Errorf("failed to read meta: %w", err)
	default:
		if n, perr := strconv.ParseInt(next, 10, 64); perr == nil {
			snap.NextUserID = ledger.UserID(n)
		}
	}

	return snap.Normalize(), nil
}

func (s *Store) Save(ctx context.Context, snap ledger.Snapshot) error {
	return s.SaveWithEntries(ctx, snap, nil)
}

// SaveWithEntries replaces the snapshot and appends entries in one transaction.
func (s *Store) SaveWithEntries(ctx context.Context, snap ledger.Snapshot, entries []ledger.Entry) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(saveLockKey)); err != nil {
			return fmt.Errorf("failed to lock snapshot: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM accounts`); err != nil {
			return fmt.Errorf("failed to clear accounts: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("failed to clear users: %w", err)
		}

		batch := &pgx.Batch{}
		for _, u := range snap.Users {
			batch.Queue(`INSERT INTO users (id, full_name, email, credential_secret) VALUES ($1, $2, $3, $4)`,
				int64(u.ID), u.FullName, u.Email, u.CredentialSecret)
			for pos, a := range u.Accounts {
				batch.Queue(`INSERT INTO accounts (number, user_id, position, balance) VALUES ($1, $2, $3, $4::numeric)`,
					string(a.Number), int64(u.ID), pos, a.Balance.Decimal.String())
			}
		}
		batch.Queue(`
			INSERT INTO meta (key, value) VALUES ('next_user_id', $1)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			strconv.FormatInt(int64(snap.NextUserID), 10))
		for _, e := range entries {
			batch.Queue(`
				INSERT INTO journal (id, account_number, kind, amount, balance_after, counterparty, created_at)
				VALUES ($1, $2, $3, $4::numeric, $5::numeric, NULLIF($6, ''), $7)`,
				e.ID, string(e.AccountNumber), string(e.Kind),
				e.Amount.Decimal.String(), e.BalanceAfter.Decimal.String(),
				string(e.Counterparty), e.CreatedAt)
		}

		return tx.SendBatch(ctx, batch).Close()
	})
}

// Entries returns the account's journal entries, newest first.
func (s *Store) Entries(ctx context.Context, number ledger.AccountNumber, limit int) ([]ledger.Entry, error) {
	query := `
		SELECT id, account_number, kind, amount::text, balance_after::text, COALESCE(counterparty, ''), created_at
		FROM journal
		WHERE account_number = $1
		ORDER BY seq DESC`
	args := []any{string(number)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		var (
			e                                   ledger.Entry
			account, kind, amount, after, party string
		)
		if err := rows.Scan(&e.ID, &account, &kind, &amount, &after, &party, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.AccountNumber = ledger.AccountNumber(account)
		e.Kind = ledger.EntryKind(kind)
		e.Amount = parseMoney(amount)
		e.BalanceAfter = parseMoney(after)
		e.Counterparty = ledger.AccountNumber(party)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func parseMoney(value string) ledger.Money {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return ledger.Zero
	}
	return ledger.NewMoney(d)
}
