/*
bank.go - The Bank aggregate and its commit cycle

PURPOSE:
  Bank is the only entry point into the ledger. It owns the Store and
  runs every operation through the same cycle:

    1. Load the snapshot
    2. Copy it
    3. Validate, then mutate the copy
    4. Persist the copy (and its journal entries) with one Save

  If step 3 fails nothing is saved, so the persisted state is exactly the
  one before the call. Both legs of a transfer live in the same copy, so
  there is no observable state with only one leg applied.

CONCURRENCY:
  A single mutex serializes the whole cycle. The engine is single-writer;
  the mutex is what keeps that true when the HTTP server fans requests
  out over goroutines.

SEE ALSO:
  - registry.go, accounts.go, transactions.go: The operations
  - store.go: Persistence interfaces
*/
package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Bank is the ledger engine.
type Bank struct {
	mu    sync.Mutex
	store Store
	log   *slog.Logger

	hashCost  int
	newNumber NumberGenerator
	newID     func() string
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// Option configures a Bank.
type Option func(*Bank)

// WithLogger sets the structured logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bank) { b.log = l }
}

// WithHashCost sets the bcrypt cost used for credential secrets.
func WithHashCost(cost int) Option {
	return func(b *Bank) { b.hashCost = cost }
}

// WithNumberGenerator replaces the random account number source.
func WithNumberGenerator(g NumberGenerator) Option {
	return func(b *Bank) { b.newNumber = g }
}

// WithClock replaces time.Now for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bank) { b.now = now }
}

// New creates a Bank over store.
func New(store Store, opts ...Option) *Bank {
	b := &Bank{
		store:     store,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		hashCost:  bcrypt.DefaultCost,
		newNumber: RandomAccountNumber,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshot returns a copy of the current persisted snapshot.
func (b *Bank) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := b.view(ctx, func(s *Snapshot) error {
		out = s.Clone()
		return nil
	})
	return out, err
}

// view runs fn against the current snapshot without persisting.
func (b *Bank) view(ctx context.Context, fn func(*Snapshot) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, err := b.store.Load(ctx)
	if err != nil {
		return err
	}
	return fn(&snap)
}

// update runs fn against a private copy of the snapshot and persists the
// copy only if fn succeeds. fn returns the journal entries to append.
func (b *Bank) update(ctx context.Context, fn func(*Snapshot) ([]Entry, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	loaded, err := b.store.Load(ctx)
	if err != nil {
		return err
	}
	snap := loaded.Clone()

	entries, err := fn(&snap)
	if err != nil {
		return err
	}
	return b.commit(ctx, snap, entries)
}

func (b *Bank) commit(ctx context.Context, snap Snapshot, entries []Entry) error {
	now := b.now().UTC()
	for i := range entries {
		entries[i].ID = b.newID()
		entries[i].CreatedAt = now
	}
	if js, ok := b.store.(JournalStore); ok {
		return js.SaveWithEntries(ctx, snap, entries)
	}
	return b.store.Save(ctx, snap)
}
