/*
store.go - Persistence interfaces for the ledger snapshot

PURPOSE:
  Defines the interface between the engine and whatever holds the data.
  The engine only ever loads the whole snapshot and saves the whole
  snapshot. There is no partial or incremental persistence.

KEY INTERFACES:
  Store:        Load/Save of the full snapshot
  JournalStore: Store plus an append-only journal written atomically
                with the snapshot

LOAD CONTRACT:
  A missing or malformed snapshot is not an error. Implementations return
  EmptySnapshot() ({users: [], nextUserId: 1}) instead.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests and dev
  - store/sqlite: SQLite tables
  - store/jsonfile: A JSON document on disk
  - store/postgres: PostgreSQL via pgx

SEE ALSO:
  - bank.go: The commit cycle that calls Save
*/
package ledger

import "context"

// Store persists the ledger snapshot.
type Store interface {
	// Load returns the persisted snapshot, or EmptySnapshot() if absent
	// or corrupt.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces all persisted content with snap.
	Save(ctx context.Context, snap Snapshot) error
}

// JournalStore extends Store with the transaction journal.
type JournalStore interface {
	Store

	// SaveWithEntries persists snap and appends entries atomically.
	// Either both happen or neither does.
	SaveWithEntries(ctx context.Context, snap Snapshot, entries []Entry) error

	// Entries returns journal entries for an account, newest first.
	// limit <= 0 means no limit.
	Entries(ctx context.Context, number AccountNumber, limit int) ([]Entry, error)
}
