/*
Package jsonfile persists the ledger snapshot as a single JSON document.

PURPOSE:
  The simplest durable store: the snapshot layout

    {"users": [{id, fullName, email, credentialSecret,
                accounts: [{number, balance}]}], "nextUserId": n}

  written to one file. It plays the role a browser's local storage plays
  for a front-end mock, and doubles as the export format of the
  snapshot exporter.

ATOMIC WRITES:
  Save writes path+".tmp" first and renames it over path, so an
  interrupted write never leaves a half-written snapshot behind.

CORRUPT DATA:
  A missing file or a file that does not parse loads as the empty
  snapshot. Corruption is logged, never returned.

This store has no journal; it implements ledger.Store only.
*/
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/warp/mockbank/ledger"
)

type Store struct {
	path string
	mu   sync.Mutex
	log  *slog.Logger
}

func New(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{path: path, log: log}
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ledger.EmptySnapshot(), nil
	}
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap, err := ledger.DecodeSnapshot(b)
	if err != nil {
		s.log.WarnContext(ctx, "snapshot is malformed, starting empty", "path", s.path, "error", err)
		return ledger.EmptySnapshot(), nil
	}
	return snap, nil
}

func (s *Store) Save(_ context.Context, snap ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteFile(s.path, snap)
}

// WriteFile writes snap to path atomically (temp file + rename).
func WriteFile(path string, snap ledger.Snapshot) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap.Normalize()); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return os.Rename(tmp, path)
}
