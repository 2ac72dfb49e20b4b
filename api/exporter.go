/*
exporter.go - Periodic snapshot exporter

PURPOSE:
  Writes the ledger snapshot to a JSON file on a fixed interval, so a
  server running on sqlite or postgres also leaves behind a portable
  document in the jsonfile layout. The exported file can be loaded
  directly with the jsonfile store.

DESIGN:
  - Runs until its context is cancelled (cmd/server runs it in an errgroup)
  - Exports once on start, then on every tick, then once more on shutdown
  - Reads through Bank.Snapshot, so it takes the same lock as actions
  - Export failures are logged and retried on the next tick

CONFIGURATION:
  - Interval: How often to export (default: 1 minute)
  - Path: Destination file; an empty path disables the exporter

USAGE:
  exporter := NewSnapshotExporter(bank, "data/export.json", log)
  go exporter.Run(ctx)

SEE ALSO:
  - store/jsonfile: The file format and atomic write
  - cmd/server/main.go: Lifecycle wiring
*/
package api

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/mockbank/ledger"
	"github.com/warp/mockbank/store/jsonfile"
)

// SnapshotExporter periodically exports the ledger snapshot.
type SnapshotExporter struct {
	Bank     *ledger.Bank
	Path     string
	Interval time.Duration

	log *slog.Logger

	mu       sync.Mutex
	exports  int
	lastErr  error
	lastTime time.Time
}

// NewSnapshotExporter creates an exporter with a one minute interval.
func NewSnapshotExporter(bank *ledger.Bank, path string, log *slog.Logger) *SnapshotExporter {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SnapshotExporter{
		Bank:     bank,
		Path:     path,
		Interval: time.Minute,
		log:      log,
	}
}

// Enabled reports whether the exporter has somewhere to write.
func (e *SnapshotExporter) Enabled() bool {
	return e.Path != "" && e.Interval > 0
}

// Run exports until ctx is cancelled. It always returns nil so that a
// failing export never tears down the server.
func (e *SnapshotExporter) Run(ctx context.Context) error {
	if !e.Enabled() {
		e.log.InfoContext(ctx, "snapshot exporter disabled")
		return nil
	}

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	e.log.InfoContext(ctx, "snapshot exporter started", "path", e.Path, "interval", e.Interval)

	// Run immediately on start
	e.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			e.RunNow(ctx)
		case <-ctx.Done():
			// Final export with a fresh context; ctx is already done.
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			e.RunNow(final)
			cancel()
			e.log.Info("snapshot exporter stopped", "exports", e.Exports())
			return nil
		}
	}
}

// RunNow performs one export and returns its error.
func (e *SnapshotExporter) RunNow(ctx context.Context) error {
	err := e.export(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
	if err != nil {
		e.log.ErrorContext(ctx, "snapshot export failed", "path", e.Path, "error", err)
		return err
	}
	e.exports++
	e.lastTime = time.Now()
	return nil
}

func (e *SnapshotExporter) export(ctx context.Context) error {
	snap, err := e.Bank.Snapshot(ctx)
	if err != nil {
		return err
	}
	return jsonfile.WriteFile(e.Path, snap)
}

// Exports returns the number of successful exports.
func (e *SnapshotExporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}

// LastError returns the error of the most recent export, if any.
func (e *SnapshotExporter) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}
