/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the mock bank server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, MOCKBANK_* env, flags)
  2. Open the configured store
  3. Create the Bank, metrics and the local dispatcher
  4. Configure HTTP router
  5. Run server and snapshot exporter until a signal arrives

COMMAND-LINE FLAGS:
  -port             HTTP server port (default: 8080)
  -store            sqlite | json | memory | postgres (default: sqlite)
  -db               SQLite database path (default: mockbank.db)
                    Use ":memory:" for in-memory database
  -json             JSON snapshot path for -store=json
  -dsn              PostgreSQL DSN for -store=postgres
  -export           Periodic snapshot export path (disabled when empty)
  -export-interval  Export interval (default: 1m)
  -bcrypt-cost      bcrypt cost for credential secrets
  -origins          Comma separated CORS origins
  -log-level        debug | info | warn | error

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Write a final snapshot export
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/bank.db"

  # Run on a JSON document, exporting nothing
  ./server -store=json -json=./data/bank.json

  # Run with postgres and a minute-by-minute export
  ./server -store=postgres -dsn="postgres://..." -export=./data/export.json

SEE ALSO:
  - config/config.go: Configuration layering
  - api/server.go: Router configuration
  - api/exporter.go: Snapshot exporter
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/warp/mockbank/api"
	"github.com/warp/mockbank/config"
	"github.com/warp/mockbank/dispatch"
	"github.com/warp/mockbank/ledger"
	memstore "github.com/warp/mockbank/ledger/store"
	"github.com/warp/mockbank/metrics"
	"github.com/warp/mockbank/store/jsonfile"
	"github.com/warp/mockbank/store/postgres"
	"github.com/warp/mockbank/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer closeStore()

	bank := ledger.New(store, ledger.WithLogger(log), ledger.WithHashCost(cfg.BcryptCost))

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize handler and router
	handler := api.NewHandler(bank, dispatch.NewLocal(bank, log, m), registry, log)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	exporter := api.NewSnapshotExporter(bank, cfg.ExportPath, log)
	exporter.Interval = cfg.ExportInterval

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", "addr", cfg.Addr(), "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return exporter.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (ledger.Store, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := sqlite.New(cfg.DBPath, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	case config.StorePostgres:
		s, err := postgres.New(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.StoreJSON:
		return jsonfile.New(cfg.JSONPath, log), func() {}, nil

	case config.StoreMemory:
		return memstore.NewMemory(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
