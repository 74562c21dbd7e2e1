/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file + LEDGER_* environment overrides)
  2. Open the SQLite store
  3. Wire registry, engine, collector, operation ledger, aggregator
  4. Start the HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection
  4. Exit

EXAMPLES:
  # Run with defaults (ledger.db, port 8080)
  ./server

  # Run with a config file
  ./server -config=./config.yaml

  # Override via environment
  LEDGER_PORT=3000 LEDGER_DB_PATH=":memory:" ./server

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oddsbook/ledger-engine/api"
	"github.com/oddsbook/ledger-engine/config"
	"github.com/oddsbook/ledger-engine/ledger"
	"github.com/oddsbook/ledger-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer store.Close()

	rules := cfg.Rules()
	registry := ledger.NewRegistry(store)
	engine := ledger.NewEngine(registry, rules)
	collector := ledger.NewCollector(registry)
	ops := ledger.NewOperationLedger(registry)
	aggregator := ledger.NewAggregator(store, rules)
	converter := ledger.NewConverter(cfg.CurrencyTable())

	handler := api.NewHandler(registry, engine, collector, ops, aggregator, converter, log)
	server := api.NewServer(handler, cfg.Port, cfg.AllowedOrigins)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}
	log.Info("stopped")
}
