// Package main is the entry point for the Custodian financial governance
// service. Custodian holds the purse strings for autonomous agents: it
// evaluates spending opportunities, enforces budget and risk policy,
// settles approved transactions, and keeps a signed audit trail - all
// behind a kill switch that can freeze the system the moment something
// looks wrong.
//
// Startup sequence:
//  1. Load configuration from environment variables
//  2. Initialize structured logging
//  3. Open the ledger database and apply its schema
//  4. Restore the shared resource store from its last snapshot
//  5. Wire services via constructor injection
//  6. Register recurring governance jobs with the scheduler
//  7. Start the HTTP server
//  8. Wait for shutdown signal, snapshot state and drain gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aretelabs/custodian/internal/config"
	"github.com/aretelabs/custodian/internal/database"
	"github.com/aretelabs/custodian/internal/events"
	"github.com/aretelabs/custodian/internal/modules/audit"
	"github.com/aretelabs/custodian/internal/modules/budget"
	"github.com/aretelabs/custodian/internal/modules/commerce"
	"github.com/aretelabs/custodian/internal/modules/governance"
	"github.com/aretelabs/custodian/internal/modules/ledger"
	"github.com/aretelabs/custodian/internal/modules/risk"
	"github.com/aretelabs/custodian/internal/occ"
	"github.com/aretelabs/custodian/internal/scheduler"
	"github.com/aretelabs/custodian/internal/server"
	"github.com/aretelabs/custodian/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Custodian")

	// Ledger database holds the immutable transaction trail
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	if err := ledgerDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply ledger schema")
	}

	eventBus := events.NewBus(log)

	// Shared resource store survives restarts via msgpack snapshots
	resources := occ.NewStore(log)
	snapshotPath := filepath.Join(cfg.DataDir, "resources.snapshot")
	if data, err := os.ReadFile(snapshotPath); err == nil {
		if err := resources.Restore(data); err != nil {
			log.Warn().Err(err).Msg("Failed to restore resource snapshot, starting empty")
		} else {
			log.Info().Int("resources", len(resources.IDs())).Msg("Resource store restored")
		}
	}

	// Core services
	budgets := budget.NewTracker(eventBus, log)
	repo := ledger.NewRepository(ledgerDB.Conn(), log)
	wallets := ledger.NewService(repo, budgets, eventBus, log)
	auditSvc := audit.NewService(repo, log)

	policy := risk.NewPolicy(risk.PolicyConfig{
		CategoryLimits: cfg.CategoryLimits,
		DailyCeiling:   cfg.DailyCeiling,
		RiskCutoff:     cfg.RiskCutoff,
	}, log)

	signer, err := audit.NewSigner(cfg.ApprovalKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create approval signer")
	}

	killSwitch := governance.NewKillSwitch(eventBus, log,
		governance.WithMinConfidence(cfg.MinConfidence),
		governance.WithVolatilityCeiling(cfg.VolatilityCeiling),
	)
	monitor := governance.NewMonitor(killSwitch, cfg.SpendSpikeMultiple, log)

	commerceSvc := commerce.NewService(commerce.Config{
		EvalConfidence:      cfg.EvalConfidence,
		SettlementRateLimit: cfg.SettlementRateLimit,
	}, killSwitch, wallets, budgets, policy, signer,
		commerce.NewMockChainClient(cfg.TreasuryBalance), eventBus, log)

	// Recurring governance jobs
	sched := scheduler.New(log)
	if err := sched.AddJob("0 0 0 * * *", scheduler.NewDailyResetJob(policy, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register daily reset job")
	}
	if err := sched.AddJob("@every 1m", scheduler.NewVolatilitySweepJob(monitor)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register volatility sweep job")
	}
	if err := sched.AddJob("@every 5m", scheduler.NewSpendAnomalyJob(monitor, policy)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register spend anomaly job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		EventBus:   eventBus,
		Resources:  resources,
		KillSwitch: killSwitch,
		Commerce:   commerceSvc,
		Wallets:    wallets,
		Budgets:    budgets,
		Audit:      auditSvc,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Custodian started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	// Persist the resource store so versions survive the restart
	if data, err := resources.Snapshot(); err != nil {
		log.Error().Err(err).Msg("Failed to snapshot resource store")
	} else if err := os.WriteFile(snapshotPath, data, 0644); err != nil {
		log.Error().Err(err).Msg("Failed to write resource snapshot")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Custodian stopped")
}
