// Package main is the entry point for Rotor, a momentum rotation decision
// engine for core/satellite ETF portfolios. It ranks candidates by
// dividend-adjusted momentum, gates rotations behind four unanimous
// criteria, and proposes rotate/rebalance/hold decisions with a full audit
// rationale. The engine proposes; it never places orders.
//
// The application follows the same layered structure throughout:
// - Domain layer is pure (no infrastructure dependencies)
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/rotor/internal/config"
	"github.com/aristath/rotor/internal/database"
	"github.com/aristath/rotor/internal/modules/history"
	"github.com/aristath/rotor/internal/modules/portfolio"
	"github.com/aristath/rotor/internal/modules/rotation"
	"github.com/aristath/rotor/internal/modules/settings"
	"github.com/aristath/rotor/internal/modules/universe"
	"github.com/aristath/rotor/internal/reliability"
	"github.com/aristath/rotor/internal/scheduler"
	"github.com/aristath/rotor/internal/server"
	"github.com/aristath/rotor/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use a fallback logger so the configuration error itself is logged
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Rotor")

	// Databases: each concern gets its own file with a profile tuned to its
	// write pattern. The ledger is the immutable audit trail.
	databases := map[string]database.DatabaseProfile{
		"universe":  database.ProfileStandard,
		"config":    database.ProfileStandard,
		"history":   database.ProfileHistory,
		"portfolio": database.ProfileStandard,
		"ledger":    database.ProfileLedger,
	}

	dbs := make(map[string]*database.DB, len(databases))
	for name, profile := range databases {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, name+".db"),
			Profile: profile,
			Name:    name,
		})
		if err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to open database")
		}
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
		}
		dbs[name] = db
	}
	defer func() {
		for _, db := range dbs {
			_ = db.Close()
		}
	}()

	// Repositories
	instrumentRepo := universe.NewInstrumentRepository(dbs["universe"].Conn(), log)
	historyDB := history.NewHistoryDB(dbs["history"].Conn(), log)
	holdingRepo := portfolio.NewHoldingRepository(dbs["portfolio"].Conn(), log)
	settingsRepo := settings.NewRepository(dbs["config"].Conn(), log)
	decisionRepo := rotation.NewDecisionRepository(dbs["ledger"].Conn(), log)

	// Services
	rotationService := rotation.NewService(
		instrumentRepo,
		historyDB,
		holdingRepo,
		settingsRepo,
		decisionRepo,
		log,
	)

	// Scheduler: evaluation cycles plus (optionally) nightly backups
	sched := scheduler.New(log)
	if err := sched.Register(cfg.EvalCron, scheduler.NewEvaluateJob(rotationService, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register evaluation job")
	}

	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3ClientConfig{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		backupService := reliability.NewBackupService(s3Client, cfg.DataDir, cfg.Backup.RetentionDays, log)
		if err := sched.Register("30 2 * * *", reliability.NewBackupJob(backupService, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:             log,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
		RotationService: rotationService,
		DecisionRepo:    decisionRepo,
		HoldingRepo:     holdingRepo,
		InstrumentRepo:  instrumentRepo,
		SettingsRepo:    settingsRepo,
		Ingester:        history.NewIngester(historyDB, log),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// Wait for shutdown signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Rotor stopped")
}
