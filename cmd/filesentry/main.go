package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filesentry/internal/adapter"
	"filesentry/internal/config"
	"filesentry/internal/datastore"
	"filesentry/internal/engine"
	"filesentry/internal/gateway"
	"filesentry/internal/logger"
	"filesentry/internal/metrics"
	"filesentry/internal/scheduler"

	"github.com/rs/zerolog"
)

// newBootstrapLogger covers the window before the configured logger exists.
func newBootstrapLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func main() {
	flags := ParseFlags()

	gCfg, err := config.LoadGlobalConfig(flags.ConfigFile, newBootstrapLogger())
	if err != nil {
		log.Fatalf("[FATAL] Could not load global config: %v", err)
	}
	if flags.SourcesFile != "" {
		gCfg.IntakeConfig.SourcesFile = flags.SourcesFile
	}
	if err := config.ValidateConfig(gCfg); err != nil {
		log.Fatalf("[FATAL] Configuration validation failed: %v", err)
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Could not initialize logger: %v", err)
	}
	zLogger.Info().Str("mode", flags.Mode).Msg("FileSentry starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := datastore.NewDB(gCfg.SchedulerConfig.SQLiteDBPath, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	configStore := datastore.NewConfigurationStore(db, zLogger)
	executionStore := datastore.NewExecutionStore(db, zLogger)
	ledger := datastore.NewDiscoveryLedger(db, zLogger)
	processedStore := datastore.NewProcessedFileStore(db, zLogger)

	archive, err := datastore.NewIntakeArchive(gCfg.StorageConfig.ParquetBasePath, gCfg.StorageConfig.CompressionCodec, zLogger)
	if err != nil {
		zLogger.Error().Err(err).Msg("Failed to initialize intake archive, continuing without it")
		archive = nil
	}

	callTimeout := time.Duration(gCfg.IntakeConfig.CallTimeoutSecs) * time.Second
	adapterFactory := adapter.NewFactory(adapter.EnvCredentialResolver{}, callTimeout, zLogger)
	publisher := gateway.NewLogGateway(zLogger)
	limiter := engine.NewResourceLimiter(gCfg.IntakeConfig.MaxConcurrentExecutions, gCfg.IntakeConfig.MaxMemoryUsedPercent, zLogger)

	eng := engine.New(
		adapterFactory,
		executionStore, ledger, processedStore, archive,
		publisher, limiter,
		engine.Options{
			Backoffs:    engine.DefaultBackoffs(),
			CallTimeout: callTimeout,
		},
		zLogger,
	)

	sched := scheduler.New(eng, configStore, ledger, scheduler.Options{
		TickInterval:        time.Duration(gCfg.SchedulerConfig.TickSeconds) * time.Second,
		LedgerRetentionDays: gCfg.SchedulerConfig.LedgerRetentionDays,
	}, zLogger)

	sourceWatcher := config.NewSourceWatcher(gCfg.IntakeConfig.SourcesFile, configStore, zLogger)

	if flags.Mode == "onetime" {
		if err := sourceWatcher.Sync(ctx); err != nil {
			zLogger.Fatal().Err(err).Msg("Failed to load intake sources")
		}
		if err := sched.TriggerAll(ctx); err != nil {
			zLogger.Fatal().Err(err).Msg("One-time run failed")
		}
		zLogger.Info().Msg("One-time run finished")
		return
	}

	if gCfg.MetricsConfig.Enabled {
		go func() {
			if err := metrics.Serve(ctx, gCfg.MetricsConfig.ListenAddr, zLogger); err != nil {
				zLogger.Error().Err(err).Msg("Metrics listener stopped with error")
			}
		}()
	}

	if err := sourceWatcher.Start(ctx); err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to start source watcher")
	}
	if err := sched.Start(ctx); err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	zLogger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	cancel()
	sched.Stop()
	sourceWatcher.Stop()
	zLogger.Info().Msg("FileSentry stopped")
}
