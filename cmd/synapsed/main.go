package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Harshitk-cp/synapse/internal/buildconfig"
	"github.com/Harshitk-cp/synapse/internal/config"
	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/Harshitk-cp/synapse/internal/service"
	"github.com/Harshitk-cp/synapse/internal/store"
	"github.com/Harshitk-cp/synapse/internal/store/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	logger.Info("synapse maintenance daemon", buildconfig.LogFields()...)

	tuning, err := config.LoadTuning(config.TuningFile())
	if err != nil {
		logger.Fatal("failed to load tuning", zap.Error(err))
	}

	ctx := context.Background()

	backend, closeStore, err := openBackend(ctx, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", config.StorageDriver()), zap.Error(err))
	}
	defer closeStore()

	hebbianCfg := service.HebbianConfig{
		LearningRate: tuning.Hebbian.LearningRate,
		Window:       tuning.Hebbian.Window,
		LinkType:     domain.LinkTemporal,
	}
	maintenanceCfg := service.MaintenanceConfig{
		Interval:            tuning.Maintenance.Interval,
		LinkDecayRate:       tuning.Maintenance.LinkDecayRate,
		ActivationDecayRate: tuning.Maintenance.ActivationDecayRate,
		PruneThreshold:      tuning.Maintenance.PruneThreshold,
		AccessRetentionDays: tuning.Maintenance.AccessRetentionDays,
		ProjectsPerSecond:   tuning.Maintenance.ProjectsPerSecond,
		BreakerMaxFailures:  tuning.Maintenance.BreakerMaxFailures,
		BreakerTimeout:      tuning.Maintenance.BreakerTimeout,
	}

	engine, err := service.NewEngine(backend, hebbianCfg, maintenanceCfg, logger)
	if err != nil {
		logger.Fatal("invalid engine configuration", zap.Error(err))
	}

	engine.Maintenance.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	engine.Maintenance.Stop()
	logger.Info("stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func openBackend(ctx context.Context, logger *zap.Logger) (domain.Backend, func(), error) {
	switch driver := config.StorageDriver(); driver {
	case "postgres":
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is required for the postgres driver")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return domain.Backend{}, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return domain.Backend{}, nil, err
		}
		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()
			return domain.Backend{}, nil, err
		}
		logger.Info("connected to database")
		return store.NewBackend(pool), pool.Close, nil

	case "sqlite":
		db, err := sqlite.Open(config.SQLitePath())
		if err != nil {
			return domain.Backend{}, nil, err
		}
		logger.Info("opened sqlite store", zap.String("path", db.Path))
		return db.Backend(), func() { _ = db.Close() }, nil

	default:
		logger.Fatal("unknown storage driver", zap.String("driver", driver))
		return domain.Backend{}, nil, nil
	}
}
