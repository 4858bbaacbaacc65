package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"catalog_syncer/internal/config"
	"catalog_syncer/internal/logging"
	"catalog_syncer/internal/publisher"
	"catalog_syncer/internal/service"
	"catalog_syncer/internal/source/youtube"
	"catalog_syncer/internal/storage/postgres"
	"catalog_syncer/internal/storage/sqlite"
)

// app holds the long-lived dependencies shared by all commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	store     service.StoreClient
	syncState service.SyncStateStore
	publisher service.Publisher
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout),
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, a.cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.db = db
		a.store = sqlite.NewDocumentStore(db)
		a.syncState = sqlite.NewSyncStateStore(db)
		a.logger.Info("opened sqlite database", "path", a.cfg.Database.Path)
	default:
		db, err := sqlx.ConnectContext(ctx, "postgres", a.cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		a.db = db
		a.store = postgres.NewDocumentStore(db)
		a.syncState = postgres.NewSyncStateStore(db)
		a.logger.Info("connected to database", "host", a.cfg.Database.Host, "dbname", a.cfg.Database.DBName)
	}
	return nil
}

// syncService wires the source and, when enabled, the RabbitMQ publisher.
func (a *app) syncService(ctx context.Context) (*service.SyncService, error) {
	if err := a.cfg.RequireSource(); err != nil {
		return nil, err
	}

	src, err := youtube.New(ctx, youtube.Config{
		APIKey:            a.cfg.YouTube.APIKey,
		Endpoint:          a.cfg.YouTube.Endpoint,
		Timeout:           a.cfg.YouTube.Timeout,
		BatchSize:         a.cfg.YouTube.BatchSize,
		RequestsPerSecond: a.cfg.YouTube.RequestsPerSecond,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	if a.cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        a.cfg.RabbitMQ.URL,
			Exchange:   a.cfg.RabbitMQ.Exchange,
			RoutingKey: a.cfg.RabbitMQ.RoutingKey,
			QueueName:  a.cfg.RabbitMQ.QueueName,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.publisher = rabbitMQ
	}

	return service.NewSyncService(
		src,
		a.store,
		a.syncState,
		a.publisher,
		a.logger,
		service.Options{
			ChannelID:   a.cfg.YouTube.ChannelID,
			PageSize:    a.cfg.YouTube.PageSize,
			Concurrency: a.cfg.Sync.Concurrency,
		},
	), nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close publisher", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
