package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"catalog_syncer/internal/domain"
	"catalog_syncer/internal/scheduler"
	"catalog_syncer/internal/service"
	"catalog_syncer/internal/storage/postgres"
	"catalog_syncer/migrations"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run video and playlist syncs on their configured intervals",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd.String("config"))
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.syncService(ctx)
			if err != nil {
				return err
			}

			sched := scheduler.NewScheduler([]scheduler.Job{
				{
					Name:     string(domain.KindVideo),
					Interval: a.cfg.Sync.VideoInterval,
					Run: func(ctx context.Context) (*domain.SyncStats, error) {
						return svc.RunVideoSync(ctx)
					},
				},
				{
					Name:     string(domain.KindPlaylist),
					Interval: a.cfg.Sync.PlaylistInterval,
					Run: func(ctx context.Context) (*domain.SyncStats, error) {
						return svc.RunPlaylistSync(ctx)
					},
				},
			}, a.cfg.Sync.RunTimeout, a.logger)

			a.logger.Info("starting catalog syncer",
				"channel_id", a.cfg.YouTube.ChannelID,
				"video_interval", a.cfg.Sync.VideoInterval,
				"playlist_interval", a.cfg.Sync.PlaylistInterval,
				"publisher_enabled", a.cfg.RabbitMQ.Enabled,
			)

			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run a single sync and exit",
		Commands: []*cli.Command{
			{
				Name:  "videos",
				Usage: "Sync videos published since the stored checkpoint",
				Flags: []cli.Flag{
					cursorFlag(),
					&cli.StringFlag{
						Name:  "since",
						Usage: "Override the stored checkpoint (RFC 3339)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := runOptions(cmd)
					if err != nil {
						return err
					}
					return runOnce(ctx, cmd, func(ctx context.Context, svc *service.SyncService) (*domain.SyncStats, error) {
						return svc.RunVideoSync(ctx, opts...)
					})
				},
			},
			{
				Name:  "playlists",
				Usage: "Rescan every playlist and its members",
				Flags: []cli.Flag{cursorFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := runOptions(cmd)
					if err != nil {
						return err
					}
					return runOnce(ctx, cmd, func(ctx context.Context, svc *service.SyncService) (*domain.SyncStats, error) {
						return svc.RunPlaylistSync(ctx, opts...)
					})
				},
			},
		},
	}
}

func cursorFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "cursor",
		Usage: "Resume pagination from this page token",
	}
}

func runOptions(cmd *cli.Command) ([]service.RunOption, error) {
	var opts []service.RunOption

	if cursor := cmd.String("cursor"); cursor != "" {
		opts = append(opts, service.WithCursor(domain.Cursor(cursor)))
	}

	if cmd.IsSet("since") {
		since, err := time.Parse(time.RFC3339, cmd.String("since"))
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		opts = append(opts, service.WithCheckpoint(since))
	}

	return opts, nil
}

func runOnce(ctx context.Context, cmd *cli.Command, run func(context.Context, *service.SyncService) (*domain.SyncStats, error)) error {
	a, err := newApp(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.syncService(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Sync.RunTimeout)
	defer cancel()

	stats, err := run(runCtx, svc)
	return reportRun(cmd.Root().Writer, a.logger, stats, err)
}

// reportRun prints whatever summary the run produced, including the partial
// one returned with a timeout or cancellation error.
func reportRun(w io.Writer, logger *slog.Logger, stats *domain.SyncStats, runErr error) error {
	if stats == nil {
		return runErr
	}
	if !stats.Complete {
		logger.Warn("sync ended early", "run_id", stats.RunID, "failed", stats.Failed)
	}
	if err := printSummary(w, stats); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func printSummary(w io.Writer, stats *domain.SyncStats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the PostgreSQL schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply pending migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withMigrator(ctx, cmd, func(m *postgres.Migrator, a *app) error {
						applied, err := m.Up(ctx)
						if err != nil {
							return err
						}
						a.logger.Info("migrations complete", "applied", applied)
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the latest migration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withMigrator(ctx, cmd, func(m *postgres.Migrator, _ *app) error {
						return m.Down(ctx)
					})
				},
			},
		},
	}
}

func withMigrator(ctx context.Context, cmd *cli.Command, fn func(*postgres.Migrator, *app) error) error {
	a, err := newApp(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Database.Driver == "sqlite" {
		a.logger.Info("sqlite schema is applied when the database is opened, nothing to migrate")
		return nil
	}

	m, err := postgres.NewMigrator(a.db, migrations.FS, a.logger)
	if err != nil {
		return err
	}
	return fn(m, a)
}
