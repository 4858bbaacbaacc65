package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"catalog_syncer/internal/logging"
)

func main() {
	logger := logging.New("info", "json", os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	app := &cli.Command{
		Name:  "syncer",
		Usage: "Copy a YouTube channel's videos and playlists into a document store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.yaml",
				Sources: cli.EnvVars("SYNCER_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			syncCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Error("syncer failed", "error", err)
		os.Exit(1)
	}
}
