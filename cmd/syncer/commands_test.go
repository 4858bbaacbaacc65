package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"catalog_syncer/internal/domain"
	"catalog_syncer/internal/service"
)

func parseRunOptions(t *testing.T, args ...string) ([]service.RunOption, error) {
	t.Helper()

	var (
		opts   []service.RunOption
		optErr error
	)
	cmd := &cli.Command{
		Name: "videos",
		Flags: []cli.Flag{
			cursorFlag(),
			&cli.StringFlag{Name: "since"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			opts, optErr = runOptions(cmd)
			return nil
		},
	}

	require.NoError(t, cmd.Run(context.Background(), append([]string{"videos"}, args...)))
	return opts, optErr
}

func TestRunOptions(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		opts, err := parseRunOptions(t)
		require.NoError(t, err)
		assert.Empty(t, opts)
	})

	t.Run("cursor and since", func(t *testing.T) {
		opts, err := parseRunOptions(t, "--cursor", "CAoQAA", "--since", "2024-03-01T10:00:00Z")
		require.NoError(t, err)
		assert.Len(t, opts, 2)
	})

	t.Run("invalid since", func(t *testing.T) {
		_, err := parseRunOptions(t, "--since", "last tuesday")
		assert.ErrorContains(t, err, "invalid --since")
	})
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, &domain.SyncStats{
		Kind:     domain.KindVideo,
		RunID:    "run-1",
		Fetched:  3,
		Upserted: 2,
		Skipped:  1,
		Complete: true,
	}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "videos", got["kind"])
	assert.Equal(t, "run-1", got["run_id"])
	assert.EqualValues(t, 2, got["upserted"])
	assert.Equal(t, true, got["complete"])
	assert.NotContains(t, got, "checkpoint_before")
}

func TestReportRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("partial summary printed with timeout", func(t *testing.T) {
		var buf bytes.Buffer
		stats := &domain.SyncStats{Kind: domain.KindPlaylist, RunID: "run-2", Fetched: 4, Upserted: 3}

		err := reportRun(&buf, logger, stats, context.DeadlineExceeded)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "run-2", got["run_id"])
		assert.EqualValues(t, 3, got["upserted"])
		assert.Equal(t, false, got["complete"])
	})

	t.Run("no summary", func(t *testing.T) {
		var buf bytes.Buffer
		runErr := errors.New("resolve checkpoint: store read failure")

		err := reportRun(&buf, logger, nil, runErr)

		assert.Equal(t, runErr, err)
		assert.Zero(t, buf.Len())
	})

	t.Run("complete run", func(t *testing.T) {
		var buf bytes.Buffer

		err := reportRun(&buf, logger, &domain.SyncStats{Kind: domain.KindVideo, Complete: true}, nil)

		require.NoError(t, err)
		assert.NotZero(t, buf.Len())
	})
}
