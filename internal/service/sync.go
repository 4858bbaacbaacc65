package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"catalog_syncer/internal/domain"
)

const stateWriteTimeout = 10 * time.Second

var errNotConfigured = errors.New("sync service not configured: source and store are required")

// Options tune a SyncService.
type Options struct {
	ChannelID   string
	PageSize    int
	Concurrency int
}

// SyncService copies videos and playlists of one channel from the source
// into the document store. Video and playlist syncs are independent and may
// run concurrently with each other.
type SyncService struct {
	source    SourceClient
	store     StoreClient
	syncState SyncStateStore
	publisher Publisher
	logger    *slog.Logger
	opts      Options

	checkpoints *CheckpointResolver
	references  *ReferenceResolver
}

// NewSyncService wires a SyncService. syncState and publisher are optional.
func NewSyncService(
	source SourceClient,
	store StoreClient,
	syncState SyncStateStore,
	publisher Publisher,
	logger *slog.Logger,
	opts Options,
) *SyncService {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &SyncService{
		source:      source,
		store:       store,
		syncState:   syncState,
		publisher:   publisher,
		logger:      logger.With("channel_id", opts.ChannelID),
		opts:        opts,
		checkpoints: NewCheckpointResolver(store),
		references:  NewReferenceResolver(source),
	}
}

// RunOption overrides how a single run starts.
type RunOption func(*runOptions)

type runOptions struct {
	cursor     domain.Cursor
	checkpoint *time.Time
}

// WithCursor starts pagination at cursor instead of the first page.
func WithCursor(cursor domain.Cursor) RunOption {
	return func(o *runOptions) {
		o.cursor = cursor
	}
}

// WithCheckpoint replaces the checkpoint derived from the store. Only the
// video sync uses it.
func WithCheckpoint(t time.Time) RunOption {
	return func(o *runOptions) {
		t = normalizeTimestamp(t)
		o.checkpoint = &t
	}
}

func applyRunOptions(opts []RunOption) runOptions {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type outcome int

const (
	outcomeUpserted outcome = iota + 1
	outcomeSkipped
	outcomeFailed
)

type itemResult struct {
	outcome     outcome
	published   bool
	publishedAt *time.Time
}

func (s *SyncService) newRun(kind domain.Kind) (*domain.SyncStats, *slog.Logger) {
	runID := uuid.NewString()
	stats := &domain.SyncStats{
		Kind:     kind,
		RunID:    runID,
		Complete: true,
	}
	return stats, s.logger.With("kind", string(kind), "run_id", runID)
}

// upsert writes one document and announces it. Publish failures are logged
// and do not change the item outcome.
func (s *SyncService) upsert(ctx context.Context, logger *slog.Logger, runID string, kind domain.Kind, id string, doc domain.Document, merge bool) itemResult {
	collection := kind.Collection()
	if err := s.store.Upsert(ctx, collection, id, doc, merge); err != nil {
		logger.Error("upsert failed", "id", id, "error", err)
		return itemResult{outcome: outcomeFailed}
	}

	res := itemResult{outcome: outcomeUpserted}
	if s.publisher == nil {
		return res
	}

	event := domain.DocumentEvent{
		RunID:      runID,
		Collection: collection,
		ID:         id,
		Document:   doc,
		Merge:      merge,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("publish failed", "id", id, "error", err)
		return res
	}
	res.published = true

	return res
}

func tally(stats *domain.SyncStats, results []itemResult) {
	for _, r := range results {
		switch r.outcome {
		case outcomeUpserted:
			stats.Upserted++
			if r.publishedAt != nil && (stats.CheckpointAfter == nil || r.publishedAt.After(*stats.CheckpointAfter)) {
				t := normalizeTimestamp(*r.publishedAt)
				stats.CheckpointAfter = &t
			}
		case outcomeSkipped:
			stats.Skipped++
		case outcomeFailed:
			stats.Failed++
		}
		if r.published {
			stats.Published++
		}
	}
}

func (s *SyncService) finishRun(ctx context.Context, logger *slog.Logger, stats *domain.SyncStats, start time.Time) {
	stats.Duration = time.Since(start)

	if err := s.updateSyncState(ctx, stats); err != nil {
		logger.Warn("failed to record sync state", "error", err)
	}

	if stats.Fetched == 0 && stats.Complete {
		logger.Info("nothing to sync", "pages", stats.Pages, "duration", stats.Duration)
		return
	}

	logger.Info("sync completed",
		"complete", stats.Complete,
		"pages", stats.Pages,
		"fetched", stats.Fetched,
		"upserted", stats.Upserted,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"published", stats.Published,
		"duration", stats.Duration,
	)
}

// updateSyncState records run bookkeeping even when the run context has
// already expired.
func (s *SyncService) updateSyncState(ctx context.Context, stats *domain.SyncStats) error {
	if s.syncState == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stateWriteTimeout)
	defer cancel()

	state, err := s.syncState.Get(ctx, stats.Kind)
	if err != nil {
		return err
	}

	state.Kind = stats.Kind
	state.LastSyncedAt = time.Now().UTC()
	state.LastRunID = stats.RunID
	if stats.CheckpointAfter != nil {
		state.LastCheckpoint = stats.CheckpointAfter
	}
	state.TotalSynced += int64(stats.Upserted)

	return s.syncState.Update(ctx, state)
}
