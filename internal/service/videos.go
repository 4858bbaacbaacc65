package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"catalog_syncer/internal/domain"
)

// RunVideoSync copies videos published at or after the checkpoint. Search
// results only carry IDs, so every page is followed by batched detail
// lookups. Stored videos are overwritten.
//
// A checkpoint read failure aborts the run before any source call. A page
// fetch failure ends pagination; results of earlier pages stay written and
// stats.Complete is false.
func (s *SyncService) RunVideoSync(ctx context.Context, opts ...RunOption) (*domain.SyncStats, error) {
	if s.source == nil || s.store == nil {
		return nil, errNotConfigured
	}

	start := time.Now()
	o := applyRunOptions(opts)
	stats, logger := s.newRun(domain.KindVideo)

	checkpoint := o.checkpoint
	if checkpoint == nil {
		cp, ok, err := s.checkpoints.Resolve(ctx)
		if err != nil {
			logger.Error("checkpoint resolution failed, aborting run", "error", err)
			return nil, fmt.Errorf("resolve checkpoint: %w", err)
		}
		if ok {
			checkpoint = &cp
		}
	}
	stats.CheckpointBefore = checkpoint
	stats.CheckpointAfter = checkpoint

	if checkpoint != nil {
		logger.Info("starting video sync", "published_after", checkpoint.Format(time.RFC3339), "cursor", string(o.cursor))
	} else {
		logger.Info("starting video sync, no checkpoint found, running full backfill", "cursor", string(o.cursor))
	}

	query := domain.Query{
		Kind:           domain.KindVideo,
		ChannelID:      s.opts.ChannelID,
		PublishedAfter: checkpoint,
		PageSize:       s.opts.PageSize,
	}
	fetch := func(ctx context.Context, cursor domain.Cursor) (domain.Page[domain.Entity], error) {
		return s.source.ListEntities(ctx, query, cursor)
	}

	for page, err := range Paginate(ctx, fetch, o.cursor) {
		if err != nil {
			stats.Complete = false
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.finishRun(ctx, logger, stats, start)
				return stats, ctxErr
			}
			stats.Failed++
			logger.Error("page fetch failed, stopping pagination", "page", stats.Pages+1, "error", err)
			break
		}

		stats.Pages++
		ids := videoIDs(page.Items)
		stats.Fetched += len(ids)
		logger.Debug("fetched search page", "page", stats.Pages, "videos", len(ids), "has_more", page.Next.HasMore())

		tally(stats, s.syncVideoPage(ctx, logger, stats.RunID, ids))
	}

	s.finishRun(ctx, logger, stats, start)

	return stats, ctx.Err()
}

func (s *SyncService) syncVideoPage(ctx context.Context, logger *slog.Logger, runID string, ids []string) []itemResult {
	results := make([]itemResult, len(ids))
	if len(ids) == 0 {
		return results
	}

	details, lookupFailed := s.lookupVideoDetails(ctx, logger, ids)

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for i, id := range ids {
		if lookupFailed[id] {
			results[i] = itemResult{outcome: outcomeFailed}
			continue
		}

		entity, ok := details[id]
		if !ok {
			logger.Warn("video missing from detail response, skipping", "id", id)
			results[i] = itemResult{outcome: outcomeSkipped}
			continue
		}

		doc, err := videoDocument(entity)
		if err != nil {
			logger.Warn("skipping malformed video", "id", id, "error", err)
			results[i] = itemResult{outcome: outcomeSkipped}
			continue
		}

		g.Go(func() error {
			res := s.upsert(ctx, logger, runID, domain.KindVideo, id, doc, false)
			if res.outcome == outcomeUpserted {
				res.publishedAt = entity.PublishedAt
			}
			results[i] = res
			return nil
		})
	}

	_ = g.Wait()

	return results
}

// lookupVideoDetails fetches full records in batches no larger than the
// source allows. IDs of a failed batch are reported in lookupFailed.
func (s *SyncService) lookupVideoDetails(ctx context.Context, logger *slog.Logger, ids []string) (details map[string]domain.Entity, lookupFailed map[string]bool) {
	batches := slices.Collect(slices.Chunk(ids, max(s.source.MaxBatchSize(), 1)))
	found := make([][]domain.Entity, len(batches))
	errs := make([]error, len(batches))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			found[i], errs[i] = s.source.GetEntityDetails(ctx, batch)
			return nil
		})
	}
	_ = g.Wait()

	details = make(map[string]domain.Entity, len(ids))
	lookupFailed = make(map[string]bool)
	for i, batch := range batches {
		if errs[i] != nil {
			logger.Error("detail lookup failed", "batch_size", len(batch), "error", errs[i])
			for _, id := range batch {
				lookupFailed[id] = true
			}
			continue
		}
		for _, e := range found[i] {
			details[e.ID] = e
		}
	}

	return details, lookupFailed
}

// videoIDs drops search hits that carry no video ID.
func videoIDs(items []domain.Entity) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID != "" {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
