package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"catalog_syncer/internal/domain"
)

// RunPlaylistSync rescans every playlist of the channel. Each playlist is
// merged into the store together with the full ordered list of its member
// video IDs, so fields written by other processes survive.
func (s *SyncService) RunPlaylistSync(ctx context.Context, opts ...RunOption) (*domain.SyncStats, error) {
	if s.source == nil || s.store == nil {
		return nil, errNotConfigured
	}

	start := time.Now()
	o := applyRunOptions(opts)
	stats, logger := s.newRun(domain.KindPlaylist)

	logger.Info("starting playlist sync", "cursor", string(o.cursor))

	query := domain.Query{
		Kind:      domain.KindPlaylist,
		ChannelID: s.opts.ChannelID,
		PageSize:  s.opts.PageSize,
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
		stats.Fetched += len(page.Items)
		logger.Debug("fetched playlist page", "page", stats.Pages, "playlists", len(page.Items), "has_more", page.Next.HasMore())

		tally(stats, s.syncPlaylistPage(ctx, logger, stats.RunID, page.Items))
	}

	s.finishRun(ctx, logger, stats, start)

	return stats, ctx.Err()
}

func (s *SyncService) syncPlaylistPage(ctx context.Context, logger *slog.Logger, runID string, items []domain.Entity) []itemResult {
	results := make([]itemResult, len(items))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for i, item := range items {
		doc, err := playlistDocument(item)
		if err != nil {
			logger.Warn("skipping malformed playlist", "id", item.ID, "error", err)
			results[i] = itemResult{outcome: outcomeSkipped}
			continue
		}

		g.Go(func() error {
			members, err := s.references.Resolve(ctx, item.ID)
			if err != nil {
				logger.Error("member resolution failed, playlist not written", "id", item.ID, "error", err)
				results[i] = itemResult{outcome: outcomeFailed}
				return nil
			}

			doc[fieldVideos] = members
			results[i] = s.upsert(ctx, logger, runID, domain.KindPlaylist, item.ID, doc, true)
			return nil
		})
	}

	_ = g.Wait()

	return results
}
