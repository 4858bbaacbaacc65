package youtube

import (
	"time"

	ytapi "google.golang.org/api/youtube/v3"

	"catalog_syncer/internal/domain"
)

func (s *Source) videoEntity(item *ytapi.Video) domain.Entity {
	e := domain.Entity{
		ID:   item.Id,
		Kind: domain.KindVideo,
	}

	if sn := item.Snippet; sn != nil {
		e.Title = sn.Title
		e.Description = sn.Description
		e.PublishedAt = s.parsePublishedAt(item.Id, sn.PublishedAt)
		e.ThumbnailURL = defaultThumbnail(sn.Thumbnails)
		e.Tags = sn.Tags
	}

	if st := item.Statistics; st != nil {
		e.Stats = &domain.VideoStats{
			ViewCount:    st.ViewCount,
			CommentCount: st.CommentCount,
			LikeCount:    st.LikeCount,
		}
	}

	return e
}

func (s *Source) playlistEntity(item *ytapi.Playlist) domain.Entity {
	e := domain.Entity{
		ID:   item.Id,
		Kind: domain.KindPlaylist,
	}

	if sn := item.Snippet; sn != nil {
		e.Title = sn.Title
		e.Description = sn.Description
		e.PublishedAt = s.parsePublishedAt(item.Id, sn.PublishedAt)
		e.ThumbnailURL = defaultThumbnail(sn.Thumbnails)
	}

	if item.ContentDetails != nil {
		e.MemberCount = item.ContentDetails.ItemCount
	}

	return e
}

// parsePublishedAt returns nil for missing or unparsable timestamps so the
// entity is rejected downstream as malformed.
func (s *Source) parsePublishedAt(id, raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.logger.Warn("failed to parse date", "id", id, "date", raw)
		return nil
	}
	return &t
}

func defaultThumbnail(th *ytapi.ThumbnailDetails) string {
	if th == nil || th.Default == nil {
		return ""
	}
	return th.Default.Url
}
