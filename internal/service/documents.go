package service

import (
	"fmt"
	"time"

	"catalog_syncer/internal/domain"
)

// Stored document fields.
const (
	fieldTitle        = "title"
	fieldDescription  = "description"
	fieldPublishedAt  = "publishedAt"
	fieldThumbnailURL = "thumbnailURL"
	fieldTags         = "tags"
	fieldStats        = "stats"
	fieldVideosCount  = "videosCount"
	fieldVideos       = "videos"
)

func videoDocument(e domain.Entity) (domain.Document, error) {
	if err := validateEntity(e); err != nil {
		return nil, err
	}

	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}

	var stats domain.VideoStats
	if e.Stats != nil {
		stats = *e.Stats
	}

	return domain.Document{
		fieldTitle:        e.Title,
		fieldDescription:  e.Description,
		fieldPublishedAt:  formatTimestamp(*e.PublishedAt),
		fieldThumbnailURL: e.ThumbnailURL,
		fieldTags:         tags,
		fieldStats: map[string]any{
			"viewCount":    stats.ViewCount,
			"commentCount": stats.CommentCount,
			"likeCount":    stats.LikeCount,
		},
	}, nil
}

// playlistDocument maps playlist metadata. The member reference list is
// attached separately once resolved.
func playlistDocument(e domain.Entity) (domain.Document, error) {
	if err := validateEntity(e); err != nil {
		return nil, err
	}

	return domain.Document{
		fieldTitle:        e.Title,
		fieldDescription:  e.Description,
		fieldPublishedAt:  formatTimestamp(*e.PublishedAt),
		fieldThumbnailURL: e.ThumbnailURL,
		fieldVideosCount:  e.MemberCount,
	}, nil
}

func validateEntity(e domain.Entity) error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", domain.ErrMalformedEntity)
	}
	if e.PublishedAt == nil || e.PublishedAt.IsZero() {
		return fmt.Errorf("%w: %s %s has no published timestamp", domain.ErrMalformedEntity, e.Kind, e.ID)
	}
	return nil
}

// formatTimestamp renders timestamps as UTC RFC 3339 at second precision so
// stored values order lexically the same as chronologically.
func formatTimestamp(t time.Time) string {
	return normalizeTimestamp(t).Format(time.RFC3339)
}

func normalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func parseTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case string:
		return time.Parse(time.RFC3339, ts)
	case time.Time:
		return ts, nil
	case nil:
		return time.Time{}, fmt.Errorf("missing value")
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
}
