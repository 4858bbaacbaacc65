package service

import (
	"context"
	"fmt"
	"time"

	"catalog_syncer/internal/domain"
)

// CheckpointResolver derives the video sync lower bound from the newest
// stored video.
type CheckpointResolver struct {
	store StoreClient
}

func NewCheckpointResolver(store StoreClient) *CheckpointResolver {
	return &CheckpointResolver{store: store}
}

// Resolve returns the publishedAt of the most recently published stored
// video. ok is false when no video has been stored yet. Any read error is
// returned; it must never be mistaken for an empty store.
func (r *CheckpointResolver) Resolve(ctx context.Context) (checkpoint time.Time, ok bool, err error) {
	doc, found, err := r.store.QueryLatest(ctx, domain.KindVideo.Collection(), fieldPublishedAt, true)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest video: %w", err)
	}
	if !found {
		return time.Time{}, false, nil
	}

	checkpoint, err = parseTimestamp(doc[fieldPublishedAt])
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: latest video has no usable %s: %v", domain.ErrStoreRead, fieldPublishedAt, err)
	}

	return checkpoint, true, nil
}
