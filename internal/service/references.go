package service

import (
	"context"
	"fmt"

	"catalog_syncer/internal/domain"
)

// ReferenceResolver lists the member video IDs of a playlist across every
// member page. It only reads from the source; member videos are written by
// the video sync.
type ReferenceResolver struct {
	source SourceClient
}

func NewReferenceResolver(source SourceClient) *ReferenceResolver {
	return &ReferenceResolver{source: source}
}

// Resolve returns the member IDs in source order. IDs are not checked
// against the store, so references to videos not synced yet are kept.
func (r *ReferenceResolver) Resolve(ctx context.Context, containerID string) ([]string, error) {
	fetch := func(ctx context.Context, cursor domain.Cursor) (domain.Page[string], error) {
		return r.source.ListMembers(ctx, containerID, cursor)
	}

	members := []string{}
	for page, err := range Paginate(ctx, fetch, "") {
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", containerID, err)
		}
		for _, id := range page.Items {
			if id != "" {
				members = append(members, id)
			}
		}
	}

	return members, nil
}
