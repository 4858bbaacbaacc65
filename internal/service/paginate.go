package service

import (
	"context"
	"fmt"
	"iter"

	"catalog_syncer/internal/domain"
)

// PageFetcher fetches the page that starts at cursor. An empty cursor means
// the beginning of the listing.
type PageFetcher[T any] func(ctx context.Context, cursor domain.Cursor) (domain.Page[T], error)

// Paginate walks a paginated listing lazily, one fetch per pulled page, in
// the order the source returns them. The sequence ends after the first page
// without a continuation cursor. A fetch error is yielded once and ends the
// sequence; there is no resuming from the failed cursor.
func Paginate[T any](ctx context.Context, fetch PageFetcher[T], start domain.Cursor) iter.Seq2[domain.Page[T], error] {
	return func(yield func(domain.Page[T], error) bool) {
		seen := make(map[domain.Cursor]struct{})
		cursor := start

		for {
			if cursor.HasMore() {
				seen[cursor] = struct{}{}
			}

			page, err := fetch(ctx, cursor)
			if err != nil {
				yield(domain.Page[T]{}, err)
				return
			}

			if !yield(page, nil) {
				return
			}

			if !page.Next.HasMore() {
				return
			}

			if _, dup := seen[page.Next]; dup {
				yield(domain.Page[T]{}, fmt.Errorf("%w: %q", domain.ErrCursorLoop, page.Next))
				return
			}

			cursor = page.Next
		}
	}
}
