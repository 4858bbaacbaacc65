package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_syncer/internal/domain"
)

type pagedFetcher struct {
	pages map[domain.Cursor]domain.Page[string]
	errAt map[domain.Cursor]error
	calls []domain.Cursor
}

func (f *pagedFetcher) fetch(_ context.Context, cursor domain.Cursor) (domain.Page[string], error) {
	f.calls = append(f.calls, cursor)
	if err, ok := f.errAt[cursor]; ok {
		return domain.Page[string]{}, err
	}
	return f.pages[cursor], nil
}

func TestPaginate_FollowsCursorsInOrder(t *testing.T) {
	f := &pagedFetcher{pages: map[domain.Cursor]domain.Page[string]{
		"":   {Items: []string{"a", "b"}, Next: "c2"},
		"c2": {Items: []string{"c"}, Next: "c3"},
		"c3": {Items: []string{"d"}},
	}}

	var items []string
	for page, err := range Paginate(context.Background(), f.fetch, "") {
		require.NoError(t, err)
		items = append(items, page.Items...)
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, items)
	assert.Equal(t, []domain.Cursor{"", "c2", "c3"}, f.calls)
}

func TestPaginate_EmptyListingYieldsOnePage(t *testing.T) {
	f := &pagedFetcher{}

	pages := 0
	for page, err := range Paginate(context.Background(), f.fetch, "") {
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		pages++
	}

	assert.Equal(t, 1, pages)
}

func TestPaginate_StartsFromGivenCursor(t *testing.T) {
	f := &pagedFetcher{pages: map[domain.Cursor]domain.Page[string]{
		"c2": {Items: []string{"c"}},
	}}

	for _, err := range Paginate(context.Background(), f.fetch, "c2") {
		require.NoError(t, err)
	}

	assert.Equal(t, []domain.Cursor{"c2"}, f.calls)
}

func TestPaginate_StopsOnError(t *testing.T) {
	fetchErr := errors.New("boom")
	f := &pagedFetcher{
		pages: map[domain.Cursor]domain.Page[string]{"": {Items: []string{"a"}, Next: "c2"}},
		errAt: map[domain.Cursor]error{"c2": fetchErr},
	}

	var errs []error
	pages := 0
	for _, err := range Paginate(context.Background(), f.fetch, "") {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pages++
	}

	assert.Equal(t, 1, pages)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], fetchErr)
}

func TestPaginate_DetectsCursorLoop(t *testing.T) {
	f := &pagedFetcher{pages: map[domain.Cursor]domain.Page[string]{
		"":   {Items: []string{"a"}, Next: "c2"},
		"c2": {Items: []string{"b"}, Next: "c3"},
		"c3": {Items: []string{"c"}, Next: "c2"},
	}}

	var lastErr error
	pages := 0
	for _, err := range Paginate(context.Background(), f.fetch, "") {
		if err != nil {
			lastErr = err
			continue
		}
		pages++
	}

	assert.Equal(t, 3, pages)
	assert.ErrorIs(t, lastErr, domain.ErrCursorLoop)
}

func TestPaginate_BreakStopsFetching(t *testing.T) {
	f := &pagedFetcher{pages: map[domain.Cursor]domain.Page[string]{
		"":   {Items: []string{"a"}, Next: "c2"},
		"c2": {Items: []string{"b"}},
	}}

	for range Paginate(context.Background(), f.fetch, "") {
		break
	}

	assert.Equal(t, []domain.Cursor{""}, f.calls)
}
