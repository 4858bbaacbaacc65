package domain

import "time"

// Kind identifies which catalog an entity belongs to.
type Kind string

const (
	KindVideo    Kind = "videos"
	KindPlaylist Kind = "playlists"
)

// Collection returns the store collection entities of this kind are written to.
func (k Kind) Collection() string {
	return string(k)
}

// Entity is a normalized record from the source API. Listing calls may
// return summaries carrying only the ID; detail calls fill the rest.
type Entity struct {
	ID           string
	Kind         Kind
	Title        string
	Description  string
	PublishedAt  *time.Time // nil when the source omitted it
	ThumbnailURL string
	Tags         []string

	// Video only.
	Stats *VideoStats

	// Playlist only.
	MemberCount int64
}

type VideoStats struct {
	ViewCount    uint64
	CommentCount uint64
	LikeCount    uint64
}

// Query scopes a listing call.
type Query struct {
	Kind           Kind
	ChannelID      string
	PublishedAfter *time.Time
	PageSize       int
}

// Cursor is an opaque continuation token round-tripped to the source unmodified.
type Cursor string

// HasMore reports whether the source has more data after the page carrying this cursor.
func (c Cursor) HasMore() bool {
	return c != ""
}

// Page is one batch of results plus the cursor for the next batch.
type Page[T any] struct {
	Items []T
	Next  Cursor
}

// Document is the stored representation of an entity.
type Document map[string]any
