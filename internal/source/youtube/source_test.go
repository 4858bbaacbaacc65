package youtube

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_syncer/internal/domain"
)

func newTestSource(t *testing.T, handler http.Handler) *Source {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	src, err := New(context.Background(), Config{
		APIKey:     "test-key",
		Endpoint:   server.URL + "/",
		Timeout:    5 * time.Second,
		BatchSize:  2,
		HTTPClient: server.Client(),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return src
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestSearchVideos(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "UC123", q.Get("channelId"))
		assert.Equal(t, "video", q.Get("type"))
		assert.Equal(t, "date", q.Get("order"))
		assert.Equal(t, "25", q.Get("maxResults"))
		assert.Equal(t, "2024-03-01T10:00:00Z", q.Get("publishedAfter"))
		assert.Equal(t, "CAUQAA", q.Get("pageToken"))

		writeJSON(w, http.StatusOK, `{
			"nextPageToken": "CAoQAA",
			"items": [
				{"id": {"kind": "youtube#video", "videoId": "vid1"}},
				{"id": {"kind": "youtube#video"}},
				{"id": {"kind": "youtube#video", "videoId": "vid2"}}
			]
		}`)
	})
	src := newTestSource(t, mux)

	after := time.Date(2024, 3, 1, 11, 0, 0, 0, time.FixedZone("CET", 3600))
	page, err := src.ListEntities(context.Background(), domain.Query{
		Kind:           domain.KindVideo,
		ChannelID:      "UC123",
		PublishedAfter: &after,
		PageSize:       25,
	}, "CAUQAA")

	require.NoError(t, err)
	assert.Equal(t, domain.Cursor("CAoQAA"), page.Next)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "vid1", page.Items[0].ID)
	assert.Equal(t, "vid2", page.Items[1].ID)
	assert.Equal(t, domain.KindVideo, page.Items[1].Kind)
}

func TestGetEntityDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"vid1", "vid2"}, r.URL.Query()["id"])

		writeJSON(w, http.StatusOK, `{
			"items": [{
				"id": "vid1",
				"snippet": {
					"title": "First",
					"description": "desc",
					"publishedAt": "2024-03-02T08:00:00Z",
					"tags": ["go", "sync"],
					"thumbnails": {"default": {"url": "https://i.ytimg.com/vi/vid1/default.jpg"}}
				},
				"statistics": {"viewCount": "120", "likeCount": "7", "commentCount": "3"}
			}, {
				"id": "vid2",
				"snippet": {"title": "Broken", "publishedAt": "yesterday"}
			}]
		}`)
	})
	src := newTestSource(t, mux)

	entities, err := src.GetEntityDetails(context.Background(), []string{"vid1", "vid2"})

	require.NoError(t, err)
	require.Len(t, entities, 2)

	v := entities[0]
	assert.Equal(t, "First", v.Title)
	assert.Equal(t, "desc", v.Description)
	assert.Equal(t, []string{"go", "sync"}, v.Tags)
	assert.Equal(t, "https://i.ytimg.com/vi/vid1/default.jpg", v.ThumbnailURL)
	require.NotNil(t, v.PublishedAt)
	assert.True(t, v.PublishedAt.Equal(time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)))
	require.NotNil(t, v.Stats)
	assert.Equal(t, domain.VideoStats{ViewCount: 120, CommentCount: 3, LikeCount: 7}, *v.Stats)

	assert.Nil(t, entities[1].PublishedAt)
	assert.Nil(t, entities[1].Stats)
}

func TestGetEntityDetails_RejectsOversizedBatch(t *testing.T) {
	src := newTestSource(t, http.NotFoundHandler())

	_, err := src.GetEntityDetails(context.Background(), []string{"a", "b", "c"})

	assert.Error(t, err)
	assert.Equal(t, 2, src.MaxBatchSize())
}

func TestListPlaylists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/playlists", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UC123", r.URL.Query().Get("channelId"))
		assert.Equal(t, "", r.URL.Query().Get("pageToken"))

		writeJSON(w, http.StatusOK, `{
			"items": [{
				"id": "PL1",
				"snippet": {"title": "Talks", "publishedAt": "2023-11-05T12:30:00Z"},
				"contentDetails": {"itemCount": 12}
			}]
		}`)
	})
	src := newTestSource(t, mux)

	page, err := src.ListEntities(context.Background(), domain.Query{Kind: domain.KindPlaylist, ChannelID: "UC123"}, "")

	require.NoError(t, err)
	assert.False(t, page.Next.HasMore())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "PL1", page.Items[0].ID)
	assert.Equal(t, "Talks", page.Items[0].Title)
	assert.Equal(t, int64(12), page.Items[0].MemberCount)
	require.NotNil(t, page.Items[0].PublishedAt)
}

func TestListMembers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PL1", r.URL.Query().Get("playlistId"))
		assert.Equal(t, "50", r.URL.Query().Get("maxResults"))

		writeJSON(w, http.StatusOK, `{
			"nextPageToken": "next",
			"items": [
				{"contentDetails": {"videoId": "vid9"}},
				{"contentDetails": {}},
				{"contentDetails": {"videoId": "vid3"}}
			]
		}`)
	})
	src := newTestSource(t, mux)

	page, err := src.ListMembers(context.Background(), "PL1", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"vid9", "vid3"}, page.Items)
	assert.Equal(t, domain.Cursor("next"), page.Next)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "quota exceeded",
			status:  http.StatusForbidden,
			body:    `{"error": {"code": 403, "message": "quota", "errors": [{"reason": "quotaExceeded"}]}}`,
			wantErr: domain.ErrSourceRateLimited,
		},
		{
			name:    "too many requests",
			status:  http.StatusTooManyRequests,
			body:    `{"error": {"code": 429, "message": "slow down"}}`,
			wantErr: domain.ErrSourceRateLimited,
		},
		{
			name:    "forbidden for another reason",
			status:  http.StatusForbidden,
			body:    `{"error": {"code": 403, "message": "nope", "errors": [{"reason": "forbidden"}]}}`,
			wantErr: domain.ErrSourceUnavailable,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error": {"code": 500, "message": "backend"}}`,
			wantErr: domain.ErrSourceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))

			_, err := src.ListMembers(context.Background(), "PL1", "")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
