package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"catalog_syncer/internal/domain"
)

// MaxPageSize is the largest page and detail batch the Data API accepts.
const MaxPageSize = 50

// Config holds YouTube source configuration.
type Config struct {
	APIKey            string
	Endpoint          string
	Timeout           time.Duration
	BatchSize         int
	RequestsPerSecond float64

	// HTTPClient replaces the default transport. The API key is still
	// attached to every request.
	HTTPClient *http.Client
}

// Source reads a channel's videos and playlists through the YouTube Data API v3.
type Source struct {
	service   *ytapi.Service
	limiter   *rate.Limiter
	batchSize int
	logger    *slog.Logger
}

// New creates a new YouTube source.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Source, error) {
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &transport.APIKey{
			Key:       cfg.APIKey,
			Transport: base.Transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > MaxPageSize {
		batchSize = MaxPageSize
	}

	return &Source{
		service:   service,
		limiter:   rate.NewLimiter(limit, 1),
		batchSize: batchSize,
		logger:    logger.With("source", "youtube"),
	}, nil
}

// MaxBatchSize returns how many IDs one detail lookup may carry.
func (s *Source) MaxBatchSize() int {
	return s.batchSize
}

// ListEntities lists one page of a channel's videos or playlists. Video
// pages come from search and carry only IDs, newest first.
func (s *Source) ListEntities(ctx context.Context, query domain.Query, cursor domain.Cursor) (domain.Page[domain.Entity], error) {
	switch query.Kind {
	case domain.KindVideo:
		return s.searchVideos(ctx, query, cursor)
	case domain.KindPlaylist:
		return s.listPlaylists(ctx, query, cursor)
	default:
		return domain.Page[domain.Entity]{}, fmt.Errorf("unsupported kind %q", query.Kind)
	}
}

func (s *Source) searchVideos(ctx context.Context, query domain.Query, cursor domain.Cursor) (domain.Page[domain.Entity], error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.Page[domain.Entity]{}, fmt.Errorf("search videos: %w", err)
	}

	call := s.service.Search.List([]string{"id"}).
		ChannelId(query.ChannelID).
		Type("video").
		Order("date").
		MaxResults(pageSize(query.PageSize))
	if query.PublishedAfter != nil {
		call = call.PublishedAfter(query.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if cursor.HasMore() {
		call = call.PageToken(string(cursor))
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return domain.Page[domain.Entity]{}, classify("search videos", err)
	}

	page := domain.Page[domain.Entity]{
		Items: make([]domain.Entity, 0, len(resp.Items)),
		Next:  domain.Cursor(resp.NextPageToken),
	}
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		page.Items = append(page.Items, domain.Entity{ID: item.Id.VideoId, Kind: domain.KindVideo})
	}

	s.logger.Debug("search page", "results", len(page.Items), "has_more", page.Next.HasMore())

	return page, nil
}

func (s *Source) listPlaylists(ctx context.Context, query domain.Query, cursor domain.Cursor) (domain.Page[domain.Entity], error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.Page[domain.Entity]{}, fmt.Errorf("list playlists: %w", err)
	}

	call := s.service.Playlists.List([]string{"snippet", "contentDetails"}).
		ChannelId(query.ChannelID).
		MaxResults(pageSize(query.PageSize))
	if cursor.HasMore() {
		call = call.PageToken(string(cursor))
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return domain.Page[domain.Entity]{}, classify("list playlists", err)
	}

	page := domain.Page[domain.Entity]{
		Items: make([]domain.Entity, 0, len(resp.Items)),
		Next:  domain.Cursor(resp.NextPageToken),
	}
	for _, item := range resp.Items {
		page.Items = append(page.Items, s.playlistEntity(item))
	}

	return page, nil
}

// GetEntityDetails fetches full video records. IDs unknown to the API are
// absent from the result.
func (s *Source) GetEntityDetails(ctx context.Context, ids []string) ([]domain.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > s.batchSize {
		return nil, fmt.Errorf("detail batch of %d exceeds limit %d", len(ids), s.batchSize)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("get video details: %w", err)
	}

	resp, err := s.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("get video details", err)
	}

	entities := make([]domain.Entity, 0, len(resp.Items))
	for _, item := range resp.Items {
		entities = append(entities, s.videoEntity(item))
	}

	return entities, nil
}

// ListMembers lists one page of a playlist's video IDs in playlist order.
func (s *Source) ListMembers(ctx context.Context, containerID string, cursor domain.Cursor) (domain.Page[string], error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.Page[string]{}, fmt.Errorf("list playlist items: %w", err)
	}

	call := s.service.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(containerID).
		MaxResults(MaxPageSize)
	if cursor.HasMore() {
		call = call.PageToken(string(cursor))
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return domain.Page[string]{}, classify("list playlist items", err)
	}

	page := domain.Page[string]{
		Items: make([]string, 0, len(resp.Items)),
		Next:  domain.Cursor(resp.NextPageToken),
	}
	for _, item := range resp.Items {
		if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
			continue
		}
		page.Items = append(page.Items, item.ContentDetails.VideoId)
	}

	return page, nil
}

func pageSize(n int) int64 {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return int64(n)
}

// rateLimitReasons are the 403 reasons the Data API uses for quota exhaustion.
var rateLimitReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s: %v", domain.ErrSourceRateLimited, op, err)
		}
		if apiErr.Code == http.StatusForbidden {
			for _, item := range apiErr.Errors {
				if rateLimitReasons[item.Reason] {
					return fmt.Errorf("%w: %s: %v", domain.ErrSourceRateLimited, op, err)
				}
			}
		}
	}

	return fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, op, err)
}
