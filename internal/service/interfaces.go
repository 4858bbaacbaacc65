package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"catalog_syncer/internal/domain"
)

// SourceClient reads entities from the upstream API one page at a time.
type SourceClient interface {
	ListEntities(ctx context.Context, query domain.Query, cursor domain.Cursor) (domain.Page[domain.Entity], error)
	GetEntityDetails(ctx context.Context, ids []string) ([]domain.Entity, error)
	ListMembers(ctx context.Context, containerID string, cursor domain.Cursor) (domain.Page[string], error)
	MaxBatchSize() int
}

// StoreClient is the document store holding the synced catalog.
type StoreClient interface {
	// QueryLatest returns the document with the greatest orderBy value
	// (smallest when desc is false). found is false for an empty collection.
	QueryLatest(ctx context.Context, collection, orderBy string, desc bool) (doc domain.Document, found bool, err error)
	Upsert(ctx context.Context, collection, id string, doc domain.Document, merge bool) error
}

type SyncStateStore interface {
	Get(ctx context.Context, kind domain.Kind) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type Publisher interface {
	Publish(ctx context.Context, event domain.DocumentEvent) error
	Close() error
}
