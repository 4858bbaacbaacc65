package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"catalog_syncer/internal/domain"
)

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, kind domain.Kind) (*domain.SyncState, error) {
	var state domain.SyncState
	query := `
		SELECT kind, last_synced_at, last_run_id, last_checkpoint, total_synced
		FROM sync_state
		WHERE kind = ?`

	err := s.db.GetContext(ctx, &state, query, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.SyncState{Kind: kind}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: sync state %s: %v", domain.ErrStoreRead, kind, err)
	}
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	query := `
		INSERT INTO sync_state (kind, last_synced_at, last_run_id, last_checkpoint, total_synced)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind) DO UPDATE SET
			last_synced_at = excluded.last_synced_at,
			last_run_id = excluded.last_run_id,
			last_checkpoint = excluded.last_checkpoint,
			total_synced = excluded.total_synced`

	_, err := s.db.ExecContext(ctx, query,
		state.Kind,
		state.LastSyncedAt,
		state.LastRunID,
		state.LastCheckpoint,
		state.TotalSynced,
	)
	if err != nil {
		return fmt.Errorf("%w: sync state %s: %v", domain.ErrStoreWrite, state.Kind, err)
	}
	return nil
}
