package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"catalog_syncer/internal/domain"
)

const (
	upsertOverwriteQuery = `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()`

	// Top-level keys of the incoming document replace stored ones; other
	// stored keys are kept.
	upsertMergeQuery = `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET
			data = documents.data || EXCLUDED.data,
			updated_at = NOW()`
)

// DocumentStore keeps catalog documents as JSONB rows keyed by collection and id.
type DocumentStore struct {
	db *sqlx.DB
}

func NewDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Upsert(ctx context.Context, collection, id string, doc domain.Document, merge bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %v", domain.ErrStoreWrite, collection, id, err)
	}

	query := upsertOverwriteQuery
	if merge {
		query = upsertMergeQuery
	}

	if _, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, collection, id, types.JSONText(data)); err != nil {
		return fmt.Errorf("%w: upsert %s/%s: %v", domain.ErrStoreWrite, collection, id, err)
	}
	return nil
}

func (s *DocumentStore) QueryLatest(ctx context.Context, collection, orderBy string, desc bool) (domain.Document, bool, error) {
	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	query := `
		SELECT data FROM documents
		WHERE collection = $1 AND data->>$2 IS NOT NULL
		ORDER BY data->>$2 ` + direction + `
		LIMIT 1`

	return s.getOne(ctx, query, collection, orderBy)
}

// Get returns a single document. It is not used by the sync engine; it is a
// read helper for operators and tests.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, bool, error) {
	return s.getOne(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id)
}

func (s *DocumentStore) getOne(ctx context.Context, query string, args ...any) (domain.Document, bool, error) {
	var data types.JSONText
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &data, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrStoreRead, err)
	}

	var doc domain.Document
	if err := data.Unmarshal(&doc); err != nil {
		return nil, false, fmt.Errorf("%w: decode document: %v", domain.ErrStoreRead, err)
	}
	return doc, true, nil
}
