// Package sqlite is a single-file document store for local runs.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"catalog_syncer/internal/domain"
)

//go:embed schema.sql
var schema string

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: writes are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}

// DocumentStore keeps catalog documents as JSON text rows.
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

	update := "data = excluded.data"
	if merge {
		update = "data = json_patch(documents.data, excluded.data)"
	}

	query := `
		INSERT INTO documents (collection, id, data)
		VALUES (?, ?, json(?))
		ON CONFLICT (collection, id) DO UPDATE SET
			` + update + `,
			updated_at = CURRENT_TIMESTAMP`

	if _, err := s.db.ExecContext(ctx, query, collection, id, string(data)); err != nil {
		return fmt.Errorf("%w: upsert %s/%s: %v", domain.ErrStoreWrite, collection, id, err)
	}
	return nil
}

func (s *DocumentStore) QueryLatest(ctx context.Context, collection, orderBy string, desc bool) (domain.Document, bool, error) {
	if !fieldName.MatchString(orderBy) {
		return nil, false, fmt.Errorf("%w: invalid field name %q", domain.ErrStoreRead, orderBy)
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	query := `
		SELECT data FROM documents
		WHERE collection = ? AND json_extract(data, ?) IS NOT NULL
		ORDER BY json_extract(data, ?) ` + direction + `
		LIMIT 1`

	path := "$." + orderBy
	return s.getOne(ctx, query, collection, path, path)
}

// Get returns a single document. It is not used by the sync engine; it is a
// read helper for operators and tests.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, bool, error) {
	return s.getOne(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id)
}

// Count returns the number of documents in a collection. Like Get, it is a
// read helper for operators and tests.
func (s *DocumentStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection); err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", domain.ErrStoreRead, collection, err)
	}
	return n, nil
}

func (s *DocumentStore) getOne(ctx context.Context, query string, args ...any) (domain.Document, bool, error) {
	var data string
	err := s.db.GetContext(ctx, &data, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrStoreRead, err)
	}

	var doc domain.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, false, fmt.Errorf("%w: decode document: %v", domain.ErrStoreRead, err)
	}
	return doc, true, nil
}
