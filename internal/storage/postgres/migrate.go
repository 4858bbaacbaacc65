package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Migration is one numbered schema change with its rollback.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// LoadMigrations reads NNN_name.up.sql / NNN_name.down.sql pairs from the
// root of fsys, sorted by version.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}

		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			m.Name = strings.TrimSuffix(rest, ".up.sql")
			m.Up = string(content)
		case strings.HasSuffix(rest, ".down.sql"):
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("incomplete migration for version %d", m.Version)
		}
		migrations = append(migrations, *m)
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return a.Version - b.Version
	})

	return migrations, nil
}

// Migrator applies migrations one transaction per version and tracks them
// in schema_migrations.
type Migrator struct {
	db         *sqlx.DB
	txManager  *TransactionManager
	migrations []Migration
	logger     *slog.Logger
}

func NewMigrator(db *sqlx.DB, fsys fs.FS, logger *slog.Logger) (*Migrator, error) {
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}

	return &Migrator{
		db:         db,
		txManager:  NewTransactionManager(db),
		migrations: migrations,
		logger:     logger,
	}, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}

	applied := 0
	for _, migration := range m.migrations {
		err := m.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			exec := GetExecutor(ctx, m.db)

			var exists bool
			if err := sqlx.GetContext(ctx, exec, &exists,
				"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", migration.Version,
			); err != nil {
				return fmt.Errorf("check migration status: %w", err)
			}
			if exists {
				return nil
			}

			if _, err := exec.ExecContext(ctx, migration.Up); err != nil {
				return fmt.Errorf("execute up: %w", err)
			}
			if _, err := exec.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", migration.Version, migration.Name,
			); err != nil {
				return fmt.Errorf("record migration: %w", err)
			}

			applied++
			m.logger.Info("applied migration", "version", migration.Version, "name", migration.Name)
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d: %w", migration.Version, err)
		}
	}

	return applied, nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	return m.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, m.db)

		var current int
		if err := sqlx.GetContext(ctx, exec, &current,
			"SELECT COALESCE(MAX(version), 0) FROM schema_migrations",
		); err != nil {
			return fmt.Errorf("get current version: %w", err)
		}
		if current == 0 {
			return fmt.Errorf("no migrations to roll back")
		}

		idx := slices.IndexFunc(m.migrations, func(mg Migration) bool { return mg.Version == current })
		if idx < 0 {
			return fmt.Errorf("migration version %d not found", current)
		}

		if _, err := exec.ExecContext(ctx, m.migrations[idx].Down); err != nil {
			return fmt.Errorf("execute down %d: %w", current, err)
		}
		if _, err := exec.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = $1", current); err != nil {
			return fmt.Errorf("remove migration record: %w", err)
		}

		m.logger.Info("rolled back migration", "version", current, "name", m.migrations[idx].Name)
		return nil
	})
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}
