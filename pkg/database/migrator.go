package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/OldStager01/cloudpulse/internal/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const migrationsTable = "schema_migrations"

// Migrator applies the embedded SQL files for the connection's driver in
// lexical order. Applied versions are recorded so each file runs once.
type Migrator struct {
	db     *DB
	dir    string
	source fs.FS
}

func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db, dir: path.Join("migrations", db.driver), source: migrationsFS}
}

// Run applies every pending migration and returns how many were applied.
func (m *Migrator) Run(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}

	files, err := m.pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, file := range files {
		if err := m.apply(ctx, file); err != nil {
			return i, fmt.Errorf("migration %s: %w", file, err)
		}
	}
	return len(files), nil
}

// Applied lists recorded migration versions in the order they ran.
func (m *Migrator) Applied(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `SELECT version FROM `+migrationsTable+` ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", migrationsTable, err)
	}
	return nil
}

func (m *Migrator) pending(ctx context.Context) ([]string, error) {
	entries, err := fs.ReadDir(m.source, m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || done[version(name)] {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

func (m *Migrator) apply(ctx context.Context, filename string) error {
	content, err := fs.ReadFile(m.source, path.Join(m.dir, filename))
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"driver":    m.db.driver,
		"migration": filename,
	}).Info("Applying migration")

	return m.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			m.db.Rebind(`INSERT INTO `+migrationsTable+` (version) VALUES (?)`), version(filename))
		return err
	})
}

// version is the file name without its extension, e.g. "001_users".
func version(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}
