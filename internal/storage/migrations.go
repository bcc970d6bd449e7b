package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Migration represents a single schema migration
type Migration struct {
	Version string
	Up      []string
	Down    []string
}

// AllMigrations returns migrations in ascending version order
func AllMigrations() []Migration {
	return []Migration{
		{
			Version: "1.0.0",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS schema_version (
					version TEXT PRIMARY KEY,
					applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS documents (
					id TEXT PRIMARY KEY,
					frontmatter TEXT NOT NULL DEFAULT '{}',
					content_hash BLOB NOT NULL,
					total_chunks INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS chunks (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					doc_id TEXT NOT NULL,
					chunk_key TEXT NOT NULL UNIQUE,
					chunk_index INTEGER NOT NULL,
					total_chunks INTEGER NOT NULL,
					content TEXT NOT NULL,
					content_hash BLOB NOT NULL,
					token_count INTEGER NOT NULL,
					overlap_start INTEGER NOT NULL DEFAULT 0,
					overlap_end INTEGER NOT NULL DEFAULT 0,
					frontmatter TEXT NOT NULL DEFAULT '{}',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id, chunk_index)`,
				`CREATE TABLE IF NOT EXISTS embeddings (
					chunk_id INTEGER PRIMARY KEY,
					vector BLOB NOT NULL,
					dimension INTEGER NOT NULL,
					provider TEXT NOT NULL,
					model TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (chunk_id) REFERENCES chunks(id) ON DELETE CASCADE
				)`,
				`CREATE TABLE IF NOT EXISTS cluster_runs (
					id TEXT PRIMARY KEY,
					algorithm TEXT NOT NULL,
					cluster_count INTEGER NOT NULL,
					noise_count INTEGER NOT NULL,
					silhouette REAL,
					input_dim INTEGER NOT NULL,
					projected_dim INTEGER NOT NULL DEFAULT 0,
					projection BLOB,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS centroids (
					run_id TEXT NOT NULL,
					label INTEGER NOT NULL,
					vector BLOB NOT NULL,
					PRIMARY KEY (run_id, label),
					FOREIGN KEY (run_id) REFERENCES cluster_runs(id) ON DELETE CASCADE
				)`,
				`CREATE TABLE IF NOT EXISTS assignments (
					run_id TEXT NOT NULL,
					chunk_id INTEGER NOT NULL,
					cluster TEXT NOT NULL,
					PRIMARY KEY (run_id, chunk_id),
					FOREIGN KEY (run_id) REFERENCES cluster_runs(id) ON DELETE CASCADE,
					FOREIGN KEY (chunk_id) REFERENCES chunks(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX IF NOT EXISTS idx_assignments_cluster ON assignments(run_id, cluster)`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS assignments`,
				`DROP TABLE IF EXISTS centroids`,
				`DROP TABLE IF EXISTS cluster_runs`,
				`DROP TABLE IF EXISTS embeddings`,
				`DROP TABLE IF EXISTS chunks`,
				`DROP TABLE IF EXISTS documents`,
				`DROP TABLE IF EXISTS schema_version`,
			},
		},
	}
}

// ApplyMigrations brings the database up to the latest schema version
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	migrations := AllMigrations()
	sort.Slice(migrations, func(i, j int) bool {
		vi := semver.MustParse(migrations[i].Version)
		vj := semver.MustParse(migrations[j].Version)
		return vi.LessThan(vj)
	})

	for _, m := range migrations {
		v := semver.MustParse(m.Version)
		if current != nil && !v.GreaterThan(current) {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Version, err)
		}

		if err := runMigration(ctx, tx, m); err != nil {
			_ = tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Version, err)
		}
	}

	return nil
}

func runMigration(ctx context.Context, tx *sql.Tx, m Migration) error {
	for _, stmt := range m.Up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s: %w", m.Version, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Version, err)
	}
	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, fmt.Errorf("read schema versions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var latest *semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan schema version: %w", err)
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("parse schema version %q: %w", raw, err)
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
		}
	}
	return latest, rows.Err()
}
