package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

// Statements are written in the subset shared by SQLite and PostgreSQL.
var migrations = []migration{
	{version: 1, name: "catalogue_schema", stmts: []string{
		`CREATE TABLE IF NOT EXISTS stores (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			logo_url TEXT NOT NULL DEFAULT '',
			website_url TEXT NOT NULL DEFAULT '',
			specials_day TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS specials (
			id TEXT PRIMARY KEY,
			store_id BIGINT NOT NULL REFERENCES stores(id),
			name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			size TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL,
			was_price DOUBLE PRECISION,
			discount_percent INTEGER,
			image_url TEXT NOT NULL DEFAULT '',
			product_url TEXT NOT NULL DEFAULT '',
			valid_from TEXT NOT NULL,
			valid_to TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			scraped_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			CHECK (valid_to >= valid_from)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_specials_store ON specials(store_id)`,
		`CREATE INDEX IF NOT EXISTS idx_specials_valid_to ON specials(valid_to)`,
	}},
	{version: 2, name: "everyday_catalogue", stmts: []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_key TEXT NOT NULL UNIQUE,
			brand TEXT NOT NULL DEFAULT '',
			size TEXT NOT NULL DEFAULT '',
			barcode TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS store_products (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			store_id BIGINT NOT NULL REFERENCES stores(id),
			image_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			UNIQUE (product_id, store_id)
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			id TEXT PRIMARY KEY,
			store_product_id TEXT NOT NULL UNIQUE REFERENCES store_products(id),
			price DOUBLE PRECISION NOT NULL,
			unit_price TEXT NOT NULL DEFAULT '',
			is_special BOOLEAN NOT NULL DEFAULT FALSE,
			source TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
	}},
}

// migrate applies every migration not yet recorded in schema_migrations
func (s *SQLDB) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return err
	}

	for _, m := range migrations {
		if err := s.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}

	return nil
}

func (s *SQLDB) runMigration(ctx context.Context, m migration) error {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?"), m.version); err != nil {
		return err
	}
	if count > 0 {
		return nil // Already applied
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if err := recordMigration(ctx, tx, m); err != nil {
		return err
	}

	s.logger.Debug().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	return tx.Commit()
}

func recordMigration(ctx context.Context, tx *sqlx.Tx, m migration) error {
	_, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"),
		m.version, m.name, time.Now().UTC().Format(time.RFC3339))
	return err
}
