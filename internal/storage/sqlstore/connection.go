// Package sqlstore implements the catalogue on a relational database
// (SQLite through modernc.org/sqlite, or PostgreSQL through lib/pq).
package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/specials/internal/common"
)

// Driver names as registered with database/sql
const (
	DriverSQLite   = "sqlite" // modernc.org/sqlite uses "sqlite" (not "sqlite3")
	DriverPostgres = "postgres"
)

// SQLDB manages the relational database connection
type SQLDB struct {
	db     *sqlx.DB
	driver string
	logger arbor.ILogger
	config *common.SQLConfig
}

// NewSQLDB opens the database, applies connection settings and runs migrations
func NewSQLDB(logger arbor.ILogger, driver string, config *common.SQLConfig) (*SQLDB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}

	if driver == DriverSQLite && !isMemoryDSN(config.DSN) {
		if err := os.MkdirAll(filepath.Dir(config.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLDB{
		db:     db,
		driver: driver,
		logger: logger,
		config: config,
	}

	if err := s.configure(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Str("driver", driver).Msg("SQL catalogue database initialized")
	return s, nil
}

// configure sets pool limits and, for SQLite, connection pragmas
func (s *SQLDB) configure() error {
	if s.driver == DriverPostgres {
		if s.config.MaxOpenConns > 0 {
			s.db.SetMaxOpenConns(s.config.MaxOpenConns)
		}
		return s.db.Ping()
	}

	// One connection: pragmas are per connection and an in-memory database
	// only exists on the connection that created it
	s.db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	if s.config.BusyTimeoutMS > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", s.config.BusyTimeoutMS))
	}
	if !isMemoryDSN(s.config.DSN) {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// DB returns the underlying database connection
func (s *SQLDB) DB() *sqlx.DB {
	return s.db
}

// Driver returns the database/sql driver name
func (s *SQLDB) Driver() string {
	return s.driver
}

// Close closes the database connection
func (s *SQLDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}
