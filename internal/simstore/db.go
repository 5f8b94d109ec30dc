package simstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migsqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	_ "github.com/mattn/go-sqlite3"
)

// sqlSchemas is an embedded file system containing the SQL migration
// files, embedded at compile time for portability.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS

// latestMigrationVersion is the latest migration version of the database.
//
// NOTE: This MUST be updated when a new migration is added.
const latestMigrationVersion uint = 1

// openSQLite opens a SQLite database connection with WAL mode enabled and
// appropriate pragmas for performance and reliability. An empty path
// opens an in-memory database.
func openSQLite(dbPath string) (*sql.DB, error) {
	dsn := "file::memory:?_foreign_keys=on"
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database "+
				"directory: %w", err)
		}

		dsn = fmt.Sprintf(
			"file:%s?_foreign_keys=on&_journal_mode=WAL&"+
				"_busy_timeout=5000",
			dbPath,
		)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer, multiple readers. An in-memory database vanishes
	// when its last connection closes, so the pool must never shrink to
	// zero.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	return db, nil
}

// configurePragmas sets additional SQLite pragmas for optimal performance.
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applyMigrations executes the embedded migration files against the
// database, up to the latest version.
func applyMigrations(db *sql.DB) error {
	driver, err := migsqlite.WithInstance(db, &migsqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := httpfs.New(http.FS(sqlSchemas), "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	mig, err := migrate.NewWithInstance("migrations", src, "sim", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	version, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("unable to determine current migration "+
			"version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version "+
			"%v, manual intervention required", version)
	}
	if version > latestMigrationVersion {
		return fmt.Errorf("database version %v is newer than the "+
			"latest migration version %v, refusing downgrade",
			version, latestMigrationVersion)
	}

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Debugf("Database migrated to version %d", latestMigrationVersion)

	return nil
}
