package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite" // Pure Go sqlite driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the SQLite file holding the saved list and the model call log.
type DB struct {
	SQL  *sql.DB
	Path string
}

// Open creates the parent directory if needed, migrates the schema and
// returns a handle limited to one connection, since SQLite has one writer.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("database: create directory for %s: %w", path, err)
	}
	if err := Migrate(path); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database: ping %s: %w", path, err)
	}
	return &DB{SQL: conn, Path: path}, nil
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

// SchemaVersion reports the last applied migration. dirty is set when that
// migration failed halfway and needs a manual fix.
func (d *DB) SchemaVersion() (version uint, dirty bool, err error) {
	m, err := migrator(d.Path)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("database: read schema version: %w", err)
	}
	return version, dirty, nil
}

// Migrate brings the schema at path up to date. Running it on a current
// schema is a no-op.
func Migrate(path string) error {
	m, err := migrator(path)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("database: migrate %s: %w", path, err)
	}
	return nil
}

func migrator(path string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("database: load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return nil, fmt.Errorf("database: prepare migrations for %s: %w", path, err)
	}
	return m, nil
}
