// Package migrations holds the ledger schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var schemaFiles embed.FS

// ErrNoSchema is returned by Check for a database that was never migrated.
var ErrNoSchema = errors.New("ledger has no schema version")

// Up applies every pending migration. The caller keeps ownership of db.
func Up(db *sql.DB) error {
	m, err := open(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying ledger migrations: %w", err)
	}
	return nil
}

// Check returns nil when db is clean and at the version of the newest
// embedded migration.
func Check(db *sql.DB) error {
	m, err := open(db)
	if err != nil {
		return err
	}
	current, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return ErrNoSchema
	}
	if err != nil {
		return fmt.Errorf("reading ledger version: %w", err)
	}
	if dirty {
		return fmt.Errorf("ledger schema dirty at version %d", current)
	}

	latest, err := Latest()
	if err != nil {
		return err
	}
	if current != latest {
		return fmt.Errorf("ledger schema at version %d, binary expects %d", current, latest)
	}
	return nil
}

// Latest returns the version of the newest embedded up migration, read from
// the numeric file name prefix.
func Latest() (uint, error) {
	names, err := fs.Glob(schemaFiles, "files/*.up.sql")
	if err != nil {
		return 0, err
	}
	var latest uint
	for _, name := range names {
		prefix, _, _ := strings.Cut(path.Base(name), "_")
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("migration %s: bad version prefix", name)
		}
		latest = max(latest, uint(v))
	}
	if latest == 0 {
		return 0, fmt.Errorf("no embedded migrations")
	}
	return latest, nil
}

// open builds a migrate instance over db. It is never closed: closing it
// would close db.
func open(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(schemaFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("opening sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}
