package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/banshee-data/maze.explorer/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrDirtySchema means a migration failed part way. The database needs
	// fixing by hand before runs can be recorded again.
	ErrDirtySchema = errors.New("db: schema is dirty")
	// ErrSchemaTooNew means the database was written by a newer explorer.
	ErrSchemaTooNew = errors.New("db: schema is newer than this build")
)

// migrateUp brings the schema to the latest embedded version.
func (db *DB) migrateUp() error {
	m, src, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close db.DB too.
	latest, err := lastVersion(src)
	if err != nil {
		return err
	}
	current, dirty, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	switch {
	case dirty:
		return fmt.Errorf("%w at version %d", ErrDirtySchema, current)
	case current > latest:
		return fmt.Errorf("%w: version %d, latest known %d", ErrSchemaTooNew, current, latest)
	case current == latest:
		return nil
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	monitoring.Logf("migrated %s from schema %d to %d", db.path, current, latest)
	return nil
}

// SchemaVersion is the applied migration version, 0 for an empty database.
func (db *DB) SchemaVersion() (version uint, dirty bool, err error) {
	m, _, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// lastVersion walks the migration source to its final version.
func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no migrations: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		v = next
	}
}

func (db *DB) newMigrate() (*migrate.Migrate, source.Driver, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, src, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) { monitoring.Debugf("migrate: "+format, v...) }
func (migrateLogger) Verbose() bool                  { return monitoring.Verbose() }
