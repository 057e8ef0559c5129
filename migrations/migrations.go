// Package migrations embeds the schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

//go:embed *.sql
var files embed.FS

// LatestVersion is the newest schema version shipped with this binary.
//
// NOTE: This MUST be updated when a new migration is added.
const LatestVersion uint = 1

// Target moves a migrate instance to some version.
type Target func(m *migrate.Migrate) error

var (
	// Up applies every pending migration.
	Up Target = func(m *migrate.Migrate) error { return m.Up() }
	// Down reverts every migration.
	Down Target = func(m *migrate.Migrate) error { return m.Down() }
)

// Steps moves n migrations forward, or backward when n is negative.
func Steps(n int) Target {
	return func(m *migrate.Migrate) error { return m.Steps(n) }
}

// ErrDirty means a previous migration failed half way.
var ErrDirty = errors.New("database is in a dirty migration state")

type migrateLogger struct {
	log *logger.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Info(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

func (l migrateLogger) Verbose() bool { return false }

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(files, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("init migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	m.Log = migrateLogger{log: logger.Named("migrations")}
	return m, nil
}

// Apply runs target against db. A database already at the target is not
// an error. A dirty database is refused.
func Apply(db *sql.DB, target Target) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirty, version)
	}

	if err := target(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Version reports the applied schema version. It returns 0, false, nil on
// an empty database.
func Version(db *sql.DB) (uint, bool, error) {
	m, err := newMigrate(db)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return v, dirty, nil
}
