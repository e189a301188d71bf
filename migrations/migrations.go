// Package migrations embeds the users schema for every supported dialect and
// applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Skryldev/useradmin/db"
)

//go:embed sqlite3/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS

// Source returns the embedded migration source for driverName.
func Source(driverName string) (source.Driver, error) {
	switch driverName {
	case "sqlite3", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("migrations: no migrations for driver %q", driverName)
	}
	return iofs.New(FS, driverName)
}

// Up applies every pending migration to the database d points at. The
// migrator runs on a pool of its own so d stays open afterwards.
func Up(d *db.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMigrate(d)
	if err != nil {
		return err
	}
	m.Log = NewLogger(logger, false)
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("migrations: close failed", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	if v, dirty, err := m.Version(); err == nil {
		logger.Info("migrations: schema ready", "version", v, "dirty", dirty)
	}
	return nil
}

// New returns a migrator for the database d points at, for manual use. It
// holds its own connections; closing it leaves d open.
func New(d *db.DB, logger *slog.Logger) (*migrate.Migrate, error) {
	m, err := newMigrate(d)
	if err != nil {
		return nil, err
	}
	m.Log = NewLogger(logger, false)
	return m, nil
}

// newMigrate opens a second pool on d's DSN. Every golang-migrate database
// driver closes the *sql.DB it is handed when the migrator is closed.
// In-memory sqlite3 DSNs are per pool and therefore not supported.
func newMigrate(d *db.DB) (*migrate.Migrate, error) {
	name := d.DriverName()
	src, err := Source(name)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(name, d.DSN())
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("migrations: open: %w", err)
	}

	var drv database.Driver
	switch name {
	case "sqlite3":
		drv, err = migratesqlite3.WithInstance(sqldb, &migratesqlite3.Config{})
	case "postgres":
		drv, err = migratepostgres.WithInstance(sqldb, &migratepostgres.Config{})
	case "mysql":
		drv, err = migratemysql.WithInstance(sqldb, &migratemysql.Config{})
	}
	if err != nil {
		_ = sqldb.Close()
		_ = src.Close()
		return nil, fmt.Errorf("migrations: database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, drv)
	if err != nil {
		_ = drv.Close()
		_ = src.Close()
		return nil, fmt.Errorf("migrations: init: %w", err)
	}
	return m, nil
}

// Logger adapts slog to migrate.Logger.
type Logger struct {
	logger  *slog.Logger
	verbose bool
}

// NewLogger returns a migrate.Logger writing through logger.
func NewLogger(logger *slog.Logger, verbose bool) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, verbose: verbose}
}

func (l *Logger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *Logger) Verbose() bool { return l.verbose }

var _ migrate.Logger = (*Logger)(nil)
