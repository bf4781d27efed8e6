package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

const moduleName = "migration"

const migrationsTable = "govern_schema_migrations"

// Migrations are embedded per driver because the serial column and partial
// index syntax differ across engines.
//
//go:embed migrations/*/*.sql
var migrationFS embed.FS

func databaseDriver(driver string, sqlDB *sql.DB) (database.Driver, error) {
	switch driver {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: migrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: migrationsTable})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database driver for migration: %s", driver)
	}
}

// Up applies all pending embedded migrations against the database.
func Up(driver string, sqlDB *sql.DB) error {
	sourceDriver, err := iofs.New(migrationFS, "migrations/"+driver)
	if err != nil {
		return exception.New(exception.KindInternal, moduleName, "failed to open embedded migrations", err)
	}

	dbDriver, err := databaseDriver(driver, sqlDB)
	if err != nil {
		return exception.New(exception.KindInternal, moduleName, "failed to create migration driver", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, driver, dbDriver)
	if err != nil {
		return exception.New(exception.KindInternal, moduleName, "failed to create migrate instance", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debugf("Database schema already up to date.")
			return nil
		}
		return exception.New(exception.KindInternal, moduleName, "migration failed", err)
	}
	logger.Infof("Database migrations applied.")
	return nil
}
