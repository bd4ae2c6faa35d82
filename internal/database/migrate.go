// migrate.go handles database migration using golang-migrate.
//
// Migrations are SQL files in the migrations/ directory. Each migration
// has an "up" (apply) and "down" (rollback) file. The migrate library
// tracks which migrations have been applied in a schema_migrations table.
package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // File source driver
	"go.uber.org/zap"
)

// RunMigrations applies all pending database migrations.
func (db *DB) RunMigrations(migrationsPath string, log *zap.Logger) error {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("database: no new migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Info("database migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
