package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migrateDatabase "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateDatabase applies the embedded data migrations on top of the tables
// created by AutoMigrate.
func MigrateDatabase(db *gorm.DB, dbType string) error {
	m, err := newMigrate(db, dbType)
	if err != nil {
		return err
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations : %w", err)
	}
	return nil
}

// MigrationVersion reports the version of the last applied migration.
func MigrationVersion(db *gorm.DB, dbType string) (uint, bool, error) {
	m, err := newMigrate(db, dbType)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrate(db *gorm.DB, dbType string) (*migrate.Migrate, error) {
	sqlDb, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle : %w", err)
	}

	var (
		driver     migrateDatabase.Driver
		driverName string
	)
	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		driverName = "sqlite3"
		driver, err = sqlite3.WithInstance(sqlDb, &sqlite3.Config{})
	case "postgres", "postgresql":
		driverName = "postgres"
		driver, err = postgres.WithInstance(sqlDb, &postgres.Config{})
	case "mysql":
		driverName = "mysql"
		driver, err = mysql.WithInstance(sqlDb, &mysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported database type : %q", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migration driver : %w", driverName, err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations : %w", err)
	}

	return migrate.NewWithInstance("iofs", source, driverName, driver)
}
