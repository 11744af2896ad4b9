package database

import (
	"fmt"
	"strings"

	"weatherbot/state"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database named by the database section of the config.
func Connect() (*gorm.DB, error) {
	cfg := state.State.Config
	return Open(cfg.Database["type"], cfg.Database["url"], cfg.SilentDbLogs)
}

func Open(dbType, dbUrl string, silent bool) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dbUrl)
	case "postgres", "postgresql":
		dialector = postgres.Open(dbUrl)
	case "mysql":
		dialector = mysql.Open(dbUrl)
	default:
		return nil, fmt.Errorf("unsupported database type : %q", dbType)
	}

	gormConfig := &gorm.Config{}
	if silent {
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("could not open %s database : %w", dbType, err)
	}
	return db, nil
}
