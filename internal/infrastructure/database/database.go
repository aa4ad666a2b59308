package database

import (
	"strings"

	"sacco-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Open opens a GORM DB from DSN. "sqlite:<path>" opens a local SQLite file
// (single connection, for development); anything else is a Postgres DSN.
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind connection poolers (PgBouncer).
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if strings.HasPrefix(dsn, sqlitePrefix) {
		db, err := gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), cfg)
}

// AutoMigrate creates or updates every table, index and constraint.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(domain.All()...)
}

// SupportsRowLocks reports whether SELECT ... FOR UPDATE is available.
func SupportsRowLocks(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
