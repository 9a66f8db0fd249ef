// Package database provides database connection management for hlsforge.
package database

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jmylchreest/hlsforge/internal/config"
	"github.com/jmylchreest/hlsforge/internal/models"
)

// Open creates a SQLite-backed GORM connection and runs migrations.
//
// The pure Go driver (github.com/glebarez/sqlite -> modernc.org/sqlite) is
// used to avoid CGO. PRAGMAs are applied via DSN parameters so they hold
// for every pooled connection.
func Open(cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	dsn := cfg.DSN
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=busy_timeout(30000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormLogLevel(cfg.LogLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	// SQLite in WAL mode allows concurrent readers but a single writer;
	// keep the pool small to limit lock contention.
	sqlDB.SetMaxOpenConns(6)
	sqlDB.SetMaxIdleConns(3)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database ready", slog.String("dsn", cfg.DSN))
	return db, nil
}

// Migrate runs schema migrations for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Episode{}); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// gormLogLevel maps the configured level string to a GORM logger.
func gormLogLevel(level string) gormlogger.Interface {
	switch level {
	case "silent":
		return gormlogger.Default.LogMode(gormlogger.Silent)
	case "info":
		return gormlogger.Default.LogMode(gormlogger.Info)
	case "error":
		return gormlogger.Default.LogMode(gormlogger.Error)
	default:
		return gormlogger.Default.LogMode(gormlogger.Warn)
	}
}
