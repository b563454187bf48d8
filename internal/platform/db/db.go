package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	LogQueries   bool
}

// Open connects with the configured gorm driver and migrates the support tables.
func Open(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	if log == nil {
		log = logger.Nop()
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("missing database dsn")
	}
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "sqlite3":
		dialector = sqlite.Open(dsn)
	case DriverPostgres, "postgresql", "pg":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gl := gormLogger.Default.LogMode(gormLogger.Silent)
	if cfg.LogQueries {
		gl = gormLogger.Default.LogMode(gormLogger.Info)
	}
	log.Info("Connecting to database...", "driver", cfg.Driver)
	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gl,
	})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := AutoMigrate(gdb); err != nil {
		log.Error("Auto migration failed for support tables", "error", err)
		return nil, err
	}
	log.Info("Database ready", "driver", cfg.Driver)
	return gdb, nil
}

func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&support.Session{}, &support.Turn{}, &support.Ticket{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
