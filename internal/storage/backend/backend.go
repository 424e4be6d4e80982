// Package backend opens the storage.Storage selected by DB_DRIVER.
package backend

import (
	"context"
	"fmt"

	"github.com/fdg312/meal-hub/internal/config"
	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/fdg312/meal-hub/internal/storage/memory"
	"github.com/fdg312/meal-hub/internal/storage/postgres"
	"github.com/fdg312/meal-hub/internal/storage/sqlstore"
)

type Logger interface {
	Printf(format string, v ...any)
}

// Open connects the configured driver. It returns the storage and the driver
// actually in use.
func Open(ctx context.Context, cfg *config.Config) (storage.Storage, string, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, "", fmt.Errorf("DB_DRIVER=postgres requires DATABASE_URL")
		}
		st, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return st, config.DriverPostgres, nil

	case config.DriverSQLite:
		st, err := sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		return st, config.DriverSQLite, nil

	case config.DriverMySQL:
		if cfg.MySQLDSN == "" {
			return nil, "", fmt.Errorf("DB_DRIVER=mysql requires MYSQL_DSN")
		}
		st, err := sqlstore.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, "", err
		}
		return st, config.DriverMySQL, nil

	case config.DriverMemory, "":
		return memory.New(), config.DriverMemory, nil

	default:
		return nil, "", fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

// OpenOrMemory falls back to the in-memory store when the configured
// database cannot be reached.
func OpenOrMemory(ctx context.Context, cfg *config.Config, logger Logger) (storage.Storage, string) {
	st, driver, err := Open(ctx, cfg)
	if err != nil {
		logger.Printf("WARN storage: driver=%s unavailable: %v", cfg.DBDriver, err)
		logger.Printf("WARN storage: fallback to in-memory storage")
		return memory.New(), config.DriverMemory
	}
	logger.Printf("INFO storage: driver=%s connected", driver)
	return st, driver
}
