package dbmigrate

import (
	"fmt"

	"github.com/fdg312/meal-hub/internal/config"
)

const DefaultMigrationsDir = "migrations"

// SelectDatabaseURL selects the postgres URL for migrations.
// Priority: DIRECT > DATABASE_URL > POOLED (with warning).
// With requireDirect only DATABASE_URL_DIRECT is accepted.
func SelectDatabaseURL(cfg *config.Config, requireDirect bool) (dbURL string, source string, warning string, err error) {
	if cfg.DBDriver != "" && cfg.DBDriver != config.DriverPostgres {
		return "", "", "", fmt.Errorf("migrations need DB_DRIVER=postgres, got %s", cfg.DBDriver)
	}

	if requireDirect {
		if cfg.DatabaseURLDirect == "" {
			return "", "", "", fmt.Errorf("DATABASE_URL_DIRECT is required for DDL/migrations")
		}
		return cfg.DatabaseURLDirect, "DATABASE_URL_DIRECT", "", nil
	}

	switch {
	case cfg.DatabaseURLDirect != "":
		return cfg.DatabaseURLDirect, "DATABASE_URL_DIRECT", "", nil
	case cfg.DatabaseURLRaw != "":
		return cfg.DatabaseURLRaw, "DATABASE_URL", "", nil
	case cfg.DatabaseURLPooled != "":
		return cfg.DatabaseURLPooled, "DATABASE_URL_POOLED", "using pooled connection for DDL is not recommended; set DATABASE_URL_DIRECT", nil
	}

	return "", "", "", fmt.Errorf("no database URL configured (set DATABASE_URL_DIRECT or DATABASE_URL)")
}
