package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/fdg312/meal-hub/internal/config"
	"github.com/fdg312/meal-hub/internal/dbmigrate"
	"github.com/fdg312/meal-hub/internal/httpserver"
)

func main() {
	cfg := config.Load()

	printStartupBanner(cfg)

	if cfg.RunMigrationsOnStartup && cfg.DBDriver == config.DriverPostgres {
		dbURL, source, _, err := dbmigrate.SelectDatabaseURL(cfg, true)
		if err != nil {
			log.Fatalf("FATAL startup migrations: %v", err)
		}

		log.Printf("startup migrations: command=up using=%s", source)
		if err := dbmigrate.Run(context.Background(), "up", dbURL, dbmigrate.DefaultMigrationsDir); err != nil {
			log.Fatalf("FATAL startup migrations failed: %v", err)
		}
		log.Printf("startup migrations: completed")
	}

	validateProductionConfig(cfg)

	server := httpserver.New(cfg)
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("FATAL server: %v", err)
			server.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Println("shutdown: signal received, draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARN shutdown: %v", err)
		}
		log.Println("shutdown: completed")
	}
}

// printStartupBanner logs a one-time summary of the resolved configuration.
// Secrets are only shown as "set" / "not set".
func printStartupBanner(cfg *config.Config) {
	log.Println("========== Meal Hub API ==========")
	log.Printf("  env              = %s", cfg.Env)
	log.Printf("  port             = %d", cfg.Port)
	if cfg.GRPCPort > 0 {
		log.Printf("  grpc_health_port = %d", cfg.GRPCPort)
	} else {
		log.Printf("  grpc_health_port = disabled")
	}

	// ---- Database ----
	log.Println("---- database ----")
	log.Printf("  db_driver        = %s", cfg.DBDriver)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		log.Printf("  runtime_url      = %s", describeDBURL(cfg.DatabaseURL, cfg.DatabaseURLPooled))
		log.Printf("  pooled           = %s", setOrNot(cfg.DatabaseURLPooled))
		log.Printf("  direct           = %s", setOrNot(cfg.DatabaseURLDirect))
		log.Printf("  migrations_on_startup = %t", cfg.RunMigrationsOnStartup)
	case config.DriverSQLite:
		log.Printf("  sqlite_path      = %s", cfg.SQLitePath)
	case config.DriverMySQL:
		log.Printf("  mysql_dsn        = %s", setOrNot(cfg.MySQLDSN))
	default:
		log.Printf("  (data is kept in memory and lost on restart)")
	}

	// ---- Planner ----
	log.Println("---- planner ----")
	log.Printf("  max_range_days   = %d", cfg.PlanMaxRangeDays)
	log.Printf("  tolerate_read_errors = %t", cfg.ShoppingTolerateReadErr)
	log.Printf("  catalog_seed     = %s", nonEmptyOrDash(cfg.CatalogSeedFile))
	log.Printf("  catalog_watch    = %t", cfg.CatalogWatch)

	// ---- Idempotency ----
	log.Println("---- idempotency ----")
	if cfg.RedisAddr != "" {
		log.Printf("  store            = redis (%s db=%d)", cfg.RedisAddr, cfg.RedisDB)
	} else {
		log.Printf("  store            = memory")
	}
	log.Printf("  ttl              = %ds", cfg.IdempotencyTTLSeconds)

	// ---- Auth ----
	log.Println("---- auth ----")
	log.Printf("  auth_mode        = %s", cfg.AuthMode)
	log.Printf("  auth_required    = %t", cfg.AuthRequired)
	log.Printf("  default_user     = %s", nonEmptyOrDash(cfg.DefaultUserID))
	log.Printf("  jwt_secret       = %s", secretStatus(cfg.JWTSecret, "change_me"))

	// ---- Blob / S3 ----
	log.Println("---- blob ----")
	log.Printf("  blob_mode        = %s", cfg.Blob.Mode)
	log.Printf("  exports_mode     = %s (effective=%s)", displayExportsMode(cfg), cfg.Blob.EffectiveExportsMode())
	if cfg.Blob.EffectiveExportsMode() != config.BlobModeLocal {
		log.Printf("  s3: %s", cfg.Blob.S3.DiagnosticsSummary())
	}

	log.Println("==================================")
}

// validateProductionConfig performs fatal checks that only matter in non-local envs.
func validateProductionConfig(cfg *config.Config) {
	isProd := cfg.Env == "production" || cfg.Env == "staging"

	if cfg.Blob.EffectiveExportsMode() == config.BlobModeS3 {
		if missing := cfg.Blob.S3.MissingRequired(); len(missing) > 0 {
			log.Fatalf("FATAL blob: EXPORTS_MODE is 's3' but S3 config is incomplete, missing: %s", strings.Join(missing, ", "))
		}
	}

	if isProd && cfg.AuthRequired && cfg.JWTSecret == "change_me" {
		log.Fatalf("FATAL auth: JWT_SECRET must not be 'change_me' in %s with AUTH_REQUIRED=1", cfg.Env)
	}

	if isProd && cfg.DBDriver == config.DriverMemory {
		log.Fatalf("FATAL db: in-memory storage is not allowed in %s, set DB_DRIVER", cfg.Env)
	}

	if isProd && cfg.DBDriver == config.DriverPostgres && cfg.DatabaseURL == "" {
		log.Fatalf("FATAL db: no DATABASE_URL configured in %s", cfg.Env)
	}
}

// ---- helpers (no secrets) ----

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func nonEmptyOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func secretStatus(v, insecureDefault string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "not set"
	}
	if v == insecureDefault {
		return fmt.Sprintf("set (DEFAULT, insecure '%s')", insecureDefault)
	}
	return "set (custom)"
}

func describeDBURL(runtime, pooled string) string {
	if runtime == "" {
		return "not set (will use in-memory storage)"
	}
	if pooled != "" && runtime == pooled {
		return "set (via DATABASE_URL_POOLED)"
	}
	return "set"
}

func displayExportsMode(cfg *config.Config) string {
	if cfg.Blob.ExportsModeSet {
		return cfg.Blob.ExportsMode
	}
	return fmt.Sprintf("(inherits BLOB_MODE=%s)", cfg.Blob.Mode)
}
