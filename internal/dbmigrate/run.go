package dbmigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fdg312/meal-hub/migrations"
)

// Run applies a goose command. An empty migrationsDir, or the default one
// when it is missing on disk, uses the migrations embedded in the binary.
func Run(ctx context.Context, command string, dbURL string, migrationsDir string) error {
	if dbURL == "" {
		return fmt.Errorf("database URL is empty")
	}

	fsys, dir := migrationSource(migrationsDir)
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, dir); err != nil {
		return fmt.Errorf("goose %s failed: %w", command, err)
	}

	return nil
}

// migrationSource returns a nil FS (read from disk) for an explicit
// directory, and the embedded set otherwise.
func migrationSource(migrationsDir string) (fs.FS, string) {
	if migrationsDir != "" && migrationsDir != DefaultMigrationsDir {
		return nil, migrationsDir
	}
	if migrationsDir == DefaultMigrationsDir {
		if st, err := os.Stat(migrationsDir); err == nil && st.IsDir() {
			return nil, migrationsDir
		}
	}
	return migrations.FS, "."
}
