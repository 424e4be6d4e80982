// Package sqlstore implements storage.Storage on database/sql for the SQLite
// and MySQL drivers. Both dialects share the same queries; only DDL and
// upsert syntax differ.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fdg312/meal-hub/internal/storage"

	_ "github.com/go-sql-driver/mysql" // MySQL driver.
	_ "modernc.org/sqlite"             // Pure-Go SQLite driver.
)

const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
)

// Timestamps are stored as fixed-width UTC text so that lexical order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlstore: parse timestamp %q: %w", s, err)
	}
	return t, nil
}

type dialect struct {
	name             string
	schema           []string
	upsertIngredient string
	upsertDish       string
	// forUpdate is appended to reads whose rows the transaction rewrites.
	// SQLite serializes writers on its single connection and has no row locks.
	forUpdate string
}

var sqliteDialect = dialect{
	name: DialectSQLite,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS ingredients (
			id       TEXT PRIMARY KEY,
			name     TEXT NOT NULL,
			unit     TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			stock    TEXT NOT NULL DEFAULT '0'
		)`,
		`CREATE TABLE IF NOT EXISTS dishes (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			category     TEXT NOT NULL DEFAULT '',
			description  TEXT NOT NULL DEFAULT '',
			prep_minutes INTEGER NOT NULL DEFAULT 0,
			cook_minutes INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS dish_ingredients (
			dish_id       TEXT NOT NULL,
			position      INTEGER NOT NULL,
			ingredient_id TEXT NOT NULL,
			quantity      TEXT NOT NULL,
			unit          TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (dish_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS meal_plans (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			date       TEXT NOT NULL,
			slot       TEXT NOT NULL,
			dish_id    TEXT NOT NULL,
			servings   INTEGER NOT NULL CHECK (servings >= 1),
			notes      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_meal_plans_user_date ON meal_plans(user_id, date)`,
		`CREATE TABLE IF NOT EXISTS shopping_list_items (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			name         TEXT NOT NULL,
			quantity     TEXT NOT NULL DEFAULT '0',
			unit         TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT '',
			is_checked   INTEGER NOT NULL DEFAULT 0,
			dish_id      TEXT,
			dish_name    TEXT,
			meal_plan_id TEXT,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shopping_items_user ON shopping_list_items(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shopping_items_meal ON shopping_list_items(meal_plan_id)`,
		`CREATE TABLE IF NOT EXISTS exports (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			format     TEXT NOT NULL,
			object_key TEXT,
			item_count INTEGER NOT NULL DEFAULT 0,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			status     TEXT NOT NULL,
			data       BLOB,
			created_at TEXT NOT NULL
		)`,
	},
	upsertIngredient: `
		INSERT INTO ingredients (id, name, unit, category, stock) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, unit = excluded.unit,
			category = excluded.category, stock = excluded.stock`,
	upsertDish: `
		INSERT INTO dishes (id, name, category, description, prep_minutes, cook_minutes) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, category = excluded.category,
			description = excluded.description, prep_minutes = excluded.prep_minutes, cook_minutes = excluded.cook_minutes`,
}

var mysqlDialect = dialect{
	name:      DialectMySQL,
	forUpdate: " FOR UPDATE",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS ingredients (
			id       VARCHAR(191) PRIMARY KEY,
			name     VARCHAR(255) NOT NULL,
			unit     VARCHAR(64) NOT NULL DEFAULT '',
			category VARCHAR(191) NOT NULL DEFAULT '',
			stock    DECIMAL(14,3) NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS dishes (
			id           VARCHAR(191) PRIMARY KEY,
			name         VARCHAR(255) NOT NULL,
			category     VARCHAR(191) NOT NULL DEFAULT '',
			description  TEXT NOT NULL,
			prep_minutes INT NOT NULL DEFAULT 0,
			cook_minutes INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS dish_ingredients (
			dish_id       VARCHAR(191) NOT NULL,
			position      INT NOT NULL,
			ingredient_id VARCHAR(191) NOT NULL,
			quantity      DECIMAL(14,3) NOT NULL,
			unit          VARCHAR(64) NOT NULL DEFAULT '',
			PRIMARY KEY (dish_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS meal_plans (
			id         CHAR(36) PRIMARY KEY,
			user_id    VARCHAR(191) NOT NULL,
			date       CHAR(10) NOT NULL,
			slot       VARCHAR(16) NOT NULL,
			dish_id    VARCHAR(191) NOT NULL,
			servings   INT NOT NULL,
			notes      TEXT NOT NULL,
			created_at VARCHAR(40) NOT NULL,
			INDEX idx_meal_plans_user_date (user_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS shopping_list_items (
			id           CHAR(36) PRIMARY KEY,
			user_id      VARCHAR(191) NOT NULL,
			name         VARCHAR(255) NOT NULL,
			quantity     DECIMAL(14,3) NOT NULL DEFAULT 0,
			unit         VARCHAR(64) NOT NULL DEFAULT '',
			category     VARCHAR(191) NOT NULL DEFAULT '',
			is_checked   BOOLEAN NOT NULL DEFAULT FALSE,
			dish_id      VARCHAR(191) NULL,
			dish_name    VARCHAR(255) NULL,
			meal_plan_id CHAR(36) NULL,
			created_at   VARCHAR(40) NOT NULL,
			updated_at   VARCHAR(40) NOT NULL,
			INDEX idx_shopping_items_user (user_id),
			INDEX idx_shopping_items_meal (meal_plan_id)
		)`,
		`CREATE TABLE IF NOT EXISTS exports (
			id         CHAR(36) PRIMARY KEY,
			user_id    VARCHAR(191) NOT NULL,
			format     VARCHAR(8) NOT NULL,
			object_key VARCHAR(512) NULL,
			item_count INT NOT NULL DEFAULT 0,
			size_bytes BIGINT NOT NULL DEFAULT 0,
			status     VARCHAR(32) NOT NULL,
			data       LONGBLOB NULL,
			created_at VARCHAR(40) NOT NULL,
			INDEX idx_exports_user (user_id)
		)`,
	},
	upsertIngredient: `
		INSERT INTO ingredients (id, name, unit, category, stock) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), unit = VALUES(unit),
			category = VALUES(category), stock = VALUES(stock)`,
	upsertDish: `
		INSERT INTO dishes (id, name, category, description, prep_minutes, cook_minutes) VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), category = VALUES(category),
			description = VALUES(description), prep_minutes = VALUES(prep_minutes), cook_minutes = VALUES(cook_minutes)`,
}

// Store implements storage.Storage on a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect dialect
	catalog *catalogStore
	planner *plannerStore
	exports *exportsStore
}

// OpenSQLite opens (or creates) a SQLite database at path in WAL mode and
// creates the schema if needed.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}

	// SQLite has a single writer; one connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", pragma, err)
		}
	}

	return newStore(ctx, db, sqliteDialect)
}

// OpenMySQL connects to MySQL using dsn and creates the schema if needed.
func OpenMySQL(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping mysql: %w", err)
	}

	return newStore(ctx, db, mysqlDialect)
}

func newStore(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: create %s schema: %w", d.name, err)
		}
	}

	return &Store{
		db:      db,
		dialect: d,
		catalog: &catalogStore{db: db, dialect: d},
		planner: &plannerStore{db: db, forUpdate: d.forUpdate},
		exports: &exportsStore{db: db},
	}, nil
}

// Dialect returns the SQL dialect name.
func (s *Store) Dialect() string {
	return s.dialect.name
}

func (s *Store) GetMealPlansStorage() storage.MealPlansStorage {
	return s.planner
}

func (s *Store) GetShoppingItemsStorage() storage.ShoppingItemsStorage {
	return s.planner
}

func (s *Store) GetCatalogStorage() storage.CatalogStorage {
	return s.catalog
}

func (s *Store) GetExportsStorage() storage.ExportsStorage {
	return s.exports
}

func (s *Store) Close() error {
	return s.db.Close()
}
