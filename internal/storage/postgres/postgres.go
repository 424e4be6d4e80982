package postgres

import (
	"context"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage: Postgres реализация Storage
type PostgresStorage struct {
	pool    *pgxpool.Pool
	catalog *catalogStorage
	planner *plannerStorage
	exports *PostgresExportsStorage
}

// New создаёт PostgresStorage и проверяет соединение
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{
		pool:    pool,
		catalog: newCatalogStorage(pool),
		planner: newPlannerStorage(pool),
		exports: NewPostgresExportsStorage(pool),
	}, nil
}

func (p *PostgresStorage) GetMealPlansStorage() storage.MealPlansStorage {
	return p.planner
}

func (p *PostgresStorage) GetShoppingItemsStorage() storage.ShoppingItemsStorage {
	return p.planner
}

func (p *PostgresStorage) GetCatalogStorage() storage.CatalogStorage {
	return p.catalog
}

func (p *PostgresStorage) GetExportsStorage() storage.ExportsStorage {
	return p.exports
}

// Close закрывает пул соединений
func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}
