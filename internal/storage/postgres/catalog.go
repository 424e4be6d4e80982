package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type catalogStorage struct {
	pool *pgxpool.Pool
}

func newCatalogStorage(pool *pgxpool.Pool) *catalogStorage {
	return &catalogStorage{pool: pool}
}

func (s *catalogStorage) ListDishes(ctx context.Context) ([]storage.Dish, error) {
	query := `
		SELECT id, name, category, description, prep_minutes, cook_minutes
		FROM dishes
		ORDER BY lower(name), id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list dishes: %w", err)
	}
	defer rows.Close()

	dishes := []storage.Dish{}
	for rows.Next() {
		var d storage.Dish
		if err := rows.Scan(&d.ID, &d.Name, &d.Category, &d.Description, &d.PrepMinutes, &d.CookMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan dish: %w", err)
		}
		dishes = append(dishes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dishes: %w", err)
	}

	return dishes, nil
}

func (s *catalogStorage) GetDish(ctx context.Context, id string) (storage.Dish, error) {
	query := `
		SELECT id, name, category, description, prep_minutes, cook_minutes
		FROM dishes
		WHERE id = $1
	`

	var d storage.Dish
	err := s.pool.QueryRow(ctx, query, id).Scan(&d.ID, &d.Name, &d.Category, &d.Description, &d.PrepMinutes, &d.CookMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Dish{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Dish{}, fmt.Errorf("failed to get dish: %w", err)
	}
	return d, nil
}

func (s *catalogStorage) ListComposition(ctx context.Context, dishID string) ([]storage.CompositionLine, error) {
	if _, err := s.GetDish(ctx, dishID); err != nil {
		return nil, err
	}
	return listComposition(ctx, s.pool, dishID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listComposition(ctx context.Context, q querier, dishID string) ([]storage.CompositionLine, error) {
	query := `
		SELECT di.ingredient_id, i.name, di.quantity::text, COALESCE(NULLIF(di.unit, ''), i.unit), i.category
		FROM dish_ingredients di
		JOIN ingredients i ON i.id = di.ingredient_id
		WHERE di.dish_id = $1
		ORDER BY di.position
	`

	rows, err := q.Query(ctx, query, dishID)
	if err != nil {
		return nil, fmt.Errorf("failed to list composition: %w", err)
	}
	defer rows.Close()

	lines := []storage.CompositionLine{}
	for rows.Next() {
		var (
			line storage.CompositionLine
			qty  string
		)
		if err := rows.Scan(&line.IngredientID, &line.IngredientName, &qty, &line.Unit, &line.Category); err != nil {
			return nil, fmt.Errorf("failed to scan composition line: %w", err)
		}
		if line.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("invalid composition quantity %q: %w", qty, err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating composition: %w", err)
	}

	return lines, nil
}

// SeedCatalog upserts ingredients and dishes; the composition of every dish in
// the snapshot is replaced.
func (s *catalogStorage) SeedCatalog(ctx context.Context, ingredients []storage.Ingredient, dishes []storage.Dish) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ing := range ingredients {
		_, err := tx.Exec(ctx, `
			INSERT INTO ingredients (id, name, unit, category, stock)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, unit = EXCLUDED.unit, category = EXCLUDED.category, stock = EXCLUDED.stock
		`, ing.ID, ing.Name, ing.Unit, ing.Category, ing.Stock.String())
		if err != nil {
			return fmt.Errorf("failed to upsert ingredient %s: %w", ing.ID, err)
		}
	}

	for _, d := range dishes {
		_, err := tx.Exec(ctx, `
			INSERT INTO dishes (id, name, category, description, prep_minutes, cook_minutes)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, category = EXCLUDED.category, description = EXCLUDED.description,
			    prep_minutes = EXCLUDED.prep_minutes, cook_minutes = EXCLUDED.cook_minutes
		`, d.ID, d.Name, d.Category, d.Description, d.PrepMinutes, d.CookMinutes)
		if err != nil {
			return fmt.Errorf("failed to upsert dish %s: %w", d.ID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM dish_ingredients WHERE dish_id = $1`, d.ID); err != nil {
			return fmt.Errorf("failed to reset composition of %s: %w", d.ID, err)
		}

		for pos, line := range d.Composition {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ingredients WHERE id = $1)`, line.IngredientID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check ingredient: %w", err)
			}
			if !exists {
				return &storage.UnknownIngredientError{DishID: d.ID, IngredientID: line.IngredientID}
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO dish_ingredients (dish_id, position, ingredient_id, quantity, unit)
				VALUES ($1, $2, $3, $4, $5)
			`, d.ID, pos, line.IngredientID, line.Quantity.String(), line.Unit)
			if err != nil {
				return fmt.Errorf("failed to insert composition line: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}
