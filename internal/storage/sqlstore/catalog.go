package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fdg312/meal-hub/internal/storage"
)

type catalogStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *catalogStore) ListDishes(ctx context.Context) ([]storage.Dish, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, description, prep_minutes, cook_minutes
		FROM dishes
		ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list dishes: %w", err)
	}
	defer rows.Close()

	dishes := []storage.Dish{}
	for rows.Next() {
		var d storage.Dish
		if err := rows.Scan(&d.ID, &d.Name, &d.Category, &d.Description, &d.PrepMinutes, &d.CookMinutes); err != nil {
			return nil, fmt.Errorf("sqlstore: scan dish: %w", err)
		}
		dishes = append(dishes, d)
	}
	return dishes, rows.Err()
}

func (s *catalogStore) GetDish(ctx context.Context, id string) (storage.Dish, error) {
	var d storage.Dish
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, description, prep_minutes, cook_minutes
		FROM dishes WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.Category, &d.Description, &d.PrepMinutes, &d.CookMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Dish{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Dish{}, fmt.Errorf("sqlstore: get dish %q: %w", id, err)
	}
	return d, nil
}

func (s *catalogStore) ListComposition(ctx context.Context, dishID string) ([]storage.CompositionLine, error) {
	if _, err := s.GetDish(ctx, dishID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT di.ingredient_id, i.name, di.quantity,
		       CASE WHEN di.unit = '' THEN i.unit ELSE di.unit END, i.category
		FROM dish_ingredients di
		JOIN ingredients i ON i.id = di.ingredient_id
		WHERE di.dish_id = ?
		ORDER BY di.position`, dishID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list composition %q: %w", dishID, err)
	}
	defer rows.Close()

	lines := []storage.CompositionLine{}
	for rows.Next() {
		var line storage.CompositionLine
		if err := rows.Scan(&line.IngredientID, &line.IngredientName, &line.Quantity, &line.Unit, &line.Category); err != nil {
			return nil, fmt.Errorf("sqlstore: scan composition line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// SeedCatalog upserts the snapshot in one transaction.
func (s *catalogStore) SeedCatalog(ctx context.Context, ingredients []storage.Ingredient, dishes []storage.Dish) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, ing := range ingredients {
		if _, err := tx.ExecContext(ctx, s.dialect.upsertIngredient,
			ing.ID, ing.Name, ing.Unit, ing.Category, ing.Stock.String()); err != nil {
			return fmt.Errorf("sqlstore: upsert ingredient %q: %w", ing.ID, err)
		}
	}

	for _, d := range dishes {
		if _, err := tx.ExecContext(ctx, s.dialect.upsertDish,
			d.ID, d.Name, d.Category, d.Description, d.PrepMinutes, d.CookMinutes); err != nil {
			return fmt.Errorf("sqlstore: upsert dish %q: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM dish_ingredients WHERE dish_id = ?`, d.ID); err != nil {
			return fmt.Errorf("sqlstore: reset composition %q: %w", d.ID, err)
		}

		for pos, line := range d.Composition {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingredients WHERE id = ?`, line.IngredientID).Scan(&n); err != nil {
				return fmt.Errorf("sqlstore: check ingredient: %w", err)
			}
			if n == 0 {
				return &storage.UnknownIngredientError{DishID: d.ID, IngredientID: line.IngredientID}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dish_ingredients (dish_id, position, ingredient_id, quantity, unit)
				VALUES (?, ?, ?, ?, ?)`,
				d.ID, pos, line.IngredientID, line.Quantity.String(), line.Unit); err != nil {
				return fmt.Errorf("sqlstore: insert composition line: %w", err)
			}
		}
	}

	return tx.Commit()
}
