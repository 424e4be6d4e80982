package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const itemColumns = `id::text, user_id, name, quantity::text, unit, category, is_checked,
	dish_id, dish_name, meal_plan_id::text, created_at, updated_at`

func scanItem(row pgx.Row) (storage.ShoppingItem, error) {
	var (
		item storage.ShoppingItem
		qty  string
	)
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Name,
		&qty,
		&item.Unit,
		&item.Category,
		&item.Checked,
		&item.DishID,
		&item.DishName,
		&item.MealPlanID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return storage.ShoppingItem{}, err
	}
	item.Quantity, err = decimal.NewFromString(qty)
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("invalid quantity %q: %w", qty, err)
	}
	return item, nil
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertItem(ctx context.Context, q execQuerier, item storage.ShoppingItem) (storage.ShoppingItem, error) {
	query := `
		INSERT INTO shopping_list_items (user_id, name, quantity, unit, category, is_checked, dish_id, dish_name, meal_plan_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::uuid)
		RETURNING ` + itemColumns

	inserted, err := scanItem(q.QueryRow(ctx, query,
		item.UserID,
		item.Name,
		item.Quantity.String(),
		item.Unit,
		item.Category,
		item.Checked,
		item.DishID,
		item.DishName,
		item.MealPlanID,
	))
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("failed to insert shopping item: %w", err)
	}
	return inserted, nil
}

func (s *plannerStorage) InsertItem(ctx context.Context, item storage.ShoppingItem) (storage.ShoppingItem, error) {
	return insertItem(ctx, s.pool, item)
}

func (s *plannerStorage) GetItem(ctx context.Context, userID string, id string) (storage.ShoppingItem, error) {
	query := `SELECT ` + itemColumns + ` FROM shopping_list_items WHERE user_id = $1 AND id::text = $2`

	item, err := scanItem(s.pool.QueryRow(ctx, query, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ShoppingItem{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("failed to get shopping item: %w", err)
	}
	return item, nil
}

func (s *plannerStorage) UpdateManualItem(ctx context.Context, userID string, id string, upd storage.ShoppingItemUpdate) (storage.ShoppingItem, error) {
	var qty *string
	if upd.Quantity != nil {
		v := upd.Quantity.String()
		qty = &v
	}

	query := `
		UPDATE shopping_list_items
		SET name = COALESCE($3, name),
		    quantity = COALESCE($4::numeric, quantity),
		    unit = COALESCE($5, unit),
		    category = COALESCE($6, category),
		    is_checked = COALESCE($7, is_checked),
		    updated_at = NOW()
		WHERE user_id = $1 AND id::text = $2 AND dish_id IS NULL
		RETURNING ` + itemColumns

	item, err := scanItem(s.pool.QueryRow(ctx, query, userID, id, upd.Name, qty, upd.Unit, upd.Category, upd.Checked))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ShoppingItem{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("failed to update shopping item: %w", err)
	}
	return item, nil
}

func (s *plannerStorage) ToggleManualItem(ctx context.Context, userID string, id string) (storage.ShoppingItem, error) {
	query := `
		UPDATE shopping_list_items
		SET is_checked = NOT is_checked, updated_at = NOW()
		WHERE user_id = $1 AND id::text = $2 AND dish_id IS NULL
		RETURNING ` + itemColumns

	item, err := scanItem(s.pool.QueryRow(ctx, query, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ShoppingItem{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ShoppingItem{}, fmt.Errorf("failed to toggle shopping item: %w", err)
	}
	return item, nil
}

func (s *plannerStorage) DeleteManualItem(ctx context.Context, userID string, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM shopping_list_items
		WHERE user_id = $1 AND id::text = $2 AND dish_id IS NULL
	`, userID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete shopping item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *plannerStorage) DeleteItemsByDish(ctx context.Context, userID string, dishID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM shopping_list_items
		WHERE user_id = $1 AND dish_id = $2
	`, userID, dishID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items by dish: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *plannerStorage) DeleteCheckedItems(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM shopping_list_items
		WHERE user_id = $1 AND dish_id IS NULL AND is_checked = true
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete checked items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *plannerStorage) ListItems(ctx context.Context, userID string) ([]storage.ShoppingItem, error) {
	query := `SELECT ` + itemColumns + `
		FROM shopping_list_items
		WHERE user_id = $1
		ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shopping items: %w", err)
	}
	defer rows.Close()

	items := []storage.ShoppingItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shopping item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shopping items: %w", err)
	}

	return items, nil
}

// ReplaceMealItems locks the user's meal rows before rebuilding. A meal
// scheduled concurrently is not listed and keeps its items; an unschedule
// waits on the row lock. The foreign key cascade rules out orphans.
func (s *plannerStorage) ReplaceMealItems(ctx context.Context, userID string, build storage.MealItemsBuilder) (storage.MealItemsReplacement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.MealItemsReplacement{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id::text, user_id, date::text, slot, dish_id, servings, notes, created_at
		FROM meal_plans
		WHERE user_id = $1
		ORDER BY created_at, id
		FOR UPDATE
	`, userID)
	if err != nil {
		return storage.MealItemsReplacement{}, fmt.Errorf("failed to lock meals: %w", err)
	}
	meals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.ScheduledMeal, error) {
		var m storage.ScheduledMeal
		err := row.Scan(&m.ID, &m.UserID, &m.Date, &m.Slot, &m.DishID, &m.Servings, &m.Notes, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return storage.MealItemsReplacement{}, fmt.Errorf("failed to scan meal: %w", err)
	}

	items, err := build(meals)
	if err != nil {
		return storage.MealItemsReplacement{}, err
	}

	ids := make([]string, len(meals))
	listed := make(map[string]bool, len(meals))
	for i, m := range meals {
		ids[i] = m.ID
		listed[m.ID] = true
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM shopping_list_items
		WHERE user_id = $1 AND meal_plan_id::text = ANY($2)
	`, userID, ids)
	if err != nil {
		return storage.MealItemsReplacement{}, fmt.Errorf("failed to remove meal items: %w", err)
	}

	inserted := 0
	for _, item := range items {
		if item.MealPlanID == nil || !listed[*item.MealPlanID] {
			continue
		}
		item.UserID = userID
		if _, err := insertItem(ctx, tx, item); err != nil {
			return storage.MealItemsReplacement{}, err
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.MealItemsReplacement{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return storage.MealItemsReplacement{
		Meals:    len(meals),
		Removed:  int(tag.RowsAffected()),
		Inserted: inserted,
	}, nil
}
