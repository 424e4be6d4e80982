package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/google/uuid"
)

type plannerStore struct {
	db        *sql.DB
	forUpdate string
}

func (s *plannerStore) ScheduleMeal(ctx context.Context, meal storage.ScheduledMeal, generated []storage.ShoppingItem) (storage.ScheduledMeal, []storage.ShoppingItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.ScheduledMeal{}, nil, fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := time.Now().UTC()
	meal.ID = uuid.New().String()
	meal.CreatedAt = now

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meal_plans (id, user_id, date, slot, dish_id, servings, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meal.ID, meal.UserID, meal.Date, meal.Slot, meal.DishID, meal.Servings, meal.Notes, formatTime(now)); err != nil {
		return storage.ScheduledMeal{}, nil, fmt.Errorf("sqlstore: insert meal: %w", err)
	}

	err = tx.QueryRowContext(ctx, `SELECT name, category FROM dishes WHERE id = ?`, meal.DishID).
		Scan(&meal.DishName, &meal.DishCategory)
	if err != nil && err != sql.ErrNoRows {
		return storage.ScheduledMeal{}, nil, fmt.Errorf("sqlstore: join dish: %w", err)
	}

	mealID := meal.ID
	created := make([]storage.ShoppingItem, 0, len(generated))
	for _, item := range generated {
		item.UserID = meal.UserID
		item.MealPlanID = &mealID
		inserted, err := insertItem(ctx, tx, item, now)
		if err != nil {
			return storage.ScheduledMeal{}, nil, err
		}
		created = append(created, inserted)
	}

	if err := tx.Commit(); err != nil {
		return storage.ScheduledMeal{}, nil, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return meal, created, nil
}

func (s *plannerStore) UnscheduleMeal(ctx context.Context, userID string, mealID string) (storage.MealRemoval, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, `DELETE FROM meal_plans WHERE user_id = ? AND id = ?`, userID, mealID)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("sqlstore: delete meal: %w", err)
	}
	meals, _ := res.RowsAffected()
	if meals == 0 {
		return storage.MealRemoval{}, nil
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM shopping_list_items WHERE user_id = ? AND meal_plan_id = ?`, userID, mealID)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("sqlstore: retract items: %w", err)
	}
	items, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return storage.MealRemoval{}, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return storage.MealRemoval{Meals: int(meals), RetractedItems: int(items)}, nil
}

func (s *plannerStore) ListMeals(ctx context.Context, userID string, from, to string) ([]storage.ScheduledMeal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.user_id, m.date, m.slot, m.dish_id,
		       COALESCE(d.name, ''), COALESCE(d.category, ''), m.servings, m.notes, m.created_at
		FROM meal_plans m
		LEFT JOIN dishes d ON d.id = m.dish_id
		WHERE m.user_id = ? AND m.date >= ? AND m.date <= ?
		ORDER BY m.date,
		         CASE m.slot WHEN 'morning' THEN 0 WHEN 'lunch' THEN 1 WHEN 'snack' THEN 2 WHEN 'dinner' THEN 3 ELSE 4 END,
		         m.created_at, m.id`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list meals: %w", err)
	}
	defer rows.Close()

	meals := []storage.ScheduledMeal{}
	for rows.Next() {
		var (
			m       storage.ScheduledMeal
			created string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Date, &m.Slot, &m.DishID,
			&m.DishName, &m.DishCategory, &m.Servings, &m.Notes, &created); err != nil {
			return nil, fmt.Errorf("sqlstore: scan meal: %w", err)
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

func (s *plannerStore) ClearRange(ctx context.Context, userID string, from, to string) (storage.MealRemoval, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, `
		DELETE FROM shopping_list_items
		WHERE user_id = ? AND meal_plan_id IN (
			SELECT id FROM meal_plans WHERE user_id = ? AND date >= ? AND date <= ?
		)`, userID, userID, from, to)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("sqlstore: retract items: %w", err)
	}
	items, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM meal_plans WHERE user_id = ? AND date >= ? AND date <= ?`, userID, from, to)
	if err != nil {
		return storage.MealRemoval{}, fmt.Errorf("sqlstore: clear meals: %w", err)
	}
	meals, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return storage.MealRemoval{}, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return storage.MealRemoval{Meals: int(meals), RetractedItems: int(items)}, nil
}

func lockMeals(ctx context.Context, tx *sql.Tx, userID, forUpdate string) ([]storage.ScheduledMeal, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, date, slot, dish_id, servings, notes, created_at
		FROM meal_plans
		WHERE user_id = ?
		ORDER BY created_at, id`+forUpdate, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: lock meals: %w", err)
	}
	defer rows.Close()

	meals := []storage.ScheduledMeal{}
	for rows.Next() {
		var (
			m       storage.ScheduledMeal
			created string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Date, &m.Slot, &m.DishID, &m.Servings, &m.Notes, &created); err != nil {
			return nil, fmt.Errorf("sqlstore: scan meal: %w", err)
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}
