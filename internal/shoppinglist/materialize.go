package shoppinglist

import (
	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/shopspring/decimal"
)

type lineKey struct {
	name string
	unit string
}

// Materialize turns a dish composition into generated items for the given
// servings. Lines sharing ingredient name and unit are summed into one item,
// so a dish listing flour twice yields a single flour row rather than one row
// per composition line. Different units stay separate. Output order follows
// first appearance in the composition.
func Materialize(dish storage.Dish, lines []storage.CompositionLine, servings int) []storage.ShoppingItem {
	factor := decimal.NewFromInt(int64(servings))

	index := make(map[lineKey]int, len(lines))
	items := make([]storage.ShoppingItem, 0, len(lines))
	for _, line := range lines {
		key := lineKey{name: line.IngredientName, unit: line.Unit}
		qty := line.Quantity.Mul(factor)

		if i, ok := index[key]; ok {
			items[i].Quantity = items[i].Quantity.Add(qty)
			continue
		}

		dishID, dishName := dish.ID, dish.Name
		index[key] = len(items)
		items = append(items, storage.ShoppingItem{
			Name:     line.IngredientName,
			Quantity: qty,
			Unit:     line.Unit,
			Category: line.Category,
			DishID:   &dishID,
			DishName: &dishName,
		})
	}
	return items
}
