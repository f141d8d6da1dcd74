package grocery

import (
	"fmt"

	"github.com/mealkeeper/go-grocery-client/internal/utils"
	"github.com/mealkeeper/go-grocery-client/pantry"
)

// Reconcile diffs grocery items against a pantry snapshot. Pantry stock is a
// level, not a per-run delta: each item records the amount of stock already
// deducted by earlier runs (PantryQuantityApplied), and only the surplus
// beyond it counts against the current need. For each item with a pantry
// entry matching on ingredient id and canonical unit:
//
//   - the surplus covers the need: the item is removed,
//   - the surplus partially covers it: the needed quantity drops to the
//     uncovered remainder, the deducted level advances to the full pantry
//     quantity, and the item stays,
//   - no surplus (including a pantry that shrank): the item is untouched.
//
// Items with no canonical quantity, no pantry match, or a pantry match in a
// different canonical unit pass through verbatim. No arithmetic conversion
// between canonical units is attempted (grams never reconcile against
// milliliters); such items are skipped on purpose rather than converted
// through a density guess. Known limitation.
//
// Running Reconcile twice with no intervening pantry change reports zero
// removals and zero updates on the second run: the first run already reduced
// the needed quantities to the true remainder and recorded the deducted
// level, so the unchanged stock yields no surplus.
func Reconcile(items []Item, entries []pantry.Entry) SyncResult {
	byIngredient := make(map[int64]pantry.Entry, len(entries))
	for _, e := range entries {
		byIngredient[e.IngredientID] = e
	}

	result := SyncResult{RemainingItems: make([]Item, 0, len(items))}
	for _, item := range items {
		entry, ok := byIngredient[item.IngredientID]
		if !ok || item.CanonicalQuantityNeeded == nil || entry.CanonicalUnit != item.CanonicalUnit {
			result.RemainingItems = append(result.RemainingItems, item)
			continue
		}

		needed := utils.Value(item.CanonicalQuantityNeeded)
		surplus := entry.CanonicalQuantity - item.PantryQuantityApplied
		switch {
		case surplus >= needed:
			result.ItemsRemoved++
		case surplus > 0:
			item.CanonicalQuantityNeeded = utils.Ptr(needed - surplus)
			item.PantryQuantityApplied = entry.CanonicalQuantity
			result.ItemsUpdated++
			result.RemainingItems = append(result.RemainingItems, item)
		default:
			result.RemainingItems = append(result.RemainingItems, item)
		}
	}

	result.Message = fmt.Sprintf("Removed %d items, updated %d items", result.ItemsRemoved, result.ItemsUpdated)
	return result
}
