package grocery

import (
	"time"

	"github.com/pkg/errors"
)

// Item is one grocery list entry. CanonicalQuantityNeeded and CanonicalUnit
// obey a single invariant: the unit is present exactly when the quantity is
// non-nil (both absent is the only other legal state).
//
// ID is server-assigned once persisted. A client-generated temporary id
// exists only on an optimistic, unconfirmed entry and must never be treated
// as durable.
type Item struct {
	ID                      int64    `json:"id"`
	IngredientID            int64    `json:"ingredient_id"`
	QuantityAsEntered       float64  `json:"quantity_as_entered"`
	UnitAsEntered           string   `json:"unit_as_entered"`
	CanonicalQuantityNeeded *float64 `json:"canonical_quantity_needed,omitempty"`
	CanonicalUnit           string   `json:"canonical_unit,omitempty"`
	// PantryQuantityApplied is the canonical amount of pantry stock already
	// deducted from CanonicalQuantityNeeded by earlier reconciliation runs.
	// Pantry stock is a level, not a per-run delta; without this marker a
	// repeat sync against an unchanged pantry would subtract again.
	PantryQuantityApplied float64 `json:"pantry_quantity_applied,omitempty"`
	IsManual                bool     `json:"is_manual"`
	IsPurchased             bool     `json:"is_purchased"`
	Checked                 bool     `json:"checked"`
	SourceMealPlanID        string   `json:"source_meal_plan_id,omitempty"`
}

// Validate enforces the canonical-unit invariant.
func (i Item) Validate() error {
	if i.CanonicalQuantityNeeded != nil && i.CanonicalUnit == "" {
		return errors.New("[Item.Validate] canonical quantity without canonical unit")
	}
	if i.CanonicalQuantityNeeded == nil && i.CanonicalUnit != "" {
		return errors.New("[Item.Validate] canonical unit without canonical quantity")
	}
	return nil
}

// List is a grocery list with its items.
type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	FamilyID  string    `json:"family_id,omitempty"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncResult summarizes one pantry reconciliation run. It is derived, never
// cached - recomputed on every sync and surfaced to the caller only.
type SyncResult struct {
	ItemsRemoved   int    `json:"items_removed"`
	ItemsUpdated   int    `json:"items_updated"`
	RemainingItems []Item `json:"remaining_items"`
	Message        string `json:"message"`
}
