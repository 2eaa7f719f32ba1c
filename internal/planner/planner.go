// Package planner computes cutting-order allocations over discrete,
// stock-limited inventory units. All operations are pure functions of
// (selection, catalog, target); callers own the maps they get back.
package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cutplan/internal/models"
)

// Policy selects the initial quantity behavior when a unit is toggled on.
type Policy int

const (
	// PolicyManual inserts the unit unquantified and forces explicit entry.
	// Used while drafting an order.
	PolicyManual Policy = iota
	// PolicyAutoFill inserts the unit pre-filled to min(stock, remaining
	// budget). Used when starting a previously unallocated order.
	PolicyAutoFill
)

// Float comparisons on quantities tolerate this much drift.
var Epsilon = decimal.RequireFromString("0.005")

// Selection is one chosen unit's requested quantity. A unit that is
// selected but not yet quantified has Set=false; a unit that is not
// selected at all has no map entry. The two states are distinct on
// purpose: toggling a unit off removes the entry, it never writes a zero.
type Selection struct {
	Quantity decimal.Decimal
	Set      bool
}

// SelectionMap maps unit id -> requested quantity.
type SelectionMap map[string]Selection

// Catalog is the unit list for a product, in inventory-source order.
type Catalog []models.InventoryUnit

// Unit looks up a catalog entry by id.
func (c Catalog) Unit(id string) (models.InventoryUnit, bool) {
	for _, u := range c {
		if u.ID == id {
			return u, true
		}
	}
	return models.InventoryUnit{}, false
}

func (s SelectionMap) clone() SelectionMap {
	out := make(SelectionMap, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Sum totals the quantified entries.
func Sum(sel SelectionMap) decimal.Decimal {
	total := decimal.Zero
	for _, e := range sel {
		if e.Set {
			total = total.Add(e.Quantity)
		}
	}
	return total
}

// RemainingBudget returns target minus the selected total, floored at
// zero. A nil or non-positive target means the distribution is unbounded
// and nil is returned.
func RemainingBudget(sel SelectionMap, target *decimal.Decimal) *decimal.Decimal {
	if target == nil || !target.IsPositive() {
		return nil
	}
	rem := target.Sub(Sum(sel))
	if rem.IsNegative() {
		rem = decimal.Zero
	}
	return &rem
}

// remainingBudgetExcluding is RemainingBudget with one unit's current
// entry ignored, used when re-entering that unit's quantity.
func remainingBudgetExcluding(sel SelectionMap, unitID string, target *decimal.Decimal) *decimal.Decimal {
	if target == nil || !target.IsPositive() {
		return nil
	}
	total := decimal.Zero
	for id, e := range sel {
		if id == unitID || !e.Set {
			continue
		}
		total = total.Add(e.Quantity)
	}
	rem := target.Sub(total)
	if rem.IsNegative() {
		rem = decimal.Zero
	}
	return &rem
}

// Toggle flips a unit in or out of the selection. Toggling off removes
// the entry. Toggling on a unit with no available stock is a no-op.
func Toggle(sel SelectionMap, unitID string, cat Catalog, target *decimal.Decimal, policy Policy) SelectionMap {
	out := sel.clone()
	if _, ok := out[unitID]; ok {
		delete(out, unitID)
		return out
	}
	unit, ok := cat.Unit(unitID)
	if !ok || !unit.AvailableQuantity.IsPositive() {
		return out
	}
	switch policy {
	case PolicyAutoFill:
		q := unit.AvailableQuantity
		if rem := RemainingBudget(out, target); rem != nil && rem.LessThan(q) {
			q = *rem
		}
		out[unitID] = Selection{Quantity: q.Round(2), Set: true}
	default:
		out[unitID] = Selection{}
	}
	return out
}

// ParseQuantity parses operator input as a decimal, accepting either ','
// or '.' as the separator. ok is false when the input is not a number.
func ParseQuantity(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	raw = strings.ReplaceAll(raw, ",", ".")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SetQuantity stores an operator-entered quantity for a unit. Unparseable
// input stores the entry as unquantified rather than failing. Parsed
// values are clamped to the unit's available stock and, when a target is
// set, to the budget remaining once this unit's previous entry is
// excluded, then rounded to two decimals.
func SetQuantity(sel SelectionMap, unitID, raw string, cat Catalog, target *decimal.Decimal) SelectionMap {
	unit, ok := cat.Unit(unitID)
	if !ok {
		return sel.clone()
	}
	out := sel.clone()
	q, parsed := ParseQuantity(raw)
	if !parsed {
		out[unitID] = Selection{}
		return out
	}
	if q.IsNegative() {
		q = decimal.Zero
	}
	if q.GreaterThan(unit.AvailableQuantity) {
		q = unit.AvailableQuantity
	}
	if rem := remainingBudgetExcluding(out, unitID, target); rem != nil && q.GreaterThan(*rem) {
		q = *rem
	}
	out[unitID] = Selection{Quantity: q.Round(2), Set: true}
	return out
}

// AutoFillAll toggles every not-yet-selected unit under the auto-fill
// policy, in catalog order, until the target budget is exhausted. Units
// already in the selection are left alone.
func AutoFillAll(sel SelectionMap, cat Catalog, target decimal.Decimal) SelectionMap {
	out := sel.clone()
	t := &target
	for _, u := range cat {
		rem := RemainingBudget(out, t)
		if rem != nil && rem.IsZero() {
			break
		}
		if _, ok := out[u.ID]; ok {
			continue
		}
		out = Toggle(out, u.ID, cat, t, PolicyAutoFill)
	}
	return out
}

// ErrTargetRequired is returned when allocation is deferred to the
// operator but no positive target quantity was provided.
var ErrTargetRequired = errors.New("a quantity to cut is required when item allocation is deferred")

// ErrNoPositiveItem is returned when immediate allocation was requested
// with nothing usable selected.
var ErrNoPositiveItem = errors.New("at least one unit with a positive quantity is required")

// ValidateOptions configures Validate.
type ValidateOptions struct {
	// Target is the intended total; nil or zero means unbounded.
	Target *decimal.Decimal
	// DeferItems mirrors the order's operator_can_edit_items flag: the
	// selection may be empty because fulfillment is allocated later.
	DeferItems bool
	// ExactMatch additionally requires sum == target within Epsilon.
	// Only the start-fulfillment transition sets this.
	ExactMatch bool
}

// Validate applies the submission decision table to a selection. It
// re-checks stock ceilings against the supplied catalog snapshot, since
// stock may have drifted since the selection was built.
func Validate(sel SelectionMap, cat Catalog, opts ValidateOptions) error {
	sum := Sum(sel)

	if opts.DeferItems {
		if opts.Target == nil || !opts.Target.IsPositive() {
			return ErrTargetRequired
		}
		if sum.Sub(*opts.Target).GreaterThan(Epsilon) {
			return fmt.Errorf("selected total %s exceeds quantity to cut %s", sum.String(), opts.Target.String())
		}
		if opts.ExactMatch {
			return validateExact(sum, *opts.Target)
		}
		return nil
	}

	quantified := 0
	for id, e := range sel {
		if !e.Set || !e.Quantity.IsPositive() {
			continue
		}
		quantified++
		unit, ok := cat.Unit(id)
		if !ok {
			return fmt.Errorf("unit %s is no longer available", id)
		}
		if e.Quantity.Sub(unit.AvailableQuantity).GreaterThan(Epsilon) {
			return fmt.Errorf("quantity %s exceeds available stock %s for unit %s",
				e.Quantity.String(), unit.AvailableQuantity.String(), id)
		}
	}
	if quantified == 0 {
		return ErrNoPositiveItem
	}
	if opts.Target != nil && opts.Target.IsPositive() {
		if sum.Sub(*opts.Target).GreaterThan(Epsilon) {
			return fmt.Errorf("selected total %s exceeds quantity to cut %s", sum.String(), opts.Target.String())
		}
		if opts.ExactMatch {
			return validateExact(sum, *opts.Target)
		}
	}
	return nil
}

func validateExact(sum, target decimal.Decimal) error {
	diff := target.Sub(sum)
	if diff.Abs().LessThanOrEqual(Epsilon) {
		return nil
	}
	if diff.IsPositive() {
		return fmt.Errorf("allocation incomplete: %s still unassigned of %s", diff.Round(2).String(), target.String())
	}
	return fmt.Errorf("allocation exceeds quantity to cut by %s", diff.Neg().Round(2).String())
}

// CommittedItems converts a selection into order items, dropping
// unquantified and zero rows. Zero rows are never sent to the remote
// service.
func CommittedItems(sel SelectionMap, cat Catalog) []models.CuttingOrderItem {
	items := make([]models.CuttingOrderItem, 0, len(sel))
	for _, u := range cat {
		e, ok := sel[u.ID]
		if !ok || !e.Set || !e.Quantity.IsPositive() {
			continue
		}
		items = append(items, models.CuttingOrderItem{UnitID: u.ID, Quantity: e.Quantity.Round(2)})
	}
	return items
}
