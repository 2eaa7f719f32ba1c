// Package workflow drives cutting orders through their status lifecycle.
// Transitions commit only through the remote order service; nothing here
// advances local state optimistically.
package workflow

import (
	"context"
	"fmt"

	"cutplan/internal/models"
	"cutplan/internal/planner"
)

// Actor is the user attempting a transition.
type Actor struct {
	UserID   string
	Username string
	Staff    bool
}

// GuardError is raised before any network call when a transition is not
// permitted for this actor or this order.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string { return e.Reason }

var transitions = map[string][]string{
	models.StatusPending:   {models.StatusInProcess, models.StatusCancelled},
	models.StatusInProcess: {models.StatusCompleted, models.StatusCancelled},
	models.StatusCompleted: {},
	models.StatusCancelled: {},
}

// CanTransition reports whether the status change is in the lifecycle
// table at all, before any role checks.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Authorize applies the role/assignment guards for a transition.
func Authorize(order models.CuttingOrder, to string, actor Actor) error {
	if !CanTransition(order.Status, to) {
		return &GuardError{Reason: fmt.Sprintf("cannot move order from %s to %s", order.Status, to)}
	}
	switch to {
	case models.StatusCancelled:
		if !actor.Staff {
			return &GuardError{Reason: "only staff can cancel an order"}
		}
	default:
		if !actor.Staff && actor.UserID != order.AssignedTo.ID {
			return &GuardError{Reason: "only staff or the assigned user can advance this order"}
		}
	}
	return nil
}

// OrderService is the slice of the remote API a transition needs.
type OrderService interface {
	PatchOrderItems(ctx context.Context, orderID string, items []models.CuttingOrderItem) (models.CuttingOrder, error)
	PatchOrderStatus(ctx context.Context, orderID, status string) (models.CuttingOrder, error)
}

// UnitSource supplies the allocatable units for a product.
type UnitSource interface {
	ListUnits(ctx context.Context, productID string) ([]models.InventoryUnit, error)
}

// Machine executes guarded transitions against the remote service.
type Machine struct {
	orders OrderService
	units  UnitSource
}

func NewMachine(orders OrderService, units UnitSource) *Machine {
	return &Machine{orders: orders, units: units}
}

// Advance moves an order to the next status. For pending -> in_process on
// an order whose allocation was deferred, it first auto-fills the product's
// units to exactly the target and replaces the order items; if the catalog
// cannot cover the target, the transition aborts locally with a GuardError
// and nothing is sent to the remote service. Remote failures surface as-is
// and leave the order in its prior column.
func (m *Machine) Advance(ctx context.Context, order models.CuttingOrder, to string, actor Actor) (models.CuttingOrder, error) {
	if err := Authorize(order, to, actor); err != nil {
		return models.CuttingOrder{}, err
	}

	if to == models.StatusInProcess && order.OperatorCanEditItems && len(order.Items) == 0 {
		target := order.TargetQuantity
		if target == nil || !target.IsPositive() {
			return models.CuttingOrder{}, &GuardError{Reason: planner.ErrTargetRequired.Error()}
		}
		units, err := m.units.ListUnits(ctx, order.Product.ID)
		if err != nil {
			return models.CuttingOrder{}, fmt.Errorf("loading units for %s: %w", order.Product.ID, err)
		}
		cat := planner.Catalog(units)
		sel := planner.AutoFillAll(planner.SelectionMap{}, cat, *target)
		if err := planner.Validate(sel, cat, planner.ValidateOptions{
			Target:     target,
			DeferItems: true,
			ExactMatch: true,
		}); err != nil {
			return models.CuttingOrder{}, &GuardError{Reason: err.Error()}
		}
		if _, err := m.orders.PatchOrderItems(ctx, order.ID, planner.CommittedItems(sel, cat)); err != nil {
			return models.CuttingOrder{}, err
		}
	}

	updated, err := m.orders.PatchOrderStatus(ctx, order.ID, to)
	if err != nil {
		return models.CuttingOrder{}, err
	}
	return updated, nil
}
