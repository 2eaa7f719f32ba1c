// Package draft holds in-progress order drafts: a two-step session of
// header fields followed by manual allocation. Drafts live only in memory
// and belong to the console session that opened them; closing one simply
// discards it.
package draft

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cutplan/internal/models"
	"cutplan/internal/planner"
)

// Header-step gate errors. Each missing field gets its own message so the
// console can point at the right control.
var (
	ErrAssigneeRequired = errors.New("an assigned user is required")
	ErrProductRequired  = errors.New("a product is required")
	ErrHeaderIncomplete = errors.New("customer and order number are required")
	ErrNothingToSubmit  = errors.New("enter a quantity to cut or allocate at least one unit")
	ErrSubmitInFlight   = errors.New("submission already in progress")
)

const (
	StepHeader     = 1
	StepAllocation = 2
)

// Draft is one order being composed. The catalog is snapshotted when the
// draft opens; Validate is re-run against it at submit time to catch
// stock drift, and the server remains the final authority after that.
type Draft struct {
	ID      string
	OrderID string // empty for a new order, set when editing

	Customer             string
	OrderNumber          string
	AssignedTo           string
	ProductID            string
	TargetQuantity       *decimal.Decimal
	OperatorCanEditItems bool

	Step      int
	Catalog   planner.Catalog
	Selection planner.SelectionMap

	submitting bool
}

// New opens a draft over a unit catalog snapshot. When a preselected
// subset is given, the catalog is filtered to it.
func New(catalog planner.Catalog, preselected []string) *Draft {
	if len(preselected) > 0 {
		keep := make(map[string]bool, len(preselected))
		for _, id := range preselected {
			keep[id] = true
		}
		filtered := make(planner.Catalog, 0, len(preselected))
		for _, u := range catalog {
			if keep[u.ID] {
				filtered = append(filtered, u)
			}
		}
		catalog = filtered
	}
	return &Draft{
		ID:        uuid.NewString(),
		Step:      StepHeader,
		Catalog:   catalog,
		Selection: planner.SelectionMap{},
	}
}

// CompleteHeader validates step 1 and moves the draft to the allocation
// step. The target is required (and must be positive) only when item
// allocation is deferred to the operator.
func (d *Draft) CompleteHeader() error {
	if d.AssignedTo == "" {
		return ErrAssigneeRequired
	}
	if d.ProductID == "" {
		return ErrProductRequired
	}
	if d.Customer == "" || d.OrderNumber == "" {
		return ErrHeaderIncomplete
	}
	if d.OperatorCanEditItems {
		if d.TargetQuantity == nil || !d.TargetQuantity.IsPositive() {
			return planner.ErrTargetRequired
		}
	}
	d.Step = StepAllocation
	return nil
}

// Toggle flips a unit in the manual-policy selection.
func (d *Draft) Toggle(unitID string) {
	d.Selection = planner.Toggle(d.Selection, unitID, d.Catalog, d.TargetQuantity, planner.PolicyManual)
}

// SetQuantity stores raw operator input for a selected unit.
func (d *Draft) SetQuantity(unitID, raw string) {
	d.Selection = planner.SetQuantity(d.Selection, unitID, raw, d.Catalog, d.TargetQuantity)
}

// RemainingBudget exposes the live budget for the allocation step.
func (d *Draft) RemainingBudget() *decimal.Decimal {
	return planner.RemainingBudget(d.Selection, d.TargetQuantity)
}

// BuildPayload re-validates the selection against the catalog snapshot
// and assembles the create/update body. The final target is the explicit
// quantity to cut when set, otherwise the selected total; a draft with
// neither a positive target nor any positive item is rejected.
func (d *Draft) BuildPayload() (models.OrderPayload, error) {
	if err := planner.Validate(d.Selection, d.Catalog, planner.ValidateOptions{
		Target:     d.TargetQuantity,
		DeferItems: d.OperatorCanEditItems,
	}); err != nil {
		if errors.Is(err, planner.ErrNoPositiveItem) {
			return models.OrderPayload{}, ErrNothingToSubmit
		}
		return models.OrderPayload{}, err
	}

	items := planner.CommittedItems(d.Selection, d.Catalog)

	target := d.TargetQuantity
	if target == nil || !target.IsPositive() {
		sum := planner.Sum(d.Selection).Round(2)
		if !sum.IsPositive() {
			return models.OrderPayload{}, ErrNothingToSubmit
		}
		target = &sum
	}

	return models.OrderPayload{
		OrderNumber:          d.OrderNumber,
		Customer:             d.Customer,
		ProductID:            d.ProductID,
		AssignedTo:           d.AssignedTo,
		TargetQuantity:       target,
		OperatorCanEditItems: d.OperatorCanEditItems,
		Items:                items,
	}, nil
}

// BeginSubmit marks the draft in flight. It returns false when a submit
// is already running; this is only an advisory double-click guard, the
// remote service stays the authority on order_number uniqueness.
func (d *Draft) BeginSubmit() bool {
	if d.submitting {
		return false
	}
	d.submitting = true
	return true
}

// EndSubmit clears the in-flight flag regardless of outcome, leaving the
// draft editable after a remote rejection.
func (d *Draft) EndSubmit() { d.submitting = false }

// Store holds open drafts by id.
type Store struct {
	mu     sync.Mutex
	drafts map[string]*Draft
}

func NewStore() *Store {
	return &Store{drafts: make(map[string]*Draft)}
}

func (s *Store) Put(d *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.ID] = d
}

func (s *Store) Get(id string) (*Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	return d, ok
}

// Close discards a draft. Outstanding remote requests are not cancelled;
// their results are simply ignored once the draft is gone.
func (s *Store) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
}
