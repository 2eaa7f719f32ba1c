package main

import (
	"net/http"

	"github.com/shopspring/decimal"

	"cutplan/internal/audit"
	"cutplan/internal/draft"
	"cutplan/internal/models"
	"cutplan/internal/planner"
)

// draftView is the draft state returned after every draft operation, so
// the console can render the allocation step without extra round trips.
type draftView struct {
	ID                   string                 `json:"id"`
	OrderID              string                 `json:"order_id,omitempty"`
	Step                 int                    `json:"step"`
	Customer             string                 `json:"customer"`
	OrderNumber          string                 `json:"order_number"`
	AssignedTo           string                 `json:"assigned_to"`
	ProductID            string                 `json:"product_id"`
	TargetQuantity       *decimal.Decimal       `json:"quantity_to_cut,omitempty"`
	OperatorCanEditItems bool                   `json:"operator_can_edit_items"`
	RemainingBudget      *decimal.Decimal       `json:"remaining_budget,omitempty"`
	SelectedTotal        decimal.Decimal        `json:"selected_total"`
	Catalog              []models.InventoryUnit `json:"catalog"`
	Rows                 []draftRow             `json:"rows"`
}

type draftRow struct {
	UnitID   string           `json:"unit_id"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
}

func viewOf(d *draft.Draft) draftView {
	v := draftView{
		ID:                   d.ID,
		OrderID:              d.OrderID,
		Step:                 d.Step,
		Customer:             d.Customer,
		OrderNumber:          d.OrderNumber,
		AssignedTo:           d.AssignedTo,
		ProductID:            d.ProductID,
		TargetQuantity:       d.TargetQuantity,
		OperatorCanEditItems: d.OperatorCanEditItems,
		RemainingBudget:      d.RemainingBudget(),
		SelectedTotal:        planner.Sum(d.Selection).Round(2),
		Catalog:              d.Catalog,
		Rows:                 []draftRow{},
	}
	for _, u := range d.Catalog {
		e, ok := d.Selection[u.ID]
		if !ok {
			continue
		}
		row := draftRow{UnitID: u.ID}
		if e.Set {
			q := e.Quantity
			row.Quantity = &q
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

type openDraftRequest struct {
	ProductID   string   `json:"product_id"`
	OrderID     string   `json:"order_id"`
	Preselected []string `json:"preselected"`
}

// handleOpenDraft starts a draft over a fresh catalog snapshot. With an
// order_id the draft is pre-populated from the existing order for editing.
func handleOpenDraft(w http.ResponseWriter, r *http.Request) {
	if !isStaff(r) {
		jsonErr(w, "Staff access required", 403)
		return
	}
	var req openDraftRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	var existing *models.CuttingOrder
	if req.OrderID != "" {
		order, err := orders.GetOrder(r.Context(), req.OrderID)
		if err != nil {
			jsonErr(w, remoteMessage(err), remoteStatus(err))
			return
		}
		if order.Status != models.StatusPending {
			jsonErr(w, "only pending orders can be edited", 422)
			return
		}
		existing = &order
		if req.ProductID == "" {
			req.ProductID = order.Product.ID
		}
	}
	if req.ProductID == "" {
		jsonErr(w, "product_id is required", 400)
		return
	}

	catalog, err := units.ListUnits(r.Context(), req.ProductID)
	if err != nil {
		jsonErr(w, remoteMessage(err), remoteStatus(err))
		return
	}

	d := draft.New(catalog, req.Preselected)
	d.ProductID = req.ProductID
	if existing != nil {
		d.OrderID = existing.ID
		d.Customer = existing.Customer
		d.OrderNumber = existing.OrderNumber
		d.AssignedTo = existing.AssignedTo.ID
		d.TargetQuantity = existing.TargetQuantity
		d.OperatorCanEditItems = existing.OperatorCanEditItems
		for _, item := range existing.Items {
			d.Selection[item.UnitID] = planner.Selection{Quantity: item.Quantity, Set: true}
		}
	}
	drafts.Put(d)
	jsonResp(w, viewOf(d))
}

func handleGetDraft(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := drafts.Get(id)
	if !ok {
		jsonErr(w, "draft not found", 404)
		return
	}
	jsonResp(w, viewOf(d))
}

func handleCloseDraft(w http.ResponseWriter, r *http.Request, id string) {
	drafts.Close(id)
	jsonResp(w, map[string]string{"status": "closed"})
}

type draftHeaderRequest struct {
	Customer             string           `json:"customer"`
	OrderNumber          string           `json:"order_number"`
	AssignedTo           string           `json:"assigned_to"`
	TargetQuantity       *decimal.Decimal `json:"quantity_to_cut"`
	OperatorCanEditItems bool             `json:"operator_can_edit_items"`
}

func handleDraftHeader(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := drafts.Get(id)
	if !ok {
		jsonErr(w, "draft not found", 404)
		return
	}
	var req draftHeaderRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}
	d.Customer = req.Customer
	d.OrderNumber = req.OrderNumber
	d.AssignedTo = req.AssignedTo
	d.TargetQuantity = req.TargetQuantity
	d.OperatorCanEditItems = req.OperatorCanEditItems

	if err := d.CompleteHeader(); err != nil {
		jsonErr(w, err.Error(), 422)
		return
	}
	jsonResp(w, viewOf(d))
}

type draftUnitRequest struct {
	UnitID   string `json:"unit_id"`
	Quantity string `json:"quantity"`
}

func handleDraftToggle(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := drafts.Get(id)
	if !ok {
		jsonErr(w, "draft not found", 404)
		return
	}
	var req draftUnitRequest
	if err := decodeBody(r, &req); err != nil || req.UnitID == "" {
		jsonErr(w, "unit_id is required", 400)
		return
	}
	d.Toggle(req.UnitID)
	jsonResp(w, viewOf(d))
}

func handleDraftQuantity(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := drafts.Get(id)
	if !ok {
		jsonErr(w, "draft not found", 404)
		return
	}
	var req draftUnitRequest
	if err := decodeBody(r, &req); err != nil || req.UnitID == "" {
		jsonErr(w, "unit_id is required", 400)
		return
	}
	d.SetQuantity(req.UnitID, req.Quantity)
	jsonResp(w, viewOf(d))
}

// handleSubmitDraft re-validates against a fresh catalog snapshot and
// creates (or updates) the order on the remote service. The draft stays
// open on rejection so nothing the operator entered is lost.
func handleSubmitDraft(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := drafts.Get(id)
	if !ok {
		jsonErr(w, "draft not found", 404)
		return
	}
	if !d.BeginSubmit() {
		jsonErr(w, draft.ErrSubmitInFlight.Error(), 409)
		return
	}
	defer d.EndSubmit()

	// Refresh stock before validating; the snapshot may be minutes old.
	if catalog, err := units.ListUnits(r.Context(), d.ProductID); err == nil {
		d.Catalog = filterCatalog(catalog, d.Catalog)
	}

	payload, err := d.BuildPayload()
	if err != nil {
		jsonErr(w, err.Error(), 422)
		return
	}

	var order models.CuttingOrder
	if d.OrderID != "" {
		order, err = orders.UpdateOrder(r.Context(), d.OrderID, payload)
	} else {
		order, err = orders.CreateOrder(r.Context(), payload)
	}
	if err != nil {
		jsonErr(w, remoteMessage(err), remoteStatus(err))
		return
	}

	drafts.Close(d.ID)
	action := audit.ActionCreate
	if d.OrderID != "" {
		action = audit.ActionUpdate
	}
	afterMutation(r, action, order.ID, "submitted order "+order.OrderNumber)
	jsonResp(w, order)
}

// filterCatalog keeps the fresh units that were part of the draft's
// original catalog, preserving the draft's unit scope.
func filterCatalog(fresh []models.InventoryUnit, prior planner.Catalog) planner.Catalog {
	keep := make(map[string]bool, len(prior))
	for _, u := range prior {
		keep[u.ID] = true
	}
	out := make(planner.Catalog, 0, len(prior))
	for _, u := range fresh {
		if keep[u.ID] {
			out = append(out, u)
		}
	}
	return out
}
