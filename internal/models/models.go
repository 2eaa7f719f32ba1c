package models

import "github.com/shopspring/decimal"

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Order workflow statuses.
const (
	StatusPending   = "pending"
	StatusInProcess = "in_process"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Ref is the normalized form of remote fields that arrive as a bare id,
// a numeric id, or a full object. The boundary client collapses all three
// into this shape before anything else sees them.
type Ref struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// InventoryUnit is a single allocatable stock unit (a coil or roll) of a
// product. AvailableQuantity is already normalized by the inventory source.
type InventoryUnit struct {
	ID                string          `json:"id"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	Brand             string          `json:"brand,omitempty"`
	CoilNumber        string          `json:"coil_number,omitempty"`
	FormType          string          `json:"form_type,omitempty"`
}

// CuttingOrderItem is one committed allocation line: a unit and the
// quantity to cut from it.
type CuttingOrderItem struct {
	UnitID   string          `json:"unit_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// CuttingOrder mirrors the remote service's order resource. The remote
// service owns it; this process never mutates one except through remote
// calls.
type CuttingOrder struct {
	ID                   string             `json:"id"`
	OrderNumber          string             `json:"order_number"`
	Customer             string             `json:"customer"`
	Product              Ref                `json:"product"`
	Status               string             `json:"workflow_status"`
	TargetQuantity       *decimal.Decimal   `json:"quantity_to_cut,omitempty"`
	OperatorCanEditItems bool               `json:"operator_can_edit_items"`
	AssignedTo           Ref                `json:"assigned_to"`
	Items                []CuttingOrderItem `json:"items"`
	CreatedAt            string             `json:"created_at,omitempty"`
	UpdatedAt            string             `json:"updated_at,omitempty"`
}

// OrderPayload is the create/update body sent to the remote service.
// Items are replaced wholesale, never merged.
type OrderPayload struct {
	OrderNumber          string             `json:"order_number"`
	Customer             string             `json:"customer"`
	ProductID            string             `json:"product_id"`
	AssignedTo           string             `json:"assigned_to"`
	TargetQuantity       *decimal.Decimal   `json:"quantity_to_cut,omitempty"`
	OperatorCanEditItems bool               `json:"operator_can_edit_items"`
	Items                []CuttingOrderItem `json:"items"`
}

// OrderPage is one page of a per-status order feed.
type OrderPage struct {
	Orders     []CuttingOrder `json:"results"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// FeedEvent is a change notification from the remote real-time feed.
// (EntityType, EventKind, EntityID) is also the dedupe key.
type FeedEvent struct {
	EntityType string `json:"entity_type"`
	EventKind  string `json:"event_kind"`
	EntityID   string `json:"entity_id"`
}
