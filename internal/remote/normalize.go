package remote

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cutplan/internal/models"
)

// The remote service is not consistent about its shapes: stock figures
// show up under several field names (and sometimes inside a nested stock
// object), and reference fields arrive as a bare id, a number, or a full
// object. Everything is normalized here so the rest of the process only
// ever sees models types.

type rawStock struct {
	Current json.RawMessage `json:"current"`
	Initial json.RawMessage `json:"initial"`
}

type rawUnit struct {
	ID            json.RawMessage `json:"id"`
	CurrentStock  json.RawMessage `json:"current_stock"`
	InitialStock  json.RawMessage `json:"initial_stock"`
	Stock         *rawStock       `json:"stock"`
	Brand         string          `json:"brand"`
	CoilNumber    string          `json:"coil_number"`
	FormType      string          `json:"form_type"`
}

// finiteNumber parses a raw JSON value as a finite number. It accepts
// numbers and numeric strings; null, empty, non-numeric and non-finite
// values all report ok=false.
func finiteNumber(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// availableQuantity resolves the stock fallback chain: current_stock,
// then initial_stock, then the nested stock object's current and initial.
// The first finite value wins and the result is floored at zero.
func availableQuantity(u rawUnit) decimal.Decimal {
	candidates := []json.RawMessage{u.CurrentStock, u.InitialStock}
	if u.Stock != nil {
		candidates = append(candidates, u.Stock.Current, u.Stock.Initial)
	}
	for _, c := range candidates {
		if f, ok := finiteNumber(c); ok {
			if f < 0 {
				return decimal.Zero
			}
			return decimal.NewFromFloat(f)
		}
	}
	return decimal.Zero
}

// normalizeRef collapses the id / number / object variants of a reference
// field into one tagged shape.
func normalizeRef(raw json.RawMessage) models.Ref {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return models.Ref{}
	}
	switch s[0] {
	case '{':
		var obj struct {
			ID    json.RawMessage `json:"id"`
			Name  string          `json:"name"`
			Label string          `json:"label"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return models.Ref{}
		}
		label := obj.Name
		if label == "" {
			label = obj.Label
		}
		return models.Ref{ID: scalarString(obj.ID), Label: label}
	case '"':
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return models.Ref{}
		}
		return models.Ref{ID: id}
	default:
		return models.Ref{ID: s}
	}
}

// scalarString renders a raw id (string or number) as a string.
func scalarString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

func normalizeUnit(u rawUnit) models.InventoryUnit {
	return models.InventoryUnit{
		ID:                scalarString(u.ID),
		AvailableQuantity: availableQuantity(u),
		Brand:             u.Brand,
		CoilNumber:        u.CoilNumber,
		FormType:          u.FormType,
	}
}

type rawOrder struct {
	ID                   json.RawMessage           `json:"id"`
	OrderNumber          string                    `json:"order_number"`
	Customer             string                    `json:"customer"`
	Product              json.RawMessage           `json:"product"`
	Status               string                    `json:"workflow_status"`
	TargetQuantity       *decimal.Decimal          `json:"quantity_to_cut"`
	OperatorCanEditItems bool                      `json:"operator_can_edit_items"`
	AssignedTo           json.RawMessage           `json:"assigned_to"`
	Items                []models.CuttingOrderItem `json:"items"`
	CreatedAt            string                    `json:"created_at"`
	UpdatedAt            string                    `json:"updated_at"`
}

func normalizeOrder(o rawOrder) models.CuttingOrder {
	return models.CuttingOrder{
		ID:                   scalarString(o.ID),
		OrderNumber:          o.OrderNumber,
		Customer:             o.Customer,
		Product:              normalizeRef(o.Product),
		Status:               o.Status,
		TargetQuantity:       o.TargetQuantity,
		OperatorCanEditItems: o.OperatorCanEditItems,
		AssignedTo:           normalizeRef(o.AssignedTo),
		Items:                o.Items,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
}
