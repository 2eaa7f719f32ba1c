package main

import (
	"errors"
	"log"
	"net/http"

	"cutplan/internal/audit"
	"cutplan/internal/models"
	"cutplan/internal/remote"
	"cutplan/internal/validation"
	"cutplan/internal/workflow"
)

func handleColumns(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, coord.Columns())
}

func handleLoadMore(w http.ResponseWriter, r *http.Request, status string) {
	var ve validation.ValidationErrors
	validation.ValidateEnum(&ve, "status", status, colsyncStatuses())
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	if err := coord.LoadMore(r.Context(), status); err != nil {
		jsonErr(w, remoteMessage(err), 502)
		return
	}
	col, _ := coord.Snapshot(status)
	jsonResp(w, col)
}

func handleGetOrder(w http.ResponseWriter, r *http.Request, id string) {
	order, err := orders.GetOrder(r.Context(), id)
	if err != nil {
		jsonErr(w, remoteMessage(err), remoteStatus(err))
		return
	}
	jsonResp(w, order)
}

func handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if !isStaff(r) {
		jsonErr(w, "Staff access required", 403)
		return
	}
	var p models.OrderPayload
	if err := decodeBody(r, &p); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}
	if err := validateOrderPayload(p); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}

	order, err := orders.CreateOrder(r.Context(), p)
	if err != nil {
		jsonErr(w, remoteMessage(err), remoteStatus(err))
		return
	}
	afterMutation(r, audit.ActionCreate, order.ID, "created order "+order.OrderNumber)
	jsonResp(w, order)
}

func handleUpdateOrder(w http.ResponseWriter, r *http.Request, id string) {
	if !isStaff(r) {
		jsonErr(w, "Staff access required", 403)
		return
	}
	var p models.OrderPayload
	if err := decodeBody(r, &p); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}
	if err := validateOrderPayload(p); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}

	order, err := orders.UpdateOrder(r.Context(), id, p)
	if err != nil {
		jsonErr(w, remoteMessage(err), remoteStatus(err))
		return
	}
	afterMutation(r, audit.ActionUpdate, order.ID, "updated order "+order.OrderNumber)
	jsonResp(w, order)
}

type transitionRequest struct {
	To string `json:"to"`
}

func handleTransitionOrder(w http.ResponseWriter, r *http.Request, id string) {
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	order, err := orders.GetOrder(r.Context(), id)
	if err != nil {
		jsonErr(w, remoteMessage(err), remoteStatus(err))
		return
	}

	updated, err := machine.Advance(r.Context(), order, req.To, requestActor(r))
	if err != nil {
		var guard *workflow.GuardError
		if errors.As(err, &guard) {
			jsonErr(w, guard.Reason, 422)
			return
		}
		jsonErr(w, remoteMessage(err), remoteStatus(err))
		return
	}

	afterMutation(r, audit.ActionTransition, id, "moved order "+order.OrderNumber+" to "+req.To)
	jsonResp(w, updated)
}

func validateOrderPayload(p models.OrderPayload) error {
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "order_number", p.OrderNumber)
	validation.RequireField(&ve, "customer", p.Customer)
	validation.RequireField(&ve, "product_id", p.ProductID)
	validation.RequireField(&ve, "assigned_to", p.AssignedTo)
	if p.TargetQuantity != nil && p.TargetQuantity.IsNegative() {
		ve.Add("quantity_to_cut", "must not be negative")
	}
	if p.OperatorCanEditItems && (p.TargetQuantity == nil || !p.TargetQuantity.IsPositive()) {
		ve.Add("quantity_to_cut", "is required when operators allocate items")
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// afterMutation runs the shared post-commit path: audit, column refetch,
// console notification.
func afterMutation(r *http.Request, action, orderID, summary string) {
	audit.Log(db, hub, currentUsername(r), action, "cutting_order", orderID, summary)
	if err := coord.OnLocalMutation(r.Context()); err != nil {
		// Columns refetch again on the next feed event; not fatal.
		log.Printf("column refresh after %s: %v", action, err)
	}
	hub.BroadcastChange("cutting_order", action, orderID)
}

func colsyncStatuses() []string {
	return []string{models.StatusPending, models.StatusInProcess, models.StatusCompleted}
}

// remoteMessage unwraps boundary errors into operator-facing text.
func remoteMessage(err error) string {
	var re *remote.RemoteError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}

// remoteStatus maps a boundary error onto our response code. Remote 4xx
// rejections pass through; anything else is a bad gateway.
func remoteStatus(err error) int {
	var re *remote.RemoteError
	if errors.As(err, &re) && re.StatusCode >= 400 && re.StatusCode < 500 {
		return re.StatusCode
	}
	return 502
}
