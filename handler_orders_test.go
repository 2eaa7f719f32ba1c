package main

import (
	"testing"

	"cutplan/internal/colsync"
	"cutplan/internal/models"
	"cutplan/internal/testutil"
)

func TestCreateOrderRequiresStaff(t *testing.T) {
	_, h := setupTest(t)
	op := loginAs(t, "pat", "operator")

	body := `{"order_number":"OC-1","customer":"ACME","product_id":"p1","assigned_to":"2"}`
	rec := doRequest(t, h, "POST", "/api/v1/orders", body, op)
	if rec.Code != 403 {
		t.Errorf("operator create: want 403, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCreateOrderValidatesHeader(t *testing.T) {
	_, h := setupTest(t)
	staff := loginAs(t, "admin", "staff")

	rec := doRequest(t, h, "POST", "/api/v1/orders", `{"customer":"ACME"}`, staff)
	if rec.Code != 400 {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestCreateOrderAndColumnsRefetch(t *testing.T) {
	fake, h := setupTest(t)
	staff := loginAs(t, "admin", "staff")

	body := `{"order_number":"OC-1","customer":"ACME","product_id":"p1","assigned_to":"2","quantity_to_cut":"50","operator_can_edit_items":true}`
	rec := doRequest(t, h, "POST", "/api/v1/orders", body, staff)
	if rec.Code != 200 {
		t.Fatalf("create: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var order models.CuttingOrder
	testutil.DecodeEnvelope(t, rec, &order)
	if order.Status != models.StatusPending {
		t.Errorf("new order must be pending, got %q", order.Status)
	}

	// The mutation refetches all three columns.
	if fake.listCalls != len(colsync.ColumnStatuses) {
		t.Errorf("want %d column fetches after create, got %d", len(colsync.ColumnStatuses), fake.listCalls)
	}

	rec = doRequest(t, h, "GET", "/api/v1/columns", "", staff)
	var cols []colsync.Column
	testutil.DecodeEnvelope(t, rec, &cols)
	if len(cols) != 3 || len(cols[0].Orders) != 1 {
		t.Errorf("pending column should hold the new order: %+v", cols)
	}
}

func TestDuplicateOrderNumberRejected(t *testing.T) {
	_, h := setupTest(t)
	staff := loginAs(t, "admin", "staff")

	body := `{"order_number":"OC-1","customer":"ACME","product_id":"p1","assigned_to":"2"}`
	if rec := doRequest(t, h, "POST", "/api/v1/orders", body, staff); rec.Code != 200 {
		t.Fatalf("first create: %d (%s)", rec.Code, rec.Body.String())
	}
	rec := doRequest(t, h, "POST", "/api/v1/orders", body, staff)
	if rec.Code == 200 {
		t.Error("second create with same order number must be rejected")
	}
}

func TestTransitionGuardSurfacesAs422(t *testing.T) {
	fake, h := setupTest(t)
	staff := loginAs(t, "admin", "staff")
	fake.addUnit("p1", "a", 10)

	// Deferred order whose stock cannot cover the target: the start guard
	// must fail before any mutation.
	body := `{"order_number":"OC-1","customer":"ACME","product_id":"p1","assigned_to":"2","quantity_to_cut":"50","operator_can_edit_items":true}`
	rec := doRequest(t, h, "POST", "/api/v1/orders", body, staff)
	var order models.CuttingOrder
	testutil.DecodeEnvelope(t, rec, &order)

	rec = doRequest(t, h, "POST", "/api/v1/orders/"+order.ID+"/transition", `{"to":"in_process"}`, staff)
	if rec.Code != 422 {
		t.Fatalf("guard failure: want 422, got %d (%s)", rec.Code, rec.Body.String())
	}
	got, _ := fake.GetOrder(nil, order.ID)
	if got.Status != models.StatusPending {
		t.Errorf("failed guard must not move the order, got %q", got.Status)
	}
}

func TestTransitionStartAutoFills(t *testing.T) {
	fake, h := setupTest(t)
	staff := loginAs(t, "admin", "staff")
	fake.addUnit("p1", "a", 30)
	fake.addUnit("p1", "b", 40)

	body := `{"order_number":"OC-1","customer":"ACME","product_id":"p1","assigned_to":"2","quantity_to_cut":"50","operator_can_edit_items":true}`
	rec := doRequest(t, h, "POST", "/api/v1/orders", body, staff)
	var order models.CuttingOrder
	testutil.DecodeEnvelope(t, rec, &order)

	rec = doRequest(t, h, "POST", "/api/v1/orders/"+order.ID+"/transition", `{"to":"in_process"}`, staff)
	if rec.Code != 200 {
		t.Fatalf("start: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var moved models.CuttingOrder
	testutil.DecodeEnvelope(t, rec, &moved)
	if moved.Status != models.StatusInProcess {
		t.Errorf("want in_process, got %q", moved.Status)
	}
	if len(moved.Items) != 2 || !moved.Items[0].Quantity.Equal(dec(30)) || !moved.Items[1].Quantity.Equal(dec(20)) {
		t.Errorf("auto-fill should allocate 30/20, got %+v", moved.Items)
	}
}

func TestCancelIsStaffOnly(t *testing.T) {
	fake, h := setupTest(t)
	staff := loginAs(t, "admin", "staff")

	body := `{"order_number":"OC-1","customer":"ACME","product_id":"p1","assigned_to":"2"}`
	rec := doRequest(t, h, "POST", "/api/v1/orders", body, staff)
	var order models.CuttingOrder
	testutil.DecodeEnvelope(t, rec, &order)

	// Even the assigned operator cannot cancel.
	op := loginAs(t, "pat", "operator")
	rec = doRequest(t, h, "POST", "/api/v1/orders/"+order.ID+"/transition", `{"to":"cancelled"}`, op)
	if rec.Code != 422 {
		t.Errorf("operator cancel: want 422, got %d", rec.Code)
	}

	rec = doRequest(t, h, "POST", "/api/v1/orders/"+order.ID+"/transition", `{"to":"cancelled"}`, staff)
	if rec.Code != 200 {
		t.Fatalf("staff cancel: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	got, _ := fake.GetOrder(nil, order.ID)
	if got.Status != models.StatusCancelled {
		t.Errorf("cancel is a status write, got %q", got.Status)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	_, h := setupTest(t)
	rec := doRequest(t, h, "GET", "/api/v1/columns", "", nil)
	if rec.Code != 401 {
		t.Errorf("want 401 without a session, got %d", rec.Code)
	}
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	_, h := setupTest(t)
	staff := loginAs(t, "admin", "staff")

	body := `{"order_number":"OC-1","customer":"ACME","product_id":"p1","assigned_to":"2"}`
	doRequest(t, h, "POST", "/api/v1/orders", body, staff)

	rec := doRequest(t, h, "GET", "/api/v1/audit", "", staff)
	if rec.Code != 200 {
		t.Fatalf("audit list: %d", rec.Code)
	}
	var entries []struct {
		Action string `json:"action"`
		Entity string `json:"entity"`
	}
	testutil.DecodeEnvelope(t, rec, &entries)
	if len(entries) == 0 || entries[0].Action != "create" || entries[0].Entity != "cutting_order" {
		t.Errorf("create should be audited, got %+v", entries)
	}
}
