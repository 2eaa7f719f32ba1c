package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"cutplan/internal/colsync"
	"cutplan/internal/draft"
	"cutplan/internal/models"
	"cutplan/internal/testutil"
	"cutplan/internal/websocket"
	"cutplan/internal/workflow"
)

// fakeRemote stands in for the remote order service in handler tests. It
// keeps orders in memory and hands back already-normalized shapes, the way
// the boundary client would.
type fakeRemote struct {
	mu       sync.Mutex
	orders   map[string]models.CuttingOrder
	units    map[string][]models.InventoryUnit
	nextID   int
	failWith error

	listCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		orders: make(map[string]models.CuttingOrder),
		units:  make(map[string][]models.InventoryUnit),
	}
}

func (f *fakeRemote) addUnit(productID, unitID string, avail float64) {
	f.units[productID] = append(f.units[productID], models.InventoryUnit{
		ID:                unitID,
		AvailableQuantity: decimal.NewFromFloat(avail),
	})
}

func (f *fakeRemote) ListUnits(ctx context.Context, productID string) ([]models.InventoryUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.units[productID], nil
}

func (f *fakeRemote) ListOrders(ctx context.Context, status, cursor string) (models.OrderPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failWith != nil {
		return models.OrderPage{}, f.failWith
	}
	page := models.OrderPage{}
	for _, o := range f.orders {
		if o.Status == status {
			page.Orders = append(page.Orders, o)
		}
	}
	return page, nil
}

func (f *fakeRemote) GetOrder(ctx context.Context, id string) (models.CuttingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return models.CuttingOrder{}, fmt.Errorf("order %s not found", id)
	}
	return o, nil
}

func (f *fakeRemote) CreateOrder(ctx context.Context, p models.OrderPayload) (models.CuttingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return models.CuttingOrder{}, f.failWith
	}
	for _, o := range f.orders {
		if o.OrderNumber == p.OrderNumber {
			return models.CuttingOrder{}, fmt.Errorf("an order with this order number already exists")
		}
	}
	f.nextID++
	o := models.CuttingOrder{
		ID:                   fmt.Sprintf("o%d", f.nextID),
		OrderNumber:          p.OrderNumber,
		Customer:             p.Customer,
		Product:              models.Ref{ID: p.ProductID},
		Status:               models.StatusPending,
		TargetQuantity:       p.TargetQuantity,
		OperatorCanEditItems: p.OperatorCanEditItems,
		AssignedTo:           models.Ref{ID: p.AssignedTo},
		Items:                p.Items,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeRemote) UpdateOrder(ctx context.Context, id string, p models.OrderPayload) (models.CuttingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return models.CuttingOrder{}, fmt.Errorf("order %s not found", id)
	}
	o.OrderNumber = p.OrderNumber
	o.Customer = p.Customer
	o.Product = models.Ref{ID: p.ProductID}
	o.AssignedTo = models.Ref{ID: p.AssignedTo}
	o.TargetQuantity = p.TargetQuantity
	o.OperatorCanEditItems = p.OperatorCanEditItems
	o.Items = p.Items
	f.orders[id] = o
	return o, nil
}

func (f *fakeRemote) PatchOrderItems(ctx context.Context, id string, items []models.CuttingOrderItem) (models.CuttingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return models.CuttingOrder{}, fmt.Errorf("order %s not found", id)
	}
	o.Items = items
	f.orders[id] = o
	return o, nil
}

func (f *fakeRemote) PatchOrderStatus(ctx context.Context, id, status string) (models.CuttingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return models.CuttingOrder{}, fmt.Errorf("order %s not found", id)
	}
	o.Status = status
	f.orders[id] = o
	return o, nil
}

// setupTest swaps the process globals for fakes and returns the fake
// remote plus the handler chain under test.
func setupTest(t *testing.T) (*fakeRemote, http.Handler) {
	t.Helper()
	fake := newFakeRemote()
	db = testutil.SetupTestDB(t)
	t.Cleanup(func() { db.Close() })

	orders = fake
	units = fake
	hub = websocket.NewHub()
	drafts = draft.NewStore()
	machine = workflow.NewMachine(fake, fake)
	coord = colsync.NewCoordinator(fake, colsync.NewDeduper(0))

	return fake, logging(requireAuth(newRouter()))
}

// loginAs opens a session for a user of the given role and returns the
// session cookie to attach to requests. Staff requests use the seeded
// admin account.
func loginAs(t *testing.T, username, role string) *http.Cookie {
	t.Helper()
	var userID int
	if username == "admin" {
		userID = 1
	} else {
		userID = testutil.AddUser(t, db, username, "pw", role)
	}
	token := testutil.AddSession(t, db, userID)
	return &http.Cookie{Name: sessionCookie, Value: token}
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func doRequest(t *testing.T, h http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
