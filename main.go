package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"

	"cutplan/internal/colsync"
	"cutplan/internal/config"
	"cutplan/internal/draft"
	"cutplan/internal/models"
	"cutplan/internal/remote"
	"cutplan/internal/websocket"
	"cutplan/internal/workflow"
)

// Shared process state. Handlers reach these directly; tests swap them for
// fakes.
var (
	cfg     config.Config
	orders  orderService
	units   unitService
	coord   *colsync.Coordinator
	machine *workflow.Machine
	drafts  *draft.Store
	hub     *websocket.Hub
)

// orderService is the slice of the remote API the handlers need for
// orders. *remote.Client satisfies it; tests use a fake.
type orderService interface {
	ListOrders(ctx context.Context, status, cursor string) (models.OrderPage, error)
	GetOrder(ctx context.Context, id string) (models.CuttingOrder, error)
	CreateOrder(ctx context.Context, p models.OrderPayload) (models.CuttingOrder, error)
	UpdateOrder(ctx context.Context, id string, p models.OrderPayload) (models.CuttingOrder, error)
	PatchOrderItems(ctx context.Context, id string, items []models.CuttingOrderItem) (models.CuttingOrder, error)
	PatchOrderStatus(ctx context.Context, id, status string) (models.CuttingOrder, error)
}

type unitService interface {
	ListUnits(ctx context.Context, productID string) ([]models.InventoryUnit, error)
}

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	var err error
	cfg, err = config.Load(*cfgPath)
	if err != nil {
		log.Fatal("config load failed: ", err)
	}

	if err := initDB(cfg.DBPath); err != nil {
		log.Fatal("DB init failed: ", err)
	}
	seedDB()

	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token)
	orders = client
	units = client
	hub = websocket.NewHub()
	drafts = draft.NewStore()
	machine = workflow.NewMachine(client, client)

	deduper := colsync.NewDeduper(cfg.DedupeWindow())
	coord = colsync.NewCoordinator(client, deduper)
	if err := coord.Refresh(context.Background()); err != nil {
		log.Printf("initial column load: %v", err)
	}

	// Remote change feed: deduplicated events refetch the columns, then the
	// consoles are told to reload.
	feed := remote.NewFeedSubscriber(cfg.Remote.FeedURL, cfg.Remote.Token, func(e models.FeedEvent) {
		if coord.OnFeedEvent(context.Background(), e) {
			hub.BroadcastChange(e.EntityType, e.EventKind, e.EntityID)
		}
	})
	go feed.Run(context.Background())

	mux := newRouter()
	log.Printf("cutplan console listening on %s", cfg.Listen)
	log.Fatal(http.ListenAndServe(cfg.Listen, logging(requireAuth(mux))))
}

func newRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogin(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogout(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/me", handleMe)

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.Serve(hub, w, r)
	})

	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// Board columns
		case parts[0] == "columns" && len(parts) == 1 && r.Method == "GET":
			handleColumns(w, r)
		case parts[0] == "columns" && len(parts) == 3 && parts[2] == "more" && r.Method == "POST":
			handleLoadMore(w, r, parts[1])

		// Orders
		case parts[0] == "orders" && len(parts) == 1 && r.Method == "POST":
			handleCreateOrder(w, r)
		case parts[0] == "orders" && len(parts) == 2 && r.Method == "GET":
			handleGetOrder(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateOrder(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "transition" && r.Method == "POST":
			handleTransitionOrder(w, r, parts[1])

		// Unit catalog
		case parts[0] == "units" && len(parts) == 1 && r.Method == "GET":
			handleListUnits(w, r)

		// Drafts
		case parts[0] == "drafts" && len(parts) == 1 && r.Method == "POST":
			handleOpenDraft(w, r)
		case parts[0] == "drafts" && len(parts) == 2 && r.Method == "GET":
			handleGetDraft(w, r, parts[1])
		case parts[0] == "drafts" && len(parts) == 2 && r.Method == "DELETE":
			handleCloseDraft(w, r, parts[1])
		case parts[0] == "drafts" && len(parts) == 3 && parts[2] == "header" && r.Method == "PUT":
			handleDraftHeader(w, r, parts[1])
		case parts[0] == "drafts" && len(parts) == 3 && parts[2] == "toggle" && r.Method == "POST":
			handleDraftToggle(w, r, parts[1])
		case parts[0] == "drafts" && len(parts) == 3 && parts[2] == "quantity" && r.Method == "POST":
			handleDraftQuantity(w, r, parts[1])
		case parts[0] == "drafts" && len(parts) == 3 && parts[2] == "submit" && r.Method == "POST":
			handleSubmitDraft(w, r, parts[1])

		// Reports
		case parts[0] == "reports" && len(parts) == 2 && parts[1] == "fulfillment" && r.Method == "GET":
			handleFulfillmentReport(w, r)

		// Audit
		case parts[0] == "audit" && len(parts) == 1 && r.Method == "GET":
			handleAuditLog(w, r)

		default:
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	})

	return mux
}

func jsonResp(w http.ResponseWriter, data interface{}) {
	json.NewEncoder(w).Encode(models.APIResponse{Data: data})
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
