// Package colsync keeps the three per-status order columns in step with
// the remote service: every local mutation and every (deduplicated)
// remote change event invalidates all three feeds and refetches them from
// the first page. There is no optimistic merging; the refetched pages are
// the truth.
package colsync

import (
	"context"
	"sync"
	"time"

	"cutplan/internal/models"
)

// DefaultDedupeWindow collapses event bursts from multiple subscribers of
// the same upstream feed.
const DefaultDedupeWindow = 700 * time.Millisecond

// Deduper drops repeats of the same (entity_type, event_kind, entity_id)
// key inside a short window. It is owned by whoever constructs the
// coordinator and injected, never reached through ambient state.
type Deduper struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func NewDeduper(window time.Duration) *Deduper {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &Deduper{window: window, seen: make(map[string]time.Time), now: time.Now}
}

// SetClock replaces the time source, for tests.
func (d *Deduper) SetClock(now func() time.Time) { d.now = now }

// Admit reports whether the event is the first with its key inside the
// window, and records it either way.
func (d *Deduper) Admit(e models.FeedEvent) bool {
	key := e.EntityType + "|" + e.EventKind + "|" + e.EntityID
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	// Drop stale keys so the map does not grow with event history.
	for k, ts := range d.seen {
		if now.Sub(ts) >= d.window {
			delete(d.seen, k)
		}
	}
	d.seen[key] = now
	return true
}

// Fetcher supplies one page of a per-status order feed.
type Fetcher interface {
	ListOrders(ctx context.Context, status, cursor string) (models.OrderPage, error)
}

// Column is a snapshot of one status feed.
type Column struct {
	Status      string                `json:"status"`
	Orders      []models.CuttingOrder `json:"orders"`
	HasMore     bool                  `json:"has_more"`
	LoadingMore bool                  `json:"loading_more"`
}

type column struct {
	orders      []models.CuttingOrder
	cursor      string
	hasMore     bool
	loadingMore bool
}

// Statuses tracked as columns, in display order.
var ColumnStatuses = []string{models.StatusPending, models.StatusInProcess, models.StatusCompleted}

// Coordinator owns the three column feeds.
type Coordinator struct {
	fetch  Fetcher
	dedupe *Deduper

	mu      sync.Mutex
	columns map[string]*column
}

func NewCoordinator(f Fetcher, d *Deduper) *Coordinator {
	c := &Coordinator{fetch: f, dedupe: d, columns: make(map[string]*column)}
	for _, s := range ColumnStatuses {
		c.columns[s] = &column{}
	}
	return c
}

// Refresh refetches every column from its first page. A failed column
// keeps its previous contents; the first error is returned after all
// columns were attempted.
func (c *Coordinator) Refresh(ctx context.Context) error {
	var firstErr error
	for _, status := range ColumnStatuses {
		page, err := c.fetch.ListOrders(ctx, status, "")
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.mu.Lock()
		col := c.columns[status]
		col.orders = page.Orders
		col.cursor = page.NextCursor
		col.hasMore = page.NextCursor != ""
		c.mu.Unlock()
	}
	return firstErr
}

// LoadMore appends the next page to one column. It is a no-op while a
// load is already running or when the feed is exhausted.
func (c *Coordinator) LoadMore(ctx context.Context, status string) error {
	c.mu.Lock()
	col, ok := c.columns[status]
	if !ok || !col.hasMore || col.loadingMore {
		c.mu.Unlock()
		return nil
	}
	col.loadingMore = true
	cursor := col.cursor
	c.mu.Unlock()

	page, err := c.fetch.ListOrders(ctx, status, cursor)

	c.mu.Lock()
	defer c.mu.Unlock()
	col.loadingMore = false
	if err != nil {
		return err
	}
	col.orders = append(col.orders, page.Orders...)
	col.cursor = page.NextCursor
	col.hasMore = page.NextCursor != ""
	return nil
}

// Snapshot returns the current state of one column.
func (c *Coordinator) Snapshot(status string) (Column, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.columns[status]
	if !ok {
		return Column{}, false
	}
	orders := make([]models.CuttingOrder, len(col.orders))
	copy(orders, col.orders)
	return Column{Status: status, Orders: orders, HasMore: col.hasMore, LoadingMore: col.loadingMore}, true
}

// Columns returns snapshots of all three feeds in display order.
func (c *Coordinator) Columns() []Column {
	out := make([]Column, 0, len(ColumnStatuses))
	for _, s := range ColumnStatuses {
		if col, ok := c.Snapshot(s); ok {
			out = append(out, col)
		}
	}
	return out
}

// OnLocalMutation is called after any successful create, update or
// transition committed by this process.
func (c *Coordinator) OnLocalMutation(ctx context.Context) error {
	return c.Refresh(ctx)
}

// OnFeedEvent handles one remote change notification. Only order-entity
// events that pass deduplication trigger a refetch cycle; the return
// value reports whether one ran.
func (c *Coordinator) OnFeedEvent(ctx context.Context, e models.FeedEvent) bool {
	if e.EntityType != "cutting_order" {
		return false
	}
	if c.dedupe != nil && !c.dedupe.Admit(e) {
		return false
	}
	_ = c.Refresh(ctx)
	return true
}
