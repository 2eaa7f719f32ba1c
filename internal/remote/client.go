// Package remote is the boundary client for the order/inventory service.
// It owns all HTTP traffic to the remote API plus the normalization of its
// loosely-typed payloads; nothing above this package sees a raw remote
// shape. The remote service is the single source of truth for orders and
// stock.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cutplan/internal/models"
)

// Client talks to the remote order/inventory service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RemoteError carries the status and message of a rejected remote call.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string { return e.Message }

// remoteErrorBody is the error shape the service sends on 4xx responses.
type remoteErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Field  string `json:"field"`
}

// decodeError maps a non-2xx response into a RemoteError. The one shape we
// rewrite is the order-number uniqueness rejection, which the service words
// in database terms; every other message is passed through verbatim.
func decodeError(status int, body []byte) error {
	var eb remoteErrorBody
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Detail != "" {
			msg = eb.Detail
		} else if eb.Error != "" {
			msg = eb.Error
		}
		lower := strings.ToLower(msg)
		duplicate := strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate") || strings.Contains(lower, "already exists")
		if duplicate && (eb.Field == "order_number" || strings.Contains(lower, "order_number")) {
			msg = "an order with this order number already exists"
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("remote service error %d", status)
	}
	return &RemoteError{StatusCode: status, Message: msg}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, b)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// ListUnits fetches the full unit catalog for a product, following the
// page token until the feed is exhausted. Units come back normalized and
// in the order the inventory source returned them.
func (c *Client) ListUnits(ctx context.Context, productID string) ([]models.InventoryUnit, error) {
	var units []models.InventoryUnit
	pageToken := ""
	for {
		q := url.Values{"product_id": {productID}}
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}
		var page struct {
			Results       []rawUnit `json:"results"`
			NextPageToken string    `json:"next_page_token"`
		}
		if err := c.do(ctx, "GET", "/api/inventory/units", q, nil, &page); err != nil {
			return nil, fmt.Errorf("list units: %w", err)
		}
		for _, raw := range page.Results {
			units = append(units, normalizeUnit(raw))
		}
		if page.NextPageToken == "" {
			return units, nil
		}
		pageToken = page.NextPageToken
	}
}

// ListOrders fetches one page of the per-status order feed.
func (c *Client) ListOrders(ctx context.Context, status, cursor string) (models.OrderPage, error) {
	q := url.Values{"workflow_status": {status}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page struct {
		Results    []rawOrder `json:"results"`
		NextCursor string     `json:"next_cursor"`
	}
	if err := c.do(ctx, "GET", "/api/cutting-orders", q, nil, &page); err != nil {
		return models.OrderPage{}, fmt.Errorf("list orders: %w", err)
	}
	out := models.OrderPage{NextCursor: page.NextCursor}
	for _, raw := range page.Results {
		out.Orders = append(out.Orders, normalizeOrder(raw))
	}
	return out, nil
}

// GetOrder fetches a single order by id.
func (c *Client) GetOrder(ctx context.Context, id string) (models.CuttingOrder, error) {
	var raw rawOrder
	if err := c.do(ctx, "GET", "/api/cutting-orders/"+id, nil, nil, &raw); err != nil {
		return models.CuttingOrder{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return normalizeOrder(raw), nil
}

// CreateOrder submits a new order. The service is the authority on
// order_number uniqueness; a rejection comes back as a RemoteError.
func (c *Client) CreateOrder(ctx context.Context, p models.OrderPayload) (models.CuttingOrder, error) {
	var raw rawOrder
	if err := c.do(ctx, "POST", "/api/cutting-orders", nil, p, &raw); err != nil {
		return models.CuttingOrder{}, err
	}
	return normalizeOrder(raw), nil
}

// UpdateOrder replaces an order's header and items wholesale.
func (c *Client) UpdateOrder(ctx context.Context, id string, p models.OrderPayload) (models.CuttingOrder, error) {
	var raw rawOrder
	if err := c.do(ctx, "PUT", "/api/cutting-orders/"+id, nil, p, &raw); err != nil {
		return models.CuttingOrder{}, err
	}
	return normalizeOrder(raw), nil
}

// PatchOrderItems replaces just the item list of an order and returns the
// updated resource.
func (c *Client) PatchOrderItems(ctx context.Context, id string, items []models.CuttingOrderItem) (models.CuttingOrder, error) {
	body := struct {
		Items []models.CuttingOrderItem `json:"items"`
	}{Items: items}
	var raw rawOrder
	if err := c.do(ctx, "PATCH", "/api/cutting-orders/"+id+"/items", nil, body, &raw); err != nil {
		return models.CuttingOrder{}, err
	}
	return normalizeOrder(raw), nil
}

// PatchOrderStatus asks the service to move an order to a new workflow
// status. Cancellation is a status write like any other; orders are never
// deleted.
func (c *Client) PatchOrderStatus(ctx context.Context, id, status string) (models.CuttingOrder, error) {
	body := struct {
		Status string `json:"workflow_status"`
	}{Status: status}
	var raw rawOrder
	if err := c.do(ctx, "PATCH", "/api/cutting-orders/"+id+"/status", nil, body, &raw); err != nil {
		return models.CuttingOrder{}, err
	}
	return normalizeOrder(raw), nil
}
