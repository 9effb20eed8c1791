package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/the-vibe-thread/admin-orders/internal/orders"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
)

// ErrUnauthorized means the session is missing or expired. Callers should
// treat it as fatal for the current session and re-authenticate.
var ErrUnauthorized = errors.New("unauthorized")

// APIError carries the status and message of a non-2xx admin API response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// ReturnFilter mirrors the query parameters of the returns listing. Zero
// values mean "no constraint" and are left out of the request entirely.
type ReturnFilter struct {
	Status    string
	OrderID   string
	Email     string
	StartDate string
	EndDate   string
	Search    string
	Page      int
	PageSize  int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
	}, nil
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.do(ctx, http.MethodPost, "/api/auth/login", body, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Session(ctx context.Context) (string, error) {
	var response struct {
		Username string `json:"username"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &response); err != nil {
		return "", err
	}
	return response.Username, nil
}

func (c *Client) ListReturns(ctx context.Context, filter ReturnFilter) (*orders.ReturnPage, error) {
	values := url.Values{}
	setIfPresent(values, "status", filter.Status)
	setIfPresent(values, "orderId", filter.OrderID)
	setIfPresent(values, "email", filter.Email)
	setIfPresent(values, "startDate", filter.StartDate)
	setIfPresent(values, "endDate", filter.EndDate)
	setIfPresent(values, "search", filter.Search)
	if filter.Page > 0 {
		values.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(filter.PageSize))
	}

	path := "/api/admin/returns"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page orders.ReturnPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]orders.Order, error) {
	var list []orders.Order
	if err := c.do(ctx, http.MethodGet, "/api/admin/orders", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	var order orders.Order
	if err := c.do(ctx, http.MethodGet, "/api/admin/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetOrderHistory(ctx context.Context, orderID string) ([]repository.HistoryEntry, error) {
	var history []repository.HistoryEntry
	path := fmt.Sprintf("/api/admin/orders/%s/history", url.PathEscape(orderID))
	if err := c.do(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (c *Client) GetProduct(ctx context.Context, slug string) (*orders.Product, error) {
	var response struct {
		Product *orders.Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(slug), nil, &response); err != nil {
		return nil, err
	}
	return response.Product, nil
}

// UpdateOrderStatus transitions the order. Marking an order shipped without
// complete shipping details fails locally before any request goes out.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID, status string, shipping *orders.ShippingInfo) (*orders.Order, error) {
	if status == orders.OrderStatusShipped && (shipping == nil || !shipping.Complete()) {
		return nil, fmt.Errorf("%w: shippedFrom, trackingNumber and shippingCarrier are required to mark shipped", repository.ErrValidation)
	}

	body := map[string]string{"status": status}
	if shipping != nil {
		body["shippedFrom"] = shipping.ShippedFrom
		body["trackingNumber"] = shipping.TrackingNumber
		body["shippingCarrier"] = shipping.ShippingCarrier
	}

	var response struct {
		Order *orders.Order `json:"order"`
	}
	path := fmt.Sprintf("/api/admin/orders/%s/status", url.PathEscape(orderID))
	if err := c.do(ctx, http.MethodPut, path, body, &response); err != nil {
		return nil, err
	}
	return response.Order, nil
}

func (c *Client) SetReturnStatus(ctx context.Context, orderID, productID, status string) (*orders.Order, error) {
	body := map[string]string{"status": status}
	var order orders.Order
	path := fmt.Sprintf("/api/admin/returns/%s/%s", url.PathEscape(orderID), url.PathEscape(productID))
	if err := c.do(ctx, http.MethodPut, path, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) MarkPickedUp(ctx context.Context, orderID, productID string) (*orders.Order, error) {
	var order orders.Order
	path := fmt.Sprintf("/api/admin/returns/%s/%s/pickup", url.PathEscape(orderID), url.PathEscape(productID))
	if err := c.do(ctx, http.MethodPut, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreateReplacement(ctx context.Context, orderID string, products []orders.ReplacementRequest) (*orders.Order, error) {
	body := map[string]interface{}{"products": products}
	var order orders.Order
	path := fmt.Sprintf("/api/admin/returns/%s/replacement", url.PathEscape(orderID))
	if err := c.do(ctx, http.MethodPost, path, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ProcessRefund returns no snapshot; the server acknowledges and the caller
// refetches the order to observe the result.
func (c *Client) ProcessRefund(ctx context.Context, orderID, productID string) error {
	path := fmt.Sprintf("/api/admin/orders/%s/%s/refund", url.PathEscape(orderID), url.PathEscape(productID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		var errResponse struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResponse)
		return &APIError{StatusCode: resp.StatusCode, Message: errResponse.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func setIfPresent(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}
