package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-vibe-thread/admin-orders/internal/orders"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
)

func TestListReturnsOmitsEmptyFilters(t *testing.T) {
	var gotQuery string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(orders.ReturnPage{TotalPages: 1})
	}))
	defer backend.Close()

	c, err := New(backend.URL)
	require.NoError(t, err)

	_, err = c.ListReturns(context.Background(), ReturnFilter{
		Status: "Return Requested",
		Page:   2,
	})
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "status=Return+Requested")
	assert.Contains(t, gotQuery, "page=2")
	assert.NotContains(t, gotQuery, "email")
	assert.NotContains(t, gotQuery, "orderId")
	assert.NotContains(t, gotQuery, "startDate")
	assert.NotContains(t, gotQuery, "endDate")
	assert.NotContains(t, gotQuery, "search")
	assert.NotContains(t, gotQuery, "pageSize")
}

func TestListReturnsNoFiltersNoQuery(t *testing.T) {
	var gotURL string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		_ = json.NewEncoder(w).Encode(orders.ReturnPage{TotalPages: 1})
	}))
	defer backend.Close()

	c, err := New(backend.URL)
	require.NoError(t, err)

	_, err = c.ListReturns(context.Background(), ReturnFilter{})
	require.NoError(t, err)
	assert.Equal(t, "/api/admin/returns", gotURL)
}

func TestUpdateOrderStatusValidatesShippingLocally(t *testing.T) {
	requests := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer backend.Close()

	c, err := New(backend.URL)
	require.NoError(t, err)

	tests := []struct {
		name     string
		shipping *orders.ShippingInfo
	}{
		{"nil shipping info", nil},
		{"missing tracking number", &orders.ShippingInfo{ShippedFrom: "Warsaw", ShippingCarrier: "DHL"}},
		{"missing carrier", &orders.ShippingInfo{ShippedFrom: "Warsaw", TrackingNumber: "TN1"}},
		{"missing origin", &orders.ShippingInfo{TrackingNumber: "TN1", ShippingCarrier: "DHL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.UpdateOrderStatus(context.Background(), "ord-1", orders.OrderStatusShipped, tt.shipping)
			assert.ErrorIs(t, err, repository.ErrValidation)
		})
	}

	assert.Zero(t, requests, "incomplete shipping info must never reach the server")
}

func TestUpdateOrderStatusUnwrapsOrder(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/admin/orders/ord-1/status", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Shipped", body["status"])
		assert.Equal(t, "TN1", body["trackingNumber"])

		_ = json.NewEncoder(w).Encode(map[string]orders.Order{
			"order": {OrderID: "ord-1", Status: orders.OrderStatusShipped, Revision: 7},
		})
	}))
	defer backend.Close()

	c, err := New(backend.URL)
	require.NoError(t, err)

	order, err := c.UpdateOrderStatus(context.Background(), "ord-1", orders.OrderStatusShipped,
		&orders.ShippingInfo{ShippedFrom: "Warsaw", TrackingNumber: "TN1", ShippingCarrier: "DHL"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), order.Revision)
}

func TestUnauthorizedIsFatal(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	c, err := New(backend.URL)
	require.NoError(t, err)

	_, err = c.ListOrders(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAPIErrorCarriesStatusAndMessage(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "item p1 is already picked up"})
	}))
	defer backend.Close()

	c, err := New(backend.URL)
	require.NoError(t, err)

	_, err = c.MarkPickedUp(context.Background(), "ord-1", "p1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "already picked up")
}

func TestSessionCookiePersistsAcrossCalls(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "admin_session", Value: "tok-1", Path: "/"})
			_ = json.NewEncoder(w).Encode(map[string]string{"username": "admin"})
		case "/api/admin/orders":
			cookie, err := r.Cookie("admin_session")
			require.NoError(t, err)
			assert.Equal(t, "tok-1", cookie.Value)
			_ = json.NewEncoder(w).Encode([]orders.Order{})
		}
	}))
	defer backend.Close()

	c, err := New(backend.URL)
	require.NoError(t, err)

	require.NoError(t, c.Login(context.Background(), "admin", "secret"))
	_, err = c.ListOrders(context.Background())
	require.NoError(t, err)
}
