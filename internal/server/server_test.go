package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/the-vibe-thread/admin-orders/internal/orders"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
	mock_server "github.com/the-vibe-thread/admin-orders/internal/server/mocks"
)

type serverFixture struct {
	storage  *mock_server.MockStorage
	userRepo *mock_server.MockUserRepo
	handler  http.Handler
}

func newServerFixture(t *testing.T) *serverFixture {
	ctrl := gomock.NewController(t)
	f := &serverFixture{
		storage:  mock_server.NewMockStorage(ctrl),
		userRepo: mock_server.NewMockUserRepo(ctrl),
	}
	srv := New(f.storage, f.userRepo, zap.NewNop())
	f.handler = srv.setupRoutes()
	return f
}

// authed attaches a session cookie and expects the middleware lookup.
func (f *serverFixture) authed(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "tok-1"})
	f.userRepo.EXPECT().GetSession(gomock.Any(), "tok-1").Return("admin", nil)
	return req
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	encoded, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(encoded)
}

func TestAuthRequired(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredSession(t *testing.T) {
	f := newServerFixture(t)
	f.userRepo.EXPECT().GetSession(gomock.Any(), "stale").Return("", repository.ErrObjectNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLogin(t *testing.T) {
	t.Run("valid credentials set a session cookie", func(t *testing.T) {
		f := newServerFixture(t)
		f.userRepo.EXPECT().ValidateUser(gomock.Any(), "admin", "secret").Return(true, nil)
		f.userRepo.EXPECT().CreateSession(gomock.Any(), gomock.Any(), "admin", gomock.Any()).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, map[string]string{"username": "admin", "password": "secret"}))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, sessionCookieName, cookies[0].Name)
		assert.NotEmpty(t, cookies[0].Value)
	})

	t.Run("bad credentials", func(t *testing.T) {
		f := newServerFixture(t)
		f.userRepo.EXPECT().ValidateUser(gomock.Any(), "admin", "wrong").Return(false, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, map[string]string{"username": "admin", "password": "wrong"}))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newServerFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, map[string]string{"username": "admin"}))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleListReturns(t *testing.T) {
	t.Run("filters reach storage, empty ones do not", func(t *testing.T) {
		f := newServerFixture(t)
		f.storage.EXPECT().ListReturns(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q repository.ReturnQuery) (*orders.ReturnPage, error) {
				assert.Equal(t, "Return Requested", q.Status)
				assert.Equal(t, "jo@example.com", q.Email)
				assert.Empty(t, q.OrderID)
				assert.Equal(t, 2, q.Page)
				assert.Equal(t, 10, q.PageSize)
				assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), q.StartDate)
				// endDate is inclusive, so the bound is the following midnight.
				assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), q.EndDate)
				return &orders.ReturnPage{Returns: []orders.Order{}, TotalPages: 4}, nil
			})

		url := "/api/admin/returns?status=Return+Requested&email=jo%40example.com&page=2&startDate=2026-03-01&endDate=2026-03-10"
		req := f.authed(httptest.NewRequest(http.MethodGet, url, nil))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"returns":[],"totalPages":4}`, rec.Body.String())
	})

	t.Run("invalid page", func(t *testing.T) {
		f := newServerFixture(t)

		req := f.authed(httptest.NewRequest(http.MethodGet, "/api/admin/returns?page=zero", nil))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid date", func(t *testing.T) {
		f := newServerFixture(t)

		req := f.authed(httptest.NewRequest(http.MethodGet, "/api/admin/returns?startDate=03-01-2026", nil))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleUpdateOrderStatus(t *testing.T) {
	t.Run("ship with complete info returns the updated order", func(t *testing.T) {
		f := newServerFixture(t)
		// The audit middleware snapshots the pre-transition status.
		f.storage.EXPECT().GetOrder(gomock.Any(), "ord-1").
			Return(&orders.Order{OrderID: "ord-1", Status: orders.OrderStatusPending}, nil).AnyTimes()
		f.storage.EXPECT().
			SetOrderStatus(gomock.Any(), "ord-1", orders.OrderStatusShipped,
				&orders.ShippingInfo{ShippedFrom: "Warsaw", TrackingNumber: "TN1", ShippingCarrier: "DHL"}).
			Return(&orders.Order{OrderID: "ord-1", Status: orders.OrderStatusShipped, Revision: 4}, nil)

		body := map[string]string{
			"status": "Shipped", "shippedFrom": "Warsaw",
			"trackingNumber": "TN1", "shippingCarrier": "DHL",
		}
		req := f.authed(httptest.NewRequest(http.MethodPut, "/api/admin/orders/ord-1/status", jsonBody(t, body)))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var response struct {
			Order orders.Order `json:"order"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, orders.OrderStatusShipped, response.Order.Status)
		assert.Equal(t, int64(4), response.Order.Revision)
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		f := newServerFixture(t)
		f.storage.EXPECT().GetOrder(gomock.Any(), "ord-1").
			Return(&orders.Order{OrderID: "ord-1", Status: orders.OrderStatusPending}, nil).AnyTimes()
		f.storage.EXPECT().SetOrderStatus(gomock.Any(), "ord-1", orders.OrderStatusShipped, gomock.Any()).
			Return(nil, fmt.Errorf("%w: incomplete shipping info", repository.ErrValidation))

		req := f.authed(httptest.NewRequest(http.MethodPut, "/api/admin/orders/ord-1/status",
			jsonBody(t, map[string]string{"status": "Shipped"})))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid transition maps to 409", func(t *testing.T) {
		f := newServerFixture(t)
		f.storage.EXPECT().GetOrder(gomock.Any(), "ord-1").
			Return(&orders.Order{OrderID: "ord-1", Status: orders.OrderStatusPending}, nil).AnyTimes()
		f.storage.EXPECT().SetOrderStatus(gomock.Any(), "ord-1", orders.OrderStatusDelivered, nil).
			Return(nil, fmt.Errorf("%w: cannot deliver a pending order", repository.ErrInvalidTransition))

		req := f.authed(httptest.NewRequest(http.MethodPut, "/api/admin/orders/ord-1/status",
			jsonBody(t, map[string]string{"status": "Delivered"})))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandleSetReturnStatus(t *testing.T) {
	f := newServerFixture(t)
	f.storage.EXPECT().SetReturnStatus(gomock.Any(), "ord-1", "p1", orders.ReturnStatusApproved).
		Return(&orders.Order{OrderID: "ord-1", Revision: 2}, nil)

	req := f.authed(httptest.NewRequest(http.MethodPut, "/api/admin/returns/ord-1/p1",
		jsonBody(t, map[string]string{"status": "Return Approved"})))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot orders.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "ord-1", snapshot.OrderID)
}

func TestHandleMarkPickedUp(t *testing.T) {
	f := newServerFixture(t)
	f.storage.EXPECT().MarkPickedUp(gomock.Any(), "ord-1", "p1").
		Return(&orders.Order{OrderID: "ord-1", Revision: 3}, nil)

	req := f.authed(httptest.NewRequest(http.MethodPut, "/api/admin/returns/ord-1/p1/pickup", nil))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCreateReplacement(t *testing.T) {
	f := newServerFixture(t)
	f.storage.EXPECT().
		CreateReplacement(gomock.Any(), "ord-1", []orders.ReplacementRequest{{ProductID: "p1", Color: "Red", Size: "L"}}).
		Return(&orders.Order{OrderID: "ord-1", Revision: 4}, nil)

	body := map[string]interface{}{
		"products": []map[string]string{{"productId": "p1", "color": "Red", "size": "L"}},
	}
	req := f.authed(httptest.NewRequest(http.MethodPost, "/api/admin/returns/ord-1/replacement", jsonBody(t, body)))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleProcessRefund(t *testing.T) {
	t.Run("acknowledges without a snapshot", func(t *testing.T) {
		f := newServerFixture(t)
		f.storage.EXPECT().ProcessRefund(gomock.Any(), "ord-1", "p1").
			Return(&orders.Order{OrderID: "ord-1", Revision: 5}, nil)

		req := f.authed(httptest.NewRequest(http.MethodPost, "/api/admin/orders/ord-1/p1/refund", nil))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Refund processed successfully"}`, rec.Body.String())
	})

	t.Run("double refund maps to 409", func(t *testing.T) {
		f := newServerFixture(t)
		f.storage.EXPECT().ProcessRefund(gomock.Any(), "ord-1", "p1").
			Return(nil, fmt.Errorf("%w: already refunded", repository.ErrInvalidTransition))

		req := f.authed(httptest.NewRequest(http.MethodPost, "/api/admin/orders/ord-1/p1/refund", nil))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandleGetOrder(t *testing.T) {
	t.Run("unknown order maps to 404", func(t *testing.T) {
		f := newServerFixture(t)
		f.storage.EXPECT().GetOrder(gomock.Any(), "missing").
			Return(nil, repository.ErrObjectNotFound)

		req := f.authed(httptest.NewRequest(http.MethodGet, "/api/admin/missing", nil))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleGetProduct(t *testing.T) {
	f := newServerFixture(t)
	f.storage.EXPECT().GetProduct(gomock.Any(), "linen-shirt").
		Return(&orders.Product{Slug: "linen-shirt", Name: "Linen Shirt"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/products/linen-shirt", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "tok-1"})
	f.userRepo.EXPECT().GetSession(gomock.Any(), "tok-1").Return("admin", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Product orders.Product `json:"product"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Linen Shirt", response.Product.Name)
}
