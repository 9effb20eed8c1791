package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		entry := AuditLogEntry{
			Timestamp: time.Now().UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   getHandlerName(r.URL.Path, r.Method),
			AdminUser: usernameFromContext(r.Context()),
			OrderID:   vars["orderId"],
			ProductID: vars["productId"],
		}

		var requestBody []byte
		if r.Body != nil {
			requestBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			entry.Request = string(requestBody)

			if entry.OrderID != "" && strings.HasSuffix(r.URL.Path, "/status") {
				var statusRequest struct {
					Status string `json:"status"`
				}
				if err := json.Unmarshal(requestBody, &statusRequest); err == nil {
					if order, err := s.storage.GetOrder(r.Context(), entry.OrderID); err == nil {
						entry.OldStatus = order.Status
						entry.NewStatus = statusRequest.Status
					}
				}
			}
		}

		wrw := newResponseWriterWrapper(w)

		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Response = string(wrw.GetBody())

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}

func getHandlerName(path string, method string) string {
	switch {
	case strings.Contains(path, "/returns"):
		if method == http.MethodPost {
			return "handleCreateReplacement"
		}
		if strings.HasSuffix(path, "/pickup") {
			return "handleMarkPickedUp"
		}
		if method == http.MethodPut {
			return "handleSetReturnStatus"
		}
		return "handleListReturns"
	case strings.Contains(path, "/orders"):
		if strings.HasSuffix(path, "/status") {
			return "handleUpdateOrderStatus"
		}
		if strings.HasSuffix(path, "/refund") {
			return "handleProcessRefund"
		}
		if strings.HasSuffix(path, "/history") {
			return "handleOrderHistory"
		}
		return "handleListOrders"
	case method == http.MethodGet:
		return "handleGetOrder"
	}

	return "unknown"
}
