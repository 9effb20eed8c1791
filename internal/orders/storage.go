//go:generate mockgen -source ./storage.go -destination=./mocks/storage.go -package=mock_orders
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/the-vibe-thread/admin-orders/internal/db"
	"github.com/the-vibe-thread/admin-orders/internal/metrics"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
)

// OrderUpdatesTopic carries full order snapshots, one message per successful
// mutation, keyed by order id.
const OrderUpdatesTopic = "order_updates"

type OrderRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, order *repository.Order, items []*repository.OrderItem) error
	GetByID(ctx context.Context, id string) (*repository.Order, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Order, error)
	GetItems(ctx context.Context, orderIDs []string) ([]*repository.OrderItem, error)
	GetItemsTx(ctx context.Context, tx db.Tx, orderID string) ([]*repository.OrderItem, error)
	UpdateTx(ctx context.Context, tx db.Tx, order *repository.Order) error
	UpdateItemTx(ctx context.Context, tx db.Tx, item *repository.OrderItem) error
	List(ctx context.Context) ([]*repository.Order, error)
	ListWithReturns(ctx context.Context, q repository.ReturnQuery) ([]*repository.Order, int, error)
}

type HistoryRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, entry *repository.HistoryEntry) error
	GetByOrderID(ctx context.Context, orderID string) ([]*repository.HistoryEntry, error)
}

type OutboxTaskRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
}

type ProductRepository interface {
	GetVariants(ctx context.Context, slug string) ([]*repository.ProductVariant, error)
}

// PostgresStorage enforces the admin transition contract. Every mutation runs
// in one transaction holding a row lock on the order, bumps the order's
// revision, appends history, and stages the updated snapshot on the outbox so
// other admin sessions see it. The storage is the sole authority on state:
// callers never mutate locally, they submit a transition and take back the
// snapshot the server produced.
type PostgresStorage struct {
	db          db.DB
	orderRepo   OrderRepository
	historyRepo HistoryRepository
	outboxRepo  OutboxTaskRepository
	productRepo ProductRepository
	logger      *zap.Logger
}

func NewPostgresStorage(
	database db.DB,
	orderRepo OrderRepository,
	historyRepo HistoryRepository,
	outboxRepo OutboxTaskRepository,
	productRepo ProductRepository,
	logger *zap.Logger,
) *PostgresStorage {
	return &PostgresStorage{
		db:          database,
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
		outboxRepo:  outboxRepo,
		productRepo: productRepo,
		logger:      logger,
	}
}

// ReturnPage is one page of the returns listing.
type ReturnPage struct {
	Returns    []Order `json:"returns"`
	TotalPages int     `json:"totalPages"`
}

// ReplacementRequest names the variant the replacement order should carry.
type ReplacementRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

func (s *PostgresStorage) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.orderRepo.GetItems(ctx, []string{orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to load items for order %s: %w", orderID, err)
	}
	snapshot := toSnapshot(order, items)
	return &snapshot, nil
}

func (s *PostgresStorage) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.orderRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, rows)
}

func (s *PostgresStorage) ListReturns(ctx context.Context, q repository.ReturnQuery) (*ReturnPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}

	rows, total, err := s.orderRepo.ListWithReturns(ctx, q)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.attachItems(ctx, rows)
	if err != nil {
		return nil, err
	}

	totalPages := (total + q.PageSize - 1) / q.PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return &ReturnPage{Returns: snapshots, TotalPages: totalPages}, nil
}

func (s *PostgresStorage) GetOrderHistory(ctx context.Context, orderID string) ([]*repository.HistoryEntry, error) {
	return s.historyRepo.GetByOrderID(ctx, orderID)
}

// GetProduct assembles the color/size variant tree used by the replacement
// picker.
func (s *PostgresStorage) GetProduct(ctx context.Context, slug string) (*Product, error) {
	variants, err := s.productRepo.GetVariants(ctx, slug)
	if err != nil {
		return nil, err
	}

	product := &Product{Slug: slug}
	colorIdx := make(map[string]int)
	for _, v := range variants {
		product.Name = v.Name
		i, ok := colorIdx[v.Color]
		if !ok {
			i = len(product.Colors)
			colorIdx[v.Color] = i
			product.Colors = append(product.Colors, ProductColor{
				Name:  v.Color,
				Sizes: make(map[string]ProductVariant),
			})
		}
		product.Colors[i].Sizes[v.Size] = ProductVariant{Quantity: v.Quantity, SKU: v.SKU}
	}
	return product, nil
}

// SetOrderStatus performs the overall order transitions. Only forward moves
// are allowed: Pending to Shipped (with complete shipping info), Shipped to
// Delivered, and Pending to Cancelled.
func (s *PostgresStorage) SetOrderStatus(ctx context.Context, orderID, newStatus string, shipping *ShippingInfo) (*Order, error) {
	switch newStatus {
	case OrderStatusShipped:
		if shipping == nil || !shipping.Complete() {
			metrics.OperationErrorsTotal.WithLabelValues("set_order_status").Inc()
			return nil, fmt.Errorf("%w: shippedFrom, trackingNumber and shippingCarrier are required to ship", repository.ErrValidation)
		}
	case OrderStatusDelivered, OrderStatusCancelled:
	default:
		metrics.OperationErrorsTotal.WithLabelValues("set_order_status").Inc()
		return nil, fmt.Errorf("%w: unknown order status %q", repository.ErrValidation, newStatus)
	}

	snapshot, err := s.transition(ctx, orderID, "set_order_status", func(tx db.Tx, order *repository.Order, items []*repository.OrderItem) ([]*repository.HistoryEntry, error) {
		oldStatus := order.Status
		switch {
		case newStatus == OrderStatusShipped && oldStatus == OrderStatusPending:
			order.Status = OrderStatusShipped
			order.ShippedFrom = &shipping.ShippedFrom
			order.TrackingNumber = &shipping.TrackingNumber
			order.ShippingCarrier = &shipping.ShippingCarrier
		case newStatus == OrderStatusDelivered && oldStatus == OrderStatusShipped:
			order.Status = OrderStatusDelivered
		case newStatus == OrderStatusCancelled && oldStatus == OrderStatusPending:
			order.Status = OrderStatusCancelled
		default:
			return nil, fmt.Errorf("%w: cannot move order from %q to %q", repository.ErrInvalidTransition, oldStatus, newStatus)
		}

		return []*repository.HistoryEntry{
			historyEntry(orderID, nil, "status", oldStatus, newStatus),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderStatusUpdatesTotal.Inc()
	s.logger.Info("order status updated",
		zap.String("order_id", orderID), zap.String("status", newStatus))
	return snapshot, nil
}

// SetReturnStatus approves or rejects a requested return on one item.
func (s *PostgresStorage) SetReturnStatus(ctx context.Context, orderID, productID, newStatus string) (*Order, error) {
	if newStatus != ReturnStatusApproved && newStatus != ReturnStatusRejected {
		metrics.OperationErrorsTotal.WithLabelValues("set_return_status").Inc()
		return nil, fmt.Errorf("%w: unknown return status %q", repository.ErrValidation, newStatus)
	}

	snapshot, err := s.transition(ctx, orderID, "set_return_status", func(tx db.Tx, order *repository.Order, items []*repository.OrderItem) ([]*repository.HistoryEntry, error) {
		item := findItem(items, productID)
		if item == nil {
			return nil, fmt.Errorf("item %s: %w", productID, repository.ErrObjectNotFound)
		}
		if strValue(item.ReturnStatus) != ReturnStatusRequested {
			return nil, fmt.Errorf("%w: return for item %s is %q, not %q",
				repository.ErrInvalidTransition, productID, strValue(item.ReturnStatus), ReturnStatusRequested)
		}

		old := strValue(item.ReturnStatus)
		item.ReturnStatus = &newStatus
		if err := s.orderRepo.UpdateItemTx(ctx, tx, item); err != nil {
			return nil, err
		}
		return []*repository.HistoryEntry{
			historyEntry(orderID, &productID, "returnStatus", old, newStatus),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if newStatus == ReturnStatusApproved {
		metrics.ReturnsApprovedTotal.Inc()
	} else {
		metrics.ReturnsRejectedTotal.Inc()
	}
	s.logger.Info("return status updated",
		zap.String("order_id", orderID), zap.String("product_id", productID), zap.String("status", newStatus))
	return snapshot, nil
}

// MarkPickedUp records the courier pickup of an approved return. "Returned"
// counts as approved here, matching the state derivation. A repeated call is
// rejected, not silently accepted.
func (s *PostgresStorage) MarkPickedUp(ctx context.Context, orderID, productID string) (*Order, error) {
	snapshot, err := s.transition(ctx, orderID, "mark_picked_up", func(tx db.Tx, order *repository.Order, items []*repository.OrderItem) ([]*repository.HistoryEntry, error) {
		item := findItem(items, productID)
		if item == nil {
			return nil, fmt.Errorf("item %s: %w", productID, repository.ErrObjectNotFound)
		}
		if status := strValue(item.ReturnStatus); status != ReturnStatusApproved && status != ReturnStatusReturned {
			return nil, fmt.Errorf("%w: cannot mark pickup while return for item %s is %q",
				repository.ErrInvalidTransition, productID, strValue(item.ReturnStatus))
		}
		if strValue(item.PickupStatus) == PickupStatusPickedUp {
			return nil, fmt.Errorf("%w: item %s is already picked up", repository.ErrInvalidTransition, productID)
		}

		pickedUp := PickupStatusPickedUp
		item.PickupStatus = &pickedUp
		if err := s.orderRepo.UpdateItemTx(ctx, tx, item); err != nil {
			return nil, err
		}
		return []*repository.HistoryEntry{
			historyEntry(orderID, &productID, "pickupStatus", "", PickupStatusPickedUp),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PickupsMarkedTotal.Inc()
	s.logger.Info("return pickup marked",
		zap.String("order_id", orderID), zap.String("product_id", productID))
	return snapshot, nil
}

// CreateReplacement creates a new order fulfilling the exchange for each
// listed item and marks the item with the replacement order id. An item gets
// at most one replacement, ever; refund state does not block it.
func (s *PostgresStorage) CreateReplacement(ctx context.Context, orderID string, products []ReplacementRequest) (*Order, error) {
	if len(products) == 0 {
		metrics.OperationErrorsTotal.WithLabelValues("create_replacement").Inc()
		return nil, fmt.Errorf("%w: no products given", repository.ErrValidation)
	}

	snapshot, err := s.transition(ctx, orderID, "create_replacement", func(tx db.Tx, order *repository.Order, items []*repository.OrderItem) ([]*repository.HistoryEntry, error) {
		now := time.Now().UTC()
		replacementID := uuid.New().String()
		var entries []*repository.HistoryEntry
		var replacementItems []*repository.OrderItem

		for i, req := range products {
			item := findItem(items, req.ProductID)
			if item == nil {
				return nil, fmt.Errorf("item %s: %w", req.ProductID, repository.ErrObjectNotFound)
			}
			if strValue(item.PickupStatus) != PickupStatusPickedUp {
				return nil, fmt.Errorf("%w: item %s has not been picked up", repository.ErrInvalidTransition, req.ProductID)
			}
			if item.ReplacementOrderID != nil {
				return nil, fmt.Errorf("%w: item %s already has replacement order %s",
					repository.ErrInvalidTransition, req.ProductID, *item.ReplacementOrderID)
			}
			if req.Color == "" || req.Size == "" {
				return nil, fmt.Errorf("%w: replacement color and size are required", repository.ErrValidation)
			}

			sku := item.SKU
			if item.Slug != "" {
				variantSKU, err := s.lookupVariantSKU(ctx, item.Slug, req.Color, req.Size)
				if err != nil {
					return nil, err
				}
				sku = variantSKU
			}

			replacementItems = append(replacementItems, &repository.OrderItem{
				OrderID:   replacementID,
				ProductID: item.ProductID,
				Position:  i,
				Name:      item.Name,
				Slug:      item.Slug,
				SKU:       sku,
				Color:     req.Color,
				Size:      req.Size,
				Quantity:  item.Quantity,
				Price:     item.Price,
				Images:    item.Images,
			})

			item.ReplacementOrderID = &replacementID
			if err := s.orderRepo.UpdateItemTx(ctx, tx, item); err != nil {
				return nil, err
			}
			entries = append(entries, historyEntry(orderID, &req.ProductID, "replacementOrderId", "", replacementID))
		}

		// An exchange carries no new charge.
		replacement := &repository.Order{
			ID:            replacementID,
			UserEmail:     order.UserEmail,
			UserName:      order.UserName,
			Status:        OrderStatusPending,
			PaymentMethod: PaymentMethodReplacement,
			PaymentStatus: "N/A",
			TotalAmount:   decimal.Zero,
			Revision:      1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.orderRepo.CreateTx(ctx, tx, replacement, replacementItems); err != nil {
			return nil, err
		}

		// The new order is a mutation of the store too; announce it so open
		// order lists pick it up without a refetch.
		if err := s.stageSnapshot(ctx, tx, toSnapshot(replacement, replacementItems)); err != nil {
			return nil, err
		}

		return entries, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ReplacementsCreatedTotal.Inc()
	s.logger.Info("replacement order created", zap.String("order_id", orderID))
	return snapshot, nil
}

// ProcessRefund refunds one picked-up item in full (price times quantity).
// Refunding twice is rejected; a prior replacement is not an obstacle.
func (s *PostgresStorage) ProcessRefund(ctx context.Context, orderID, productID string) (*Order, error) {
	snapshot, err := s.transition(ctx, orderID, "process_refund", func(tx db.Tx, order *repository.Order, items []*repository.OrderItem) ([]*repository.HistoryEntry, error) {
		item := findItem(items, productID)
		if item == nil {
			return nil, fmt.Errorf("item %s: %w", productID, repository.ErrObjectNotFound)
		}
		if strValue(item.PickupStatus) != PickupStatusPickedUp {
			return nil, fmt.Errorf("%w: item %s has not been picked up", repository.ErrInvalidTransition, productID)
		}
		if strValue(item.ReturnStatus) == ReturnStatusRefunded {
			return nil, fmt.Errorf("%w: item %s is already refunded", repository.ErrInvalidTransition, productID)
		}

		old := strValue(item.ReturnStatus)
		refunded := ReturnStatusRefunded
		now := time.Now().UTC()
		amount := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))

		item.ReturnStatus = &refunded
		item.RefundAmount = decimal.NullDecimal{Decimal: amount, Valid: true}
		item.RefundDate = &now
		if err := s.orderRepo.UpdateItemTx(ctx, tx, item); err != nil {
			return nil, err
		}
		return []*repository.HistoryEntry{
			historyEntry(orderID, &productID, "returnStatus", old, ReturnStatusRefunded),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RefundsProcessedTotal.Inc()
	s.logger.Info("refund processed",
		zap.String("order_id", orderID), zap.String("product_id", productID))
	return snapshot, nil
}

// transition wraps one admin mutation: lock the order, let fn validate and
// apply it, then bump the revision, record history, stage the snapshot on the
// outbox and commit. fn must perform item writes through the same tx.
func (s *PostgresStorage) transition(ctx context.Context, orderID, op string, fn func(tx db.Tx, order *repository.Order, items []*repository.OrderItem) ([]*repository.HistoryEntry, error)) (*Order, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	order, err := s.orderRepo.GetByIDTx(ctx, tx, orderID)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
		return nil, err
	}
	items, err := s.orderRepo.GetItemsTx(ctx, tx, orderID)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("failed to load items for order %s: %w", orderID, err)
	}

	entries, err := fn(tx, order, items)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
		return nil, err
	}

	order.Revision++
	order.UpdatedAt = time.Now().UTC()
	if err := s.orderRepo.UpdateTx(ctx, tx, order); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}

	for _, entry := range entries {
		if err := s.historyRepo.CreateTx(ctx, tx, entry); err != nil {
			metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
			return nil, fmt.Errorf("failed to record history for order %s: %w", orderID, err)
		}
	}

	snapshot := toSnapshot(order, items)
	if err := s.stageSnapshot(ctx, tx, snapshot); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &snapshot, nil
}

func (s *PostgresStorage) stageSnapshot(ctx context.Context, tx db.Tx, snapshot Order) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot of order %s: %w", snapshot.OrderID, err)
	}
	return s.outboxRepo.CreateTx(ctx, tx, &repository.OutboxTask{
		Topic:   OrderUpdatesTopic,
		Key:     snapshot.OrderID,
		Payload: payload,
	})
}

func (s *PostgresStorage) lookupVariantSKU(ctx context.Context, slug, color, size string) (string, error) {
	variants, err := s.productRepo.GetVariants(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: product %s not found", repository.ErrValidation, slug)
		}
		return "", err
	}
	for _, v := range variants {
		if v.Color == color && v.Size == size {
			if v.Quantity <= 0 {
				return "", fmt.Errorf("%w: variant %s/%s of %s is out of stock", repository.ErrValidation, color, size, slug)
			}
			return v.SKU, nil
		}
	}
	return "", fmt.Errorf("%w: product %s has no variant %s/%s", repository.ErrValidation, slug, color, size)
}

func (s *PostgresStorage) attachItems(ctx context.Context, rows []*repository.Order) ([]Order, error) {
	snapshots := make([]Order, 0, len(rows))
	if len(rows) == 0 {
		return snapshots, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	items, err := s.orderRepo.GetItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	byOrder := make(map[string][]*repository.OrderItem)
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for _, row := range rows {
		snapshots = append(snapshots, toSnapshot(row, byOrder[row.ID]))
	}
	return snapshots, nil
}

func toSnapshot(order *repository.Order, items []*repository.OrderItem) Order {
	snapshot := Order{
		OrderID:         order.ID,
		User:            UserRef{Email: order.UserEmail, Name: order.UserName},
		CreatedAt:       order.CreatedAt,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		TotalAmount:     order.TotalAmount,
		ShippedFrom:     strValue(order.ShippedFrom),
		TrackingNumber:  strValue(order.TrackingNumber),
		ShippingCarrier: strValue(order.ShippingCarrier),
		Revision:        order.Revision,
		Items:           make([]OrderItem, 0, len(items)),
	}

	for _, item := range items {
		snapshot.Items = append(snapshot.Items, toItemSnapshot(item))
	}
	return snapshot
}

func toItemSnapshot(item *repository.OrderItem) OrderItem {
	out := OrderItem{
		ProductID:          item.ProductID,
		Name:               item.Name,
		Slug:               item.Slug,
		SKU:                item.SKU,
		Color:              item.Color,
		Size:               item.Size,
		Quantity:           item.Quantity,
		Price:              item.Price,
		Images:             item.Images,
		ReturnStatus:       strValue(item.ReturnStatus),
		ExchangeToColor:    strValue(item.ExchangeToColor),
		ExchangeToSize:     strValue(item.ExchangeToSize),
		ReplacementOrderID: strValue(item.ReplacementOrderID),
	}

	// returnDetails present iff returnStatus is set.
	if item.ReturnStatus != nil {
		details := &ReturnDetails{
			Reason:       strValue(item.ReturnReason),
			Issue:        strValue(item.ReturnIssue),
			Resolution:   strValue(item.ReturnResolution),
			PickupStatus: strValue(item.PickupStatus),
			Images:       item.ReturnImages,
			RefundDate:   item.RefundDate,
		}
		if item.RefundAmount.Valid {
			amount := item.RefundAmount.Decimal
			details.RefundAmount = &amount
		}
		out.ReturnDetails = details
	}
	return out
}

func findItem(items []*repository.OrderItem, productID string) *repository.OrderItem {
	for _, item := range items {
		if item.ProductID == productID {
			return item
		}
	}
	return nil
}

func historyEntry(orderID string, productID *string, field, oldValue, newValue string) *repository.HistoryEntry {
	return &repository.HistoryEntry{
		OrderID:   orderID,
		ProductID: productID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedAt: time.Now().UTC(),
	}
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
