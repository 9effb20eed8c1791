package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/the-vibe-thread/admin-orders/internal/orders"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
)

// API is the slice of the admin client the views depend on.
type API interface {
	ListReturns(ctx context.Context, filter ReturnFilter) (*orders.ReturnPage, error)
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	SetReturnStatus(ctx context.Context, orderID, productID, status string) (*orders.Order, error)
	MarkPickedUp(ctx context.Context, orderID, productID string) (*orders.Order, error)
	CreateReplacement(ctx context.Context, orderID string, products []orders.ReplacementRequest) (*orders.Order, error)
	ProcessRefund(ctx context.Context, orderID, productID string) error
}

// ReturnListView is the paginated, filterable returns table. Every filter or
// page change refetches from the server; pushed snapshots only ever replace
// rows already on the current page.
type ReturnListView struct {
	api API

	mu         sync.Mutex
	filter     ReturnFilter
	returns    []orders.Order
	totalPages int
}

func NewReturnListView(api API) *ReturnListView {
	return &ReturnListView{
		api:    api,
		filter: ReturnFilter{Page: 1, PageSize: 10},
	}
}

func (v *ReturnListView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	filter := v.filter
	v.mu.Unlock()

	page, err := v.api.ListReturns(ctx, filter)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.returns = page.Returns
	v.totalPages = page.TotalPages
	v.mu.Unlock()
	return nil
}

// SetFilter replaces the filter, resets to the first page and refetches.
func (v *ReturnListView) SetFilter(ctx context.Context, filter ReturnFilter) error {
	v.mu.Lock()
	pageSize := v.filter.PageSize
	filter.Page = 1
	if filter.PageSize == 0 {
		filter.PageSize = pageSize
	}
	v.filter = filter
	v.mu.Unlock()

	return v.Refresh(ctx)
}

func (v *ReturnListView) SetPage(ctx context.Context, page int) error {
	v.mu.Lock()
	if page < 1 {
		page = 1
	}
	if v.totalPages > 0 && page > v.totalPages {
		page = v.totalPages
	}
	v.filter.Page = page
	v.mu.Unlock()

	return v.Refresh(ctx)
}

func (v *ReturnListView) Returns() []orders.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]orders.Order, len(v.returns))
	copy(out, v.returns)
	return out
}

func (v *ReturnListView) TotalPages() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalPages
}

func (v *ReturnListView) Page() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter.Page
}

// ApplySnapshot merges a pushed order snapshot into the current page. Orders
// not on the page are ignored; whether they belong there is only decided by
// the next server fetch.
func (v *ReturnListView) ApplySnapshot(snapshot orders.Order) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, existing := range v.returns {
		if existing.OrderID != snapshot.OrderID {
			continue
		}
		if existing.Revision >= snapshot.Revision {
			return false
		}
		v.returns[i] = snapshot
		return true
	}
	return false
}

// OrderDetailView shows one order and drives the per-item return actions.
// Only one action may be in flight at a time, and an action that the item's
// current state does not permit is rejected locally without a request.
type OrderDetailView struct {
	api API

	mu    sync.Mutex
	order *orders.Order
	busy  bool
}

func NewOrderDetailView(api API) *OrderDetailView {
	return &OrderDetailView{api: api}
}

func (v *OrderDetailView) Load(ctx context.Context, orderID string) error {
	order, err := v.api.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.order = order
	v.mu.Unlock()
	return nil
}

func (v *OrderDetailView) Order() *orders.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.order == nil {
		return nil
	}
	copied := *v.order
	return &copied
}

// ItemActions derives the action set for one item from the current snapshot.
// The derivation runs fresh on every call and is never cached.
func (v *OrderDetailView) ItemActions(productID string) (orders.ItemActions, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	item, err := v.currentItem(productID)
	if err != nil {
		return orders.ItemActions{}, err
	}
	return orders.Actions(item), nil
}

func (v *OrderDetailView) ApproveReturn(ctx context.Context, productID string) error {
	return v.runItemAction(ctx, productID,
		func(a orders.ItemActions) bool { return a.Approve },
		func(ctx context.Context, orderID string) (*orders.Order, error) {
			return v.api.SetReturnStatus(ctx, orderID, productID, orders.ReturnStatusApproved)
		})
}

func (v *OrderDetailView) RejectReturn(ctx context.Context, productID string) error {
	return v.runItemAction(ctx, productID,
		func(a orders.ItemActions) bool { return a.Reject },
		func(ctx context.Context, orderID string) (*orders.Order, error) {
			return v.api.SetReturnStatus(ctx, orderID, productID, orders.ReturnStatusRejected)
		})
}

func (v *OrderDetailView) MarkPickedUp(ctx context.Context, productID string) error {
	return v.runItemAction(ctx, productID,
		func(a orders.ItemActions) bool { return a.MarkPickedUp },
		func(ctx context.Context, orderID string) (*orders.Order, error) {
			return v.api.MarkPickedUp(ctx, orderID, productID)
		})
}

func (v *OrderDetailView) CreateReplacement(ctx context.Context, productID string, products []orders.ReplacementRequest) error {
	return v.runItemAction(ctx, productID,
		func(a orders.ItemActions) bool { return a.CreateReplacement },
		func(ctx context.Context, orderID string) (*orders.Order, error) {
			return v.api.CreateReplacement(ctx, orderID, products)
		})
}

// ProcessRefund fires the refund and refetches the order, since the refund
// endpoint acknowledges without returning a snapshot.
func (v *OrderDetailView) ProcessRefund(ctx context.Context, productID string) error {
	return v.runItemAction(ctx, productID,
		func(a orders.ItemActions) bool { return a.ProcessRefund },
		func(ctx context.Context, orderID string) (*orders.Order, error) {
			if err := v.api.ProcessRefund(ctx, orderID, productID); err != nil {
				return nil, err
			}
			return v.api.GetOrder(ctx, orderID)
		})
}

func (v *OrderDetailView) runItemAction(
	ctx context.Context,
	productID string,
	permitted func(orders.ItemActions) bool,
	action func(ctx context.Context, orderID string) (*orders.Order, error),
) error {
	v.mu.Lock()
	if v.busy {
		v.mu.Unlock()
		return fmt.Errorf("%w: another action is already in progress", repository.ErrValidation)
	}

	item, err := v.currentItem(productID)
	if err != nil {
		v.mu.Unlock()
		return err
	}
	if !permitted(orders.Actions(item)) {
		v.mu.Unlock()
		return fmt.Errorf("%w: action not available for item %s in state %s",
			repository.ErrValidation, productID, orders.ItemState(item))
	}

	orderID := v.order.OrderID
	v.busy = true
	v.mu.Unlock()

	updated, err := action(ctx, orderID)

	v.mu.Lock()
	v.busy = false
	// A pushed snapshot may land while the action is in flight; keep whichever
	// revision is newer.
	if err == nil && updated != nil && updated.Revision > v.order.Revision {
		v.order = updated
	}
	v.mu.Unlock()
	return err
}

// ApplySnapshot replaces the shown order when a newer snapshot of it arrives.
// Snapshots for other orders, or stale revisions, are ignored. No action is
// applied optimistically; the view only ever shows server state.
func (v *OrderDetailView) ApplySnapshot(snapshot orders.Order) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.order == nil || v.order.OrderID != snapshot.OrderID {
		return false
	}
	if v.order.Revision >= snapshot.Revision {
		return false
	}
	v.order = &snapshot
	return true
}

func (v *OrderDetailView) currentItem(productID string) (*orders.OrderItem, error) {
	if v.order == nil {
		return nil, fmt.Errorf("%w: no order loaded", repository.ErrValidation)
	}
	item := v.order.Item(productID)
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", repository.ErrObjectNotFound, productID)
	}
	return item, nil
}
