package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"

	"github.com/the-vibe-thread/admin-orders/internal/db"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
)

type OrderRepo struct {
	db db.DB
}

func NewOrderRepo(db db.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

const orderColumns = `id, user_email, user_name, status, payment_method, payment_status,
        total_amount, shipped_from, tracking_number, shipping_carrier, revision, created_at, updated_at`

const itemColumns = `order_id, product_id, position, name, slug, sku, color, size, quantity, price, images,
        return_status, return_reason, return_issue, return_resolution, return_images,
        pickup_status, refund_amount, refund_date,
        exchange_to_color, exchange_to_size, replacement_order_id`

func (r *OrderRepo) CreateTx(ctx context.Context, tx db.Tx, order *repository.Order, items []*repository.OrderItem) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO orders (`+orderColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, order.ID, order.UserEmail, order.UserName, order.Status, order.PaymentMethod, order.PaymentStatus,
		order.TotalAmount, order.ShippedFrom, order.TrackingNumber, order.ShippingCarrier,
		order.Revision, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}

	for _, item := range items {
		if err := r.insertItemTx(ctx, tx, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepo) insertItemTx(ctx context.Context, tx db.Tx, item *repository.OrderItem) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO order_items (`+itemColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
    `, item.OrderID, item.ProductID, item.Position, item.Name, item.Slug, item.SKU, item.Color, item.Size,
		item.Quantity, item.Price, item.Images,
		item.ReturnStatus, item.ReturnReason, item.ReturnIssue, item.ReturnResolution, item.ReturnImages,
		item.PickupStatus, item.RefundAmount, item.RefundDate,
		item.ExchangeToColor, item.ExchangeToSize, item.ReplacementOrderID)
	if err != nil {
		return fmt.Errorf("failed to insert item %s of order %s: %w", item.ProductID, item.OrderID, err)
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*repository.Order, error) {
	var order repository.Order
	err := r.db.Get(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDTx locks the order row for the duration of the transaction so
// concurrent admin transitions serialize instead of clobbering each other.
func (r *OrderRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Order, error) {
	var order repository.Order
	err := tx.Get(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepo) GetItems(ctx context.Context, orderIDs []string) ([]*repository.OrderItem, error) {
	var items []*repository.OrderItem
	err := r.db.Select(ctx, &items, `
        SELECT `+itemColumns+` FROM order_items
        WHERE order_id = ANY($1)
        ORDER BY order_id, position ASC
    `, orderIDs)
	return items, err
}

func (r *OrderRepo) GetItemsTx(ctx context.Context, tx db.Tx, orderID string) ([]*repository.OrderItem, error) {
	var items []*repository.OrderItem
	err := tx.Select(ctx, &items, `
        SELECT `+itemColumns+` FROM order_items
        WHERE order_id = $1
        ORDER BY position ASC
    `, orderID)
	return items, err
}

func (r *OrderRepo) UpdateTx(ctx context.Context, tx db.Tx, order *repository.Order) error {
	_, err := tx.Exec(ctx, `
        UPDATE orders
        SET
            status = $1,
            payment_status = $2,
            shipped_from = $3,
            tracking_number = $4,
            shipping_carrier = $5,
            revision = $6,
            updated_at = $7
        WHERE id = $8
    `, order.Status, order.PaymentStatus, order.ShippedFrom, order.TrackingNumber, order.ShippingCarrier,
		order.Revision, order.UpdatedAt, order.ID)
	return err
}

func (r *OrderRepo) UpdateItemTx(ctx context.Context, tx db.Tx, item *repository.OrderItem) error {
	_, err := tx.Exec(ctx, `
        UPDATE order_items
        SET
            return_status = $1,
            return_reason = $2,
            return_issue = $3,
            return_resolution = $4,
            pickup_status = $5,
            refund_amount = $6,
            refund_date = $7,
            exchange_to_color = $8,
            exchange_to_size = $9,
            replacement_order_id = $10
        WHERE order_id = $11 AND product_id = $12
    `, item.ReturnStatus, item.ReturnReason, item.ReturnIssue, item.ReturnResolution,
		item.PickupStatus, item.RefundAmount, item.RefundDate,
		item.ExchangeToColor, item.ExchangeToSize, item.ReplacementOrderID,
		item.OrderID, item.ProductID)
	return err
}

func (r *OrderRepo) List(ctx context.Context) ([]*repository.Order, error) {
	var orders []*repository.Order
	err := r.db.Select(ctx, &orders, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListWithReturns returns one page of orders that have at least one item with
// return activity, plus the total match count for pagination.
func (r *OrderRepo) ListWithReturns(ctx context.Context, q repository.ReturnQuery) ([]*repository.Order, int, error) {
	where, args := buildReturnWhere(q)

	var total int
	countQuery := "SELECT COUNT(*) FROM orders o " + where
	if err := r.db.ExecQueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count returns: %w", err)
	}

	offset := (q.Page - 1) * q.PageSize
	pageQuery := fmt.Sprintf(
		"SELECT %s FROM orders o %s ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d",
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, q.PageSize, offset)

	var orders []*repository.Order
	if err := r.db.Select(ctx, &orders, pageQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list returns: %w", err)
	}
	return orders, total, nil
}

func buildReturnWhere(q repository.ReturnQuery) (string, []interface{}) {
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	itemCond := "i.return_status IS NOT NULL"
	if q.Status != "" {
		itemCond += " AND i.return_status = " + next(q.Status)
	}
	conds := []string{
		"EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND " + itemCond + ")",
	}

	if q.OrderID != "" {
		conds = append(conds, "o.id = "+next(q.OrderID))
	}
	if q.Email != "" {
		conds = append(conds, "o.user_email = "+next(q.Email))
	}
	if !q.StartDate.IsZero() {
		conds = append(conds, "o.created_at >= "+next(q.StartDate))
	}
	if !q.EndDate.IsZero() {
		conds = append(conds, "o.created_at < "+next(q.EndDate))
	}
	if q.Search != "" {
		pattern := next("%" + q.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(o.id ILIKE %[1]s OR o.user_email ILIKE %[1]s OR EXISTS (SELECT 1 FROM order_items s WHERE s.order_id = o.id AND s.name ILIKE %[1]s))",
			pattern))
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}
