package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrObjectNotFound = errors.New("not found")

	// ErrInvalidTransition covers both precondition violations and stale
	// references: the caller acted on state that no longer matches.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrValidation marks malformed or incomplete input rejected before any
	// state is touched.
	ErrValidation = errors.New("validation failed")
)

type Order struct {
	ID              string          `db:"id"`
	UserEmail       string          `db:"user_email"`
	UserName        string          `db:"user_name"`
	Status          string          `db:"status"`
	PaymentMethod   string          `db:"payment_method"`
	PaymentStatus   string          `db:"payment_status"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
	ShippedFrom     *string         `db:"shipped_from"`
	TrackingNumber  *string         `db:"tracking_number"`
	ShippingCarrier *string         `db:"shipping_carrier"`
	Revision        int64           `db:"revision"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

type OrderItem struct {
	OrderID   string          `db:"order_id"`
	ProductID string          `db:"product_id"`
	Position  int             `db:"position"`
	Name      string          `db:"name"`
	Slug      string          `db:"slug"`
	SKU       string          `db:"sku"`
	Color     string          `db:"color"`
	Size      string          `db:"size"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	Images    []string        `db:"images"`

	ReturnStatus     *string             `db:"return_status"`
	ReturnReason     *string             `db:"return_reason"`
	ReturnIssue      *string             `db:"return_issue"`
	ReturnResolution *string             `db:"return_resolution"`
	ReturnImages     []string            `db:"return_images"`
	PickupStatus     *string             `db:"pickup_status"`
	RefundAmount     decimal.NullDecimal `db:"refund_amount"`
	RefundDate       *time.Time          `db:"refund_date"`

	ExchangeToColor    *string `db:"exchange_to_color"`
	ExchangeToSize     *string `db:"exchange_to_size"`
	ReplacementOrderID *string `db:"replacement_order_id"`
}

// ReturnQuery is the filter set for the returns listing. Zero values mean
// "no constraint"; populated fields are AND-combined.
type ReturnQuery struct {
	Status    string
	OrderID   string
	Email     string
	StartDate time.Time
	EndDate   time.Time
	Search    string
	Page      int
	PageSize  int
}

// HistoryEntry records one field transition on an order or one of its items.
// ProductID is nil for order-level transitions.
type HistoryEntry struct {
	ID        int64     `db:"id"`
	OrderID   string    `db:"order_id"`
	ProductID *string   `db:"product_id"`
	Field     string    `db:"field"`
	OldValue  string    `db:"old_value"`
	NewValue  string    `db:"new_value"`
	ChangedAt time.Time `db:"changed_at"`
}

type ProductVariant struct {
	Slug     string `db:"slug"`
	Name     string `db:"name"`
	Color    string `db:"color"`
	Size     string `db:"size"`
	Quantity int    `db:"quantity"`
	SKU      string `db:"sku"`
}

type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "CREATED"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusDone       TaskStatus = "DONE"
)

// OutboxTask is a pending live-update publication, written in the same
// transaction as the mutation it announces.
type OutboxTask struct {
	ID          uuid.UUID       `db:"id"`
	Status      TaskStatus      `db:"status"`
	Payload     json.RawMessage `db:"payload"`
	Topic       string          `db:"topic"`
	Key         string          `db:"key"`
	Attempts    int             `db:"attempts"`
	LastError   *string         `db:"last_error"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}
