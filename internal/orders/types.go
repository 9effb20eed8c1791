package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Overall order statuses. Per-item return activity is tracked separately on
// each OrderItem and does not affect these.
const (
	OrderStatusPending   = "Pending"
	OrderStatusShipped   = "Shipped"
	OrderStatusDelivered = "Delivered"
	OrderStatusCancelled = "Cancelled"
)

// Per-item return statuses. "Returned" is set by the storefront when the
// customer ships the item back on their own; this service reads it but never
// produces it.
const (
	ReturnStatusRequested = "Return Requested"
	ReturnStatusApproved  = "Return Approved"
	ReturnStatusRejected  = "Return Rejected"
	ReturnStatusReturned  = "Returned"
	ReturnStatusRefunded  = "Refunded"
)

// PickupStatusPickedUp is the only value pickup_status ever takes; unset
// means the courier has not collected the item yet.
const PickupStatusPickedUp = "Picked Up"

// PaymentMethodReplacement marks orders created by the exchange flow.
const PaymentMethodReplacement = "replacement"

type UserRef struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ReturnDetails is present on an item exactly when ReturnStatus is set.
type ReturnDetails struct {
	Reason       string           `json:"reason,omitempty"`
	Issue        string           `json:"issue,omitempty"`
	Resolution   string           `json:"resolution,omitempty"`
	PickupStatus string           `json:"pickupStatus,omitempty"`
	RefundAmount *decimal.Decimal `json:"refundAmount,omitempty"`
	RefundDate   *time.Time       `json:"refundDate,omitempty"`
	Images       []string         `json:"images,omitempty"`
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug,omitempty"`
	SKU       string          `json:"sku"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Images    []string        `json:"images,omitempty"`

	ReturnStatus  string         `json:"returnStatus,omitempty"`
	ReturnDetails *ReturnDetails `json:"returnDetails,omitempty"`

	ExchangeToColor string `json:"exchangeToColor,omitempty"`
	ExchangeToSize  string `json:"exchangeToSize,omitempty"`

	// ReplacementOrderID is a terminal marker: once set it is never cleared
	// or reassigned.
	ReplacementOrderID string `json:"replacementOrderId,omitempty"`
}

// Order is the snapshot exchanged with clients and published on the
// live-update channel. The server is the only writer; clients hold it as a
// read cache valid until the next fetch or snapshot for the same order.
type Order struct {
	OrderID       string          `json:"orderId"`
	User          UserRef         `json:"user"`
	CreatedAt     time.Time       `json:"createdAt"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentStatus string          `json:"paymentStatus"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`

	ShippedFrom     string `json:"shippedFrom,omitempty"`
	TrackingNumber  string `json:"trackingNumber,omitempty"`
	ShippingCarrier string `json:"shippingCarrier,omitempty"`

	Items []OrderItem `json:"items"`

	// Revision increases on every server-side mutation. Consumers must
	// discard snapshots whose revision is not greater than the one they hold.
	Revision int64 `json:"revision"`
}

// Item returns the item with the given product id, or nil.
func (o *Order) Item(productID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

// ShippingInfo must be fully populated before an order may move to Shipped.
type ShippingInfo struct {
	ShippedFrom     string `json:"shippedFrom"`
	TrackingNumber  string `json:"trackingNumber"`
	ShippingCarrier string `json:"shippingCarrier"`
}

func (s ShippingInfo) Complete() bool {
	return s.ShippedFrom != "" && s.TrackingNumber != "" && s.ShippingCarrier != ""
}

// ProductVariant describes one size of one color of a product, used when an
// admin picks the variant for a replacement order.
type ProductVariant struct {
	Quantity int    `json:"quantity"`
	SKU      string `json:"sku"`
}

type ProductColor struct {
	Name  string                    `json:"name"`
	Sizes map[string]ProductVariant `json:"sizes"`
}

type Product struct {
	Slug   string         `json:"slug"`
	Name   string         `json:"name"`
	Colors []ProductColor `json:"colors"`
}
