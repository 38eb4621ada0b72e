// Package domain defines the data model of the profile screen backend:
// customers, orders, notifications, and ephemeral chat messages. Customers
// and orders are owned by upstream services and only pass through this
// process; nothing in this package is persisted locally except the
// idempotency records (see idempotency.go).
package domain

import "time"

// NoOrderSelected is the reserved order identity meaning "no order is
// targeted". Operations receiving it must short-circuit before any remote
// call.
const NoOrderSelected int64 = -1

// OrderStatus enumerates the order lifecycle states used by the storefront.
// Only StatusCompleted and StatusCancelled are referenced by controller
// logic; the remaining values pass through unchanged.
type OrderStatus int

const (
	// StatusPending is a freshly placed order awaiting processing.
	StatusPending OrderStatus = 0
	// StatusInProgress is an order being prepared or shipped.
	StatusInProgress OrderStatus = 1
	// StatusCompleted is a delivered order.
	StatusCompleted OrderStatus = 2
	// StatusCancelled is an order cancelled by the customer.
	StatusCancelled OrderStatus = 3
)

// String returns a human-readable name for the status.
func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Customer is the profile record served by the customer service.
//
// ImageBlob is the optional pending avatar payload (a data-URL string read
// from a file picker) awaiting upload. It is never persisted upstream; on a
// successful upload the Image reference is replaced with the uploaded
// resource's canonical URL and the payload is cleared.
type Customer struct {
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Image   string `json:"image,omitempty"`

	ImageBlob *string `json:"image_blob,omitempty"`
}

// OrderItem is a single line item within an order.
type OrderItem struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is a customer order served by the order service. Orders are created
// at purchase time by the storefront; this backend only reads them and
// transitions them to cancelled through the order service.
type Order struct {
	ID            int64       `json:"id"`
	CustomerEmail string      `json:"customer_email"`
	Status        OrderStatus `json:"status"`
	Total         float64     `json:"total"`
	Items         []OrderItem `json:"items,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Notification is a write-only record posted to the notification service.
// ID zero means "unassigned"; the notification service assigns the real
// identity on creation.
type Notification struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// ChatMessage is an ephemeral broadcast payload pushed over the realtime
// channel to other connected viewers. It is never persisted by this service.
type ChatMessage struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}
