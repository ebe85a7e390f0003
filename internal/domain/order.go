package domain

import "time"

// OrderStatus is the lifecycle state of an order. An order moves forward
// through pending, confirmed, paid, scheduled, broadcast and completed, and
// may become cancelled at any point. Cancellation is a status update, never
// a hard delete.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPaid      OrderStatus = "paid"
	OrderScheduled OrderStatus = "scheduled"
	OrderBroadcast OrderStatus = "broadcast"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a declared status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPaid, OrderScheduled,
		OrderBroadcast, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Order is the normalized record created once by the finalizer and owned
// thereafter by the order repository.
type Order struct {
	ID            string
	UserID        string
	RecipientName string
	Occasion      Occasion
	BroadcastDate string
	MessageLines  []string
	PlanID        string
	PlanName      string
	Price         int
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderFilter narrows a repository listing. Zero-value fields match all.
type OrderFilter struct {
	Status OrderStatus
	PlanID string
	UserID string
	Limit  int
}

// NotificationEvent names the order lifecycle moments that trigger a
// best-effort user notification.
type NotificationEvent string

const (
	NotifyOrderReceived      NotificationEvent = "order_received"
	NotifyOrderConfirmed     NotificationEvent = "order_confirmed"
	NotifyPaymentCompleted   NotificationEvent = "payment_completed"
	NotifyBroadcastScheduled NotificationEvent = "broadcast_scheduled"
	NotifyBroadcastCompleted NotificationEvent = "broadcast_completed"
)
