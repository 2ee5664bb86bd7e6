package domain

import "time"

const (
	EventOrderCreated      = "order.created"
	EventOrderStatusChange = "order.status_changed"
	EventInventoryAdjusted = "order.inventory_adjusted"
)

type OrderCreatedEvent struct {
	OrderID        uint64    `json:"orderId"`
	OrderCode      string    `json:"orderCode"`
	Source         string    `json:"source"`
	SubtotalAmount int64     `json:"subtotalAmount"`
	ItemCount      int64     `json:"itemCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

type OrderStatusChangedEvent struct {
	OrderID   uint64    `json:"orderId"`
	OrderCode string    `json:"orderCode"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changedAt"`
}

type InventoryAdjustedEvent struct {
	OrderID   uint64    `json:"orderId"`
	OrderCode string    `json:"orderCode"`
	Adjusted  bool      `json:"adjusted"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
