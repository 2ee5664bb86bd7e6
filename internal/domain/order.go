package domain

import "time"

type CheckoutSource string

const (
	SourceCart    CheckoutSource = "cart"
	SourceProduct CheckoutSource = "product"
)

type CustomerMode string

const (
	ModeAccount CustomerMode = "account"
	ModeGuest   CustomerMode = "guest"
)

const (
	DefaultCurrency = "DOP"
	Channel         = "whatsapp"
)

// Order is a WhatsApp checkout order. Status is only ever written by the
// admin orchestrator; the inventory adjustment fields only by the
// adjustment flow.
type Order struct {
	ID                       uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderCode                string         `json:"orderCode" gorm:"column:order_code;size:24;not null;uniqueIndex"`
	Source                   CheckoutSource `json:"source" gorm:"type:enum('cart','product');not null"`
	CustomerMode             CustomerMode   `json:"customerMode" gorm:"type:enum('account','guest');not null"`
	ClerkUserID              *string        `json:"clerkUserId" gorm:"column:clerk_user_id;size:120;index"`
	FullName                 string         `json:"fullName" gorm:"size:140;not null"`
	Email                    string         `json:"email" gorm:"size:180"`
	Phone                    string         `json:"phone" gorm:"size:40;not null"`
	Province                 string         `json:"province" gorm:"size:100;not null"`
	City                     string         `json:"city" gorm:"size:100;not null"`
	Sector                   string         `json:"sector" gorm:"size:140"`
	AddressLine1             string         `json:"addressLine1" gorm:"column:address_line1;size:200;not null"`
	AddressLine2             string         `json:"addressLine2" gorm:"column:address_line2;size:200"`
	ReferenceText            string         `json:"referenceText" gorm:"size:260"`
	DeliveryNotes            string         `json:"deliveryNotes" gorm:"size:360"`
	SubtotalAmount           int64          `json:"subtotalAmount" gorm:"not null"`
	Currency                 string         `json:"currency" gorm:"size:8;not null;default:'DOP'"`
	ItemCount                int64          `json:"itemCount" gorm:"not null"`
	Status                   OrderStatus    `json:"status" gorm:"type:enum('pending_confirmation','confirmed','in_preparation','shipped','delivered','cancelled');not null;default:'pending_confirmation';index"`
	Channel                  string         `json:"channel" gorm:"size:40;not null;default:'whatsapp'"`
	CreatedAt                time.Time      `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt                time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
	InventoryAdjustedAt      *time.Time     `json:"inventoryAdjustedAt" gorm:"column:inventory_adjusted_at"`
	InventoryAdjustmentError *string        `json:"inventoryAdjustmentError" gorm:"column:inventory_adjustment_error;size:500"`
	Items                    []OrderItem    `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderItem is immutable after creation. Product name, category and image
// are snapshots captured at order time, not live catalog lookups.
type OrderItem struct {
	ID              uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID         uint64 `json:"orderId" gorm:"not null;index"`
	ProductID       string `json:"productId" gorm:"size:120;not null"`
	ProductName     string `json:"productName" gorm:"size:180;not null"`
	ProductCategory string `json:"productCategory" gorm:"size:80"`
	UnitPrice       int64  `json:"unitPrice" gorm:"not null"`
	Quantity        int64  `json:"quantity" gorm:"not null"`
	LineTotal       int64  `json:"lineTotal" gorm:"not null"`
	Currency        string `json:"currency" gorm:"size:8;not null;default:'DOP'"`
	ImageURL        string `json:"imageUrl" gorm:"size:500"`
}

// QuantityByProduct sums ordered quantities per product id across all line
// items; the same product may appear on several lines.
func (o *Order) QuantityByProduct() map[string]int64 {
	qty := make(map[string]int64, len(o.Items))
	for _, item := range o.Items {
		if item.ProductID == "" {
			continue
		}
		qty[item.ProductID] += item.Quantity
	}
	return qty
}
