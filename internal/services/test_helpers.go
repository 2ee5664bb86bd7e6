package services

import (
	"time"

	"galia-orders/internal/domain"
)

func newConfirmedOrder(id uint64, items ...domain.OrderItem) *domain.Order {
	return &domain.Order{
		ID:        id,
		OrderCode: "GL-20260214-007",
		Source:    domain.SourceCart,
		Status:    domain.StatusConfirmed,
		Currency:  domain.DefaultCurrency,
		Channel:   domain.Channel,
		CreatedAt: time.Now(),
		Items:     items,
	}
}

func item(productID string, qty int64) domain.OrderItem {
	return domain.OrderItem{
		ProductID:   productID,
		ProductName: "Item " + productID,
		UnitPrice:   400,
		Quantity:    qty,
		LineTotal:   400 * qty,
		Currency:    domain.DefaultCurrency,
	}
}

const (
	testOrderID   = uint64(1)
	testOrderCode = "GL-20260214-007"
	testUserID    = "user_2aXb"
)
