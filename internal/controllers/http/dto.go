package http

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"galia-orders/internal/domain"
	"galia-orders/internal/repository"
)

var ErrInvalidPayload = errors.New("incomplete order payload")

// CreateOrderRequest is the raw intake payload. Numbers arrive as
// json.Number-compatible values; sanitization below normalizes them.
type CreateOrderRequest struct {
	Source   string                 `json:"source"`
	Customer CreateOrderCustomer    `json:"customer"`
	Items    []CreateOrderItemInput `json:"items"`
}

type CreateOrderCustomer struct {
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Province      string `json:"province"`
	City          string `json:"city"`
	Sector        string `json:"sector"`
	AddressLine1  string `json:"addressLine1"`
	AddressLine2  string `json:"addressLine2"`
	Reference     string `json:"reference"`
	DeliveryNotes string `json:"deliveryNotes"`
}

type CreateOrderItemInput struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Price    json.Number `json:"price"`
	Quantity json.Number `json:"quantity"`
	Currency string      `json:"currency"`
	ImageURL string      `json:"imageUrl"`
}

type CreateOrderResponse struct {
	OK        bool    `json:"ok"`
	Persisted bool    `json:"persisted"`
	OrderCode *string `json:"orderCode"`
	Error     string  `json:"error,omitempty"`
}

// safeText trims and caps a free-text field. Sanitization only; business
// validation happens in Validate.
func safeText(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) > max {
		return value[:max]
	}
	return value
}

func parsePrice(value json.Number) (int64, bool) {
	num, err := value.Float64()
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) || num < 0 {
		return 0, false
	}
	return int64(math.Round(num)), true
}

func parseQuantity(value json.Number) (int64, bool) {
	num, err := value.Float64()
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	qty := int64(math.Floor(num))
	if qty <= 0 {
		return 0, false
	}
	return qty, true
}

// Validate sanitizes the payload and converts it into repository input.
// Any failure rejects the whole request before persistence.
func (r *CreateOrderRequest) Validate() (*repository.CreateOrderInput, error) {
	if r.Source != string(domain.SourceCart) && r.Source != string(domain.SourceProduct) {
		return nil, ErrInvalidPayload
	}

	customer := repository.CustomerInput{
		FullName:      safeText(r.Customer.FullName, 140),
		Email:         safeText(r.Customer.Email, 180),
		Phone:         safeText(r.Customer.Phone, 40),
		Province:      safeText(r.Customer.Province, 100),
		City:          safeText(r.Customer.City, 100),
		Sector:        safeText(r.Customer.Sector, 140),
		AddressLine1:  safeText(r.Customer.AddressLine1, 200),
		AddressLine2:  safeText(r.Customer.AddressLine2, 200),
		Reference:     safeText(r.Customer.Reference, 260),
		DeliveryNotes: safeText(r.Customer.DeliveryNotes, 360),
	}
	if customer.FullName == "" || customer.Phone == "" || customer.Province == "" ||
		customer.City == "" || customer.AddressLine1 == "" {
		return nil, ErrInvalidPayload
	}

	if len(r.Items) == 0 {
		return nil, ErrInvalidPayload
	}
	items := make([]repository.ItemInput, 0, len(r.Items))
	for _, raw := range r.Items {
		price, ok := parsePrice(raw.Price)
		if !ok {
			return nil, ErrInvalidPayload
		}
		quantity, ok := parseQuantity(raw.Quantity)
		if !ok {
			return nil, ErrInvalidPayload
		}
		item := repository.ItemInput{
			ProductID: safeText(raw.ID, 120),
			Name:      safeText(raw.Name, 180),
			Category:  safeText(raw.Category, 80),
			Price:     price,
			Quantity:  quantity,
			Currency:  safeText(raw.Currency, 8),
			ImageURL:  safeText(raw.ImageURL, 500),
		}
		if item.ProductID == "" || item.Name == "" {
			return nil, ErrInvalidPayload
		}
		if item.Currency == "" {
			item.Currency = domain.DefaultCurrency
		}
		items = append(items, item)
	}

	return &repository.CreateOrderInput{
		Source:   domain.CheckoutSource(r.Source),
		Customer: customer,
		Items:    items,
	}, nil
}

// Customer-facing list shapes.

type CustomerOrderSummary struct {
	ID             uint64 `json:"id"`
	OrderCode      string `json:"orderCode"`
	ItemCount      int64  `json:"itemCount"`
	SubtotalAmount int64  `json:"subtotalAmount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	StatusLabel    string `json:"statusLabel"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type CustomerOrdersPage struct {
	Orders          []CustomerOrderSummary `json:"orders"`
	Total           int64                  `json:"total"`
	Page            int                    `json:"page"`
	PageSize        int                    `json:"pageSize"`
	HasNextPage     bool                   `json:"hasNextPage"`
	HasPreviousPage bool                   `json:"hasPreviousPage"`
}

func toCustomerSummary(o domain.Order) CustomerOrderSummary {
	return CustomerOrderSummary{
		ID:             o.ID,
		OrderCode:      o.OrderCode,
		ItemCount:      o.ItemCount,
		SubtotalAmount: o.SubtotalAmount,
		Currency:       o.Currency,
		Status:         string(o.Status),
		StatusLabel:    domain.StatusLabels[o.Status],
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      o.UpdatedAt.Format(time.RFC3339),
	}
}
