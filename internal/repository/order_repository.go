package repository

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"galia-orders/internal/domain"
)

// CreateOrderInput is a fully validated checkout submission. Sanitization
// happens at the HTTP boundary; the repository trusts these values.
type CreateOrderInput struct {
	Source      domain.CheckoutSource
	ClerkUserID *string
	Customer    CustomerInput
	Items       []ItemInput
}

type CustomerInput struct {
	FullName      string
	Email         string
	Phone         string
	Province      string
	City          string
	Sector        string
	AddressLine1  string
	AddressLine2  string
	Reference     string
	DeliveryNotes string
}

type ItemInput struct {
	ProductID string
	Name      string
	Category  string
	Price     int64
	Quantity  int64
	Currency  string
	ImageURL  string
}

type AdminListOptions struct {
	Status string // "all" or a status value
	Query  string // substring match over code/name/email/phone
	Limit  int
}

type CustomerPage struct {
	Orders   []domain.Order
	Total    int64
	Page     int
	PageSize int
}

type OrderRepository interface {
	// Create inserts the order plus its items in one transaction and
	// returns the generated order code.
	Create(ctx context.Context, input CreateOrderInput) (string, error)

	// Admin surface.
	ListForAdmin(ctx context.Context, opts AdminListOptions) ([]domain.Order, error)
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	FindByCode(ctx context.Context, code string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uint64, status domain.OrderStatus) error

	// ClaimInventoryAdjustment atomically stamps inventory_adjusted_at when
	// the order is confirmed and not yet adjusted. Returns false when the
	// claim was lost (already adjusted, wrong status, or missing order).
	ClaimInventoryAdjustment(ctx context.Context, id uint64, at time.Time) (bool, error)
	// ReleaseInventoryAdjustment clears the claim and records the failure.
	ReleaseInventoryAdjustment(ctx context.Context, id uint64, errMsg string) error
	// FinishInventoryAdjustment clears any previous failure once a
	// (re)claimed adjustment succeeds.
	FinishInventoryAdjustment(ctx context.Context, id uint64) error

	// Customer surface. User scoping is an authorization boundary: a code
	// owned by another user reads as not found.
	ListForCustomer(ctx context.Context, clerkUserID string, page, pageSize int) (*CustomerPage, error)
	LatestInProgressForCustomer(ctx context.Context, clerkUserID string) (*domain.Order, error)
	FindByCodeForCustomer(ctx context.Context, clerkUserID, code string) (*domain.Order, error)
}

// GenerateOrderCode builds a customer-facing order code: GL-YYYYMMDD-NNN.
// Three random digits per day is a small space; Create retries on the
// unique index instead of widening the customer-visible format.
func GenerateOrderCode(now time.Time) string {
	return fmt.Sprintf("GL-%s-%03d", now.Format("20060102"), rand.Intn(1000))
}
