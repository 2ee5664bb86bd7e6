package services

import (
	"context"
	"time"

	"galia-orders/internal/domain"
	rabbit "galia-orders/internal/infra/rabbitmq"
	"galia-orders/internal/metrics"
	"galia-orders/internal/repository"

	log "github.com/sirupsen/logrus"
)

// CreateOrderResult mirrors the intake wire contract. Persisted=false with
// an empty code is a success: the durable store is simply not available
// and the WhatsApp flow continues without a trackable code.
type CreateOrderResult struct {
	Persisted bool
	OrderCode string
}

// OrderService owns the intake flow: persist a validated checkout
// submission and announce it. The repository may be nil in environments
// without a durable store.
type OrderService struct {
	repo      repository.OrderRepository
	publisher rabbit.PublisherInterface
}

func NewOrderService(repo repository.OrderRepository, publisher rabbit.PublisherInterface) *OrderService {
	return &OrderService{repo: repo, publisher: publisher}
}

func (s *OrderService) CreateOrder(ctx context.Context, input repository.CreateOrderInput) (*CreateOrderResult, error) {
	if s.repo == nil {
		metrics.OrdersCreated.WithLabelValues("false").Inc()
		return &CreateOrderResult{Persisted: false}, nil
	}

	code, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues("true").Inc()
	log.WithFields(log.Fields{
		"order_code": code,
		"source":     input.Source,
		"items":      len(input.Items),
	}).Info("order created")

	go s.publishOrderCreated(context.Background(), code, input)

	return &CreateOrderResult{Persisted: true, OrderCode: code}, nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, code string, input repository.CreateOrderInput) {
	if s.publisher == nil {
		return
	}

	var subtotal, itemCount int64
	for _, item := range input.Items {
		subtotal += item.Price * item.Quantity
		itemCount += item.Quantity
	}

	evt := domain.OrderCreatedEvent{
		OrderCode:      code,
		Source:         string(input.Source),
		SubtotalAmount: subtotal,
		ItemCount:      itemCount,
		CreatedAt:      time.Now(),
	}
	if err := s.publisher.Publish(ctx, domain.EventOrderCreated, evt); err != nil {
		log.WithError(err).WithField("order_code", code).Warn("failed to publish order.created")
	}
}

// Customer read surface. Scoping by user id happens in the repository; a
// code owned by someone else reads as not found here too.

func (s *OrderService) ListCustomerOrders(ctx context.Context, clerkUserID string, page, pageSize int) (*repository.CustomerPage, error) {
	if s.repo == nil {
		return &repository.CustomerPage{Page: page, PageSize: pageSize}, nil
	}
	return s.repo.ListForCustomer(ctx, clerkUserID, page, pageSize)
}

func (s *OrderService) LatestInProgressOrder(ctx context.Context, clerkUserID string) (*domain.Order, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.LatestInProgressForCustomer(ctx, clerkUserID)
}

func (s *OrderService) GetCustomerOrderByCode(ctx context.Context, clerkUserID, code string) (*domain.Order, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.FindByCodeForCustomer(ctx, clerkUserID, code)
}
