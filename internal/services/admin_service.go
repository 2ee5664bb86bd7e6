package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"galia-orders/internal/domain"
	rabbit "galia-orders/internal/infra/rabbitmq"
	"galia-orders/internal/metrics"
	"galia-orders/internal/repository"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

var ErrOrderNotFound = errors.New("order not found")

// AdminListCacheKey is the Redis key holding the cached admin order list.
const AdminListCacheKey = "orders:admin:list"

// AdminService is the only writer of order status and the trigger point
// for inventory adjustment.
type AdminService struct {
	repo        repository.OrderRepository
	inventory   *InventoryService
	publisher   rabbit.PublisherInterface
	redisClient *redis.Client
}

func NewAdminService(repo repository.OrderRepository, inventory *InventoryService, publisher rabbit.PublisherInterface) *AdminService {
	return &AdminService{
		repo:      repo,
		inventory: inventory,
		publisher: publisher,
	}
}

func (s *AdminService) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

func (s *AdminService) ListOrders(ctx context.Context, opts repository.AdminListOptions) ([]domain.Order, error) {
	return s.repo.ListForAdmin(ctx, opts)
}

func (s *AdminService) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *AdminService) GetOrderByCode(ctx context.Context, code string) (*domain.Order, error) {
	o, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// RequestStatusChange validates and persists a transition, then runs the
// inventory adjustment when the order enters confirmed. Unknown orders and
// illegal transitions are deliberate no-ops: the admin UI only offers
// legal moves, this is defense in depth.
func (s *AdminService) RequestStatusChange(ctx context.Context, orderID uint64, next domain.OrderStatus) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		metrics.StatusTransitions.WithLabelValues(string(next), "not_found").Inc()
		return nil
	}

	if !domain.CanTransition(order.Status, next) {
		metrics.StatusTransitions.WithLabelValues(string(next), "rejected").Inc()
		log.WithFields(log.Fields{
			"order_code": order.OrderCode,
			"from":       order.Status,
			"to":         next,
		}).Warn("illegal status transition ignored")
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, orderID, next); err != nil {
		return err
	}
	metrics.StatusTransitions.WithLabelValues(string(next), "applied").Inc()
	s.invalidateListCache(ctx)
	s.publishStatusChange(ctx, order, next)

	if next == domain.StatusConfirmed {
		s.applyInventoryAdjustment(ctx, orderID)
	}
	return nil
}

// RetryInventoryAdjustment re-runs the adjustment for orders whose earlier
// attempt failed. The claim makes it a safe no-op on already-adjusted or
// non-confirmed orders.
func (s *AdminService) RetryInventoryAdjustment(ctx context.Context, orderID uint64) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}
	s.applyInventoryAdjustment(ctx, orderID)
	return nil
}

// applyInventoryAdjustment takes the at-most-once claim, runs the
// adjustment and records the outcome on the order. Whatever happens here,
// the status transition that triggered it has already succeeded; inventory
// sync problems never block fulfillment.
func (s *AdminService) applyInventoryAdjustment(ctx context.Context, orderID uint64) {
	claimed, err := s.repo.ClaimInventoryAdjustment(ctx, orderID, time.Now())
	if err != nil {
		log.WithError(err).WithField("order_id", orderID).Error("inventory adjustment claim failed")
		return
	}
	if !claimed {
		return
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil || order == nil {
		s.recordAdjustmentFailure(ctx, orderID, fmt.Sprintf("could not reload order %d after claim: %v", orderID, err))
		return
	}
	// The claim just stamped inventory_adjusted_at; present the order to
	// the service the way it looked when the claim was taken.
	order.InventoryAdjustedAt = nil

	result := s.inventory.AdjustForConfirmedOrder(ctx, order)
	if result.OK {
		if err := s.repo.FinishInventoryAdjustment(ctx, orderID); err != nil {
			log.WithError(err).WithField("order_id", orderID).Error("failed to clear adjustment error")
		}
		s.invalidateListCache(ctx)
		s.publishAdjustment(ctx, order, result)
		return
	}

	s.recordAdjustmentFailure(ctx, orderID, result.Error)
	s.publishAdjustment(ctx, order, result)
}

func (s *AdminService) recordAdjustmentFailure(ctx context.Context, orderID uint64, msg string) {
	if err := s.repo.ReleaseInventoryAdjustment(ctx, orderID, msg); err != nil {
		log.WithError(err).WithField("order_id", orderID).Error("failed to record adjustment failure")
	}
	s.invalidateListCache(ctx)
	log.WithFields(log.Fields{
		"order_id": orderID,
		"error":    msg,
	}).Warn("inventory adjustment failed")
}

func (s *AdminService) invalidateListCache(ctx context.Context) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, AdminListCacheKey).Err(); err != nil && err != redis.Nil {
		log.WithError(err).Debug("failed to invalidate admin list cache")
	}
}

func (s *AdminService) publishStatusChange(ctx context.Context, order *domain.Order, next domain.OrderStatus) {
	if s.publisher == nil {
		return
	}
	evt := domain.OrderStatusChangedEvent{
		OrderID:   order.ID,
		OrderCode: order.OrderCode,
		From:      string(order.Status),
		To:        string(next),
		ChangedAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, domain.EventOrderStatusChange, evt); err != nil {
		log.WithError(err).WithField("order_code", order.OrderCode).Warn("failed to publish status change")
	}
}

func (s *AdminService) publishAdjustment(ctx context.Context, order *domain.Order, result AdjustResult) {
	if s.publisher == nil {
		return
	}
	evt := domain.InventoryAdjustedEvent{
		OrderID:   order.ID,
		OrderCode: order.OrderCode,
		Adjusted:  result.Adjusted,
		Error:     result.Error,
		At:        time.Now(),
	}
	if err := s.publisher.Publish(ctx, domain.EventInventoryAdjusted, evt); err != nil {
		log.WithError(err).WithField("order_code", order.OrderCode).Warn("failed to publish adjustment event")
	}
}
