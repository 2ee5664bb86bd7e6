package mysql

import (
	"context"
	"errors"
	"strings"
	"time"

	"galia-orders/internal/domain"
	"galia-orders/internal/repository"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const orderCodeAttempts = 5

var ErrOrderCodeExhausted = errors.New("could not generate a unique order code")

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, input repository.CreateOrderInput) (string, error) {
	var subtotal, itemCount int64
	for _, item := range input.Items {
		subtotal += item.Price * item.Quantity
		itemCount += item.Quantity
	}

	mode := domain.ModeGuest
	if input.ClerkUserID != nil && *input.ClerkUserID != "" {
		mode = domain.ModeAccount
	}

	// The three random digits collide roughly 1/1000 per same-day pair, so
	// retry against the unique index rather than trusting the generator.
	for attempt := 0; attempt < orderCodeAttempts; attempt++ {
		code := repository.GenerateOrderCode(time.Now())
		order := &domain.Order{
			OrderCode:      code,
			Source:         input.Source,
			CustomerMode:   mode,
			ClerkUserID:    input.ClerkUserID,
			FullName:       input.Customer.FullName,
			Email:          input.Customer.Email,
			Phone:          input.Customer.Phone,
			Province:       input.Customer.Province,
			City:           input.Customer.City,
			Sector:         input.Customer.Sector,
			AddressLine1:   input.Customer.AddressLine1,
			AddressLine2:   input.Customer.AddressLine2,
			ReferenceText:  input.Customer.Reference,
			DeliveryNotes:  input.Customer.DeliveryNotes,
			SubtotalAmount: subtotal,
			Currency:       domain.DefaultCurrency,
			ItemCount:      itemCount,
			Status:         domain.StatusPendingConfirmation,
			Channel:        domain.Channel,
		}
		for _, item := range input.Items {
			currency := item.Currency
			if currency == "" {
				currency = domain.DefaultCurrency
			}
			order.Items = append(order.Items, domain.OrderItem{
				ProductID:       item.ProductID,
				ProductName:     item.Name,
				ProductCategory: item.Category,
				UnitPrice:       item.Price,
				Quantity:        item.Quantity,
				LineTotal:       item.Price * item.Quantity,
				Currency:        currency,
				ImageURL:        item.ImageURL,
			})
		}

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(order).Error
		})
		if err == nil {
			return code, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.WithField("order_code", code).Warn("order code collision, regenerating")
			continue
		}
		return "", err
	}
	return "", ErrOrderCodeExhausted
}

func (r *orderRepo) ListForAdmin(ctx context.Context, opts repository.AdminListOptions) ([]domain.Order, error) {
	limit := opts.Limit
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	q := r.db.WithContext(ctx).Model(&domain.Order{})
	if opts.Status != "" && opts.Status != "all" {
		q = q.Where("status = ?", opts.Status)
	}
	if needle := strings.TrimSpace(opts.Query); needle != "" {
		like := "%" + needle + "%"
		q = q.Where(
			"order_code LIKE ? OR full_name LIKE ? OR email LIKE ? OR phone LIKE ?",
			like, like, like, like,
		)
	}

	var out []domain.Order
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) FindByCode(ctx context.Context, code string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("order_code = ?", code).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uint64, status domain.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ClaimInventoryAdjustment is the at-most-once guard. A plain read-then-
// write lets two concurrent confirms both pass the null check; a single
// conditional update with rows-affected cannot.
func (r *orderRepo) ClaimInventoryAdjustment(ctx context.Context, id uint64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ? AND inventory_adjusted_at IS NULL", id, domain.StatusConfirmed).
		Update("inventory_adjusted_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *orderRepo) ReleaseInventoryAdjustment(ctx context.Context, id uint64, errMsg string) error {
	if len(errMsg) > 500 {
		errMsg = errMsg[:500]
	}
	return r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"inventory_adjusted_at":      nil,
			"inventory_adjustment_error": errMsg,
		}).Error
}

func (r *orderRepo) FinishInventoryAdjustment(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Update("inventory_adjustment_error", nil).Error
}

func (r *orderRepo) ListForCustomer(ctx context.Context, clerkUserID string, page, pageSize int) (*repository.CustomerPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 50 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	var (
		total  int64
		orders []domain.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.db.WithContext(gctx).
			Model(&domain.Order{}).
			Where("clerk_user_id = ?", clerkUserID).
			Count(&total).Error
	})
	g.Go(func() error {
		return r.db.WithContext(gctx).
			Where("clerk_user_id = ?", clerkUserID).
			Order("created_at DESC").
			Limit(pageSize).
			Offset(offset).
			Find(&orders).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &repository.CustomerPage{
		Orders:   orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (r *orderRepo) LatestInProgressForCustomer(ctx context.Context, clerkUserID string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Where("clerk_user_id = ? AND status IN ?", clerkUserID, domain.InProgressStatuses).
		Order("created_at DESC").
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) FindByCodeForCustomer(ctx context.Context, clerkUserID, code string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_code = ? AND clerk_user_id = ?", code, clerkUserID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}
