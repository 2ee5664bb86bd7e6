package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"galia-orders/internal/domain"
	"galia-orders/internal/infra"
	"galia-orders/internal/metrics"

	log "github.com/sirupsen/logrus"
)

const maxAdjustmentErrorLen = 500

// AdjustResult is the structured outcome of an inventory adjustment.
// Failures are data, not panics: the orchestrator records Error on the
// order so an admin can retry later.
type AdjustResult struct {
	OK       bool
	Adjusted bool
	Error    string
}

type InventoryService struct {
	catalog infra.CatalogClientInterface
}

func NewInventoryService(catalog infra.CatalogClientInterface) *InventoryService {
	return &InventoryService{catalog: catalog}
}

// AdjustForConfirmedOrder decrements the catalog inventory for every
// distinct product on the order by its summed ordered quantity, clamped at
// zero. The caller holds the at-most-once claim; this re-check is defense
// in depth against being invoked outside it.
func (s *InventoryService) AdjustForConfirmedOrder(ctx context.Context, order *domain.Order) AdjustResult {
	if order.Status != domain.StatusConfirmed {
		return AdjustResult{OK: false, Adjusted: false, Error: fmt.Sprintf("order %s is not confirmed", order.OrderCode)}
	}
	if order.InventoryAdjustedAt != nil {
		// Already adjusted; a repeat invocation is a safe no-op.
		return AdjustResult{OK: true, Adjusted: false}
	}

	if s.catalog == nil {
		return AdjustResult{OK: false, Adjusted: false, Error: "catalog store not configured"}
	}

	qtyByProduct := order.QuantityByProduct()
	if len(qtyByProduct) == 0 {
		return AdjustResult{OK: true, Adjusted: false}
	}

	productIDs := make([]string, 0, len(qtyByProduct))
	for id := range qtyByProduct {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	current, err := s.catalog.GetInventory(ctx, productIDs)
	if err != nil {
		metrics.InventoryAdjustments.WithLabelValues("fetch_error").Inc()
		return failure(fmt.Sprintf("inventory fetch failed: %v", err))
	}

	var missing []string
	for _, id := range productIDs {
		if _, ok := current[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		metrics.InventoryAdjustments.WithLabelValues("missing_product").Inc()
		return failure(fmt.Sprintf("products not found in catalog: %s", strings.Join(missing, ", ")))
	}

	// Each write is independent; there is no multi-product transaction in
	// the catalog store. Report how far we got so a retry knows the state.
	var written []string
	for _, id := range productIDs {
		next := current[id] - qtyByProduct[id]
		if next < 0 {
			next = 0
		}
		if err := s.catalog.SetInventory(ctx, id, next); err != nil {
			metrics.InventoryAdjustments.WithLabelValues("write_error").Inc()
			msg := fmt.Sprintf("inventory write failed for product %s: %v", id, err)
			if len(written) > 0 {
				msg += fmt.Sprintf(" (already adjusted: %s)", strings.Join(written, ", "))
			}
			return failure(msg)
		}
		written = append(written, id)
		log.WithFields(log.Fields{
			"order_code": order.OrderCode,
			"product_id": id,
			"inventory":  next,
		}).Info("inventory adjusted")
	}

	metrics.InventoryAdjustments.WithLabelValues("adjusted").Inc()
	return AdjustResult{OK: true, Adjusted: true}
}

func failure(msg string) AdjustResult {
	if len(msg) > maxAdjustmentErrorLen {
		msg = msg[:maxAdjustmentErrorLen]
	}
	return AdjustResult{OK: false, Adjusted: false, Error: msg}
}
