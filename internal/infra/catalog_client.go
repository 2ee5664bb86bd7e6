package infra

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type inventoryRow struct {
	ID        string `json:"id"`
	Inventory int64  `json:"inventory"`
}

// CatalogClient talks to the catalog store's inventory API. All calls go
// through a circuit breaker so a misbehaving catalog fails fast instead of
// tying up admin requests.
type CatalogClient struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
}

func NewCatalogClient(baseURL, token string, timeout time.Duration) *CatalogClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("circuit breaker state changed")
		},
	})

	return &CatalogClient{client: client, breaker: breaker}
}

func (c *CatalogClient) GetInventory(ctx context.Context, productIDs []string) (map[string]int64, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		var rows []inventoryRow
		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParam("ids", strings.Join(productIDs, ",")).
			SetResult(&rows).
			Get("/products/inventory")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode())
		}
		counts := make(map[string]int64, len(rows))
		for _, row := range rows {
			counts[row.ID] = row.Inventory
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(map[string]int64), nil
}

func (c *CatalogClient) SetInventory(ctx context.Context, productID string, count int64) error {
	_, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.client.R().
			SetContext(ctx).
			SetBody(map[string]int64{"inventory": count}).
			Patch(fmt.Sprintf("/products/%s/inventory", productID))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
			return nil, fmt.Errorf("catalog returned status %d for product %s", resp.StatusCode(), productID)
		}
		return nil, nil
	})
	return err
}
