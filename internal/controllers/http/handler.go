package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"galia-orders/internal/auth"
	"galia-orders/internal/domain"
	"galia-orders/internal/metrics"
	"galia-orders/internal/repository"
	"galia-orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const adminReturnPrefix = "/admin/pedidos"

type Handler struct {
	service   *services.OrderService
	admin     *services.AdminService
	rdb       *redis.Client
	limiter   RateLimiter
	allowlist auth.Allowlist
}

func NewHandler(service *services.OrderService, admin *services.AdminService, rdb *redis.Client, limiter RateLimiter, allowlist auth.Allowlist) *Handler {
	return &Handler{
		service:   service,
		admin:     admin,
		rdb:       rdb,
		limiter:   limiter,
		allowlist: allowlist,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/orders/whatsapp", h.CreateWhatsAppOrder)

	my := r.Group("/my", auth.RequireUser())
	my.GET("/orders", h.ListMyOrders)
	my.GET("/orders/in-progress", h.MyInProgressOrder)
	my.GET("/orders/:code", h.MyOrderByCode)

	admin := r.Group("/admin", auth.RequireAdmin(h.allowlist))
	admin.GET("/orders", h.ListAdminOrders)
	admin.GET("/orders/:id", h.AdminOrderByID)
	admin.GET("/orders/code/:code", h.AdminOrderByCode)
	admin.POST("/orders/status", h.UpdateOrderStatus)
	admin.POST("/orders/inventory-retry", h.RetryInventoryAdjustment)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// getClientIP prefers the proxy-provided headers the storefront sits
// behind; falls back to "unknown" so the limiter still has a key.
func getClientIP(c *gin.Context) string {
	if cf := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); cf != "" {
		return cf
	}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(c.GetHeader("X-Real-IP")); real != "" {
		return real
	}
	return "unknown"
}

func (h *Handler) CreateWhatsAppOrder(c *gin.Context) {
	rate := h.limiter.Consume(c.Request.Context(), "orders:whatsapp:"+getClientIP(c))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(rate.Remaining))
	if !rate.Allowed {
		metrics.RateLimited.Inc()
		c.Header("Retry-After", strconv.Itoa(rate.RetryAfterSeconds))
		c.JSON(http.StatusTooManyRequests, CreateOrderResponse{
			OK:        false,
			Persisted: false,
			Error:     "too many attempts, try again shortly",
		})
		return
	}

	var req CreateOrderRequest
	decoder := json.NewDecoder(c.Request.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, CreateOrderResponse{OK: false, Persisted: false, Error: "invalid JSON"})
		return
	}

	input, err := req.Validate()
	if err != nil {
		c.JSON(http.StatusBadRequest, CreateOrderResponse{OK: false, Persisted: false, Error: err.Error()})
		return
	}

	// Identity resolution already happened in middleware; a failed lookup
	// simply leaves the order a guest order.
	if user := auth.UserFrom(c); user != nil {
		input.ClerkUserID = &user.ID
	}

	result, err := h.service.CreateOrder(c.Request.Context(), *input)
	if err != nil {
		log.WithError(err).Error("order persist failed")
		c.JSON(http.StatusInternalServerError, CreateOrderResponse{
			OK:        false,
			Persisted: false,
			Error:     "could not register the order",
		})
		return
	}

	resp := CreateOrderResponse{OK: true, Persisted: result.Persisted}
	if result.Persisted {
		resp.OrderCode = &result.OrderCode
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListMyOrders(c *gin.Context) {
	user := auth.UserFrom(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))

	result, err := h.service.ListCustomerOrders(c.Request.Context(), user.ID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := CustomerOrdersPage{
		Orders:          make([]CustomerOrderSummary, 0, len(result.Orders)),
		Total:           result.Total,
		Page:            result.Page,
		PageSize:        result.PageSize,
		HasPreviousPage: result.Page > 1,
	}
	for _, o := range result.Orders {
		out.Orders = append(out.Orders, toCustomerSummary(o))
	}
	out.HasNextPage = int64((result.Page-1)*result.PageSize+len(result.Orders)) < result.Total

	c.JSON(http.StatusOK, out)
}

func (h *Handler) MyInProgressOrder(c *gin.Context) {
	user := auth.UserFrom(c)
	order, err := h.service.LatestInProgressOrder(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no order in progress"})
		return
	}
	c.JSON(http.StatusOK, toCustomerSummary(*order))
}

func (h *Handler) MyOrderByCode(c *gin.Context) {
	user := auth.UserFrom(c)
	code := strings.TrimSpace(c.Param("code"))

	order, err := h.service.GetCustomerOrderByCode(c.Request.Context(), user.ID, code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if order == nil {
		// Also the authorization boundary: someone else's code is a miss.
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ListAdminOrders(c *gin.Context) {
	opts := repository.AdminListOptions{
		Status: c.DefaultQuery("status", "all"),
		Query:  c.Query("q"),
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		opts.Limit = limit
	}

	// Only the unfiltered default list is cached; it is what the admin
	// dashboard polls.
	cacheable := h.rdb != nil && opts.Status == "all" && opts.Query == "" && opts.Limit == 0
	ctx := c.Request.Context()

	if cacheable {
		if cached, err := h.rdb.Get(ctx, services.AdminListCacheKey).Result(); err == nil {
			var orders []domain.Order
			if json.Unmarshal([]byte(cached), &orders) == nil {
				c.JSON(http.StatusOK, orders)
				return
			}
		}
	}

	orders, err := h.admin.ListOrders(ctx, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if cacheable {
		if data, err := json.Marshal(orders); err == nil {
			h.rdb.Set(ctx, services.AdminListCacheKey, data, 10*time.Second)
		}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) AdminOrderByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	order, err := h.admin.GetOrder(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) AdminOrderByCode(c *gin.Context) {
	order, err := h.admin.GetOrderByCode(c.Request.Context(), strings.TrimSpace(c.Param("code")))
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus is the form-posted admin transition action. It always
// redirects back to the admin orders UI; illegal or unknown transitions
// are no-ops by contract.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	returnTo := safeReturnTo(c.PostForm("returnTo"))

	orderID, err := strconv.ParseUint(c.PostForm("orderId"), 10, 64)
	if err != nil || orderID == 0 {
		c.Redirect(http.StatusSeeOther, returnTo)
		return
	}
	next, ok := domain.ParseOrderStatus(c.PostForm("nextStatus"))
	if !ok {
		c.Redirect(http.StatusSeeOther, returnTo)
		return
	}

	if err := h.admin.RequestStatusChange(c.Request.Context(), orderID, next); err != nil {
		log.WithError(err).WithField("order_id", orderID).Error("status change failed")
	}
	c.Redirect(http.StatusSeeOther, returnTo)
}

func (h *Handler) RetryInventoryAdjustment(c *gin.Context) {
	returnTo := safeReturnTo(c.PostForm("returnTo"))

	orderID, err := strconv.ParseUint(c.PostForm("orderId"), 10, 64)
	if err != nil || orderID == 0 {
		c.Redirect(http.StatusSeeOther, returnTo)
		return
	}

	if err := h.admin.RetryInventoryAdjustment(c.Request.Context(), orderID); err != nil {
		log.WithError(err).WithField("order_id", orderID).Error("inventory retry failed")
	}
	c.Redirect(http.StatusSeeOther, returnTo)
}

// safeReturnTo guards against open redirects: only paths inside the admin
// orders UI are honored.
func safeReturnTo(value string) string {
	if strings.HasPrefix(value, adminReturnPrefix) {
		return value
	}
	return adminReturnPrefix
}
