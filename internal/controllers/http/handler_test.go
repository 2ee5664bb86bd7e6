package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"galia-orders/internal/auth"
	"galia-orders/internal/domain"
	"galia-orders/internal/infra"
	"galia-orders/internal/mocks"
	"galia-orders/internal/repository"
	"galia-orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var orderCodePattern = regexp.MustCompile(`^GL-\d{8}-\d{3}$`)

type testEnv struct {
	repo     *mocks.MockOrderRepository
	catalog  *mocks.MockCatalogClient
	pub      *mocks.MockPublisher
	identity *mocks.MockIdentityClient
	router   *gin.Engine
}

func newTestEnv(t *testing.T, limiter RateLimiter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		repo:     new(mocks.MockOrderRepository),
		catalog:  new(mocks.MockCatalogClient),
		pub:      new(mocks.MockPublisher),
		identity: new(mocks.MockIdentityClient),
	}

	orderService := services.NewOrderService(env.repo, env.pub)
	adminService := services.NewAdminService(env.repo, services.NewInventoryService(env.catalog), env.pub)

	if limiter == nil {
		limiter = NewMemoryRateLimiter(100, time.Minute)
	}
	allowlist := auth.ParseAllowlist("admin@galialuna.do")
	handler := NewHandler(orderService, adminService, nil, limiter, allowlist)

	env.router = gin.New()
	env.router.Use(auth.Middleware(env.identity))
	handler.RegisterRoutes(env.router)
	return env
}

func intakeBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"source": "cart",
		"customer": map[string]string{
			"fullName":     "Ana Ana",
			"phone":        "8090000000",
			"province":     "SD",
			"city":         "SDE",
			"addressLine1": "Calle 1",
		},
		"items": []map[string]any{
			{"id": "P1", "name": "Ring", "price": 400, "quantity": 2},
		},
	})
	return body
}

func TestCreateWhatsAppOrder_EndToEnd(t *testing.T) {
	env := newTestEnv(t, nil)

	var created repository.CreateOrderInput
	env.repo.On("Create", mock.Anything, mock.AnythingOfType("repository.CreateOrderInput")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(repository.CreateOrderInput)
		}).
		Return("GL-20260214-007", nil)
	env.pub.On("Publish", mock.Anything, domain.EventOrderCreated, mock.Anything).Return(nil).Maybe()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/whatsapp", bytes.NewReader(intakeBody()))
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp CreateOrderResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.Persisted)
	if assert.NotNil(t, resp.OrderCode) {
		assert.Regexp(t, orderCodePattern, *resp.OrderCode)
	}

	assert.Equal(t, domain.SourceCart, created.Source)
	assert.Nil(t, created.ClerkUserID, "no auth header means guest")
	if assert.Len(t, created.Items, 1) {
		assert.Equal(t, int64(400), created.Items[0].Price)
		assert.Equal(t, int64(2), created.Items[0].Quantity)
	}

	time.Sleep(50 * time.Millisecond)
	env.repo.AssertExpectations(t)
}

func TestCreateWhatsAppOrder_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/whatsapp", strings.NewReader("{not json"))
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateWhatsAppOrder_ValidationFailureDoesNotPersist(t *testing.T) {
	env := newTestEnv(t, nil)

	body, _ := json.Marshal(map[string]any{
		"source":   "cart",
		"customer": map[string]string{"fullName": "Ana"},
		"items":    []map[string]any{},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/whatsapp", bytes.NewReader(body))
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateWhatsAppOrder_RateLimited(t *testing.T) {
	env := newTestEnv(t, NewMemoryRateLimiter(1, time.Minute))

	env.repo.On("Create", mock.Anything, mock.Anything).Return("GL-20260214-001", nil).Once()
	env.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/whatsapp", bytes.NewReader(intakeBody()))
	req.Header.Set("X-Real-IP", "10.0.0.9")
	env.router.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/orders/whatsapp", bytes.NewReader(intakeBody()))
	req.Header.Set("X-Real-IP", "10.0.0.9")
	env.router.ServeHTTP(second, req)

	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
}

func TestCreateWhatsAppOrder_AuthenticatedOwner(t *testing.T) {
	env := newTestEnv(t, nil)

	env.identity.On("ResolveUser", mock.Anything, "tok-1").
		Return(&infra.AuthUser{ID: "user_2aXb"}, nil)

	var created repository.CreateOrderInput
	env.repo.On("Create", mock.Anything, mock.AnythingOfType("repository.CreateOrderInput")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(repository.CreateOrderInput)
		}).
		Return("GL-20260214-002", nil)
	env.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/whatsapp", bytes.NewReader(intakeBody()))
	req.Header.Set("Authorization", "Bearer tok-1")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	if assert.NotNil(t, created.ClerkUserID) {
		assert.Equal(t, "user_2aXb", *created.ClerkUserID)
	}
}

func TestCreateWhatsAppOrder_IdentityFailureFallsBackToGuest(t *testing.T) {
	env := newTestEnv(t, nil)

	env.identity.On("ResolveUser", mock.Anything, "tok-broken").
		Return(nil, errors.New("identity provider unreachable"))

	var created repository.CreateOrderInput
	env.repo.On("Create", mock.Anything, mock.AnythingOfType("repository.CreateOrderInput")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(repository.CreateOrderInput)
		}).
		Return("GL-20260214-003", nil)
	env.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/whatsapp", bytes.NewReader(intakeBody()))
	req.Header.Set("Authorization", "Bearer tok-broken")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "identity problems never block checkout")
	assert.Nil(t, created.ClerkUserID)
}

func adminRequest(method, target string, form string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form))
	req.Header.Set("Authorization", "Bearer admin-tok")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func withAdmin(env *testEnv) {
	env.identity.On("ResolveUser", mock.Anything, "admin-tok").
		Return(&infra.AuthUser{ID: "user_admin", Emails: []string{"admin@galialuna.do"}}, nil)
}

func TestUpdateOrderStatus_IllegalTransitionLeavesOrderUntouched(t *testing.T) {
	env := newTestEnv(t, nil)
	withAdmin(env)

	pending := &domain.Order{
		ID:        7,
		OrderCode: "GL-20260214-100",
		Status:    domain.StatusPendingConfirmation,
		Items:     []domain.OrderItem{{ProductID: "P1", Quantity: 1}},
	}
	env.repo.On("FindByID", mock.Anything, uint64(7)).Return(pending, nil).Once()

	w := httptest.NewRecorder()
	req := adminRequest(http.MethodPost, "/admin/orders/status",
		"orderId=7&nextStatus=shipped&returnTo=/admin/pedidos/7")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/pedidos/7", w.Header().Get("Location"))
	env.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	env.catalog.AssertNotCalled(t, "GetInventory", mock.Anything, mock.Anything)
}

func TestUpdateOrderStatus_ConfirmAdjustsInventory(t *testing.T) {
	env := newTestEnv(t, nil)
	withAdmin(env)

	pending := &domain.Order{
		ID:        7,
		OrderCode: "GL-20260214-100",
		Status:    domain.StatusPendingConfirmation,
		Items:     []domain.OrderItem{{ProductID: "P1", Quantity: 2}},
	}
	confirmed := &domain.Order{
		ID:        7,
		OrderCode: "GL-20260214-100",
		Status:    domain.StatusConfirmed,
		Items:     []domain.OrderItem{{ProductID: "P1", Quantity: 2}},
	}

	env.repo.On("FindByID", mock.Anything, uint64(7)).Return(pending, nil).Once()
	env.repo.On("UpdateStatus", mock.Anything, uint64(7), domain.StatusConfirmed).Return(nil).Once()
	env.repo.On("ClaimInventoryAdjustment", mock.Anything, uint64(7), mock.AnythingOfType("time.Time")).
		Return(true, nil).Once()
	env.repo.On("FindByID", mock.Anything, uint64(7)).Return(confirmed, nil).Once()
	env.repo.On("FinishInventoryAdjustment", mock.Anything, uint64(7)).Return(nil).Once()

	env.catalog.On("GetInventory", mock.Anything, []string{"P1"}).
		Return(map[string]int64{"P1": 6}, nil)
	env.catalog.On("SetInventory", mock.Anything, "P1", int64(4)).Return(nil)
	env.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	w := httptest.NewRecorder()
	req := adminRequest(http.MethodPost, "/admin/orders/status",
		"orderId=7&nextStatus=confirmed&returnTo=/admin/pedidos")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	env.repo.AssertExpectations(t)
	env.catalog.AssertExpectations(t)
}

func TestUpdateOrderStatus_ReturnToGuard(t *testing.T) {
	env := newTestEnv(t, nil)
	withAdmin(env)

	w := httptest.NewRecorder()
	req := adminRequest(http.MethodPost, "/admin/orders/status",
		"orderId=abc&nextStatus=confirmed&returnTo=https://evil.example")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/pedidos", w.Header().Get("Location"))
}

func TestAdminRoutes_RequireAdminCapability(t *testing.T) {
	env := newTestEnv(t, nil)
	env.identity.On("ResolveUser", mock.Anything, "customer-tok").
		Return(&infra.AuthUser{ID: "user_1", Emails: []string{"ana@example.com"}, Role: "customer"}, nil)

	// No credentials at all.
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Authenticated but not an admin.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer customer-tok")
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRetryInventoryAdjustment_Redirects(t *testing.T) {
	env := newTestEnv(t, nil)
	withAdmin(env)

	adjusted := &domain.Order{
		ID:        9,
		OrderCode: "GL-20260214-200",
		Status:    domain.StatusConfirmed,
		Items:     []domain.OrderItem{{ProductID: "P1", Quantity: 1}},
	}
	env.repo.On("FindByID", mock.Anything, uint64(9)).Return(adjusted, nil).Once()
	env.repo.On("ClaimInventoryAdjustment", mock.Anything, uint64(9), mock.AnythingOfType("time.Time")).
		Return(false, nil).Once()

	w := httptest.NewRecorder()
	req := adminRequest(http.MethodPost, "/admin/orders/inventory-retry",
		"orderId=9&returnTo=/admin/pedidos")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	env.catalog.AssertNotCalled(t, "GetInventory", mock.Anything, mock.Anything)
}

func TestListMyOrders_RequiresUser(t *testing.T) {
	env := newTestEnv(t, nil)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/my/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListMyOrders_ReturnsPage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.identity.On("ResolveUser", mock.Anything, "tok-1").
		Return(&infra.AuthUser{ID: "user_2aXb"}, nil)

	page := &repository.CustomerPage{
		Orders: []domain.Order{{
			ID:             1,
			OrderCode:      "GL-20260214-007",
			ItemCount:      2,
			SubtotalAmount: 800,
			Currency:       domain.DefaultCurrency,
			Status:         domain.StatusPendingConfirmation,
		}},
		Total:    1,
		Page:     1,
		PageSize: 10,
	}
	env.repo.On("ListForCustomer", mock.Anything, "user_2aXb", 1, 10).Return(page, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/my/orders", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp CustomerOrdersPage
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	if assert.Len(t, resp.Orders, 1) {
		assert.Equal(t, "GL-20260214-007", resp.Orders[0].OrderCode)
		assert.Equal(t, "Pendiente de confirmacion", resp.Orders[0].StatusLabel)
	}
	assert.False(t, resp.HasNextPage)
}

func TestMyOrderByCode_OtherOwnersOrderIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	env.identity.On("ResolveUser", mock.Anything, "tok-u1").
		Return(&infra.AuthUser{ID: "U1"}, nil)

	env.repo.On("FindByCodeForCustomer", mock.Anything, "U1", "GL-20260214-007").
		Return(nil, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/my/orders/GL-20260214-007", nil)
	req.Header.Set("Authorization", "Bearer tok-u1")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
