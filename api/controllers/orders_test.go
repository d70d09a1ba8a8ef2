package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/internal/orders"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
)

type stubOrdersService struct {
	priced  *orders.PricedCart
	order   *models.Order
	listing []orders.AdminOrder
	err     error
}

func (s *stubOrdersService) PriceCartForCheckout(ctx context.Context, userID uuid.UUID) (*orders.PricedCart, error) {
	return s.priced, s.err
}

func (s *stubOrdersService) CreateWithItems(ctx context.Context, userID uuid.UUID, cart orders.PricedCart, isTest bool) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrdersService) RecalcTotal(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return false, s.err
}

func (s *stubOrdersService) Remove(ctx context.Context, orderID uuid.UUID) error {
	return s.err
}

func (s *stubOrdersService) RemoveAll(ctx context.Context) error {
	return s.err
}

func (s *stubOrdersService) UpdateItem(ctx context.Context, orderID, itemID uuid.UUID, quantity int, unitPrice decimal.Decimal) error {
	return s.err
}

func (s *stubOrdersService) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	return s.err
}

func (s *stubOrdersService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if s.order == nil {
		return nil, s.err
	}
	return []models.Order{*s.order}, s.err
}

func (s *stubOrdersService) GetWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrdersService) AdminList(ctx context.Context) ([]orders.AdminOrder, error) {
	return s.listing, s.err
}

func routedRequest(t *testing.T, handler http.HandlerFunc, method, pattern, target, body string, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handler)

	req := authedRequest(method, target, body, userID, role)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCheckoutPreviewEmptyCart(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	handler := CheckoutPreview(svc, nil)

	req := authedRequest(http.MethodGet, "/api/v1/checkout/preview", "", uuid.New(), "customer")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetOrderHidesForeignOrder(t *testing.T) {
	owner := uuid.New()
	order := &models.Order{ID: uuid.New(), UserID: owner}
	handler := GetOrder(&stubOrdersService{order: order}, nil)

	resp := routedRequest(t, handler, http.MethodGet, "/api/v1/orders/{orderID}", "/api/v1/orders/"+order.ID.String(), "", uuid.New(), "customer")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign order got %d", resp.Code)
	}

	resp = routedRequest(t, handler, http.MethodGet, "/api/v1/orders/{orderID}", "/api/v1/orders/"+order.ID.String(), "", owner, "customer")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner got %d", resp.Code)
	}

	resp = routedRequest(t, handler, http.MethodGet, "/api/v1/orders/{orderID}", "/api/v1/orders/"+order.ID.String(), "", uuid.New(), "admin")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestAdminUpdateOrderItemRejectsBadPrice(t *testing.T) {
	handler := AdminUpdateOrderItem(&stubOrdersService{}, nil)

	body := `{"quantity":2,"unit_price":"-4.50"}`
	target := "/api/admin/v1/orders/" + uuid.NewString() + "/items/" + uuid.NewString()
	resp := routedRequest(t, handler, http.MethodPut, "/api/admin/v1/orders/{orderID}/items/{itemID}", target, body, uuid.New(), "admin")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminExportOrdersCSV(t *testing.T) {
	orderID := uuid.New()
	userID := uuid.New()
	productID := uuid.New()
	listing := []orders.AdminOrder{
		{
			Order: models.Order{
				ID:        orderID,
				UserID:    userID,
				Total:     decimal.RequireFromString("18.00"),
				CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				Items: []models.OrderItem{
					{
						ProductID:   productID,
						ProductName: "widget",
						Quantity:    2,
						UnitPrice:   decimal.RequireFromString("9.00"),
						Subtotal:    decimal.RequireFromString("18.00"),
					},
				},
			},
			UserName:  "alice",
			UserEmail: "alice@example.com",
		},
	}
	logg := logger.New(logger.Options{ServiceName: "test"})
	handler := AdminExportOrders(&stubOrdersService{listing: listing}, logg)

	req := authedRequest(http.MethodGet, "/api/admin/v1/orders/export", "", uuid.New(), "admin")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "order-summary.csv") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Order ID,User ID,Username,Email") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	row := lines[1]
	for _, want := range []string{orderID.String(), "alice", "alice@example.com", "widget", "9.00", "18.00"} {
		if !strings.Contains(row, want) {
			t.Fatalf("row %q missing %q", row, want)
		}
	}
}
