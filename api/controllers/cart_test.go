package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kelvinchng/storefront-backend/api/middleware"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
)

type stubCartService struct {
	item       *models.CartItem
	items      []models.CartItem
	err        error
	gotQty     int
	gotBypass  bool
	gotProduct uuid.UUID
}

func (s *stubCartService) Add(ctx context.Context, userID, productID uuid.UUID, qty int, skipStockCheck bool) (*models.CartItem, error) {
	s.gotProduct = productID
	s.gotQty = qty
	s.gotBypass = skipStockCheck
	return s.item, s.err
}

func (s *stubCartService) SetQuantity(ctx context.Context, userID, productID uuid.UUID, newQty int, skipStockCheck bool) (*models.CartItem, error) {
	s.gotProduct = productID
	s.gotQty = newQty
	s.gotBypass = skipStockCheck
	return s.item, s.err
}

func (s *stubCartService) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	s.gotProduct = productID
	return s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.err
}

func (s *stubCartService) List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	return s.items, s.err
}

func authedRequest(method, target, body string, userID uuid.UUID, role string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, role)
	return req.WithContext(ctx)
}

func TestAddCartItemSuccess(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{item: &models.CartItem{ID: uuid.New(), ProductID: productID, Quantity: 2}}
	handler := AddCartItem(svc, nil)

	body := `{"product_id":"` + productID.String() + `","quantity":2}`
	req := authedRequest(http.MethodPost, "/api/v1/cart/items", body, uuid.New(), "customer")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotProduct != productID || svc.gotQty != 2 {
		t.Fatalf("service got product=%s qty=%d", svc.gotProduct, svc.gotQty)
	}
	if svc.gotBypass {
		t.Fatal("customer add must not bypass the stock check")
	}
}

func TestAddCartItemAdminBypassesStockCheck(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{item: &models.CartItem{ID: uuid.New()}}
	handler := AddCartItem(svc, nil)

	body := `{"product_id":"` + productID.String() + `","quantity":5}`
	req := authedRequest(http.MethodPost, "/api/v1/cart/items", body, uuid.New(), "admin")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if !svc.gotBypass {
		t.Fatal("admin add should bypass the stock check")
	}
}

func TestAddCartItemInsufficientStock(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "only 1 left")}
	handler := AddCartItem(svc, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":3}`
	req := authedRequest(http.MethodPost, "/api/v1/cart/items", body, uuid.New(), "customer")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestAddCartItemRejectsBadPayload(t *testing.T) {
	handler := AddCartItem(&stubCartService{}, nil)

	for _, body := range []string{
		`{"product_id":"not-a-uuid","quantity":1}`,
		`{"product_id":"` + uuid.NewString() + `","quantity":0}`,
		`{"product_id":"` + uuid.NewString() + `","quantity":1,"extra":true}`,
	} {
		req := authedRequest(http.MethodPost, "/api/v1/cart/items", body, uuid.New(), "customer")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, resp.Code)
		}
	}
}

func TestAddCartItemMissingIdentity(t *testing.T) {
	handler := AddCartItem(&stubCartService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestListCartReturnsItems(t *testing.T) {
	items := []models.CartItem{{ID: uuid.New(), Quantity: 1}, {ID: uuid.New(), Quantity: 4}}
	handler := ListCart(&stubCartService{items: items}, nil)

	req := authedRequest(http.MethodGet, "/api/v1/cart", "", uuid.New(), "customer")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data struct {
			Items []models.CartItem `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(envelope.Data.Items))
	}
}
