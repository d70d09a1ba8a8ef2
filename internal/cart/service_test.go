package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgdb "github.com/kelvinchng/storefront-backend/pkg/db"
	"github.com/kelvinchng/storefront-backend/pkg/db/dbtest"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
)

func TestAddSnapshotsDiscountedPrice(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	productID := seedProduct(t, db, "10.00", "10", 5)

	item, err := svc.Add(ctx, userID, productID, 2, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !item.UnitPrice.Equal(decimal.RequireFromString("9.00")) {
		t.Fatalf("expected unit price 9.00, got %s", item.UnitPrice)
	}
	if !item.Subtotal.Equal(decimal.RequireFromString("18.00")) {
		t.Fatalf("expected subtotal 18.00, got %s", item.Subtotal)
	}
	if got := productQty(t, db, productID); got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}

	// second add on the same line increments quantity
	item, err = svc.Add(ctx, userID, productID, 1, false)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if item.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", item.Quantity)
	}
	var count int64
	if err := db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 cart row, got %d", count)
	}
}

func TestAddInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	productID := seedProduct(t, db, "5.00", "0", 2)

	_, err := svc.Add(ctx, userID, productID, 3, false)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := productQty(t, db, productID); got != 2 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
	var count int64
	if err := db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no cart rows, got %d", count)
	}
}

func TestSetQuantityDiffs(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	productID := seedProduct(t, db, "4.00", "0", 10)

	if _, err := svc.Add(ctx, userID, productID, 4, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	item, err := svc.SetQuantity(ctx, userID, productID, 7, false)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if item.Quantity != 7 {
		t.Fatalf("expected 7, got %d", item.Quantity)
	}
	if got := productQty(t, db, productID); got != 3 {
		t.Fatalf("expected stock 3 after growing, got %d", got)
	}

	item, err = svc.SetQuantity(ctx, userID, productID, 2, false)
	if err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if item.Quantity != 2 {
		t.Fatalf("expected 2, got %d", item.Quantity)
	}
	if got := productQty(t, db, productID); got != 8 {
		t.Fatalf("expected stock 8 after shrinking, got %d", got)
	}

	// below 1 behaves as remove
	if _, err := svc.SetQuantity(ctx, userID, productID, 0, false); err != nil {
		t.Fatalf("remove via zero: %v", err)
	}
	if got := productQty(t, db, productID); got != 10 {
		t.Fatalf("expected stock fully restored, got %d", got)
	}
}

func TestClearKeepsStockConsumed(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	productID := seedProduct(t, db, "4.00", "0", 10)

	if _, err := svc.Add(ctx, userID, productID, 6, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Clear(ctx, userID); err != nil {
		t.Fatalf("clear: %v", err)
	}

	items, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(items))
	}
	if got := productQty(t, db, productID); got != 4 {
		t.Fatalf("clear must not release stock, got %d", got)
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(pkgdb.NewFromConn(db), db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, price, discountRate string, qty int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	product := models.Product{
		ID:           id,
		Name:         "widget",
		Price:        decimal.RequireFromString(price),
		DiscountRate: decimal.RequireFromString(discountRate),
		AvailableQty: qty,
		InitialQty:   qty,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&product).Error)
	return id
}

func productQty(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.AvailableQty
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t, dbtest.Products, dbtest.CartItems)
}
