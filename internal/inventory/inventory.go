package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
)

// Reserve decrements available stock for one product inside the caller's
// transaction. The guarded update keeps the counter non-negative under
// concurrent reservations; skipStockCheck drops the guard so administrative
// walkthrough purchases can drive it below zero.
func Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, skipStockCheck bool) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}

	query := tx.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID)
	if !skipStockCheck {
		query = query.Where("available_qty >= ?", qty)
	}
	result := query.UpdateColumn("available_qty", gorm.Expr("available_qty - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if skipStockCheck {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		var product models.Product
		err := tx.WithContext(ctx).Select("id", "available_qty").First(&product, "id = ?", productID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").WithDetails(map[string]any{
			"product_id": productID,
			"available":  product.AvailableQty,
			"requested":  qty,
		})
	}
	return nil
}

// Release adds stock back unconditionally inside the caller's transaction.
func Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}

	result := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("available_qty", gorm.Expr("available_qty + ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}
