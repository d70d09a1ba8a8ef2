package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/internal/inventory"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service mutates a user's cart, pairing every quantity change with the
// matching stock reservation or release in the same transaction.
type Service interface {
	Add(ctx context.Context, userID, productID uuid.UUID, qty int, skipStockCheck bool) (*models.CartItem, error)
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, newQty int, skipStockCheck bool) (*models.CartItem, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

type service struct {
	tx txRunner
	db *gorm.DB
}

// NewService builds the cart service.
func NewService(tx txRunner, db *gorm.DB) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &service{tx: tx, db: db}, nil
}

func (s *service) Add(ctx context.Context, userID, productID uuid.UUID, qty int, skipStockCheck bool) (*models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}

	var result *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var product models.Product
		err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err != nil {
			return err
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
		}

		if err := inventory.Reserve(ctx, tx, productID, qty, skipStockCheck); err != nil {
			return err
		}

		unitPrice := product.DiscountedPrice()

		var item models.CartItem
		err = tx.WithContext(ctx).
			Where("user_id = ? AND product_id = ?", userID, productID).
			First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{
				ID:        uuid.New(),
				UserID:    userID,
				ProductID: productID,
				Quantity:  qty,
				UnitPrice: unitPrice,
				Subtotal:  lineSubtotal(unitPrice, qty),
			}
			if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			item.Quantity += qty
			item.UnitPrice = unitPrice
			item.Subtotal = lineSubtotal(unitPrice, item.Quantity)
			err := tx.WithContext(ctx).Model(&models.CartItem{}).
				Where("id = ?", item.ID).
				Updates(map[string]any{
					"quantity":   item.Quantity,
					"unit_price": item.UnitPrice,
					"subtotal":   item.Subtotal,
				}).Error
			if err != nil {
				return err
			}
		}

		result = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetQuantity reserves or releases the difference against the current line.
// A target below 1 removes the line, mirroring Remove.
func (s *service) SetQuantity(ctx context.Context, userID, productID uuid.UUID, newQty int, skipStockCheck bool) (*models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if newQty < 1 {
		return nil, s.Remove(ctx, userID, productID)
	}

	var result *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var item models.CartItem
		err := tx.WithContext(ctx).
			Where("user_id = ? AND product_id = ?", userID, productID).
			First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if err != nil {
			return err
		}

		diff := newQty - item.Quantity
		switch {
		case diff > 0:
			if err := inventory.Reserve(ctx, tx, productID, diff, skipStockCheck); err != nil {
				return err
			}
		case diff < 0:
			if err := inventory.Release(ctx, tx, productID, -diff); err != nil {
				return err
			}
		default:
			result = &item
			return nil
		}

		item.Quantity = newQty
		item.Subtotal = lineSubtotal(item.UnitPrice, newQty)
		err = tx.WithContext(ctx).Model(&models.CartItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"quantity": item.Quantity,
				"subtotal": item.Subtotal,
			}).Error
		if err != nil {
			return err
		}

		result = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var item models.CartItem
		err := tx.WithContext(ctx).
			Where("user_id = ? AND product_id = ?", userID, productID).
			First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := inventory.Release(ctx, tx, productID, item.Quantity); err != nil {
			return err
		}
		return tx.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", item.ID).Error
	})
}

// Clear bulk-deletes the user's cart without releasing stock. It runs after
// an order is finalized, when the reserved units have been permanently
// consumed by the purchase.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return ClearItems(ctx, tx, userID)
	})
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	var items []models.CartItem
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ClearItems deletes all cart rows for a user inside the caller's
// transaction, with no stock movement.
func ClearItems(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return tx.WithContext(ctx).Delete(&models.CartItem{}, "user_id = ?", userID).Error
}

func lineSubtotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
