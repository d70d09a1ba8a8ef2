package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the order ledger: pricing a cart for checkout, materializing
// immutable orders, and the admin maintenance operations.
type Service interface {
	PriceCartForCheckout(ctx context.Context, userID uuid.UUID) (*PricedCart, error)
	CreateWithItems(ctx context.Context, userID uuid.UUID, cart PricedCart, isTest bool) (*models.Order, error)
	RecalcTotal(ctx context.Context, orderID uuid.UUID) (deleted bool, err error)
	Remove(ctx context.Context, orderID uuid.UUID) error
	RemoveAll(ctx context.Context) error
	UpdateItem(ctx context.Context, orderID, itemID uuid.UUID, quantity int, unitPrice decimal.Decimal) error
	RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	GetWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AdminList(ctx context.Context) ([]AdminOrder, error)
}

type service struct {
	tx   txRunner
	repo Repository
	db   *gorm.DB
}

// NewService builds the order service.
func NewService(tx txRunner, repo Repository, db *gorm.DB) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &service{tx: tx, repo: repo, db: db}, nil
}

// PriceCartForCheckout reads the user's cart, groups duplicate product rows,
// and prices every line against the current catalog price and discount.
func (s *service) PriceCartForCheckout(ctx context.Context, userID uuid.UUID) (*PricedCart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var lines []models.CartItem
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	grouped := make(map[uuid.UUID]int, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, seen := grouped[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		grouped[line.ProductID] += line.Quantity
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", order).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	cart := &PricedCart{Items: make([]PricedItem, 0, len(order))}
	total := decimal.Zero
	for _, productID := range order {
		product, ok := byID[productID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeOrderIntegrity, "cart references an unknown product").WithDetails(map[string]any{
				"product_id": productID,
			})
		}
		qty := grouped[productID]
		unitPrice := product.DiscountedPrice()
		subtotal := unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
		cart.Items = append(cart.Items, PricedItem{
			ProductID:    productID,
			ProductName:  product.Name,
			Quantity:     qty,
			BasePrice:    product.Price.Round(2),
			DiscountRate: product.DiscountRate,
			UnitPrice:    unitPrice,
			Subtotal:     subtotal,
		})
		total = total.Add(subtotal)
	}
	cart.Total = total.Round(2)
	return cart, nil
}

func (s *service) CreateWithItems(ctx context.Context, userID uuid.UUID, cart PricedCart, isTest bool) (*models.Order, error) {
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = Materialize(ctx, s.repo.WithTx(tx), userID, cart, isTest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Materialize inserts an order header and its line snapshot through the given
// repository. Callers that need this inside a wider transaction pass a
// tx-bound repository.
func Materialize(ctx context.Context, repo Repository, userID uuid.UUID, cart PricedCart, isTest bool) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeOrderIntegrity, "order requires at least one item")
	}

	order := &models.Order{
		ID:     uuid.New(),
		UserID: userID,
		Total:  cart.Total.Round(2),
		IsTest: isTest,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, len(cart.Items))
	for i, line := range cart.Items {
		items[i] = models.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			Quantity:     line.Quantity,
			BasePrice:    line.BasePrice,
			DiscountRate: line.DiscountRate,
			UnitPrice:    line.UnitPrice,
			Subtotal:     line.Subtotal,
		}
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// RecalcTotal re-sums the order's lines. A zero sum means the order lost its
// last line and the header is deleted with it.
func (s *service) RecalcTotal(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = recalcTotalIn(ctx, s.repo.WithTx(tx), orderID)
		return err
	})
	return deleted, err
}

func recalcTotalIn(ctx context.Context, repo Repository, orderID uuid.UUID) (bool, error) {
	sum, err := repo.SumItems(ctx, orderID)
	if err != nil {
		return false, err
	}
	if sum.IsZero() {
		return true, repo.DeleteOrder(ctx, orderID)
	}
	return false, repo.UpdateTotal(ctx, orderID, sum.Round(2))
}

func (s *service) Remove(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).DeleteOrder(ctx, orderID)
	})
}

func (s *service) RemoveAll(ctx context.Context) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).DeleteAll(ctx)
	})
}

// UpdateItem applies an admin edit to a line's quantity and unit price, then
// recomputes the order total in the same transaction.
func (s *service) UpdateItem(ctx context.Context, orderID, itemID uuid.UUID, quantity int, unitPrice decimal.Decimal) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}
	if unitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return err
		}
		if item.OrderID != orderID {
			return pkgerrors.New(pkgerrors.CodeValidation, "item does not belong to order")
		}

		subtotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
		if err := repo.UpdateItem(ctx, itemID, quantity, unitPrice.Round(2), subtotal); err != nil {
			return err
		}
		_, err = recalcTotalIn(ctx, repo, orderID)
		return err
	})
}

func (s *service) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return err
		}
		if item.OrderID != orderID {
			return pkgerrors.New(pkgerrors.CodeValidation, "item does not belong to order")
		}
		if err := repo.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		_, err = recalcTotalIn(ctx, repo, orderID)
		return err
	})
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) GetWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDWithItems(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AdminList returns every order joined with the purchasing user, newest
// first.
func (s *service) AdminList(ctx context.Context) ([]AdminOrder, error) {
	orders, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	userIDs := make([]uuid.UUID, 0, len(orders))
	seen := map[uuid.UUID]bool{}
	for _, o := range orders {
		if !seen[o.UserID] {
			seen[o.UserID] = true
			userIDs = append(userIDs, o.UserID)
		}
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]AdminOrder, len(orders))
	for i, o := range orders {
		entry := AdminOrder{Order: o}
		if u, ok := byID[o.UserID]; ok {
			entry.UserName = u.Name
			entry.UserEmail = u.Email
		}
		out[i] = entry
	}
	return out, nil
}
