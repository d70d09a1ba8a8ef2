package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/pkg/db/models"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service carries the administrative stock-reset operations and the
// process-start baseline they fall back to when a product has no recorded
// initial quantity.
type Service interface {
	SnapshotBaseline(ctx context.Context) error
	ResetToInitial(ctx context.Context, productIDs []uuid.UUID) error
}

type service struct {
	tx txRunner
	db *gorm.DB

	mu       sync.RWMutex
	baseline map[uuid.UUID]int
}

// NewService builds the inventory service.
func NewService(tx txRunner, db *gorm.DB) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &service{tx: tx, db: db, baseline: map[uuid.UUID]int{}}, nil
}

// SnapshotBaseline records current stock levels in memory. Products created
// after the snapshot simply have no fallback entry.
func (s *service) SnapshotBaseline(ctx context.Context) error {
	var products []models.Product
	if err := s.db.WithContext(ctx).Select("id", "available_qty").Find(&products).Error; err != nil {
		return err
	}

	snapshot := make(map[uuid.UUID]int, len(products))
	for _, p := range products {
		snapshot[p.ID] = p.AvailableQty
	}

	s.mu.Lock()
	s.baseline = snapshot
	s.mu.Unlock()
	return nil
}

// ResetToInitial restores available stock from the persisted baseline column,
// or from the boot snapshot for products whose baseline holds no value. An
// empty productIDs slice resets every product.
func (s *service) ResetToInitial(ctx context.Context, productIDs []uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var products []models.Product
		query := tx.WithContext(ctx).Select("id", "available_qty", "initial_qty")
		if len(productIDs) > 0 {
			query = query.Where("id IN ?", productIDs)
		}
		if err := query.Find(&products).Error; err != nil {
			return err
		}

		for _, p := range products {
			target := p.InitialQty
			if target <= 0 {
				s.mu.RLock()
				fallback, ok := s.baseline[p.ID]
				s.mu.RUnlock()
				if !ok {
					continue
				}
				target = fallback
			}
			if target == p.AvailableQty {
				continue
			}
			err := tx.WithContext(ctx).Model(&models.Product{}).
				Where("id = ?", p.ID).
				UpdateColumn("available_qty", target).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
