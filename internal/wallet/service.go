package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/pkg/config"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Meta carries the ledger-entry context for a credit, debit, or failure log.
type Meta struct {
	OrderID *uuid.UUID
	Type    enums.WalletTxnType
	Method  enums.PaymentMethod
	Note    string
}

// Service owns the wallet balance column and its append-only ledger. The
// cached balance and the ledger move together inside one transaction.
type Service interface {
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta Meta) (*models.WalletTransaction, error)
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta Meta) (*models.WalletTransaction, error)
	LogFailure(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta Meta) (*models.WalletTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	Transactions(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error)
	AttachOrder(ctx context.Context, txnID, orderID uuid.UUID) error

	RequiresPIN(amount decimal.Decimal) bool
	VerifyPIN(ctx context.Context, userID uuid.UUID, pin string) error
	SetPIN(ctx context.Context, userID uuid.UUID, pin string) error

	MinTopup() decimal.Decimal
}

type service struct {
	tx    txRunner
	db    *gorm.DB
	cfg   config.WalletConfig
	pwCfg config.PasswordConfig
}

// NewService builds the wallet service.
func NewService(tx txRunner, db *gorm.DB, cfg config.WalletConfig, pwCfg config.PasswordConfig) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &service{tx: tx, db: db, cfg: cfg, pwCfg: pwCfg}, nil
}

// Credit increments the cached balance and appends a completed ledger row.
func (s *service) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta Meta) (*models.WalletTransaction, error) {
	if err := validateAmount(userID, amount); err != nil {
		return nil, err
	}

	var entry *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}

		var err error
		entry, err = appendEntry(ctx, tx, userID, amount, meta, enums.WalletTxnStatusCompleted, defaultType(meta.Type, enums.WalletTxnTypeTopup))
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Debit decrements the balance when it covers the amount. The guarded update
// serializes concurrent debits so at most one of two competing debits that
// together exceed the balance can succeed. An insufficient balance appends a
// failed ledger row for audit and leaves the balance untouched.
func (s *service) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta Meta) (*models.WalletTransaction, error) {
	if err := validateAmount(userID, amount); err != nil {
		return nil, err
	}

	var entry *models.WalletTransaction
	var shortBalance *decimal.Decimal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND wallet_balance >= ?", userID, amount).
			UpdateColumn("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var user models.User
			err := tx.WithContext(ctx).Select("id", "wallet_balance").First(&user, "id = ?", userID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			if err != nil {
				return err
			}
			balance := user.WalletBalance
			shortBalance = &balance
			return nil
		}

		var err error
		entry, err = appendEntry(ctx, tx, userID, amount, meta, enums.WalletTxnStatusCompleted, defaultType(meta.Type, enums.WalletTxnTypePayment))
		return err
	})
	if err != nil {
		return nil, err
	}

	if shortBalance != nil {
		// the failure audit row commits in its own transaction, outside
		// the debit that was rejected
		failMeta := meta
		if failMeta.Note == "" {
			failMeta.Note = "insufficient balance"
		}
		if logErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			_, err := appendEntry(ctx, tx, userID, amount, failMeta, enums.WalletTxnStatusFailed, defaultType(meta.Type, enums.WalletTxnTypePayment))
			return err
		}); logErr != nil {
			return nil, logErr
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").WithDetails(map[string]any{
			"balance":   *shortBalance,
			"requested": amount,
		})
	}
	return entry, nil
}

// LogFailure appends a failed ledger row without moving the balance.
func (s *service) LogFailure(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta Meta) (*models.WalletTransaction, error) {
	if err := validateAmount(userID, amount); err != nil {
		return nil, err
	}

	var entry *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = appendEntry(ctx, tx, userID, amount, meta, enums.WalletTxnStatusFailed, defaultType(meta.Type, enums.WalletTxnTypePayment))
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "wallet_balance").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}

func (s *service) Transactions(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AttachOrder back-fills the order id on the ledger row identified by its
// correlation id. The row must exist and still be unattached.
func (s *service) AttachOrder(ctx context.Context, txnID, orderID uuid.UUID) error {
	if txnID == uuid.Nil || orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction and order ids required")
	}
	result := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("id = ? AND order_id IS NULL", txnID).
		UpdateColumn("order_id", orderID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStaleReference, "wallet transaction not found or already attached")
	}
	return nil
}

// RequiresPIN reports whether the amount is at or above the PIN threshold.
func (s *service) RequiresPIN(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(s.cfg.PinThreshold)
}

func (s *service) VerifyPIN(ctx context.Context, userID uuid.UUID, pin string) error {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "wallet_pin_hash").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return err
	}
	if user.WalletPinHash == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet pin is not set")
	}
	ok, err := security.VerifyWalletPin(pin, *user.WalletPinHash)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeForbidden, "wallet pin mismatch")
	}
	return nil
}

func (s *service) SetPIN(ctx context.Context, userID uuid.UUID, pin string) error {
	if err := security.ValidateWalletPin(pin); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wallet pin")
	}
	hash, err := security.HashWalletPin(pin, s.pwCfg)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("wallet_pin_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func (s *service) MinTopup() decimal.Decimal {
	return s.cfg.MinTopup
}

func appendEntry(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, meta Meta, status enums.WalletTxnStatus, txnType enums.WalletTxnType) (*models.WalletTransaction, error) {
	method := meta.Method
	if method == "" {
		method = enums.PaymentMethodWallet
	}
	entry := models.WalletTransaction{
		ID:      uuid.New(),
		UserID:  userID,
		OrderID: meta.OrderID,
		Type:    txnType,
		Method:  method,
		Amount:  amount.Round(2),
		Status:  status,
	}
	if meta.Note != "" {
		note := meta.Note
		entry.Note = &note
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func defaultType(t enums.WalletTxnType, fallback enums.WalletTxnType) enums.WalletTxnType {
	if t == "" {
		return fallback
	}
	return t
}

func validateAmount(userID uuid.UUID, amount decimal.Decimal) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}
