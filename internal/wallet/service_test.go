package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/pkg/config"
	pkgdb "github.com/kelvinchng/storefront-backend/pkg/db"
	"github.com/kelvinchng/storefront-backend/pkg/db/dbtest"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/security"
)

func TestCreditAppendsLedgerRow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := seedUser(t, db, "0.00")

	entry, err := svc.Credit(ctx, userID, decimal.RequireFromString("25.00"), Meta{
		Method: enums.PaymentMethodPaypal,
		Note:   "paypal top-up",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if entry.Type != enums.WalletTxnTypeTopup {
		t.Fatalf("expected topup type, got %s", entry.Type)
	}
	if entry.Status != enums.WalletTxnStatusCompleted {
		t.Fatalf("expected completed, got %s", entry.Status)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected balance 25.00, got %s", balance)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := seedUser(t, db, "30.00")

	_, err := svc.Debit(ctx, userID, decimal.RequireFromString("50.00"), Meta{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("balance must be unchanged, got %s", balance)
	}

	entries, err := svc.Transactions(ctx, userID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one audit row, got %d", len(entries))
	}
	if entries[0].Status != enums.WalletTxnStatusFailed {
		t.Fatalf("expected failed row, got %s", entries[0].Status)
	}
	if !entries[0].Amount.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected failed amount 50.00, got %s", entries[0].Amount)
	}
}

func TestDebitSuccess(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := seedUser(t, db, "80.00")

	entry, err := svc.Debit(ctx, userID, decimal.RequireFromString("30.00"), Meta{Note: "checkout"})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if entry.Type != enums.WalletTxnTypePayment {
		t.Fatalf("expected payment type, got %s", entry.Type)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected balance 50.00, got %s", balance)
	}
}

func TestAttachOrderIsSingleShot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := seedUser(t, db, "100.00")

	entry, err := svc.Debit(ctx, userID, decimal.RequireFromString("40.00"), Meta{})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}

	orderID := uuid.New()
	if err := svc.AttachOrder(ctx, entry.ID, orderID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	err = svc.AttachOrder(ctx, entry.ID, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeStaleReference) {
		t.Fatalf("expected stale reference on re-attach, got %v", err)
	}

	var row models.WalletTransaction
	if err := db.First(&row, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if row.OrderID == nil || *row.OrderID != orderID {
		t.Fatalf("expected order %s attached, got %v", orderID, row.OrderID)
	}
}

func TestPinPolicy(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := seedUser(t, db, "0.00")

	if svc.RequiresPIN(decimal.RequireFromString("99.99")) {
		t.Fatal("amounts below the threshold must not require a pin")
	}
	if !svc.RequiresPIN(decimal.RequireFromString("100.00")) {
		t.Fatal("threshold amount must require a pin")
	}

	if err := svc.VerifyPIN(ctx, userID, "1234"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unset pin, got %v", err)
	}

	if err := svc.SetPIN(ctx, userID, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if err := svc.VerifyPIN(ctx, userID, "1234"); err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	if err := svc.VerifyPIN(ctx, userID, "4321"); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for wrong pin, got %v", err)
	}
	if err := svc.SetPIN(ctx, userID, "12ab"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for malformed pin, got %v", err)
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	cfg := config.WalletConfig{
		PinThreshold: decimal.RequireFromString("100.00"),
		MinTopup:     decimal.RequireFromString("10.00"),
	}
	svc, err := NewService(pkgdb.NewFromConn(db), db, cfg, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, db *gorm.DB, balance string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	hash, err := security.HashPassword("secret-password", config.PasswordConfig{})
	require.NoError(t, err)
	user := models.User{
		ID:            id,
		Email:         id.String() + "@example.com",
		PasswordHash:  hash,
		Name:          "test user",
		Role:          enums.UserRoleCustomer,
		WalletBalance: decimal.RequireFromString(balance),
		IsActive:      true,
	}
	require.NoError(t, db.Create(&user).Error)
	return id
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t, dbtest.Users, dbtest.WalletTransactions)
}
