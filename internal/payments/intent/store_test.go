package intent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/redis"
)

type fakeKV struct {
	values map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}}
}

func (f *fakeKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	default:
		f.values[key] = fmt.Sprint(v)
	}
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) GetDel(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.ErrNotFound
	}
	delete(f.values, key)
	return v, nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeKV) PaymentIntentKey(method, correlationID string) string {
	return "sf:payment_intent:" + method + ":" + correlationID
}

func TestConsumeIsSingleShot(t *testing.T) {
	t.Parallel()

	store, err := NewStore(newFakeKV(), time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	userID := uuid.New()

	record := &Record{
		UserID: userID,
		Kind:   KindPurchase,
		Method: enums.PaymentMethodNets,
		Amount: decimal.RequireFromString("18.00"),
	}
	if err := store.Create(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected a server-issued id")
	}

	got, err := store.Consume(ctx, enums.PaymentMethodNets, record.ID, userID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !got.Amount.Equal(record.Amount) {
		t.Fatalf("expected amount %s, got %s", record.Amount, got.Amount)
	}

	_, err = store.Consume(ctx, enums.PaymentMethodNets, record.ID, userID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStaleReference) {
		t.Fatalf("expected stale reference on second consume, got %v", err)
	}
}

func TestConsumeRejectsForeignUser(t *testing.T) {
	t.Parallel()

	store, err := NewStore(newFakeKV(), time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	owner := uuid.New()

	record := &Record{
		UserID: owner,
		Kind:   KindWalletTopup,
		Method: enums.PaymentMethodPaypal,
		Amount: decimal.RequireFromString("50.00"),
	}
	if err := store.Create(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = store.Consume(ctx, enums.PaymentMethodPaypal, record.ID, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeStaleReference) {
		t.Fatalf("expected stale reference for foreign user, got %v", err)
	}

	// the rejection must leave the record intact for its owner
	if _, err := store.Consume(ctx, enums.PaymentMethodPaypal, record.ID, owner); err != nil {
		t.Fatalf("owner consume after foreign attempt: %v", err)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	t.Parallel()

	store, err := NewStore(newFakeKV(), time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	userID := uuid.New()

	record := &Record{
		UserID: userID,
		Kind:   KindPurchase,
		Method: enums.PaymentMethodStripe,
		Amount: decimal.RequireFromString("9.99"),
	}
	if err := store.Create(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Peek(ctx, enums.PaymentMethodStripe, record.ID, userID); err != nil {
		t.Fatalf("peek: %v", err)
	}
	if _, err := store.Consume(ctx, enums.PaymentMethodStripe, record.ID, userID); err != nil {
		t.Fatalf("consume after peek: %v", err)
	}
}
