package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/internal/orders"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/redis"
)

// Kind distinguishes what a pending payment settles once confirmed.
type Kind string

const (
	KindPurchase    Kind = "purchase"
	KindWalletTopup Kind = "wallet_topup"
)

// Record is an expiring snapshot of an in-flight payment: the priced cart (or
// top-up amount), the gateway correlation references, and the acting user.
// Records live in redis so a crashed process never leaks a stale pending
// payment past its TTL.
type Record struct {
	ID             string              `json:"id"`
	UserID         uuid.UUID           `json:"user_id"`
	Kind           Kind                `json:"kind"`
	Method         enums.PaymentMethod `json:"method"`
	Amount         decimal.Decimal     `json:"amount"`
	Cart           *orders.PricedCart  `json:"cart,omitempty"`
	GatewayRef     string              `json:"gateway_ref,omitempty"`
	WalletTxnID    *uuid.UUID          `json:"wallet_txn_id,omitempty"`
	IsTest         bool                `json:"is_test"`
	SkipStockCheck bool                `json:"skip_stock_check"`
	CreatedAt      time.Time           `json:"created_at"`
}

type kv interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PaymentIntentKey(method, correlationID string) string
}

// Store persists payment-intent records with a bounded lifetime.
type Store struct {
	kv  kv
	ttl time.Duration
}

// NewStore builds an intent store. ttl bounds how long a pending payment may
// sit between initiate and finalize.
func NewStore(client kv, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{kv: client, ttl: ttl}, nil
}

// Create issues a new record id and saves the record.
func (s *Store) Create(ctx context.Context, record *Record) error {
	if record == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "intent record required")
	}
	if record.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !record.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding intent record: %w", err)
	}
	return s.kv.Set(ctx, s.kv.PaymentIntentKey(string(record.Method), record.ID), payload, s.ttl)
}

// Update rewrites an existing record in place, keeping the TTL window.
func (s *Store) Update(ctx context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "intent record required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding intent record: %w", err)
	}
	return s.kv.Set(ctx, s.kv.PaymentIntentKey(string(record.Method), record.ID), payload, s.ttl)
}

// Peek loads a record without consuming it, rejecting expired or foreign
// references.
func (s *Store) Peek(ctx context.Context, method enums.PaymentMethod, intentID string, userID uuid.UUID) (*Record, error) {
	key := s.kv.PaymentIntentKey(string(method), intentID)
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeStaleReference, "no matching pending payment")
	}
	if err != nil {
		return nil, err
	}
	return s.decodeFor(raw, userID)
}

// Consume atomically removes and returns a record. A foreign user id is
// rejected before the record is touched; a second consume of the same id
// reports a stale reference.
func (s *Store) Consume(ctx context.Context, method enums.PaymentMethod, intentID string, userID uuid.UUID) (*Record, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStaleReference, "no matching pending payment")
	}
	key := s.kv.PaymentIntentKey(string(method), intentID)

	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeStaleReference, "no matching pending payment")
	}
	if err != nil {
		return nil, err
	}
	record, err := s.decodeFor(raw, userID)
	if err != nil {
		return nil, err
	}

	// single-shot: the delete-and-return guards against a concurrent consume
	if _, err := s.kv.GetDel(ctx, key); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStaleReference, "pending payment already consumed")
		}
		return nil, err
	}
	return record, nil
}

// Discard drops a record without returning it.
func (s *Store) Discard(ctx context.Context, method enums.PaymentMethod, intentID string) error {
	if intentID == "" {
		return nil
	}
	return s.kv.Del(ctx, s.kv.PaymentIntentKey(string(method), intentID))
}

func (s *Store) decodeFor(raw string, userID uuid.UUID) (*Record, error) {
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decoding intent record: %w", err)
	}
	if userID != uuid.Nil && record.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeStaleReference, "pending payment belongs to another user")
	}
	return &record, nil
}
