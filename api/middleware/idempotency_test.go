package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/kelvinchng/storefront-backend/pkg/redis"
)

type fakeIdempotencyStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{values: map[string]string{}}
}

func (f *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return "", pkgredis.ErrNotFound
	}
	return value, nil
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		f.values[key] = v
	case []byte:
		f.values[key] = string(v)
	}
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func idempotentHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	})
}

func walletPayRequest(key, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/wallet/pay", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(WithUserID(req.Context(), userID.String()))
}

func TestIdempotencyRequiresHeaderOnGuardedRoute(t *testing.T) {
	calls := 0
	handler := Idempotency(newFakeIdempotencyStore(), nil)(idempotentHandler(&calls))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, walletPayRequest("", `{"pin":"1234"}`, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if calls != 0 {
		t.Fatal("handler must not run without an idempotency key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	calls := 0
	userID := uuid.New()
	handler := Idempotency(newFakeIdempotencyStore(), nil)(idempotentHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, walletPayRequest("key-1", `{"pin":"1234"}`, userID))
	if first.Code != http.StatusCreated {
		t.Fatalf("first call expected 201 got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, walletPayRequest("key-1", `{"pin":"1234"}`, userID))
	if second.Code != http.StatusCreated {
		t.Fatalf("replay expected 201 got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body %q differs from original %q", second.Body.String(), first.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	calls := 0
	userID := uuid.New()
	handler := Idempotency(newFakeIdempotencyStore(), nil)(idempotentHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, walletPayRequest("key-1", `{"pin":"1234"}`, userID))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, walletPayRequest("key-1", `{"pin":"4321"}`, userID))
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", second.Code)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	calls := 0
	handler := Idempotency(newFakeIdempotencyStore(), nil)(idempotentHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, walletPayRequest("key-1", `{"pin":"1234"}`, uuid.New()))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, walletPayRequest("key-1", `{"pin":"1234"}`, uuid.New()))

	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2 (different users share no key)", calls)
	}
}

func TestIdempotencyIgnoresUnguardedRoute(t *testing.T) {
	calls := 0
	handler := Idempotency(newFakeIdempotencyStore(), nil)(idempotentHandler(&calls))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil)
	req = req.WithContext(WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected pass-through 201 got %d", resp.Code)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}
