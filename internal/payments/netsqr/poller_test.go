package netsqr

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/pkg/db/dbtest"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgnetsqr "github.com/kelvinchng/storefront-backend/pkg/netsqr"
)

type fakeGateway struct {
	queries  []queryCall
	respond  func(attempt int, frontendTimeout bool) (*pkgnetsqr.QueryResponse, error)
	qrResult *pkgnetsqr.QRResponse
	qrErr    error
}

type queryCall struct {
	frontendTimeout bool
}

func (f *fakeGateway) RequestQR(context.Context, decimal.Decimal) (*pkgnetsqr.QRResponse, error) {
	return f.qrResult, f.qrErr
}

func (f *fakeGateway) QueryStatus(_ context.Context, _ string, frontendTimeout bool) (*pkgnetsqr.QueryResponse, error) {
	f.queries = append(f.queries, queryCall{frontendTimeout: frontendTimeout})
	return f.respond(len(f.queries), frontendTimeout)
}

func paidResponse() *pkgnetsqr.QueryResponse {
	paid := pkgnetsqr.TxnStatusPaid
	return &pkgnetsqr.QueryResponse{ResponseCode: pkgnetsqr.ResponseCodeSuccess, TxnStatus: &paid}
}

func pendingResponse() *pkgnetsqr.QueryResponse {
	return &pkgnetsqr.QueryResponse{ResponseCode: "09"}
}

func TestPollerSuccessMidLoop(t *testing.T) {
	t.Parallel()

	db := newPollerTestDB(t)
	txnID := seedNetsTxn(t, db)
	gw := &fakeGateway{respond: func(attempt int, _ bool) (*pkgnetsqr.QueryResponse, error) {
		if attempt < 3 {
			return pendingResponse(), nil
		}
		return paidResponse(), nil
	}}

	events := runPoller(t, db, gw, 60, txnID)

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	for _, e := range events[:2] {
		if e.Type != EventPoll {
			t.Fatalf("expected poll event, got %+v", e)
		}
	}
	last := events[2]
	if last.Type != EventSuccess || last.Attempt != 3 {
		t.Fatalf("expected success at attempt 3, got %+v", last)
	}
	if got := loadTxnStatus(t, db, txnID); got != enums.PaymentTxnStatusSuccess {
		t.Fatalf("expected persisted success, got %s", got)
	}
}

func TestPollerTimeoutSendsFinalFlaggedPoll(t *testing.T) {
	t.Parallel()

	db := newPollerTestDB(t)
	txnID := seedNetsTxn(t, db)
	gw := &fakeGateway{respond: func(int, bool) (*pkgnetsqr.QueryResponse, error) {
		return pendingResponse(), nil
	}}

	maxPolls := 4
	events := runPoller(t, db, gw, maxPolls, txnID)

	if len(gw.queries) != maxPolls+1 {
		t.Fatalf("expected %d queries, got %d", maxPolls+1, len(gw.queries))
	}
	for _, q := range gw.queries[:maxPolls] {
		if q.frontendTimeout {
			t.Fatal("regular poll must not raise the timeout flag")
		}
	}
	if !gw.queries[maxPolls].frontendTimeout {
		t.Fatal("final poll must raise the timeout flag")
	}

	last := events[len(events)-1]
	if last.Type != EventFail || last.Status != enums.PaymentTxnStatusFailed {
		t.Fatalf("expected terminal fail event, got %+v", last)
	}
	terminal := 0
	for _, e := range events {
		if e.Type != EventPoll {
			terminal++
		}
	}
	if terminal != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", terminal)
	}
	if got := loadTxnStatus(t, db, txnID); got != enums.PaymentTxnStatusFailed {
		t.Fatalf("expected persisted failed, got %s", got)
	}
}

func TestPollerTimeoutFinalPollPaid(t *testing.T) {
	t.Parallel()

	db := newPollerTestDB(t)
	txnID := seedNetsTxn(t, db)
	gw := &fakeGateway{respond: func(_ int, frontendTimeout bool) (*pkgnetsqr.QueryResponse, error) {
		if frontendTimeout {
			return paidResponse(), nil
		}
		return pendingResponse(), nil
	}}

	events := runPoller(t, db, gw, 2, txnID)

	last := events[len(events)-1]
	if last.Type != EventSuccess {
		t.Fatalf("expected success on final flagged poll, got %+v", last)
	}
	if got := loadTxnStatus(t, db, txnID); got != enums.PaymentTxnStatusSuccess {
		t.Fatalf("expected persisted success, got %s", got)
	}
}

func TestPollerQueryError(t *testing.T) {
	t.Parallel()

	db := newPollerTestDB(t)
	txnID := seedNetsTxn(t, db)
	gw := &fakeGateway{respond: func(int, bool) (*pkgnetsqr.QueryResponse, error) {
		return nil, fmt.Errorf("gateway unreachable")
	}}

	events := runPoller(t, db, gw, 60, txnID)

	if len(events) != 1 {
		t.Fatalf("expected a single terminal event, got %d", len(events))
	}
	if events[0].Type != EventFail || events[0].Status != enums.PaymentTxnStatusError {
		t.Fatalf("expected error fail event, got %+v", events[0])
	}
	if got := loadTxnStatus(t, db, txnID); got != enums.PaymentTxnStatusError {
		t.Fatalf("expected persisted error, got %s", got)
	}
}

func TestPollerCancelKeepsPersistedStatus(t *testing.T) {
	t.Parallel()

	db := newPollerTestDB(t)
	txnID := seedNetsTxn(t, db)
	gw := &fakeGateway{respond: func(int, bool) (*pkgnetsqr.QueryResponse, error) {
		return pendingResponse(), nil
	}}

	poller, err := NewPoller(db, gw, time.Millisecond, 60, nil, nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 128)
	done := make(chan struct{})
	go func() {
		poller.Run(ctx, txnID, "ref", events)
		close(done)
	}()

	for e := range events {
		if e.Attempt >= 2 {
			cancel()
			break
		}
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
	cancel()

	if got := loadTxnStatus(t, db, txnID); got != enums.PaymentTxnStatusPending {
		t.Fatalf("cancel must not change persisted status, got %s", got)
	}
}

func runPoller(t *testing.T, db *gorm.DB, gw *fakeGateway, maxPolls int, txnID uuid.UUID) []Event {
	t.Helper()

	poller, err := NewPoller(db, gw, time.Millisecond, maxPolls, nil, nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	events := make(chan Event, maxPolls+2)
	poller.Run(context.Background(), txnID, "ref", events)

	var collected []Event
	for e := range events {
		collected = append(collected, e)
	}
	return collected
}

func seedNetsTxn(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()

	txn := models.NetsTransaction{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		TxnID:        "sandbox nets|m|order",
		RetrievalRef: "ref",
		Amount:       decimal.RequireFromString("23.00"),
		Status:       enums.PaymentTxnStatusPending,
	}
	if err := db.Create(&txn).Error; err != nil {
		t.Fatalf("seed txn: %v", err)
	}
	return txn.ID
}

func loadTxnStatus(t *testing.T, db *gorm.DB, txnID uuid.UUID) enums.PaymentTxnStatus {
	t.Helper()

	var txn models.NetsTransaction
	if err := db.First(&txn, "id = ?", txnID).Error; err != nil {
		t.Fatalf("load txn: %v", err)
	}
	return txn.Status
}

func newPollerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	return dbtest.Open(t, dbtest.NetsTransactions)
}
