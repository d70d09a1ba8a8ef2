package netsqr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
	"github.com/kelvinchng/storefront-backend/pkg/metrics"
	pkgnetsqr "github.com/kelvinchng/storefront-backend/pkg/netsqr"
)

// EventType labels one entry on the status stream.
type EventType string

const (
	EventPoll    EventType = "poll"
	EventSuccess EventType = "success"
	EventFail    EventType = "fail"
)

// Event is one JSON message on the payment status stream. Success and fail
// events are terminal; exactly one is emitted per loop.
type Event struct {
	Type         EventType              `json:"type"`
	Attempt      int                    `json:"attempt,omitempty"`
	Status       enums.PaymentTxnStatus `json:"status,omitempty"`
	ResponseCode string                 `json:"response_code,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
}

// Poller runs the bounded status-confirmation loop for one pending QR
// transaction.
type Poller struct {
	db       *gorm.DB
	gateway  gateway
	interval time.Duration
	maxPolls int
	metrics  *metrics.GatewayMetrics
	logger   *logger.Logger
}

// NewPoller builds a poller. interval and maxPolls fall back to the gateway
// defaults of 5s and 60 attempts.
func NewPoller(db *gorm.DB, gw gateway, interval time.Duration, maxPolls int, gm *metrics.GatewayMetrics, logg *logger.Logger) (*Poller, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if gw == nil {
		return nil, fmt.Errorf("nets gateway required")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 60
	}
	return &Poller{db: db, gateway: gw, interval: interval, maxPolls: maxPolls, metrics: gm, logger: logg}, nil
}

// Run polls the gateway until a terminal condition and sends every tick to
// events. The channel is closed when the loop ends. The persisted status is
// always written before the terminal event is emitted. Cancelling ctx stops
// the loop without touching the persisted status.
func (p *Poller) Run(ctx context.Context, txnID uuid.UUID, retrievalRef string, events chan<- Event) {
	defer close(events)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		query, err := p.gateway.QueryStatus(ctx, retrievalRef, false)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.finish(ctx, txnID, enums.PaymentTxnStatusError, nil, err.Error(), attempt, events)
			return
		}

		if query.Paid() {
			p.finish(ctx, txnID, enums.PaymentTxnStatusSuccess, query, "", attempt, events)
			return
		}

		p.emit(ctx, events, Event{
			Type:         EventPoll,
			Attempt:      attempt,
			Status:       enums.PaymentTxnStatusPending,
			ResponseCode: query.ResponseCode,
		})
	}

	// attempt bound reached: record the timeout, then send one last poll
	// with the frontend-timeout flag raised so the gateway can close out
	// the QR on its side.
	p.persist(ctx, txnID, enums.PaymentTxnStatusTimeout, nil, "poll limit reached")

	query, err := p.gateway.QueryStatus(ctx, retrievalRef, true)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.finish(ctx, txnID, enums.PaymentTxnStatusError, nil, err.Error(), p.maxPolls+1, events)
		return
	}
	if query.Paid() {
		p.finish(ctx, txnID, enums.PaymentTxnStatusSuccess, query, "", p.maxPolls+1, events)
		return
	}
	p.finish(ctx, txnID, enums.PaymentTxnStatusFailed, query, "payment not completed in time", p.maxPolls+1, events)
}

func (p *Poller) finish(ctx context.Context, txnID uuid.UUID, status enums.PaymentTxnStatus, query *pkgnetsqr.QueryResponse, reason string, attempts int, events chan<- Event) {
	p.persist(ctx, txnID, status, query, reason)
	p.metrics.ObservePollLoop(string(status), attempts)

	event := Event{Type: EventFail, Attempt: attempts, Status: status, Reason: reason}
	if status == enums.PaymentTxnStatusSuccess {
		event = Event{Type: EventSuccess, Attempt: attempts, Status: status}
	}
	if query != nil {
		event.ResponseCode = query.ResponseCode
	}
	p.emit(ctx, events, event)
}

func (p *Poller) persist(ctx context.Context, txnID uuid.UUID, status enums.PaymentTxnStatus, query *pkgnetsqr.QueryResponse, reason string) {
	updates := map[string]any{"status": status}
	if query != nil {
		if query.ResponseCode != "" {
			updates["response_code"] = query.ResponseCode
		}
		if query.NetworkStatus != nil {
			updates["network_status"] = *query.NetworkStatus
		}
		if query.TxnStatus != nil {
			updates["txn_status"] = *query.TxnStatus
		}
		if len(query.Raw) > 0 {
			updates["raw_response"] = string(query.Raw)
		}
	}
	if reason != "" {
		updates["error_message"] = reason
	}

	// persist with a background-derived context so a client disconnect during
	// the write does not lose the terminal status
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := p.db.WithContext(writeCtx).Model(&models.NetsTransaction{}).
		Where("id = ?", txnID).
		Updates(updates).Error
	if err != nil && p.logger != nil {
		p.logger.Error(ctx, "persisting nets poll status failed", err)
	}
}

func (p *Poller) emit(ctx context.Context, events chan<- Event, event Event) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}
