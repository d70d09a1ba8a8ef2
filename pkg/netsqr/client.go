package netsqr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/pkg/config"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
)

const (
	requestPath = "/api/v1/common/payments/nets-qr/request"
	queryPath   = "/api/v1/common/payments/nets-qr/query"

	// ResponseCodeSuccess is the gateway's "approved" response code.
	ResponseCodeSuccess = "00"
	// TxnStatusPaid is the transaction-status value reported once the payer
	// has completed the QR payment.
	TxnStatusPaid = 1
)

var (
	errAPIKeyRequired    = errors.New("nets api key is required")
	errProjectIDRequired = errors.New("nets project id is required")
)

// Client talks to the NETS QR sandbox/production API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	projectID  string
	txnID      string
	logger     *logger.Logger
}

// QRResponse carries the fields of a successful QR request this service uses.
type QRResponse struct {
	QRCodeBase64  string
	RetrievalRef  string
	QRID          string
	ResponseCode  string
	NetworkStatus *int
	TxnStatus     *int
	Raw           json.RawMessage
}

// QueryResponse is one poll result from the status query endpoint.
type QueryResponse struct {
	ResponseCode  string
	NetworkStatus *int
	TxnStatus     *int
	Raw           json.RawMessage
}

// Paid reports whether the gateway considers the transaction settled.
func (q *QueryResponse) Paid() bool {
	if q == nil {
		return false
	}
	return q.ResponseCode == ResponseCodeSuccess && q.TxnStatus != nil && *q.TxnStatus == TxnStatusPaid
}

// Failed reports whether the gateway explicitly declined the transaction.
func (q *QueryResponse) Failed() bool {
	if q == nil {
		return false
	}
	if q.ResponseCode != "" && q.ResponseCode != ResponseCodeSuccess {
		return true
	}
	return q.TxnStatus != nil && *q.TxnStatus != TxnStatusPaid && *q.TxnStatus != 0
}

// NewClient validates credentials and builds the HTTP wrapper.
func NewClient(ctx context.Context, cfg config.NetsQRConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     apiKey,
		projectID:  projectID,
		txnID:      cfg.TxnID,
		logger:     logg,
	}

	if logg != nil {
		logg.Info(ctx, "nets qr client initialized")
	}
	return c, nil
}

// TxnID returns the configured merchant transaction id prefix.
func (c *Client) TxnID() string {
	if c == nil {
		return ""
	}
	return c.txnID
}

// RequestQR asks the gateway for a QR payload and retrieval reference for the
// given dollar amount.
func (c *Client) RequestQR(ctx context.Context, amount decimal.Decimal) (*QRResponse, error) {
	body := map[string]any{
		"txn_id":         c.txnID,
		"amt_in_dollars": amount.Round(2).InexactFloat64(),
		"notify_mobile":  0,
	}

	data, raw, err := c.postJSON(ctx, requestPath, body)
	if err != nil {
		return nil, err
	}
	if data.QRCode == "" || data.RetrievalRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, "nets did not return a qr code")
	}

	return &QRResponse{
		QRCodeBase64:  data.QRCode,
		RetrievalRef:  data.RetrievalRef,
		QRID:          data.QRID,
		ResponseCode:  data.ResponseCode,
		NetworkStatus: data.NetworkStatus,
		TxnStatus:     data.TxnStatus,
		Raw:           raw,
	}, nil
}

// QueryStatus polls the gateway for the state of a pending QR transaction.
// frontendTimeout raises the flag that tells the gateway this is the final
// post-timeout poll.
func (c *Client) QueryStatus(ctx context.Context, retrievalRef string, frontendTimeout bool) (*QueryResponse, error) {
	if strings.TrimSpace(retrievalRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "retrieval reference is required")
	}

	flag := 0
	if frontendTimeout {
		flag = 1
	}
	body := map[string]any{
		"txn_retrieval_ref":       retrievalRef,
		"frontend_timeout_status": flag,
	}

	data, raw, err := c.postJSON(ctx, queryPath, body)
	if err != nil {
		return nil, err
	}

	return &QueryResponse{
		ResponseCode:  data.ResponseCode,
		NetworkStatus: data.NetworkStatus,
		TxnStatus:     data.TxnStatus,
		Raw:           raw,
	}, nil
}

type resultData struct {
	QRCode        string `json:"qr_code"`
	RetrievalRef  string `json:"txn_retrieval_ref"`
	QRID          string `json:"txn_nets_qr_id"`
	ResponseCode  string `json:"response_code"`
	NetworkStatus *int   `json:"network_status"`
	TxnStatus     *int   `json:"txn_status"`
}

type apiEnvelope struct {
	Result struct {
		Data resultData `json:"data"`
	} `json:"result"`
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*resultData, json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding nets request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("building nets request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("project-id", c.projectID)

	c.log(ctx, "request", path, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", path, err)
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "nets request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "reading nets response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log(ctx, "error", path, fmt.Errorf("status %d", resp.StatusCode))
		code := pkgerrors.CodeGatewayRejected
		if resp.StatusCode >= 500 {
			code = pkgerrors.CodeGatewayUnavailable
		}
		return nil, nil, pkgerrors.New(code, fmt.Sprintf("nets api error %d", resp.StatusCode)).WithDetails(map[string]any{
			"status": resp.StatusCode,
		})
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "invalid json response from nets")
	}

	c.log(ctx, "response", path, nil)
	return &envelope.Result.Data, json.RawMessage(raw), nil
}

func (c *Client) log(ctx context.Context, phase, path string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{"path": path, "phase": phase})
	if err != nil {
		c.logger.Error(ctx, "nets call failed", err)
		return
	}
	c.logger.Info(ctx, fmt.Sprintf("nets %s", phase))
}
