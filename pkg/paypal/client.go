package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/pkg/config"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
)

const (
	tokenPath  = "/v1/oauth2/token"
	ordersPath = "/v2/checkout/orders"

	// OrderStatusCompleted is PayPal's terminal status for a captured order.
	OrderStatusCompleted = "COMPLETED"
)

var (
	errClientIDRequired = errors.New("paypal client id is required")
	errSecretRequired   = errors.New("paypal client secret is required")
)

// Client talks to the PayPal Orders v2 API using client-credential tokens.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	currency   string
	logger     *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// OrderResponse is a created (not yet captured) PayPal order.
type OrderResponse struct {
	ID     string
	Status string
	Raw    json.RawMessage
}

// CaptureResponse carries the fields of a capture call this service uses.
type CaptureResponse struct {
	OrderID    string
	Status     string
	CaptureID  string
	PayerID    string
	PayerEmail string
	Amount     decimal.Decimal
	Raw        json.RawMessage
}

// Completed reports whether PayPal settled the order.
func (c *CaptureResponse) Completed() bool {
	return c != nil && c.Status == OrderStatusCompleted
}

// RefundResponse is the result of refunding a capture.
type RefundResponse struct {
	ID     string
	Status string
	Raw    json.RawMessage
}

// NewClient validates credentials and builds the HTTP wrapper.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.ClientSecret)
	if secret == "" {
		return nil, errSecretRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "SGD"
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.APIBase, "/"),
		clientID:   clientID,
		secret:     secret,
		currency:   currency,
		logger:     logg,
	}

	if logg != nil {
		logg.Info(ctx, "paypal client initialized")
	}
	return c, nil
}

// Currency returns the currency code orders are created in.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// CreateOrder creates a CAPTURE-intent order for the given dollar amount and
// returns its id for the buyer approval step.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal) (*OrderResponse, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]any{
				"currency_code": c.currency,
				"value":         amount.Round(2).StringFixed(2),
			},
		}},
	}

	raw, err := c.doJSON(ctx, ordersPath, body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "invalid json response from paypal")
	}
	if parsed.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, "paypal did not return an order id")
	}

	return &OrderResponse{ID: parsed.ID, Status: parsed.Status, Raw: raw}, nil
}

// CaptureOrder captures a buyer-approved order and extracts the capture id
// and payer details from the response.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id is required")
	}

	raw, err := c.doJSON(ctx, fmt.Sprintf("%s/%s/capture", ordersPath, orderID), nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Payer  struct {
			PayerID string `json:"payer_id"`
			Email   string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Amount struct {
						Value string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "invalid json response from paypal")
	}

	out := &CaptureResponse{
		OrderID:    parsed.ID,
		Status:     parsed.Status,
		PayerID:    parsed.Payer.PayerID,
		PayerEmail: parsed.Payer.Email,
		Raw:        raw,
	}
	if len(parsed.PurchaseUnits) > 0 && len(parsed.PurchaseUnits[0].Payments.Captures) > 0 {
		capture := parsed.PurchaseUnits[0].Payments.Captures[0]
		out.CaptureID = capture.ID
		if capture.Amount.Value != "" {
			if amt, perr := decimal.NewFromString(capture.Amount.Value); perr == nil {
				out.Amount = amt
			}
		}
	}
	return out, nil
}

// RefundCapture refunds a capture, in full when amount is zero.
func (c *Client) RefundCapture(ctx context.Context, captureID string, amount decimal.Decimal) (*RefundResponse, error) {
	captureID = strings.TrimSpace(captureID)
	if captureID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal capture id is required")
	}

	var body map[string]any
	if amount.IsPositive() {
		body = map[string]any{
			"amount": map[string]any{
				"value":         amount.Round(2).StringFixed(2),
				"currency_code": c.currency,
			},
		}
	}

	raw, err := c.doJSON(ctx, fmt.Sprintf("/v2/payments/captures/%s/refund", captureID), body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "invalid json response from paypal")
	}
	if parsed.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, "paypal did not return a refund id")
	}

	return &RefundResponse{ID: parsed.ID, Status: parsed.Status, Raw: raw}, nil
}

// accessTokenFor returns a cached client-credentials token, refreshing it
// shortly before expiry.
func (c *Client) accessTokenFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath,
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("building paypal token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", tokenPath, err)
		return "", pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "paypal token request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "reading paypal token response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log(ctx, "error", tokenPath, fmt.Errorf("status %d", resp.StatusCode))
		return "", pkgerrors.New(pkgerrors.CodeGatewayUnavailable, fmt.Sprintf("paypal token error %d", resp.StatusCode))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "paypal did not return an access token")
	}

	c.accessToken = parsed.AccessToken
	ttl := time.Duration(parsed.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	c.tokenExpiry = time.Now().Add(ttl)
	return c.accessToken, nil
}

func (c *Client) doJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return nil, fmt.Errorf("encoding paypal request: %w", merr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building paypal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	c.log(ctx, "request", path, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", path, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "paypal request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "reading paypal response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log(ctx, "error", path, fmt.Errorf("status %d", resp.StatusCode))
		code := pkgerrors.CodeGatewayRejected
		if resp.StatusCode >= 500 {
			code = pkgerrors.CodeGatewayUnavailable
		}
		return nil, pkgerrors.New(code, fmt.Sprintf("paypal api error %d", resp.StatusCode)).WithDetails(map[string]any{
			"status": resp.StatusCode,
		})
	}

	c.log(ctx, "response", path, nil)
	return json.RawMessage(raw), nil
}

func (c *Client) log(ctx context.Context, phase, path string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{"path": path, "phase": phase})
	if err != nil {
		c.logger.Error(ctx, "paypal call failed", err)
		return
	}
	c.logger.Info(ctx, fmt.Sprintf("paypal %s", phase))
}
