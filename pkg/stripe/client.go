package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/refund"

	"github.com/kelvinchng/storefront-backend/pkg/config"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's hosted-checkout and refund API surface.
type Client struct {
	environment string
	currency    string
	successURL  string
	cancelURL   string
}

// LineItem is one priced row forwarded to the hosted checkout page.
type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// CheckoutSession is the subset of the remote session this service consumes.
type CheckoutSession struct {
	ID              string
	URL             string
	PaymentIntentID string
	AmountTotal     decimal.Decimal
	Paid            bool
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		environment: env,
		currency:    strings.ToLower(strings.TrimSpace(cfg.Currency)),
		successURL:  cfg.SuccessURL,
		cancelURL:   cfg.CancelURL,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateCheckoutSession opens a hosted checkout session for the provided
// line items and returns the redirect target.
func (c *Client) CreateCheckoutSession(ctx context.Context, items []LineItem) (*CheckoutSession, error) {
	if len(items) == 0 {
		return nil, errors.New("at least one line item is required")
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("invalid quantity %d for %q", item.Quantity, item.Name)
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(c.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(toMinorUnits(item.UnitPrice)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(c.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(c.cancelURL),
	}

	remote, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}
	return fromRemoteSession(remote), nil
}

// GetCheckoutSession fetches the remote session so finalize can verify the
// paid state server-side.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session id is required")
	}
	remote, err := session.Get(sessionID, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching checkout session: %w", err)
	}
	return fromRemoteSession(remote), nil
}

// RefundPaymentIntent issues a refund against the captured payment intent.
func (c *Client) RefundPaymentIntent(ctx context.Context, paymentIntentID string, amount decimal.Decimal) (string, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return "", errors.New("payment intent id is required")
	}
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(toMinorUnits(amount)),
	}
	remote, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("refunding payment intent: %w", err)
	}
	return remote.ID, nil
}

func fromRemoteSession(remote *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:          remote.ID,
		URL:         remote.URL,
		AmountTotal: decimal.NewFromInt(remote.AmountTotal).Div(decimal.NewFromInt(100)),
		Paid:        remote.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if remote.PaymentIntent != nil {
		out.PaymentIntentID = remote.PaymentIntent.ID
	}
	return out
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
