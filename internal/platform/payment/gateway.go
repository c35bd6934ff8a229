// Package payment is a minimal client for a Razorpay-compatible payment
// gateway: order creation and checkout signature verification.
package payment

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrNotConfigured      = errors.New("payment: gateway credentials not configured")
	ErrInvalidAmount      = errors.New("payment: amount must be positive")
	ErrUnexpectedResponse = errors.New("payment: unexpected response from gateway")
	ErrNotMockOrder       = errors.New("payment: not a mock order")
)

// MockOrderPrefix marks orders fabricated locally when the gateway is
// unavailable.
const MockOrderPrefix = "order_mock_"

// Config holds gateway credentials and fallback policy.
type Config struct {
	KeyID        string
	KeySecret    string
	BaseURL      string
	MockFallback bool
	Timeout      time.Duration
}

// Order is a gateway order. Amount is in the currency's minor unit.
type Order struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt,omitempty"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes,omitempty"`
	CreatedAt int64             `json:"created_at"`
	Mock      bool              `json:"mock"`
}

// Client talks to the gateway's REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
	mockSecret string
	now        func() time.Time
}

// New creates a Client. Without credentials every order is a mock order,
// provided cfg.MockFallback is set.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		mockSecret: randomHex(32),
		now:        time.Now,
	}
}

// Configured reports whether real gateway credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.KeyID != "" && c.cfg.KeySecret != ""
}

// KeyID is the public key handed to the checkout widget.
func (c *Client) KeyID() string { return c.cfg.KeyID }

// MockFallback reports whether mock orders may be issued.
func (c *Client) MockFallback() bool { return c.cfg.MockFallback }

// ToMinorUnits converts a major-unit amount (rupees) to paise.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateOrder creates a gateway order for amount (minor units). When the
// gateway is not configured or the call fails and fallback is enabled, a
// mock order is returned instead of an error.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if currency == "" {
		currency = "INR"
	}

	if !c.Configured() {
		if !c.cfg.MockFallback {
			return nil, ErrNotConfigured
		}
		return c.mockOrder(amount, currency, receipt, notes), nil
	}

	reqBody := map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		reqBody["notes"] = notes
	}

	var resp Order
	if err := c.post(ctx, "/v1/orders", reqBody, &resp); err != nil {
		if c.cfg.MockFallback && ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("receipt", receipt).Msg("payment gateway order failed, issuing mock order")
			return c.mockOrder(amount, currency, receipt, notes), nil
		}
		return nil, fmt.Errorf("create order: %w", err)
	}
	if resp.ID == "" {
		if c.cfg.MockFallback {
			c.logger.Warn().Str("receipt", receipt).Msg("payment gateway returned no order id, issuing mock order")
			return c.mockOrder(amount, currency, receipt, notes), nil
		}
		return nil, ErrUnexpectedResponse
	}
	return &resp, nil
}

// VerifySignature checks a checkout callback. Mock orders verify against
// the process-local mock secret.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if IsMockOrder(orderID) {
		return c.cfg.MockFallback && VerifySignature(orderID, paymentID, signature, c.mockSecret)
	}
	return VerifySignature(orderID, paymentID, signature, c.cfg.KeySecret)
}

// CompleteMock fabricates the payment id and signature the checkout widget
// would return for a mock order, so the demo flow can run end to end.
func (c *Client) CompleteMock(orderID string) (paymentID, signature string, err error) {
	if !IsMockOrder(orderID) || !c.cfg.MockFallback {
		return "", "", ErrNotMockOrder
	}
	paymentID = "pay_mock_" + randomHex(8)
	return paymentID, Sign(orderID, paymentID, c.mockSecret), nil
}

// IsMockOrder reports whether id was issued by the local fallback.
func IsMockOrder(id string) bool {
	return strings.HasPrefix(id, MockOrderPrefix)
}

func (c *Client) mockOrder(amount int64, currency, receipt string, notes map[string]string) *Order {
	return &Order{
		ID:        MockOrderPrefix + randomHex(8),
		Amount:    amount,
		Currency:  currency,
		Receipt:   receipt,
		Status:    "created",
		Notes:     notes,
		CreatedAt: c.now().Unix(),
		Mock:      true,
	}
}

// post sends an authenticated JSON POST to baseURL+path and decodes the
// response into out.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("%w (status=%d, body=%s)", ErrUnexpectedResponse, res.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
