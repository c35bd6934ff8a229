package payment

import (
	"time"

	"github.com/google/uuid"
)

// Targets a payment can settle.
const (
	TargetBooking = "booking"
	TargetOrder   = "order"
	TargetRental  = "rental"
)

const (
	StatusCreated = "created"
	StatusPaid    = "paid"
)

const DefaultCurrency = "INR"

// Order is a gateway order issued by this service.
type Order struct {
	GatewayOrderID string     `json:"order_id"`
	UserID         uuid.UUID  `json:"user_id"`
	TargetType     string     `json:"target_type,omitempty"`
	TargetID       *uuid.UUID `json:"target_id,omitempty"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	Receipt        string     `json:"receipt,omitempty"`
	Mock           bool       `json:"mock"`
	Status         string     `json:"status"`
	PaymentID      string     `json:"payment_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
}

type CreateOrderRequest struct {
	Amount   float64           `json:"amount"`
	Currency string            `json:"currency,omitempty"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type InitiateRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
}

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// CheckoutOptions configure the hosted checkout widget. For mock orders the
// payment id and signature the widget would return are included so the
// client can complete the flow without the gateway.
type CheckoutOptions struct {
	Key           string            `json:"key"`
	OrderID       string            `json:"order_id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Prefill       Prefill           `json:"prefill"`
	Notes         map[string]string `json:"notes,omitempty"`
	Mock          bool              `json:"mock"`
	MockPaymentID string            `json:"mock_payment_id,omitempty"`
	MockSignature string            `json:"mock_signature,omitempty"`
}

// VerifyRequest is the checkout widget's success callback.
type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type VerifyResult struct {
	Verified   bool       `json:"verified"`
	OrderID    string     `json:"order_id"`
	PaymentID  string     `json:"payment_id"`
	TargetType string     `json:"target_type,omitempty"`
	TargetID   *uuid.UUID `json:"target_id,omitempty"`
}

// PublicConfig is what the browser needs to open checkout.
type PublicConfig struct {
	KeyID        string `json:"key_id"`
	Currency     string `json:"currency"`
	Configured   bool   `json:"configured"`
	MockFallback bool   `json:"mock_fallback"`
}
