package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/db"
	gateway "github.com/healthhub/healthhub/internal/platform/payment"
	"github.com/healthhub/healthhub/pkg/validate"
)

var (
	ErrMissingFields      = errors.New("order id, payment id and signature are required")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrPaymentCancelled   = errors.New("payment cancelled")
	ErrUnknownTarget      = errors.New("unknown payment target")
	ErrNotSignedIn        = errors.New("not signed in")
)

// Gateway is the payment gateway client.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	CompleteMock(orderID string) (paymentID, signature string, err error)
	KeyID() string
	Configured() bool
	MockFallback() bool
}

// Payable is a domain record that can be paid for: a booking, an order or a
// rental request.
type Payable interface {
	// AmountDue returns the amount in rupees the caller owes.
	AmountDue(ctx context.Context, id uuid.UUID) (float64, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) error
}

type Service struct {
	repo     Repository
	tx       db.TxRunner
	gateway  Gateway
	targets  map[string]Payable
	merchant string
	logger   zerolog.Logger
}

// NewService wires the payment service. targets maps TargetBooking,
// TargetOrder and TargetRental to the services that own them.
func NewService(repo Repository, tx db.TxRunner, gw Gateway, targets map[string]Payable, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		gateway:  gw,
		targets:  targets,
		merchant: "HealthHub",
		logger:   logger.With().Str("component", "payment").Logger(),
	}
}

func callerID(ctx context.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, ErrNotSignedIn
	}
	return id, nil
}

func (s *Service) issue(ctx context.Context, o *Order, notes map[string]string) (*gateway.Order, error) {
	g, err := s.gateway.CreateOrder(ctx, o.Amount, o.Currency, o.Receipt, notes)
	if err != nil {
		return nil, err
	}
	o.GatewayOrderID = g.ID
	o.Currency = g.Currency
	o.Mock = g.Mock
	o.Status = StatusCreated
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("order_id", g.ID).
		Int64("amount", o.Amount).
		Str("target_type", o.TargetType).
		Bool("mock", g.Mock).
		Msg("payment order created")
	return g, nil
}

// CreateOrder issues a gateway order for an arbitrary amount in rupees.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*gateway.Order, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, validate.Fieldf("amount", "must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	receipt := strings.TrimSpace(req.Receipt)
	if receipt == "" {
		receipt = "rcpt_" + uuid.NewString()[:8]
	}
	o := &Order{
		UserID:   uid,
		Amount:   gateway.ToMinorUnits(req.Amount),
		Currency: currency,
		Receipt:  receipt,
	}
	return s.issue(ctx, o, req.Notes)
}

// InitiatePayment issues a gateway order for the amount due on a booking,
// order or rental request and returns the checkout widget options.
func (s *Service) InitiatePayment(ctx context.Context, req InitiateRequest) (*CheckoutOptions, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	payable, ok := s.targets[req.TargetType]
	if !ok {
		return nil, validate.Field("target_type", ErrUnknownTarget)
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		return nil, validate.Fieldf("target_id", "is not a valid id")
	}
	amount, err := payable.AmountDue(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, validate.Fieldf("target_id", "nothing to pay")
	}

	o := &Order{
		UserID:     uid,
		TargetType: req.TargetType,
		TargetID:   &targetID,
		Amount:     gateway.ToMinorUnits(amount),
		Currency:   DefaultCurrency,
		Receipt:    req.TargetType + "_" + targetID.String()[:8],
	}
	notes := map[string]string{"target_type": req.TargetType, "target_id": targetID.String()}
	g, err := s.issue(ctx, o, notes)
	if err != nil {
		return nil, err
	}

	opts := &CheckoutOptions{
		Key:         s.gateway.KeyID(),
		OrderID:     g.ID,
		Amount:      g.Amount,
		Currency:    g.Currency,
		Name:        s.merchant,
		Description: fmt.Sprintf("Payment for %s", req.TargetType),
		Prefill:     Prefill{Email: auth.EmailFromContext(ctx)},
		Notes:       notes,
		Mock:        g.Mock,
	}
	if g.Mock {
		opts.MockPaymentID, opts.MockSignature, err = s.gateway.CompleteMock(g.ID)
		if err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// VerifyPayment checks the checkout callback signature and, on success,
// marks the payment order and its target paid. A callback already applied
// with the same payment id verifies again without side effects.
func (s *Service) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.Signature = strings.TrimSpace(req.Signature)
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, ErrMissingFields
	}
	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.logger.Warn().Str("order_id", req.OrderID).Msg("payment signature mismatch")
		return nil, ErrVerificationFailed
	}

	var o *Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.repo.Get(ctx, req.OrderID)
		if errors.Is(err, ErrNotFound) {
			return ErrVerificationFailed
		}
		if err != nil {
			return err
		}
		if o.Status == StatusPaid {
			if o.PaymentID == req.PaymentID {
				return nil
			}
			return ErrVerificationFailed
		}
		if err := s.repo.MarkPaid(ctx, o.GatewayOrderID, req.PaymentID); err != nil {
			return err
		}
		if o.TargetID == nil {
			return nil
		}
		payable, ok := s.targets[o.TargetType]
		if !ok {
			return ErrUnknownTarget
		}
		return payable.MarkPaid(ctx, *o.TargetID, req.PaymentID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", o.GatewayOrderID).Str("payment_id", req.PaymentID).Msg("payment verified")
	return &VerifyResult{
		Verified:   true,
		OrderID:    o.GatewayOrderID,
		PaymentID:  req.PaymentID,
		TargetType: o.TargetType,
		TargetID:   o.TargetID,
	}, nil
}

// Cancel records that the user dismissed checkout. Nothing is persisted and
// the target keeps its pending payment status.
func (s *Service) Cancel(ctx context.Context, orderID string) error {
	s.logger.Info().Str("order_id", orderID).Str("user_id", auth.UserIDFromContext(ctx)).Msg("payment cancelled by user")
	return ErrPaymentCancelled
}

func (s *Service) Config() PublicConfig {
	return PublicConfig{
		KeyID:        s.gateway.KeyID(),
		Currency:     DefaultCurrency,
		Configured:   s.gateway.Configured(),
		MockFallback: s.gateway.MockFallback(),
	}
}
