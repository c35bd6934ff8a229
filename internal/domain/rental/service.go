package rental

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/healthhub/healthhub/internal/domain/catalog"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/db"
	"github.com/healthhub/healthhub/internal/platform/idverify"
	"github.com/healthhub/healthhub/pkg/validate"
)

// Products resolves the product being rented.
type Products interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

type Service struct {
	repo     Repository
	tx       db.TxRunner
	products Products
	verifier idverify.Verifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, products Products, verifier idverify.Verifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		products: products,
		verifier: verifier,
		logger:   logger.With().Str("component", "rental").Logger(),
		now:      time.Now,
	}
}

func (s *Service) rentable(ctx context.Context, productID string) (*catalog.Product, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return nil, validate.Fieldf("product_id", "is not a valid id")
	}
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active || !p.Rentable {
		return nil, ErrNotRentable
	}
	return p, nil
}

func validateDuration(d int) error {
	if d < 1 || d > MaxDuration {
		return validate.Fieldf("duration", "must be between 1 and %d", MaxDuration)
	}
	return nil
}

// Quote prices a rental without storing anything.
func (s *Service) Quote(ctx context.Context, productID string, duration int) (*Quote, error) {
	if err := validateDuration(duration); err != nil {
		return nil, err
	}
	p, err := s.rentable(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &Quote{
		ProductID:   p.ID,
		ProductName: p.Name,
		RentPeriod:  p.RentPeriod,
		Duration:    duration,
		Costs:       ComputeCosts(p.RentPricePerPeriod, p.SecurityDeposit, duration),
	}, nil
}

func (s *Service) validateSubmit(req *SubmitRequest) (time.Time, error) {
	c := &req.Customer
	c.FullName = strings.TrimSpace(c.FullName)
	if err := validate.Field("customer.full_name", validate.Name(c.FullName)); err != nil {
		return time.Time{}, err
	}
	phone, err := validate.NormalizePhone(c.Phone)
	if err != nil {
		return time.Time{}, validate.Field("customer.phone", err)
	}
	c.Phone = phone
	if c.Email = strings.ToLower(strings.TrimSpace(c.Email)); c.Email != "" {
		if err := validate.Field("customer.email", validate.Email(c.Email)); err != nil {
			return time.Time{}, err
		}
	}
	c.Address = strings.TrimSpace(c.Address)
	if err := validate.Field("customer.address", validate.Required(c.Address)); err != nil {
		return time.Time{}, err
	}

	if !idverify.ValidAadhaarFormat(req.AadhaarNumber) {
		return time.Time{}, validate.Fieldf("aadhaar_number", "must be 12 digits")
	}
	req.AadhaarNumber = idverify.NormalizeAadhaar(req.AadhaarNumber)
	req.PANNumber = strings.ToUpper(strings.TrimSpace(req.PANNumber))
	if !idverify.ValidPANFormat(req.PANNumber) {
		return time.Time{}, validate.Fieldf("pan_number", "must look like ABCPE1234F")
	}
	if strings.TrimSpace(req.ChequeImage) == "" {
		return time.Time{}, validate.Field("cheque_image", validate.ErrRequired)
	}

	start, err := time.Parse("2006-01-02", strings.TrimSpace(req.StartDate))
	if err != nil {
		return time.Time{}, validate.Fieldf("start_date", "must be YYYY-MM-DD")
	}
	if start.Before(s.now().UTC().Truncate(24 * time.Hour)) {
		return time.Time{}, validate.Fieldf("start_date", "must not be in the past")
	}
	return start, validateDuration(req.Duration)
}

// Submit files a rental request for the caller. Costs come from the
// product's current rental terms.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Request, error) {
	requester, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, ErrForbidden
	}
	start, err := s.validateSubmit(&req)
	if err != nil {
		return nil, err
	}
	p, err := s.rentable(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	r := &Request{
		RequesterID:   requester,
		ProductID:     p.ID,
		ProductName:   p.Name,
		MerchantID:    p.MerchantID,
		Customer:      req.Customer,
		AadhaarNumber: req.AadhaarNumber,
		AadhaarMasked: MaskAadhaar(req.AadhaarNumber),
		PANNumber:     req.PANNumber,
		AadhaarImage:  req.AadhaarImage,
		PANImage:      req.PANImage,
		ChequeImage:   req.ChequeImage,
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, req.Duration),
		Duration:      req.Duration,
		Costs:         ComputeCosts(p.RentPricePerPeriod, p.SecurityDeposit, req.Duration),
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info().Str("rental_id", r.ID.String()).Str("product_id", p.ID.String()).Msg("rental request submitted")
	return r, nil
}

func isRequester(ctx context.Context, r *Request) bool {
	return r.RequesterID.String() == auth.UserIDFromContext(ctx)
}

func isOwner(ctx context.Context, r *Request) bool {
	if auth.IsAdmin(ctx) {
		return true
	}
	mid := auth.MerchantIDFromContext(ctx)
	return mid != "" && mid == r.MerchantID
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isRequester(ctx, r) && !isOwner(ctx, r) {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *Service) ListForRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return s.repo.ListByRequester(ctx, requesterID, limit, offset)
}

func (s *Service) ListForMerchant(ctx context.Context, merchantID, status string, limit, offset int) ([]*Request, int, error) {
	if merchantID == "" {
		return nil, 0, validate.Field("merchant_id", validate.ErrRequired)
	}
	if status != "" && !validStatuses[status] {
		return nil, 0, validate.Fieldf("status", "unknown status %q", status)
	}
	return s.repo.ListByMerchant(ctx, merchantID, status, limit, offset)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, validate.Fieldf("status", "unknown status %q", status)
	}
	return s.repo.List(ctx, status, limit, offset)
}

// VerifyDocuments checks the Aadhaar and PAN on a pending request. Both
// numbers are verified concurrently by the Verifier. When both pass, the
// request moves to document verification; otherwise it stays pending with
// the failure noted.
func (s *Service) VerifyDocuments(ctx context.Context, id uuid.UUID) (*Verification, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isOwner(ctx, r) {
		if isRequester(ctx, r) {
			return nil, ErrForbidden
		}
		return nil, ErrNotFound
	}
	if r.Status != StatusPending {
		return nil, fmt.Errorf("%w: documents are verified while pending, request is %s", ErrInvalidTransition, r.Status)
	}

	var aadhaar, pan idverify.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.verifier.VerifyAadhaar(gctx, r.AadhaarNumber)
		if err != nil {
			return fmt.Errorf("verify Aadhaar: %w", err)
		}
		aadhaar = res
		return nil
	})
	g.Go(func() error {
		res, err := s.verifier.VerifyPAN(gctx, r.PANNumber)
		if err != nil {
			return fmt.Errorf("verify PAN: %w", err)
		}
		pan = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v := &Verification{
		AadhaarValid: aadhaar.Valid,
		AadhaarError: aadhaar.Error,
		PANValid:     pan.Valid,
		PANError:     pan.Error,
		PANHolder:    pan.Normalized["holder_type"],
	}
	r.AadhaarVerified = aadhaar.Valid
	r.PANVerified = pan.Valid
	if aadhaar.Valid && pan.Valid {
		v.VerifiedName = pan.VerifiedName
		r.VerifiedName = pan.VerifiedName
		r.Status = StatusDocumentVerification
		r.StatusNote = ""
	} else {
		var reasons []string
		for _, e := range []string{aadhaar.Error, pan.Error} {
			if e != "" {
				reasons = append(reasons, e)
			}
		}
		r.StatusNote = "document check failed: " + strings.Join(reasons, "; ")
	}
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	v.Request = r
	s.logger.Info().
		Str("rental_id", r.ID.String()).
		Bool("aadhaar_valid", v.AadhaarValid).
		Bool("pan_valid", v.PANValid).
		Msg("rental documents verified")
	return v, nil
}

// UpdateStatus moves a request through the workflow. The product's merchant
// and admins drive it; the requester may only cancel before approval.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status, note string) (*Request, error) {
	if !validStatuses[status] {
		return nil, validate.Fieldf("status", "unknown status %q", status)
	}
	var out *Request
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case isOwner(ctx, r):
		case isRequester(ctx, r):
			if status != StatusCancelled || (r.Status != StatusPending && r.Status != StatusDocumentVerification) {
				return ErrForbidden
			}
		default:
			return ErrNotFound
		}
		if !CanTransition(r.Status, status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, r.Status, status)
		}
		if status == StatusApproved && !r.ChequeSubmitted() {
			return ErrChequeRequired
		}
		r.Status = status
		r.StatusNote = strings.TrimSpace(note)
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("rental_id", id.String()).Str("status", status).Msg("rental status changed")
	return out, nil
}

// MarkPaid records the advance payment. Repeating the call with the same
// reference is a no-op.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.PaymentStatus == PaymentPaid {
			if r.PaymentRef == paymentRef {
				return nil
			}
			return fmt.Errorf("%w: rental already paid", ErrInvalidTransition)
		}
		r.PaymentStatus = PaymentPaid
		r.PaymentRef = paymentRef
		return s.repo.Update(ctx, r)
	})
}

// AmountDue returns the advance payment for the requester.
func (s *Service) AmountDue(ctx context.Context, id uuid.UUID) (float64, error) {
	r, err := s.GetRequest(ctx, id)
	if err != nil {
		return 0, err
	}
	if r.PaymentStatus == PaymentPaid || r.PaymentStatus == PaymentRefunded {
		return 0, fmt.Errorf("%w: rental is already %s", ErrInvalidTransition, r.PaymentStatus)
	}
	if r.Status == StatusRejected || r.Status == StatusCancelled {
		return 0, fmt.Errorf("%w: rental is %s", ErrInvalidTransition, r.Status)
	}
	return r.AdvancePayment, nil
}
