package rental

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthhub/healthhub/pkg/money"
)

const (
	StatusPending              = "pending"
	StatusDocumentVerification = "document_verification"
	StatusApproved             = "approved"
	StatusDelivered            = "delivered"
	StatusReturned             = "returned"
	StatusRejected             = "rejected"
	StatusCancelled            = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

const (
	// AdvanceRate is the share of the rent collected up front.
	AdvanceRate = 0.30
	// MinAdvance is the smallest advance payment, in rupees.
	MinAdvance = 1000
	// MaxDuration bounds a single rental, in days.
	MaxDuration = 365
)

var validStatuses = map[string]bool{
	StatusPending:              true,
	StatusDocumentVerification: true,
	StatusApproved:             true,
	StatusDelivered:            true,
	StatusReturned:             true,
	StatusRejected:             true,
	StatusCancelled:            true,
}

var statusTransitions = map[string]map[string]bool{
	StatusPending:              {StatusDocumentVerification: true, StatusRejected: true, StatusCancelled: true},
	StatusDocumentVerification: {StatusApproved: true, StatusRejected: true, StatusCancelled: true},
	StatusApproved:             {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:            {StatusReturned: true},
}

func CanTransition(from, to string) bool {
	return statusTransitions[from][to]
}

func IsTerminal(status string) bool {
	return validStatuses[status] && len(statusTransitions[status]) == 0
}

// Costs is the price breakdown of a rental.
type Costs struct {
	RentAmount      float64 `json:"rent_amount"`
	SecurityDeposit float64 `json:"security_deposit"`
	AdvancePayment  float64 `json:"advance_payment"`
	TotalAmount     float64 `json:"total_amount"`
}

// ComputeCosts prices duration periods at pricePerPeriod. The advance is
// AdvanceRate of the rent but never below MinAdvance.
func ComputeCosts(pricePerPeriod, deposit float64, duration int) Costs {
	rent := money.Round2(pricePerPeriod * float64(duration))
	deposit = money.Round2(deposit)
	advance := money.Round2(rent * AdvanceRate)
	if advance < MinAdvance {
		advance = MinAdvance
	}
	return Costs{
		RentAmount:      rent,
		SecurityDeposit: deposit,
		AdvancePayment:  advance,
		TotalAmount:     money.Round2(rent + deposit),
	}
}

type Customer struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
}

// Request is a rental request.
type Request struct {
	ID          uuid.UUID `json:"id"`
	RequesterID uuid.UUID `json:"requester_id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	MerchantID  string    `json:"merchant_id"`
	Customer    Customer  `json:"customer"`

	AadhaarNumber   string `json:"-"`
	AadhaarMasked   string `json:"aadhaar_masked"`
	PANNumber       string `json:"pan_number"`
	AadhaarImage    string `json:"aadhaar_image,omitempty"`
	PANImage        string `json:"pan_image,omitempty"`
	ChequeImage     string `json:"cheque_image,omitempty"`
	AadhaarVerified bool   `json:"aadhaar_verified"`
	PANVerified     bool   `json:"pan_verified"`
	VerifiedName    string `json:"verified_name,omitempty"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Duration  int       `json:"duration"`
	Costs

	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentRef    string    `json:"payment_ref,omitempty"`
	StatusNote    string    `json:"status_note,omitempty"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ChequeSubmitted reports whether a cheque image is on file.
func (r *Request) ChequeSubmitted() bool {
	return r.ChequeImage != ""
}

// MaskAadhaar shows only the last four digits.
func MaskAadhaar(n string) string {
	if len(n) < 4 {
		return ""
	}
	return "XXXX XXXX " + n[len(n)-4:]
}

// SubmitRequest is the rental form.
type SubmitRequest struct {
	ProductID     string   `json:"product_id"`
	Customer      Customer `json:"customer"`
	AadhaarNumber string   `json:"aadhaar_number"`
	PANNumber     string   `json:"pan_number"`
	AadhaarImage  string   `json:"aadhaar_image"`
	PANImage      string   `json:"pan_image"`
	ChequeImage   string   `json:"cheque_image"`
	StartDate     string   `json:"start_date"`
	Duration      int      `json:"duration"`
}

// Quote is a cost preview for a product.
type Quote struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	RentPeriod  string    `json:"rent_period"`
	Duration    int       `json:"duration"`
	Costs
}

// Verification is the outcome of a document check.
type Verification struct {
	AadhaarValid bool     `json:"aadhaar_valid"`
	AadhaarError string   `json:"aadhaar_error,omitempty"`
	PANValid     bool     `json:"pan_valid"`
	PANError     string   `json:"pan_error,omitempty"`
	VerifiedName string   `json:"verified_name,omitempty"`
	PANHolder    string   `json:"pan_holder_type,omitempty"`
	Request      *Request `json:"request"`
}
