package booking

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

const (
	UrgencyNormal   = "normal"
	UrgencyPriority = "priority"
	UrgencyUrgent   = "urgent"
)

// Source values say where a listed booking was read from.
const (
	SourceCanonical = "canonical"
)

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// statusTransitions lists, for each non-terminal status, the statuses it may
// move to. Completed, cancelled and no-show are terminal.
var statusTransitions = map[string]map[string]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true, StatusNoShow: true},
}

var paymentTransitions = map[string]map[string]bool{
	PaymentPending: {PaymentPaid: true, PaymentFailed: true},
	PaymentFailed:  {PaymentPaid: true},
	PaymentPaid:    {PaymentRefunded: true},
}

var validPaymentStatuses = map[string]bool{
	PaymentPending:  true,
	PaymentPaid:     true,
	PaymentFailed:   true,
	PaymentRefunded: true,
}

var validUrgencies = map[string]bool{
	UrgencyNormal:   true,
	UrgencyPriority: true,
	UrgencyUrgent:   true,
}

// CanTransition reports whether a booking may move from one status to
// another.
func CanTransition(from, to string) bool {
	return statusTransitions[from][to]
}

// CanTransitionPayment is CanTransition for payment status.
func CanTransitionPayment(from, to string) bool {
	return paymentTransitions[from][to]
}

func IsTerminal(status string) bool {
	return validStatuses[status] && len(statusTransitions[status]) == 0
}

// Booking is one scheduled service instance.
type Booking struct {
	ID              uuid.UUID  `json:"id"`
	InvoiceID       string     `json:"invoice_id"`
	LegacyID        *string    `json:"legacy_id,omitempty"`
	LegacySource    *string    `json:"legacy_source,omitempty"`
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	PatientName     string     `json:"patient_name"`
	PatientEmail    string     `json:"patient_email"`
	PatientPhone    string     `json:"patient_phone"`
	ServiceID       string     `json:"service_id,omitempty"`
	ServiceName     string     `json:"service_name"`
	DoctorCode      string     `json:"doctor_code,omitempty"`
	DoctorName      string     `json:"doctor_name,omitempty"`
	AppointmentDate string     `json:"appointment_date"`
	AppointmentTime string     `json:"appointment_time"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status"`
	PaymentRef      string     `json:"payment_ref,omitempty"`
	Urgency         string     `json:"urgency"`
	Symptoms        string     `json:"symptoms,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	TotalAmount     float64    `json:"total_amount"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	// Source is "canonical" for rows of the bookings table, otherwise the
	// legacy collection(s) the record was read from.
	Source string `json:"source"`
}

// CreateRequest is the booking form.
type CreateRequest struct {
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email"`
	PatientPhone    string `json:"patient_phone"`
	ServiceID       string `json:"service_id"`
	DoctorCode      string `json:"doctor_code,omitempty"`
	DoctorName      string `json:"doctor_name,omitempty"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	Urgency         string `json:"urgency,omitempty"`
	Symptoms        string `json:"symptoms,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Actor is the caller performing a status change.
type Actor struct {
	UserID     string
	Email      string
	Role       string
	DoctorCode string
}

// ImportReport summarises a legacy backfill.
type ImportReport struct {
	Scanned  int `json:"scanned"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	// Reissued counts imported documents whose invoice id was already taken
	// and got a fresh one.
	Reissued int `json:"reissued"`
}
