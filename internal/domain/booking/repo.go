package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("booking not found")
	ErrConflict          = errors.New("booking was modified concurrently")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("not allowed to change this booking")
	// ErrInvoiceTaken means another booking already holds the invoice id.
	ErrInvoiceTaken = errors.New("invoice id already in use")
)

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	// Update writes b if the stored version equals b.Version and bumps it.
	Update(ctx context.Context, b *Booking) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Booking, error)
	ListByPatientEmail(ctx context.Context, email string) ([]*Booking, error)
	ListByDoctor(ctx context.Context, doctorCode string) ([]*Booking, error)
	Search(ctx context.Context, query, status string, limit, offset int) ([]*Booking, int, error)
	// InsertLegacy stores a booking read from a legacy collection unless one
	// with the same legacy id already exists. It reports whether a row was
	// written. An invoice id held by another booking yields ErrInvoiceTaken.
	InsertLegacy(ctx context.Context, b *Booking) (bool, error)
	// AdoptedLegacyIDs returns which of legacyIDs already have a row.
	AdoptedLegacyIDs(ctx context.Context, legacyIDs []string) (map[string]bool, error)
}
