package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/catalog"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/db"
	"github.com/healthhub/healthhub/internal/platform/legacy"
	"github.com/healthhub/healthhub/pkg/idgen"
	"github.com/healthhub/healthhub/pkg/validate"
)

// ServiceCatalog resolves the medical service being booked.
type ServiceCatalog interface {
	GetMedicalService(ctx context.Context, id uuid.UUID) (*catalog.MedicalService, error)
}

// DoctorCodes resolves a doctor's code when their profile carries none.
type DoctorCodes struct {
	ByEmail map[string]string
	Default string
}

// Resolve returns profileCode when set, else the code registered for email,
// else the default.
func (d DoctorCodes) Resolve(profileCode, email string) string {
	if profileCode != "" {
		return profileCode
	}
	if code, ok := d.ByEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		return code
	}
	return d.Default
}

type Service struct {
	repo     Repository
	tx       db.TxRunner
	services ServiceCatalog
	legacy   legacy.Store
	ids      *idgen.Generator
	doctors  DoctorCodes
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService wires the booking service. store may be nil when no legacy
// document database is configured.
func NewService(repo Repository, tx db.TxRunner, services ServiceCatalog, store legacy.Store,
	ids *idgen.Generator, doctors DoctorCodes, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		services: services,
		legacy:   store,
		ids:      ids,
		doctors:  doctors,
		logger:   logger.With().Str("component", "booking").Logger(),
		now:      time.Now,
	}
}

func (s *Service) ResolveDoctorCode(profileCode, email string) string {
	return s.doctors.Resolve(profileCode, email)
}

// Actor describes the authenticated caller. A doctor's code is resolved
// once here and used for listing, viewing and status changes alike.
func (s *Service) Actor(ctx context.Context) Actor {
	a := Actor{
		UserID: auth.UserIDFromContext(ctx),
		Email:  auth.EmailFromContext(ctx),
		Role:   auth.RoleFromContext(ctx),
	}
	if a.Role == auth.RoleDoctor {
		a.DoctorCode = s.doctors.Resolve(auth.DoctorCodeFromContext(ctx), a.Email)
	}
	return a
}

func (s *Service) validateCreate(req *CreateRequest) error {
	req.PatientName = strings.TrimSpace(req.PatientName)
	if err := validate.Field("patient_name", validate.Name(req.PatientName)); err != nil {
		return err
	}
	req.PatientEmail = strings.ToLower(strings.TrimSpace(req.PatientEmail))
	if err := validate.Field("patient_email", validate.Email(req.PatientEmail)); err != nil {
		return err
	}
	phone, err := validate.NormalizePhone(req.PatientPhone)
	if err != nil {
		return validate.Field("patient_phone", err)
	}
	req.PatientPhone = phone

	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.AppointmentDate))
	if err != nil {
		return validate.Fieldf("appointment_date", "must be YYYY-MM-DD")
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return validate.Fieldf("appointment_date", "must not be in the past")
	}
	if _, err := time.Parse("15:04", strings.TrimSpace(req.AppointmentTime)); err != nil {
		return validate.Fieldf("appointment_time", "must be HH:MM")
	}
	if req.Urgency == "" {
		req.Urgency = UrgencyNormal
	}
	if !validUrgencies[req.Urgency] {
		return validate.Fieldf("urgency", "must be normal, priority or urgent")
	}
	return nil
}

// CreateBooking books a service for the calling patient. The amount is the
// catalog price of the service.
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (*Booking, error) {
	actor := s.Actor(ctx)
	if req.PatientEmail == "" {
		req.PatientEmail = actor.Email
	}
	if err := s.validateCreate(&req); err != nil {
		return nil, err
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		return nil, validate.Fieldf("service_id", "is not a valid id")
	}
	svc, err := s.services.GetMedicalService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, catalog.ErrNotFound
	}

	b := &Booking{
		InvoiceID:       s.ids.Next(idgen.PrefixInvoice),
		PatientName:     req.PatientName,
		PatientEmail:    req.PatientEmail,
		PatientPhone:    req.PatientPhone,
		ServiceID:       svc.ID.String(),
		ServiceName:     svc.Name,
		DoctorCode:      strings.TrimSpace(req.DoctorCode),
		DoctorName:      strings.TrimSpace(req.DoctorName),
		AppointmentDate: strings.TrimSpace(req.AppointmentDate),
		AppointmentTime: strings.TrimSpace(req.AppointmentTime),
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Urgency:         req.Urgency,
		Symptoms:        strings.TrimSpace(req.Symptoms),
		Notes:           strings.TrimSpace(req.Notes),
		TotalAmount:     svc.Price,
	}
	if pid, err := uuid.Parse(actor.UserID); err == nil {
		b.PatientID = &pid
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info().Str("booking_id", b.ID.String()).Str("invoice_id", b.InvoiceID).Msg("booking created")
	return b, nil
}

// GetBooking returns a booking the caller may see.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(s.Actor(ctx), b) {
		return nil, ErrNotFound
	}
	return b, nil
}

func ownsBooking(a Actor, b *Booking) bool {
	if b.PatientID != nil {
		return b.PatientID.String() == a.UserID
	}
	return a.Email != "" && strings.EqualFold(a.Email, b.PatientEmail)
}

func canView(a Actor, b *Booking) bool {
	switch a.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleDoctor:
		return a.DoctorCode != "" && a.DoctorCode == b.DoctorCode || ownsBooking(a, b)
	default:
		return ownsBooking(a, b)
	}
}

// ListForPatient returns the patient's bookings, newest first. Bookings made
// before accounts were linked are found by email when none match the id.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, email string) ([]*Booking, error) {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 || email == "" {
		return items, nil
	}
	return s.repo.ListByPatientEmail(ctx, email)
}

// ListForDoctor returns every booking assigned to doctorCode: canonical rows
// plus legacy documents from both collections under either doctor key,
// de-duplicated by id.
func (s *Service) ListForDoctor(ctx context.Context, doctorCode string) ([]*Booking, error) {
	if doctorCode == "" {
		return nil, validate.Field("doctor_code", validate.ErrRequired)
	}
	canonical, err := s.repo.ListByDoctor(ctx, doctorCode)
	if err != nil {
		return nil, err
	}
	if s.legacy == nil {
		return canonical, nil
	}
	docs, err := legacy.FindAcross(ctx, s.legacy, legacy.Collections, legacyDoctorKeys, doctorCode)
	if err != nil {
		// The canonical table is authoritative; a legacy outage only hides
		// records that were never imported.
		s.logger.Error().Err(err).Str("doctor_code", doctorCode).Msg("legacy booking lookup failed")
		return canonical, nil
	}
	fresh, err := s.unadopted(ctx, GroupLegacy(docs))
	if err != nil {
		return nil, err
	}
	s.adopt(ctx, doctorCode, fresh)
	return Merge(canonical, fresh), nil
}

// unadopted drops legacy records that already have a row. The row is
// authoritative even when it has since moved to another doctor.
func (s *Service) unadopted(ctx context.Context, items []*Booking) ([]*Booking, error) {
	ids := make([]string, 0, len(items))
	for _, b := range items {
		ids = append(ids, *b.LegacyID)
	}
	adopted, err := s.repo.AdoptedLegacyIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, b := range items {
		if !adopted[*b.LegacyID] {
			out = append(out, b)
		}
	}
	return out, nil
}

// adopt inserts legacy-only records into the bookings table so later status
// changes have a row to update. Records keep their legacy source label.
func (s *Service) adopt(ctx context.Context, doctorCode string, items []*Booking) {
	adopted := 0
	for _, b := range items {
		inserted, _, err := s.insertLegacy(ctx, b)
		if err != nil {
			s.logger.Warn().Err(err).Str("legacy_id", *b.LegacyID).Msg("adopting legacy booking failed")
			continue
		}
		if inserted {
			adopted++
		}
	}
	if adopted > 0 {
		s.logger.Info().Str("doctor_code", doctorCode).Int("adopted", adopted).Msg("legacy bookings adopted")
	}
}

// insertLegacy stores b. When its invoice id belongs to another booking a
// new one is issued and the insert retried once.
func (s *Service) insertLegacy(ctx context.Context, b *Booking) (inserted, reissued bool, err error) {
	if b.InvoiceID == "" {
		b.InvoiceID = s.ids.Next(idgen.PrefixInvoice)
	}
	inserted, err = s.repo.InsertLegacy(ctx, b)
	if !errors.Is(err, ErrInvoiceTaken) {
		return inserted, false, err
	}
	s.logger.Warn().Str("legacy_id", *b.LegacyID).Str("invoice_id", b.InvoiceID).
		Msg("legacy invoice id already in use, issuing a new one")
	b.InvoiceID = s.ids.Next(idgen.PrefixInvoice)
	inserted, err = s.repo.InsertLegacy(ctx, b)
	return inserted, inserted, err
}

// Search lists all bookings for admins.
func (s *Service) Search(ctx context.Context, query, status string, limit, offset int) ([]*Booking, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, validate.Fieldf("status", "unknown status %q", status)
	}
	return s.repo.Search(ctx, strings.TrimSpace(query), status, limit, offset)
}

// Filter keeps bookings whose patient name, service name, doctor name,
// phone, email or invoice id contains query (case-insensitive) and whose
// status equals status. Empty arguments match everything.
func Filter(items []*Booking, query, status string) []*Booking {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]*Booking, 0, len(items))
	for _, b := range items {
		if status != "" && b.Status != status {
			continue
		}
		if q != "" && !matches(b, q) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func matches(b *Booking, q string) bool {
	for _, field := range []string{b.PatientName, b.ServiceName, b.DoctorName, b.PatientPhone, b.PatientEmail, b.InvoiceID} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// authorizeStatus checks whether actor may move b to status.
func authorizeStatus(a Actor, b *Booking, status string) error {
	switch a.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleDoctor:
		if a.DoctorCode != "" && a.DoctorCode == b.DoctorCode {
			return nil
		}
	}
	// Patients, including doctors acting on their own booking, may only cancel.
	if ownsBooking(a, b) && status == StatusCancelled {
		return nil
	}
	return ErrForbidden
}

// UpdateStatus moves a booking through its lifecycle on behalf of the
// caller. Bookings imported from a legacy collection also have the new
// status written back to both collections; failures there are logged and
// do not undo the canonical change.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Booking, error) {
	if !validStatuses[status] {
		return nil, validate.Fieldf("status", "unknown status %q", status)
	}
	actor := s.Actor(ctx)
	var out *Booking
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canView(actor, b) {
			return ErrNotFound
		}
		if err := authorizeStatus(actor, b, status); err != nil {
			return err
		}
		if !CanTransition(b.Status, status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, b.Status, status)
		}
		b.Status = status
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("booking_id", id.String()).Str("status", status).Str("actor", actor.UserID).Msg("booking status changed")
	s.mirror(ctx, out, map[string]any{"status": status})
	return out, nil
}

// AssignDoctor sets the doctor of a booking that has not finished. Admin only.
func (s *Service) AssignDoctor(ctx context.Context, id uuid.UUID, doctorCode, doctorName string) (*Booking, error) {
	doctorCode = strings.TrimSpace(doctorCode)
	if doctorCode == "" {
		return nil, validate.Field("doctor_code", validate.ErrRequired)
	}
	var out *Booking
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if IsTerminal(b.Status) {
			return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
		}
		b.DoctorCode = doctorCode
		b.DoctorName = strings.TrimSpace(doctorName)
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, out, map[string]any{"doctorAssigned": doctorCode, "doctorId": doctorCode, "doctorName": out.DoctorName})
	return out, nil
}

// MarkPaid records a verified payment against the booking. Repeating the
// call with the same reference is a no-op.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) error {
	var out *Booking
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if b.PaymentStatus == PaymentPaid && b.PaymentRef == paymentRef {
			return nil
		}
		if !CanTransitionPayment(b.PaymentStatus, PaymentPaid) {
			return fmt.Errorf("%w: payment %s to %s", ErrInvalidTransition, b.PaymentStatus, PaymentPaid)
		}
		b.PaymentStatus = PaymentPaid
		b.PaymentRef = paymentRef
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return err
	}
	if out != nil {
		s.mirror(ctx, out, map[string]any{"paymentStatus": PaymentPaid, "paymentId": paymentRef})
	}
	return nil
}

// AmountDue returns the amount to charge for a booking owned by the caller.
func (s *Service) AmountDue(ctx context.Context, id uuid.UUID) (float64, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return 0, err
	}
	if b.PaymentStatus == PaymentPaid || b.PaymentStatus == PaymentRefunded {
		return 0, fmt.Errorf("%w: booking is already %s", ErrInvalidTransition, b.PaymentStatus)
	}
	if b.Status == StatusCancelled {
		return 0, fmt.Errorf("%w: booking is cancelled", ErrInvalidTransition)
	}
	return b.TotalAmount, nil
}

func (s *Service) mirror(ctx context.Context, b *Booking, fields map[string]any) {
	if s.legacy == nil || b.LegacyID == nil {
		return
	}
	if err := legacy.MirrorFields(ctx, s.legacy, legacy.Collections, *b.LegacyID, fields); err != nil {
		s.logger.Error().Err(err).
			Str("booking_id", b.ID.String()).
			Str("legacy_id", *b.LegacyID).
			Msg("legacy mirror write failed; collections may be stale")
	}
}

// ImportLegacy copies every document of both legacy collections into the
// bookings table. Documents already imported are skipped, so the import can
// be re-run.
func (s *Service) ImportLegacy(ctx context.Context) (ImportReport, error) {
	var report ImportReport
	if s.legacy == nil {
		return report, errors.New("no legacy store configured")
	}
	var docs []legacy.Document
	for _, coll := range legacy.Collections {
		batch, err := s.legacy.FindAll(ctx, coll)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", coll, err)
		}
		docs = append(docs, batch...)
	}
	report.Scanned = len(docs)

	for _, b := range GroupLegacy(docs) {
		inserted, reissued, err := s.insertLegacy(ctx, b)
		if err != nil {
			return report, err
		}
		if reissued {
			report.Reissued++
		}
		if inserted {
			report.Imported++
		} else {
			report.Skipped++
		}
	}
	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Int("reissued", report.Reissued).
		Msg("legacy import finished")
	return report, nil
}
