package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthhub/healthhub/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const bookingCols = `id, invoice_id, legacy_id, legacy_source, patient_id, patient_name, patient_email,
	patient_phone, service_id, service_name, doctor_code, doctor_name, appointment_date,
	appointment_time, status, payment_status, payment_ref, urgency, symptoms, notes, total_amount,
	version, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.InvoiceID, &b.LegacyID, &b.LegacySource, &b.PatientID, &b.PatientName,
		&b.PatientEmail, &b.PatientPhone, &b.ServiceID, &b.ServiceName, &b.DoctorCode, &b.DoctorName,
		&b.AppointmentDate, &b.AppointmentTime, &b.Status, &b.PaymentStatus, &b.PaymentRef,
		&b.Urgency, &b.Symptoms, &b.Notes, &b.TotalAmount, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Source = SourceCanonical
	return &b, nil
}

func (r *repoPG) collect(rows pgx.Rows, err error) ([]*Booking, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const insertBooking = `
	INSERT INTO bookings (id, invoice_id, legacy_id, legacy_source, patient_id, patient_name,
		patient_email, patient_phone, service_id, service_name, doctor_code, doctor_name,
		appointment_date, appointment_time, status, payment_status, payment_ref, urgency, symptoms,
		notes, total_amount, version, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,1,
		COALESCE($22, NOW()), COALESCE($23, NOW()))`

func insertArgs(b *Booking) []interface{} {
	return []interface{}{
		b.ID, b.InvoiceID, b.LegacyID, b.LegacySource, b.PatientID, b.PatientName,
		b.PatientEmail, b.PatientPhone, b.ServiceID, b.ServiceName, b.DoctorCode, b.DoctorName,
		b.AppointmentDate, b.AppointmentTime, b.Status, b.PaymentStatus, b.PaymentRef, b.Urgency,
		b.Symptoms, b.Notes, b.TotalAmount, nullTime(b.CreatedAt), nullTime(b.UpdatedAt),
	}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r *repoPG) Create(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if _, err := r.conn(ctx).Exec(ctx, insertBooking, insertArgs(b)...); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	b.Version = 1
	b.Source = SourceCanonical
	return nil
}

func (r *repoPG) InsertLegacy(ctx context.Context, b *Booking) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, insertBooking+` ON CONFLICT (legacy_id) DO NOTHING`, insertArgs(b)...)
	if db.UniqueConstraint(err) == "bookings_invoice_id_key" {
		return false, ErrInvoiceTaken
	}
	if err != nil {
		return false, fmt.Errorf("insert legacy booking: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) AdoptedLegacyIDs(ctx context.Context, legacyIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(legacyIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT legacy_id FROM bookings WHERE legacy_id = ANY($1)`, legacyIDs)
	if err != nil {
		return nil, fmt.Errorf("query adopted legacy ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, b *Booking) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE bookings SET doctor_code=$3, doctor_name=$4, appointment_date=$5, appointment_time=$6,
			status=$7, payment_status=$8, payment_ref=$9, urgency=$10, notes=$11,
			version=version+1, updated_at=NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		b.ID, b.Version, b.DoctorCode, b.DoctorName, b.AppointmentDate, b.AppointmentTime,
		b.Status, b.PaymentStatus, b.PaymentRef, b.Urgency, b.Notes,
	).Scan(&b.Version, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Booking, error) {
	return r.collect(r.conn(ctx).Query(ctx, `
		SELECT `+bookingCols+` FROM bookings WHERE patient_id = $1 ORDER BY created_at DESC`, patientID))
}

func (r *repoPG) ListByPatientEmail(ctx context.Context, email string) ([]*Booking, error) {
	return r.collect(r.conn(ctx).Query(ctx, `
		SELECT `+bookingCols+` FROM bookings WHERE LOWER(patient_email) = LOWER($1)
		ORDER BY created_at DESC`, email))
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorCode string) ([]*Booking, error) {
	return r.collect(r.conn(ctx).Query(ctx, `
		SELECT `+bookingCols+` FROM bookings WHERE doctor_code = $1 ORDER BY created_at DESC`, doctorCode))
}

func (r *repoPG) Search(ctx context.Context, query, status string, limit, offset int) ([]*Booking, int, error) {
	const where = ` WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR patient_name ILIKE $3 OR service_name ILIKE $3 OR doctor_name ILIKE $3
			OR patient_phone ILIKE $3 OR patient_email ILIKE $3 OR invoice_id ILIKE $3)`
	pattern := "%" + query + "%"

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bookings`+where,
		status, query, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.collect(r.conn(ctx).Query(ctx, `SELECT `+bookingCols+` FROM bookings`+where+
		` ORDER BY created_at DESC LIMIT $4 OFFSET $5`, status, query, pattern, limit, offset))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
