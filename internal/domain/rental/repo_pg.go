package rental

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const rentalCols = `id, requester_id, product_id, product_name, merchant_id, customer, aadhaar_number,
	pan_number, aadhaar_image, pan_image, cheque_image, aadhaar_verified, pan_verified, verified_name,
	start_date, end_date, duration, rent_amount, security_deposit, advance_payment, total_amount,
	status, payment_status, payment_ref, status_note, version, created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var q Request
	err := row.Scan(&q.ID, &q.RequesterID, &q.ProductID, &q.ProductName, &q.MerchantID, &q.Customer,
		&q.AadhaarNumber, &q.PANNumber, &q.AadhaarImage, &q.PANImage, &q.ChequeImage,
		&q.AadhaarVerified, &q.PANVerified, &q.VerifiedName, &q.StartDate, &q.EndDate, &q.Duration,
		&q.RentAmount, &q.SecurityDeposit, &q.AdvancePayment, &q.TotalAmount, &q.Status,
		&q.PaymentStatus, &q.PaymentRef, &q.StatusNote, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	q.AadhaarMasked = MaskAadhaar(q.AadhaarNumber)
	return &q, nil
}

func (r *repoPG) Create(ctx context.Context, q *Request) error {
	q.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO rental_requests (id, requester_id, product_id, product_name, merchant_id, customer,
			aadhaar_number, pan_number, aadhaar_image, pan_image, cheque_image, start_date, end_date,
			duration, rent_amount, security_deposit, advance_payment, total_amount, status,
			payment_status, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,1)
		RETURNING version, created_at, updated_at`,
		q.ID, q.RequesterID, q.ProductID, q.ProductName, q.MerchantID, q.Customer,
		q.AadhaarNumber, q.PANNumber, q.AadhaarImage, q.PANImage, q.ChequeImage, q.StartDate,
		q.EndDate, q.Duration, q.RentAmount, q.SecurityDeposit, q.AdvancePayment, q.TotalAmount,
		q.Status, q.PaymentStatus,
	).Scan(&q.Version, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert rental request: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+rentalCols+` FROM rental_requests WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, q *Request) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE rental_requests SET status=$3, status_note=$4, payment_status=$5, payment_ref=$6,
			aadhaar_verified=$7, pan_verified=$8, verified_name=$9,
			version=version+1, updated_at=NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		q.ID, q.Version, q.Status, q.StatusNote, q.PaymentStatus, q.PaymentRef,
		q.AadhaarVerified, q.PANVerified, q.VerifiedName,
	).Scan(&q.Version, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConflict
	}
	return err
}

// list runs a filtered, paginated query. conds are ANDed; each uses the
// next positional parameter.
func (r *repoPG) list(ctx context.Context, conds []string, args []interface{}, limit, offset int) ([]*Request, int, error) {
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM rental_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM rental_requests%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		rentalCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return r.list(ctx, []string{"requester_id = $1"}, []interface{}{requesterID}, limit, offset)
}

func (r *repoPG) ListByMerchant(ctx context.Context, merchantID, status string, limit, offset int) ([]*Request, int, error) {
	conds, args := []string{"merchant_id = $1"}, []interface{}{merchantID}
	if status != "" {
		conds, args = append(conds, "status = $2"), append(args, status)
	}
	return r.list(ctx, conds, args, limit, offset)
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error) {
	if status == "" {
		return r.list(ctx, nil, nil, limit, offset)
	}
	return r.list(ctx, []string{"status = $1"}, []interface{}{status}, limit, offset)
}
