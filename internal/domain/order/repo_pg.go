package order

import (
	"context"
	"errors"
	"fmt"

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

const orderCols = `id, order_number, buyer_id, buyer_email, items, merchant_ids, shipping_address,
	payment_method, subtotal, tax, shipping, total, status, payment_status, payment_ref, version,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.BuyerID, &o.BuyerEmail, &o.Items, &o.MerchantIDs,
		&o.ShippingAddress, &o.PaymentMethod, &o.Subtotal, &o.Tax, &o.Shipping, &o.Total,
		&o.Status, &o.PaymentStatus, &o.PaymentRef, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func collect(rows pgx.Rows, err error) ([]*Order, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO orders (id, order_number, buyer_id, buyer_email, items, merchant_ids,
			shipping_address, payment_method, subtotal, tax, shipping, total, status,
			payment_status, payment_ref, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1)
		RETURNING version, created_at, updated_at`,
		o.ID, o.OrderNumber, o.BuyerID, o.BuyerEmail, o.Items, o.MerchantIDs, o.ShippingAddress,
		o.PaymentMethod, o.Subtotal, o.Tax, o.Shipping, o.Total, o.Status, o.PaymentStatus,
		o.PaymentRef,
	).Scan(&o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, o *Order) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE orders SET status=$3, payment_status=$4, payment_ref=$5,
			version=version+1, updated_at=NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		o.ID, o.Version, o.Status, o.PaymentStatus, o.PaymentRef,
	).Scan(&o.Version, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConflict
	}
	return err
}

func (r *repoPG) page(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*Order, int, error) {
	args := []interface{}{}
	if where != "" {
		args = append(args, arg)
		where = " WHERE " + where
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	args = append(args, limit, offset)
	items, err := collect(r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderCols, where, n+1, n+2), args...))
	return items, total, err
}

func (r *repoPG) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*Order, int, error) {
	return r.page(ctx, "buyer_id = $1", buyerID, limit, offset)
}

func (r *repoPG) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]*Order, int, error) {
	return r.page(ctx, "$1 = ANY(merchant_ids)", merchantID, limit, offset)
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Order, int, error) {
	if status == "" {
		return r.page(ctx, "", nil, limit, offset)
	}
	return r.page(ctx, "status = $1", status, limit, offset)
}

func (r *repoPG) AllForMerchant(ctx context.Context, merchantID string) ([]*Order, error) {
	return collect(r.conn(ctx).Query(ctx,
		`SELECT `+orderCols+` FROM orders WHERE $1 = ANY(merchant_ids) ORDER BY created_at DESC`, merchantID))
}
