package payment

import (
	"context"
	"errors"
	"fmt"

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

func (r *repoPG) Create(ctx context.Context, o *Order) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payment_orders (gateway_order_id, user_id, target_type, target_id, amount,
			currency, receipt, mock, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		o.GatewayOrderID, o.UserID, o.TargetType, o.TargetID, o.Amount, o.Currency, o.Receipt,
		o.Mock, o.Status,
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment order: %w", err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, gatewayOrderID string) (*Order, error) {
	var o Order
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT gateway_order_id, user_id, target_type, target_id, amount, currency, receipt, mock,
			status, payment_id, created_at, verified_at
		FROM payment_orders WHERE gateway_order_id = $1`, gatewayOrderID,
	).Scan(&o.GatewayOrderID, &o.UserID, &o.TargetType, &o.TargetID, &o.Amount, &o.Currency,
		&o.Receipt, &o.Mock, &o.Status, &o.PaymentID, &o.CreatedAt, &o.VerifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repoPG) MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE payment_orders SET status = 'paid', payment_id = $2, verified_at = NOW()
		WHERE gateway_order_id = $1 AND status = 'created'`, gatewayOrderID, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
