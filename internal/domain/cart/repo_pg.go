package cart

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

func (r *repoPG) Get(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c := Cart{UserID: userID}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT items, version, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&c.Items, &c.Version, &c.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	c.recompute()
	return &c, nil
}

func (r *repoPG) Save(ctx context.Context, c *Cart) error {
	c.recompute()
	var err error
	if c.Version == 0 {
		err = r.conn(ctx).QueryRow(ctx, `
			INSERT INTO carts (user_id, items, total_amount, version)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING version, updated_at`,
			c.UserID, c.Items, c.TotalAmount,
		).Scan(&c.Version, &c.UpdatedAt)
	} else {
		err = r.conn(ctx).QueryRow(ctx, `
			UPDATE carts SET items=$3, total_amount=$4, version=version+1, updated_at=NOW()
			WHERE user_id = $1 AND version = $2
			RETURNING version, updated_at`,
			c.UserID, c.Version, c.Items, c.TotalAmount,
		).Scan(&c.Version, &c.UpdatedAt)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
