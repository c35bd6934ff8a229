package catalog

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

// =========== Product Repository ===========

type productRepoPG struct{ pool *pgxpool.Pool }

func NewProductRepoPG(pool *pgxpool.Pool) ProductRepository {
	return &productRepoPG{pool: pool}
}

func (r *productRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const productCols = `id, merchant_id, name, description, category, price, stock, image_url,
	rentable, rent_price_per_period, rent_period, security_deposit, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.MerchantID, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.Stock, &p.ImageURL, &p.Rentable, &p.RentPricePerPeriod, &p.RentPeriod,
		&p.SecurityDeposit, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepoPG) Create(ctx context.Context, p *Product) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO products (id, merchant_id, name, description, category, price, stock, image_url,
			rentable, rent_price_per_period, rent_period, security_deposit, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		p.ID, p.MerchantID, p.Name, p.Description, p.Category, p.Price, p.Stock, p.ImageURL,
		p.Rentable, p.RentPricePerPeriod, p.RentPeriod, p.SecurityDeposit, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *productRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return scanProduct(r.conn(ctx).QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id))
}

func (r *productRepoPG) Update(ctx context.Context, p *Product) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE products SET name=$2, description=$3, category=$4, price=$5, stock=$6, image_url=$7,
			rentable=$8, rent_price_per_period=$9, rent_period=$10, security_deposit=$11, active=$12,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Category, p.Price, p.Stock, p.ImageURL,
		p.Rentable, p.RentPricePerPeriod, p.RentPeriod, p.SecurityDeposit, p.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepoPG) List(ctx context.Context, f ProductFilter, limit, offset int) ([]*Product, int, error) {
	var where []string
	var args []interface{}
	idx := 1
	if f.MerchantID != "" {
		where = append(where, fmt.Sprintf("merchant_id = $%d", idx))
		args = append(args, f.MerchantID)
		idx++
	}
	if f.Category != "" {
		where = append(where, fmt.Sprintf("LOWER(category) = LOWER($%d)", idx))
		args = append(args, f.Category)
		idx++
	}
	if f.Rentable != nil {
		where = append(where, fmt.Sprintf("rentable = $%d", idx))
		args = append(args, *f.Rentable)
		idx++
	}
	if f.ActiveOnly {
		where = append(where, "active")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	order := "created_at DESC"
	if f.OrderByStock {
		order = "stock DESC, name"
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM products`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productCols, clause, order, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *productRepoPG) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}
	return nil
}

// =========== Service Repository ===========

type serviceRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRepoPG(pool *pgxpool.Pool) MedicalServiceRepository {
	return &serviceRepoPG{pool: pool}
}

func (r *serviceRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const serviceCols = `id, name, description, category, price, duration_minutes, active, created_at, updated_at`

func scanService(row pgx.Row) (*MedicalService, error) {
	var s MedicalService
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Category, &s.Price, &s.DurationMinutes,
		&s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *serviceRepoPG) Create(ctx context.Context, s *MedicalService) error {
	s.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO services (id, name, description, category, price, duration_minutes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Description, s.Category, s.Price, s.DurationMinutes, s.Active,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	return scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+serviceCols+` FROM services WHERE id = $1`, id))
}

func (r *serviceRepoPG) Update(ctx context.Context, s *MedicalService) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE services SET name=$2, description=$3, category=$4, price=$5, duration_minutes=$6,
			active=$7, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Description, s.Category, s.Price, s.DurationMinutes, s.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *serviceRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*MedicalService, int, error) {
	clause := ""
	if activeOnly {
		clause = " WHERE active"
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM services`+clause).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM services`+clause+
		` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
