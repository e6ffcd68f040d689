package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesalista/venue-checkin/internal/domain"
)

type CustomerRepo interface {
	Create(ctx context.Context, c *domain.Customer) error
	GetByID(ctx context.Context, businessID, id string) (*domain.Customer, error)
	FindByPhone(ctx context.Context, businessID, phone string) (*domain.Customer, error)
}

type CustomerRepoImpl struct{ pool *pgxpool.Pool }

func NewCustomerRepo(pool *pgxpool.Pool) *CustomerRepoImpl { return &CustomerRepoImpl{pool: pool} }

const customerCols = `id, business_id, name, phone, email, document_id, points,
created_at, updated_at`

func (r *CustomerRepoImpl) Create(ctx context.Context, c *domain.Customer) error {
	const q = `INSERT INTO customers (
    id, business_id, name, phone, email, document_id, points
  ) VALUES ($1,$2,$3,$4,$5,$6,$7)
  RETURNING created_at, updated_at`

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		c.ID, c.BusinessID, c.Name, c.Phone, c.Email, c.DocumentID, c.Points,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *CustomerRepoImpl) GetByID(ctx context.Context, businessID, id string) (*domain.Customer, error) {
	const q = `SELECT ` + customerCols + ` FROM customers WHERE business_id=$1 AND id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanCustomer(r.pool.QueryRow(ctx, q, businessID, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *CustomerRepoImpl) FindByPhone(ctx context.Context, businessID, phone string) (*domain.Customer, error) {
	const q = `SELECT ` + customerCols + ` FROM customers
    WHERE business_id=$1 AND phone=$2
    ORDER BY created_at ASC LIMIT 1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanCustomer(r.pool.QueryRow(ctx, q, businessID, phone))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID, &c.BusinessID, &c.Name, &c.Phone, &c.Email, &c.DocumentID, &c.Points,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ CustomerRepo = (*CustomerRepoImpl)(nil)
