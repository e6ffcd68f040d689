package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesalista/venue-checkin/internal/domain"
)

// GuestRepo resolves opaque QR tokens against the event guest list. A
// scanned code that is neither a reservation id nor a reservation payload
// is checked here before being rejected.
type GuestRepo interface {
	FindByToken(ctx context.Context, businessID, token string) (*domain.EventGuest, error)
	MarkCheckedIn(ctx context.Context, g *domain.EventGuest) error
}

type GuestRepoImpl struct{ pool *pgxpool.Pool }

func NewGuestRepo(pool *pgxpool.Pool) *GuestRepoImpl { return &GuestRepoImpl{pool: pool} }

const guestCols = `id, business_id, event_id, name, qr_token, guest_count,
status, checked_in_at, created_at, updated_at`

func (r *GuestRepoImpl) FindByToken(ctx context.Context, businessID, token string) (*domain.EventGuest, error) {
	const q = `SELECT ` + guestCols + ` FROM event_guests
    WHERE business_id=$1 AND qr_token=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var g domain.EventGuest
	err := r.pool.QueryRow(ctx, q, businessID, token).Scan(
		&g.ID, &g.BusinessID, &g.EventID, &g.Name, &g.QRToken, &g.GuestCount,
		&g.Status, &g.CheckedInAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GuestRepoImpl) MarkCheckedIn(ctx context.Context, g *domain.EventGuest) error {
	const q = `UPDATE event_guests SET status=$3, checked_in_at=$4, updated_at=now()
    WHERE business_id=$1 AND id=$2
    RETURNING updated_at`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q, g.BusinessID, g.ID, g.Status, g.CheckedInAt).Scan(&g.UpdatedAt)
}

var _ GuestRepo = (*GuestRepoImpl)(nil)
