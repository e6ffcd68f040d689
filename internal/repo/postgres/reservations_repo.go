package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesalista/venue-checkin/internal/biztime"
	"github.com/mesalista/venue-checkin/internal/domain"
)

type ReservationRepo interface {
	Create(ctx context.Context, r *domain.Reservation) error
	GetByID(ctx context.Context, businessID, id string) (*domain.Reservation, error)
	Update(ctx context.Context, r *domain.Reservation) error
	ListByDay(ctx context.Context, businessID string, dayStart, dayEnd biztime.Instant) ([]domain.Reservation, error)
	CountByStatus(ctx context.Context, businessID string, dayStart, dayEnd biztime.Instant) (map[domain.Status]int, error)
}

type ReservationRepoImpl struct{ pool *pgxpool.Pool }

func NewReservationRepo(pool *pgxpool.Pool) *ReservationRepoImpl {
	return &ReservationRepoImpl{pool: pool}
}

const reservationCols = `id, business_id, reservation_number, customer_id,
customer_name, customer_phone, customer_email,
guest_count, table_number, special_requests, notes, referrer_name,
reserved_at, status, checked_in_at, created_at, updated_at`

func (r *ReservationRepoImpl) Create(ctx context.Context, res *domain.Reservation) error {
	const q = `INSERT INTO reservations (
    id, business_id, reservation_number, customer_id,
    customer_name, customer_phone, customer_email,
    guest_count, table_number, special_requests, notes, referrer_name,
    reserved_at, status
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
  RETURNING created_at, updated_at`

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		res.ID, res.BusinessID, res.ReservationNumber, res.CustomerID,
		res.CustomerName, res.CustomerPhone, res.CustomerEmail,
		res.GuestCount, res.TableNumber, res.SpecialRequests, res.Notes, res.ReferrerName,
		res.ReservedAt.Stored(), res.Status,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
}

func (r *ReservationRepoImpl) GetByID(ctx context.Context, businessID, id string) (*domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations WHERE business_id=$1 AND id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := scanReservation(r.pool.QueryRow(ctx, q, businessID, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return res, err
}

func (r *ReservationRepoImpl) Update(ctx context.Context, res *domain.Reservation) error {
	const q = `UPDATE reservations SET
    customer_id=$3, customer_name=$4, customer_phone=$5, customer_email=$6,
    guest_count=$7, table_number=$8, special_requests=$9, notes=$10, referrer_name=$11,
    reserved_at=$12, status=$13, checked_in_at=$14, updated_at=now()
  WHERE business_id=$1 AND id=$2
  RETURNING updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := r.pool.QueryRow(ctx, q,
		res.BusinessID, res.ID,
		res.CustomerID, res.CustomerName, res.CustomerPhone, res.CustomerEmail,
		res.GuestCount, res.TableNumber, res.SpecialRequests, res.Notes, res.ReferrerName,
		res.ReservedAt.Stored(), res.Status, res.CheckedInAt,
	).Scan(&res.UpdatedAt)
	if err == pgx.ErrNoRows {
		return domain.UnknownReservation(res.ID)
	}
	return err
}

func (r *ReservationRepoImpl) ListByDay(ctx context.Context, businessID string, dayStart, dayEnd biztime.Instant) ([]domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations
    WHERE business_id=$1 AND reserved_at >= $2 AND reserved_at < $3
    ORDER BY reserved_at ASC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, businessID, dayStart.Stored(), dayEnd.Stored())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (r *ReservationRepoImpl) CountByStatus(ctx context.Context, businessID string, dayStart, dayEnd biztime.Instant) (map[domain.Status]int, error) {
	const q = `SELECT status, COUNT(*) FROM reservations
    WHERE business_id=$1 AND reserved_at >= $2 AND reserved_at < $3
    GROUP BY status`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, businessID, dayStart.Stored(), dayEnd.Stored())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Status]int)
	for rows.Next() {
		var st domain.Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	var reservedAt time.Time
	err := row.Scan(
		&res.ID, &res.BusinessID, &res.ReservationNumber, &res.CustomerID,
		&res.CustomerName, &res.CustomerPhone, &res.CustomerEmail,
		&res.GuestCount, &res.TableNumber, &res.SpecialRequests, &res.Notes, &res.ReferrerName,
		&reservedAt, &res.Status, &res.CheckedInAt, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.ReservedAt = biztime.FromStored(reservedAt)
	return &res, nil
}

var _ ReservationRepo = (*ReservationRepoImpl)(nil)
