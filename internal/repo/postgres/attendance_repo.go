package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesalista/venue-checkin/internal/domain"
)

type AttendanceRepo interface {
	Create(ctx context.Context, a *domain.AttendanceRecord) error
	GetByReservation(ctx context.Context, businessID, reservationID string) (*domain.AttendanceRecord, error)
	ListByDate(ctx context.Context, businessID, businessDate string) ([]domain.AttendanceRecord, error)
	Deactivate(ctx context.Context, businessID, reservationID string) error
}

type AttendanceRepoImpl struct{ pool *pgxpool.Pool }

func NewAttendanceRepo(pool *pgxpool.Pool) *AttendanceRepoImpl {
	return &AttendanceRepoImpl{pool: pool}
}

const attendanceCols = `id, business_id, reservation_id, customer_id,
reservation_name, table_number, business_date, guest_count, is_active,
created_at, updated_at`

func (r *AttendanceRepoImpl) Create(ctx context.Context, a *domain.AttendanceRecord) error {
	const q = `INSERT INTO attendance_records (
    id, business_id, reservation_id, customer_id,
    reservation_name, table_number, business_date, guest_count, is_active
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  RETURNING created_at, updated_at`

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		a.ID, a.BusinessID, a.ReservationID, a.CustomerID,
		a.ReservationName, a.TableNumber, a.BusinessDate, a.GuestCount, a.IsActive,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AttendanceRepoImpl) GetByReservation(ctx context.Context, businessID, reservationID string) (*domain.AttendanceRecord, error) {
	const q = `SELECT ` + attendanceCols + ` FROM attendance_records
    WHERE business_id=$1 AND reservation_id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAttendance(r.pool.QueryRow(ctx, q, businessID, reservationID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *AttendanceRepoImpl) ListByDate(ctx context.Context, businessID, businessDate string) ([]domain.AttendanceRecord, error) {
	const q = `SELECT ` + attendanceCols + ` FROM attendance_records
    WHERE business_id=$1 AND business_date=$2 AND is_active
    ORDER BY updated_at DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, businessID, businessDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AttendanceRecord
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AttendanceRepoImpl) Deactivate(ctx context.Context, businessID, reservationID string) error {
	const q = `UPDATE attendance_records SET is_active=false, updated_at=now()
    WHERE business_id=$1 AND reservation_id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, businessID, reservationID)
	return err
}

func scanAttendance(row pgx.Row) (*domain.AttendanceRecord, error) {
	var a domain.AttendanceRecord
	err := row.Scan(
		&a.ID, &a.BusinessID, &a.ReservationID, &a.CustomerID,
		&a.ReservationName, &a.TableNumber, &a.BusinessDate, &a.GuestCount, &a.IsActive,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

var _ AttendanceRepo = (*AttendanceRepoImpl)(nil)
