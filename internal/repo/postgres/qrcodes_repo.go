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

type QRCodeRepo interface {
	Create(ctx context.Context, qr *domain.QRCode) error
	GetByReservation(ctx context.Context, businessID, reservationID string) (*domain.QRCode, error)
	Replace(ctx context.Context, qr *domain.QRCode) error
	ApplyScan(ctx context.Context, m *ScanMutation) error
}

type QRCodeRepoImpl struct{ pool *pgxpool.Pool }

func NewQRCodeRepo(pool *pgxpool.Pool) *QRCodeRepoImpl { return &QRCodeRepoImpl{pool: pool} }

const qrCols = `id, business_id, reservation_id, token, payload,
scan_count, last_scanned_at, expires_at, status, created_at, updated_at`

func (r *QRCodeRepoImpl) Create(ctx context.Context, qr *domain.QRCode) error {
	const q = `INSERT INTO qr_codes (
    id, business_id, reservation_id, token, payload, expires_at, status
  ) VALUES ($1,$2,$3,$4,$5,$6,$7)
  RETURNING created_at, updated_at`

	if qr.ID == "" {
		qr.ID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		qr.ID, qr.BusinessID, qr.ReservationID, qr.Token, qr.Payload,
		qr.ExpiresAt.Stored(), qr.Status,
	).Scan(&qr.CreatedAt, &qr.UpdatedAt)
}

func (r *QRCodeRepoImpl) GetByReservation(ctx context.Context, businessID, reservationID string) (*domain.QRCode, error) {
	const q = `SELECT ` + qrCols + ` FROM qr_codes
    WHERE business_id=$1 AND reservation_id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	qr, err := scanQRCode(r.pool.QueryRow(ctx, q, businessID, reservationID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return qr, err
}

// Replace overwrites the credential after a regeneration: new token,
// payload, expiry. The scan counter is written as-is so the caller decides
// whether it survives.
func (r *QRCodeRepoImpl) Replace(ctx context.Context, qr *domain.QRCode) error {
	const q = `UPDATE qr_codes SET
    token=$3, payload=$4, scan_count=$5, expires_at=$6, status=$7, updated_at=now()
  WHERE business_id=$1 AND id=$2
  RETURNING updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		qr.BusinessID, qr.ID,
		qr.Token, qr.Payload, qr.ScanCount, qr.ExpiresAt.Stored(), qr.Status,
	).Scan(&qr.UpdatedAt)
}

// ScanMutation is a fully-computed scan commit: the new counter values, the
// reservation's post-transition state, the attendance mirror, and (on the
// first increment without a phone match) the customer the record points at.
// ApplyScan persists all of it in one transaction or none of it.
type ScanMutation struct {
	BusinessID        string
	QRCodeID          string
	ExpectedScanCount int
	NewScanCount      int
	ScannedAt         time.Time
	Reservation       *domain.Reservation
	NewCustomer       *domain.Customer
	Attendance        *domain.AttendanceRecord
}

// ErrScanConflict signals that another scan committed between read and
// write. Callers reload and recompute.
var ErrScanConflict = domain.NewError(domain.KindConflict, "concurrent scan detected, retry")

// ApplyScan commits a scan atomically. The QR counter update carries an
// optimistic guard on the previously-read value; losing the race to a
// concurrent scan returns ErrScanConflict with nothing written.
func (r *QRCodeRepoImpl) ApplyScan(ctx context.Context, m *ScanMutation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const qQR = `UPDATE qr_codes SET
    scan_count=$3, last_scanned_at=$4, status=$5, updated_at=now()
  WHERE business_id=$1 AND id=$2 AND scan_count=$6`
	ct, err := tx.Exec(ctx, qQR,
		m.BusinessID, m.QRCodeID,
		m.NewScanCount, m.ScannedAt, domain.QRUsed, m.ExpectedScanCount,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrScanConflict
	}

	res := m.Reservation
	const qRes = `UPDATE reservations SET status=$3, checked_in_at=$4, updated_at=now()
  WHERE business_id=$1 AND id=$2`
	if _, err := tx.Exec(ctx, qRes, m.BusinessID, res.ID, res.Status, res.CheckedInAt); err != nil {
		return err
	}

	if c := m.NewCustomer; c != nil {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		const qCust = `INSERT INTO customers (
    id, business_id, name, phone, email, document_id, points
  ) VALUES ($1,$2,$3,$4,$5,$6,$7)`
		if _, err := tx.Exec(ctx, qCust,
			c.ID, c.BusinessID, c.Name, c.Phone, c.Email, c.DocumentID, c.Points,
		); err != nil {
			return err
		}
		m.Attendance.CustomerID = c.ID
	}

	att := m.Attendance
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	const qAtt = `INSERT INTO attendance_records (
    id, business_id, reservation_id, customer_id,
    reservation_name, table_number, business_date, guest_count, is_active
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,true)
  ON CONFLICT (reservation_id) DO UPDATE
    SET guest_count=EXCLUDED.guest_count, is_active=true, updated_at=now()`
	if _, err := tx.Exec(ctx, qAtt,
		att.ID, att.BusinessID, att.ReservationID, att.CustomerID,
		att.ReservationName, att.TableNumber, att.BusinessDate, att.GuestCount,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanQRCode(row pgx.Row) (*domain.QRCode, error) {
	var qr domain.QRCode
	var expiresAt time.Time
	err := row.Scan(
		&qr.ID, &qr.BusinessID, &qr.ReservationID, &qr.Token, &qr.Payload,
		&qr.ScanCount, &qr.LastScannedAt, &expiresAt, &qr.Status, &qr.CreatedAt, &qr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	qr.ExpiresAt = biztime.FromStored(expiresAt)
	return &qr, nil
}

var _ QRCodeRepo = (*QRCodeRepoImpl)(nil)
