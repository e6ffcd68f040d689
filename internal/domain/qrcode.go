package domain

import (
	"time"

	"github.com/mesalista/venue-checkin/internal/biztime"
)

// QRStatus is the lifecycle state of an issued QR credential.
type QRStatus string

const (
	QRActive    QRStatus = "ACTIVE"
	QRExpired   QRStatus = "EXPIRED"
	QRUsed      QRStatus = "USED"
	QRCancelled QRStatus = "CANCELLED"
)

// QRCode is the scannable credential bound to a reservation. Token is the
// only secret: validation compares the presented token against this value
// with strict equality. Payload keeps the JSON blob that was encoded into
// the printed code, for reprints and audits.
type QRCode struct {
	ID            string
	BusinessID    string
	ReservationID string
	Token         string
	Payload       []byte
	ScanCount     int
	LastScannedAt *time.Time
	ExpiresAt     biztime.Instant
	Status        QRStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Usable reports whether the credential can still admit guests. Expiry is
// enforced by the window check against the reservation instant, not here;
// this only gates explicit revocation.
func (q *QRCode) Usable() bool {
	return q.Status == QRActive || q.Status == QRUsed
}
