package qr

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesalista/venue-checkin/internal/biztime"
	"github.com/mesalista/venue-checkin/internal/domain"
)

// NewToken mints a fresh opaque token. A reservation has exactly one active
// token at a time; regeneration replaces it wholesale.
func NewToken() string {
	return uuid.NewString()
}

// Issue builds a new credential for a reservation: fresh token, embedded
// JSON payload, and expiry derived from the reservation instant plus the
// configured lifetime. Used both at creation and on reschedule (the old
// credential's token and payload are overwritten, the scan counter is the
// caller's to preserve or reset).
func Issue(res *domain.Reservation, lifetime time.Duration, issuedAt time.Time) (*domain.QRCode, error) {
	token := NewToken()
	payload, err := encodePayload(res, token, issuedAt)
	if err != nil {
		return nil, err
	}
	return &domain.QRCode{
		BusinessID:    res.BusinessID,
		ReservationID: res.ID,
		Token:         token,
		Payload:       payload,
		ExpiresAt:     res.ReservedAt.Add(lifetime),
		Status:        domain.QRActive,
	}, nil
}

// Regenerate refreshes an existing credential after the reservation's
// instant changed: new token, new payload, new expiry. The scan counter
// survives so an already-arrived party keeps its head count.
func Regenerate(rec *domain.QRCode, res *domain.Reservation, lifetime time.Duration, issuedAt time.Time) error {
	token := NewToken()
	payload, err := encodePayload(res, token, issuedAt)
	if err != nil {
		return err
	}
	rec.Token = token
	rec.Payload = payload
	rec.ExpiresAt = res.ReservedAt.Add(lifetime)
	rec.Status = domain.QRActive
	return nil
}

func encodePayload(res *domain.Reservation, token string, issuedAt time.Time) ([]byte, error) {
	p := jsonPayload{
		ReservaID: res.ID,
		Token:     token,
		Timestamp: float64(issuedAt.UnixMilli()),
		Cliente:   res.CustomerName,
		Fecha:     res.ReservedAt.ExtractDate(),
		Hora:      res.ReservedAt.ExtractTime(),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}
	return b, nil
}

// ExpiryFor derives a credential expiry from a reservation instant.
func ExpiryFor(reservedAt biztime.Instant, lifetime time.Duration) biztime.Instant {
	return reservedAt.Add(lifetime)
}
