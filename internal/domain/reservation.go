package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/mesalista/venue-checkin/internal/biztime"
)

// Status is the reservation lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCheckedIn Status = "CHECKED_IN"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

// ParseStatus normalizes and validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", Validation(fmt.Sprintf("unknown reservation status %q", s))
}

// Terminal reports whether no further lifecycle transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Arrived reports whether at least one guest has been recorded on site.
func (s Status) Arrived() bool { return s == StatusCheckedIn }

// Reservation is the aggregate root for a venue booking.
type Reservation struct {
	ID                string
	BusinessID        string
	ReservationNumber string
	CustomerID        *string
	CustomerName      string
	CustomerPhone     string
	CustomerEmail     string
	GuestCount        int
	TableNumber       string
	SpecialRequests   string
	Notes             string
	ReferrerName      string
	ReservedAt        biztime.Instant
	Status            Status
	CheckedInAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RecordArrival transitions the reservation on a guest scan. The first scan
// of a PENDING or CONFIRMED reservation moves it to CHECKED_IN and reports
// true; subsequent scans while CHECKED_IN are legal and report false.
// Terminal states reject the scan.
func (r *Reservation) RecordArrival(at time.Time) (bool, error) {
	switch r.Status {
	case StatusPending, StatusConfirmed:
		r.Status = StatusCheckedIn
		r.CheckedInAt = &at
		return true, nil
	case StatusCheckedIn:
		return false, nil
	}
	return false, InvalidState(r.Status, "record_arrival")
}

// Reschedule moves the reservation to a new wall-clock instant. Only
// reservations that have not reached a terminal state can move.
func (r *Reservation) Reschedule(newAt biztime.Instant) error {
	if r.Status.Terminal() {
		return InvalidState(r.Status, "reschedule")
	}
	r.ReservedAt = newAt
	return nil
}

// Confirm acknowledges a pending reservation.
func (r *Reservation) Confirm() error {
	switch r.Status {
	case StatusPending:
		r.Status = StatusConfirmed
		return nil
	case StatusConfirmed:
		return nil
	}
	return InvalidState(r.Status, "confirm")
}

// Cancel is idempotent: cancelling an already-cancelled reservation is a
// no-op. Other terminal states reject the transition.
func (r *Reservation) Cancel() error {
	if r.Status == StatusCancelled {
		return nil
	}
	if r.Status.Terminal() {
		return InvalidState(r.Status, "cancel")
	}
	r.Status = StatusCancelled
	return nil
}

// Complete closes out a checked-in reservation at the end of service.
func (r *Reservation) Complete() error {
	if r.Status != StatusCheckedIn {
		return InvalidState(r.Status, "complete")
	}
	r.Status = StatusCompleted
	return nil
}

// MarkNoShow flags a reservation whose party never arrived.
func (r *Reservation) MarkNoShow() error {
	switch r.Status {
	case StatusPending, StatusConfirmed:
		r.Status = StatusNoShow
		return nil
	}
	return InvalidState(r.Status, "mark_no_show")
}
