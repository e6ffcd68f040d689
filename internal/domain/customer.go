package domain

import "time"

// Customer is a venue patron. Phone is the primary resolution key when a
// scan needs to attach an attendance record to a person.
type Customer struct {
	ID         string
	BusinessID string
	Name       string
	Phone      string
	Email      string
	DocumentID string
	Points     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GuestStatus is the lifecycle of an event guest-list entry.
type GuestStatus string

const (
	GuestRegistered GuestStatus = "REGISTERED"
	GuestCheckedIn  GuestStatus = "CHECKED_IN"
	GuestCancelled  GuestStatus = "CANCELLED"
)

// EventGuest is a guest-list entry for a ticketed event. Its QR carries an
// opaque token instead of a reservation payload; the scanner resolves the
// token through this table.
type EventGuest struct {
	ID          string
	BusinessID  string
	EventID     string
	Name        string
	QRToken     string
	GuestCount  int
	Status      GuestStatus
	CheckedInAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CheckIn admits the guest. Re-scanning an already-admitted guest is legal.
func (g *EventGuest) CheckIn(at time.Time) (bool, error) {
	switch g.Status {
	case GuestRegistered:
		g.Status = GuestCheckedIn
		g.CheckedInAt = &at
		return true, nil
	case GuestCheckedIn:
		return false, nil
	}
	return false, NewError(KindInvalidState, "guest entry is cancelled").
		WithDetail("status", string(g.Status))
}
