package domain

import "time"

// AttendanceRecord mirrors a reservation's on-site head count for the host
// dashboard. One record per reservation; GuestCount here tracks scans, not
// the booked party size.
type AttendanceRecord struct {
	ID              string
	BusinessID      string
	ReservationID   string
	CustomerID      string
	ReservationName string
	TableNumber     string
	BusinessDate    string
	GuestCount      int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReconcileResult is the computed outcome of an increment scan. The caller
// persists NewScanCount and NewAttendanceCount in one transaction and emits
// events from the rest.
type ReconcileResult struct {
	NewScanCount       int
	NewAttendanceCount int
	Overflow           int
	IsFirstArrival     bool
	CreateRecord       bool
}

// Reconcile computes the effect of admitting delta guests against a
// reservation, its QR credential, and the (possibly absent) attendance
// record. It mutates the reservation through the lifecycle transition but
// touches nothing else; persistence is the caller's job.
//
// Overflow past the booked party size is informational and never blocks
// the scan.
func Reconcile(res *Reservation, qr *QRCode, att *AttendanceRecord, delta int, at time.Time) (ReconcileResult, error) {
	if delta <= 0 {
		return ReconcileResult{}, Validation("increment must be a positive integer")
	}
	isFirst, err := res.RecordArrival(at)
	if err != nil {
		return ReconcileResult{}, err
	}

	out := ReconcileResult{
		NewScanCount:   qr.ScanCount + delta,
		IsFirstArrival: isFirst,
		CreateRecord:   att == nil,
	}
	out.NewAttendanceCount = out.NewScanCount
	if over := out.NewScanCount - res.GuestCount; over > 0 {
		out.Overflow = over
	}
	return out, nil
}
