// Package checkin orchestrates QR scans: payload parsing, window and token
// validation, the attendance increment transaction, and event publication.
package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/mesalista/venue-checkin/internal/biztime"
	"github.com/mesalista/venue-checkin/internal/domain"
	"github.com/mesalista/venue-checkin/internal/qr"
	"github.com/mesalista/venue-checkin/internal/repo/postgres"
	"github.com/mesalista/venue-checkin/internal/stream"
	"github.com/mesalista/venue-checkin/pkg/events"
	"github.com/mesalista/venue-checkin/pkg/logger"
)

// Actions accepted on a scan request.
const (
	ActionInfo      = "info"
	ActionIncrement = "increment"
)

// scanRetries bounds how often an increment recomputes after losing the
// optimistic-guard race to a concurrent scan of the same code.
const scanRetries = 3

// ScanRequest is one scanner submission.
type ScanRequest struct {
	QRCode    string `json:"qrCode"`
	Action    string `json:"action"`
	Increment int    `json:"increment,omitempty"`
}

// ScanResult is the summary returned for both info reads and increments.
type ScanResult struct {
	ReservationID     string        `json:"reservationId,omitempty"`
	ReservationNumber string        `json:"reservationNumber,omitempty"`
	CustomerName      string        `json:"customerName"`
	Status            domain.Status `json:"status"`
	Date              string        `json:"date,omitempty"`
	Time              string        `json:"time,omitempty"`
	TableNumber       string        `json:"tableNumber,omitempty"`
	GuestCount        int           `json:"guestCount"`
	ScanCount         int           `json:"scanCount"`
	Overflow          int           `json:"overflow"`
	IsFirstScan       bool          `json:"isFirstScan,omitempty"`
	GuestEntry        bool          `json:"guestEntry,omitempty"`
}

type Service interface {
	Scan(ctx context.Context, businessID string, req *ScanRequest) (*ScanResult, error)
}

type service struct {
	reservations postgres.ReservationRepo
	qrCodes      postgres.QRCodeRepo
	attendance   postgres.AttendanceRepo
	customers    postgres.CustomerRepo
	guests       postgres.GuestRepo
	resolver     *biztime.Resolver
	policy       qr.WindowPolicy
	hub          *stream.Hub
	bus          events.Publisher
}

func NewService(
	reservations postgres.ReservationRepo,
	qrCodes postgres.QRCodeRepo,
	attendance postgres.AttendanceRepo,
	customers postgres.CustomerRepo,
	guests postgres.GuestRepo,
	resolver *biztime.Resolver,
	policy qr.WindowPolicy,
	hub *stream.Hub,
	bus events.Publisher,
) Service {
	return &service{
		reservations: reservations,
		qrCodes:      qrCodes,
		attendance:   attendance,
		customers:    customers,
		guests:       guests,
		resolver:     resolver,
		policy:       policy,
		hub:          hub,
		bus:          bus,
	}
}

func (s *service) Scan(ctx context.Context, businessID string, req *ScanRequest) (*ScanResult, error) {
	if req.Action != ActionInfo && req.Action != ActionIncrement {
		return nil, domain.Validation(fmt.Sprintf("unknown action %q", req.Action))
	}

	payload, err := qr.ParsePayload(req.QRCode)
	if err != nil {
		return nil, err
	}
	if payload.Kind == qr.KindOpaque {
		return s.scanGuest(ctx, businessID, payload, req)
	}

	res, err := s.reservations.GetByID(ctx, businessID, payload.ReservationID)
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	if res == nil {
		return nil, domain.UnknownReservation(payload.ReservationID)
	}

	rec, err := s.qrCodes.GetByReservation(ctx, businessID, res.ID)
	if err != nil {
		return nil, fmt.Errorf("load qr record: %w", err)
	}
	if rec == nil || !rec.Usable() {
		return nil, domain.UnknownToken()
	}

	// Bare-id codes carry no token of their own; the active record vouches
	// for them. JSON codes must present the currently active token.
	if payload.Kind == qr.KindJSON && !qr.VerifyToken(rec, payload.Token) {
		return nil, domain.UnknownToken()
	}

	if err := qr.CheckWindow(s.resolver.Now(), res.ReservedAt, s.policy); err != nil {
		return nil, err
	}

	if req.Action == ActionInfo {
		return s.summarize(res, rec), nil
	}
	return s.increment(ctx, businessID, res, rec, req.Increment)
}

func (s *service) increment(ctx context.Context, businessID string, res *domain.Reservation, rec *domain.QRCode, delta int) (*ScanResult, error) {
	if delta < 1 {
		return nil, domain.Validation("increment must be a positive integer")
	}

	var (
		result domain.ReconcileResult
		final  domain.Reservation
	)
	for attempt := 0; ; attempt++ {
		att, err := s.attendance.GetByReservation(ctx, businessID, res.ID)
		if err != nil {
			return nil, fmt.Errorf("load attendance record: %w", err)
		}

		now := time.Now().UTC()
		final = *res
		result, err = domain.Reconcile(&final, rec, att, delta, now)
		if err != nil {
			return nil, err
		}

		customerID := ""
		if res.CustomerID != nil {
			customerID = *res.CustomerID
		}
		var newCustomer *domain.Customer
		if result.CreateRecord && customerID == "" {
			customerID, newCustomer, err = s.resolveCustomer(ctx, res)
			if err != nil {
				return nil, domain.CustomerResolution(err)
			}
		}

		mutation := &postgres.ScanMutation{
			BusinessID:        businessID,
			QRCodeID:          rec.ID,
			ExpectedScanCount: rec.ScanCount,
			NewScanCount:      result.NewScanCount,
			ScannedAt:         now,
			Reservation:       &final,
			NewCustomer:       newCustomer,
			Attendance: &domain.AttendanceRecord{
				BusinessID:      businessID,
				ReservationID:   res.ID,
				CustomerID:      customerID,
				ReservationName: res.CustomerName,
				TableNumber:     res.TableNumber,
				BusinessDate:    s.resolver.BusinessDateOf(res.ReservedAt),
				GuestCount:      result.NewAttendanceCount,
				IsActive:        true,
			},
		}
		if att != nil {
			mutation.Attendance.ID = att.ID
		}

		err = s.qrCodes.ApplyScan(ctx, mutation)
		if err == nil {
			break
		}
		if err != postgres.ErrScanConflict || attempt+1 >= scanRetries {
			return nil, fmt.Errorf("commit scan: %w", err)
		}

		logger.WarnContext(ctx, "scan lost optimistic race, retrying",
			"reservation_id", res.ID, "attempt", attempt+1)
		res, err = s.reservations.GetByID(ctx, businessID, res.ID)
		if err != nil || res == nil {
			return nil, fmt.Errorf("reload reservation after conflict: %w", err)
		}
		rec, err = s.qrCodes.GetByReservation(ctx, businessID, res.ID)
		if err != nil || rec == nil {
			return nil, fmt.Errorf("reload qr record after conflict: %w", err)
		}
	}

	rec.ScanCount = result.NewScanCount
	out := s.summarize(&final, rec)
	out.IsFirstScan = result.IsFirstArrival
	s.publishScan(ctx, businessID, &final, result)
	return out, nil
}

// resolveCustomer finds the customer an attendance record points at. Phone
// is the lookup key; a reservation without a match gets a customer built
// from its denormalized contact fields, inserted by the scan transaction so
// a failed commit leaves no orphan row.
func (s *service) resolveCustomer(ctx context.Context, res *domain.Reservation) (string, *domain.Customer, error) {
	if res.CustomerPhone != "" {
		c, err := s.customers.FindByPhone(ctx, res.BusinessID, res.CustomerPhone)
		if err != nil {
			return "", nil, fmt.Errorf("lookup customer by phone: %w", err)
		}
		if c != nil {
			return c.ID, nil, nil
		}
	}
	c := &domain.Customer{
		BusinessID: res.BusinessID,
		Name:       res.CustomerName,
		Phone:      res.CustomerPhone,
		Email:      res.CustomerEmail,
	}
	return "", c, nil
}

func (s *service) scanGuest(ctx context.Context, businessID string, payload qr.Payload, req *ScanRequest) (*ScanResult, error) {
	g, err := s.guests.FindByToken(ctx, businessID, payload.Token)
	if err != nil {
		return nil, fmt.Errorf("lookup guest credential: %w", err)
	}
	if g == nil {
		return nil, domain.UnknownToken()
	}

	out := &ScanResult{
		CustomerName: g.Name,
		GuestCount:   g.GuestCount,
		Status:       domain.Status(g.Status),
		GuestEntry:   true,
	}
	if req.Action == ActionInfo {
		return out, nil
	}

	first, err := g.CheckIn(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.guests.MarkCheckedIn(ctx, g); err != nil {
		return nil, fmt.Errorf("persist guest check-in: %w", err)
	}
	out.Status = domain.Status(g.Status)
	out.IsFirstScan = first

	s.hub.Publish(businessID, stream.EventQRScanned, map[string]any{
		"guestId":     g.ID,
		"guestName":   g.Name,
		"isFirstScan": first,
	})
	return out, nil
}

func (s *service) summarize(res *domain.Reservation, rec *domain.QRCode) *ScanResult {
	overflow := rec.ScanCount - res.GuestCount
	if overflow < 0 {
		overflow = 0
	}
	return &ScanResult{
		ReservationID:     res.ID,
		ReservationNumber: res.ReservationNumber,
		CustomerName:      res.CustomerName,
		Status:            res.Status,
		Date:              res.ReservedAt.ExtractDate(),
		Time:              res.ReservedAt.ExtractTime(),
		TableNumber:       res.TableNumber,
		GuestCount:        res.GuestCount,
		ScanCount:         rec.ScanCount,
		Overflow:          overflow,
	}
}

func (s *service) publishScan(ctx context.Context, businessID string, res *domain.Reservation, result domain.ReconcileResult) {
	s.hub.Publish(businessID, stream.EventQRScanned, map[string]any{
		"reservationId": res.ID,
		"scanCount":     result.NewScanCount,
		"guestCount":    res.GuestCount,
		"overflow":      result.Overflow,
		"isFirstScan":   result.IsFirstArrival,
		"status":        res.Status,
	})
	s.hub.Publish(businessID, stream.EventAttendanceUpdated, map[string]any{
		"reservationId": res.ID,
		"guestCount":    result.NewAttendanceCount,
	})

	evt := events.QRScannedEvent{
		BusinessID:    businessID,
		ReservationID: res.ID,
		CustomerName:  res.CustomerName,
		ScanCount:     result.NewScanCount,
		GuestCount:    res.GuestCount,
		Overflow:      result.Overflow,
		IsFirstScan:   result.IsFirstArrival,
		Status:        string(res.Status),
		ScannedAt:     time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, events.QRScanned, evt); err != nil {
		logger.ErrorContext(ctx, "failed to publish qr-scanned event",
			"error", err, "reservation_id", res.ID)
	}

	attEvt := events.AttendanceUpdatedEvent{
		ReservationID: res.ID,
		BusinessID:    businessID,
		GuestCount:    result.NewAttendanceCount,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, events.AttendanceUpdated, attEvt); err != nil {
		logger.ErrorContext(ctx, "failed to publish attendance event",
			"error", err, "reservation_id", res.ID)
	}
}
