// Package reservations manages the booking lifecycle outside of scans:
// creation with credential issuance, reschedules, cancellation, close-out,
// and day-level reporting.
package reservations

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/mesalista/venue-checkin/internal/biztime"
	"github.com/mesalista/venue-checkin/internal/domain"
	"github.com/mesalista/venue-checkin/internal/qr"
	"github.com/mesalista/venue-checkin/internal/repo/postgres"
	"github.com/mesalista/venue-checkin/internal/stream"
	"github.com/mesalista/venue-checkin/pkg/events"
	"github.com/mesalista/venue-checkin/pkg/logger"
)

// CreateRequest carries the fields a front desk or public form submits.
type CreateRequest struct {
	CustomerName    string `json:"customerName"`
	CustomerPhone   string `json:"customerPhone"`
	CustomerEmail   string `json:"customerEmail,omitempty"`
	GuestCount      int    `json:"guestCount"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	TableNumber     string `json:"tableNumber,omitempty"`
	SpecialRequests string `json:"specialRequests,omitempty"`
	Notes           string `json:"notes,omitempty"`
	ReferrerName    string `json:"referrerName,omitempty"`
	Confirmed       bool   `json:"confirmed,omitempty"`
}

// RescheduleRequest moves a reservation to a new date/time.
type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// DayStats summarizes one business day for the dashboard.
type DayStats struct {
	BusinessDate   string                `json:"businessDate"`
	Total          int                   `json:"total"`
	ByStatus       map[domain.Status]int `json:"byStatus"`
	GuestsExpected int                   `json:"guestsExpected"`
	GuestsArrived  int                   `json:"guestsArrived"`
}

// Created bundles a new reservation with its issued credential.
type Created struct {
	Reservation *domain.Reservation
	QRCode      *domain.QRCode
}

type Service interface {
	Create(ctx context.Context, businessID string, req *CreateRequest) (*Created, error)
	Get(ctx context.Context, businessID, id string) (*domain.Reservation, error)
	GetQRCode(ctx context.Context, businessID, reservationID string) (*domain.QRCode, error)
	Reschedule(ctx context.Context, businessID, id string, req *RescheduleRequest) (*domain.Reservation, error)
	Cancel(ctx context.Context, businessID, id string) error
	Complete(ctx context.Context, businessID, id string) (*domain.Reservation, error)
	ListDay(ctx context.Context, businessID, businessDate string) ([]domain.Reservation, error)
	Stats(ctx context.Context, businessID, businessDate string) (*DayStats, error)
}

type service struct {
	reservations     postgres.ReservationRepo
	qrCodes          postgres.QRCodeRepo
	attendance       postgres.AttendanceRepo
	resolver         *biztime.Resolver
	qrLifetime       time.Duration
	minGuestTracking int
	hub              *stream.Hub
	bus              events.Publisher
}

func NewService(
	reservations postgres.ReservationRepo,
	qrCodes postgres.QRCodeRepo,
	attendance postgres.AttendanceRepo,
	resolver *biztime.Resolver,
	qrLifetime time.Duration,
	minGuestTracking int,
	hub *stream.Hub,
	bus events.Publisher,
) Service {
	return &service{
		reservations:     reservations,
		qrCodes:          qrCodes,
		attendance:       attendance,
		resolver:         resolver,
		qrLifetime:       qrLifetime,
		minGuestTracking: minGuestTracking,
		hub:              hub,
		bus:              bus,
	}
}

func (s *service) Create(ctx context.Context, businessID string, req *CreateRequest) (*Created, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	reservedAt, err := biztime.ComposeInstant(req.Date, req.Time)
	if err != nil {
		return nil, domain.WrapError(domain.KindValidation, "invalid date or time", err)
	}
	// Tolerance 0 falls back to the default minute of clock skew.
	if !s.resolver.IsFutureOrNow(reservedAt, 0) {
		return nil, domain.Validation("reservation time is in the past")
	}

	res := &domain.Reservation{
		BusinessID:        businessID,
		ReservationNumber: newReservationNumber(),
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		CustomerEmail:     req.CustomerEmail,
		GuestCount:        req.GuestCount,
		TableNumber:       req.TableNumber,
		SpecialRequests:   req.SpecialRequests,
		Notes:             req.Notes,
		ReferrerName:      req.ReferrerName,
		ReservedAt:        reservedAt,
		Status:            domain.StatusPending,
	}
	if req.Confirmed {
		res.Status = domain.StatusConfirmed
	}

	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	code, err := qr.Issue(res, s.qrLifetime, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.qrCodes.Create(ctx, code); err != nil {
		return nil, fmt.Errorf("issue qr credential: %w", err)
	}

	// Large parties get their tracking row up front so the host dashboard
	// shows them before anyone scans.
	if res.GuestCount >= s.minGuestTracking {
		att := &domain.AttendanceRecord{
			BusinessID:      businessID,
			ReservationID:   res.ID,
			ReservationName: res.CustomerName,
			TableNumber:     res.TableNumber,
			BusinessDate:    s.resolver.BusinessDateOf(res.ReservedAt),
			GuestCount:      0,
			IsActive:        true,
		}
		if err := s.attendance.Create(ctx, att); err != nil {
			logger.ErrorContext(ctx, "failed to pre-create attendance record",
				"error", err, "reservation_id", res.ID)
		}
	}

	s.hub.Publish(businessID, stream.EventReservationCreated, map[string]any{
		"reservationId": res.ID,
		"customerName":  res.CustomerName,
		"guestCount":    res.GuestCount,
		"date":          res.ReservedAt.ExtractDate(),
		"time":          res.ReservedAt.ExtractTime(),
		"status":        res.Status,
	})
	evt := events.ReservationCreatedEvent{
		ReservationID:     res.ID,
		BusinessID:        businessID,
		ReservationNumber: res.ReservationNumber,
		CustomerName:      res.CustomerName,
		GuestCount:        res.GuestCount,
		ReservedAt:        res.ReservedAt.Stored(),
		Status:            string(res.Status),
		CreatedAt:         res.CreatedAt,
	}
	if err := s.bus.Publish(ctx, events.ReservationCreated, evt); err != nil {
		logger.ErrorContext(ctx, "failed to publish reservation created event",
			"error", err, "reservation_id", res.ID)
	}

	return &Created{Reservation: res, QRCode: code}, nil
}

func (s *service) Get(ctx context.Context, businessID, id string) (*domain.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, businessID, id)
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	if res == nil {
		return nil, domain.UnknownReservation(id)
	}
	return res, nil
}

func (s *service) GetQRCode(ctx context.Context, businessID, reservationID string) (*domain.QRCode, error) {
	rec, err := s.qrCodes.GetByReservation(ctx, businessID, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load qr record: %w", err)
	}
	if rec == nil {
		return nil, domain.UnknownReservation(reservationID)
	}
	return rec, nil
}

// Reschedule moves the reservation and regenerates its credential: new
// token, new payload, new expiry. Codes printed before the edit stop
// working, which is the point.
func (s *service) Reschedule(ctx context.Context, businessID, id string, req *RescheduleRequest) (*domain.Reservation, error) {
	newAt, err := biztime.ComposeInstant(req.Date, req.Time)
	if err != nil {
		return nil, domain.WrapError(domain.KindValidation, "invalid date or time", err)
	}

	res, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	if err := res.Reschedule(newAt); err != nil {
		return nil, err
	}
	if err := s.reservations.Update(ctx, res); err != nil {
		return nil, fmt.Errorf("persist reschedule: %w", err)
	}

	rec, err := s.qrCodes.GetByReservation(ctx, businessID, id)
	if err != nil {
		return nil, fmt.Errorf("load qr record: %w", err)
	}
	if rec != nil {
		if err := qr.Regenerate(rec, res, s.qrLifetime, time.Now().UTC()); err != nil {
			return nil, err
		}
		if err := s.qrCodes.Replace(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist regenerated credential: %w", err)
		}
	}

	s.publishUpdated(ctx, businessID, res, []string{"reservedAt", "qrCode"})
	return res, nil
}

// Cancel is idempotent; cancelling twice reports success both times.
func (s *service) Cancel(ctx context.Context, businessID, id string) error {
	res, err := s.Get(ctx, businessID, id)
	if err != nil {
		return err
	}
	already := res.Status == domain.StatusCancelled
	if err := res.Cancel(); err != nil {
		return err
	}
	if already {
		return nil
	}
	if err := s.reservations.Update(ctx, res); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}
	if err := s.attendance.Deactivate(ctx, businessID, id); err != nil {
		logger.ErrorContext(ctx, "failed to deactivate attendance record",
			"error", err, "reservation_id", id)
	}

	s.hub.Publish(businessID, stream.EventReservationDeleted, map[string]any{
		"reservationId": id,
	})
	evt := events.ReservationDeletedEvent{
		ReservationID: id,
		BusinessID:    businessID,
		Reason:        "cancelled",
		DeletedAt:     time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, events.ReservationDeleted, evt); err != nil {
		logger.ErrorContext(ctx, "failed to publish reservation deleted event",
			"error", err, "reservation_id", id)
	}
	return nil
}

func (s *service) Complete(ctx context.Context, businessID, id string) (*domain.Reservation, error) {
	res, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	if err := res.Complete(); err != nil {
		return nil, err
	}
	if err := s.reservations.Update(ctx, res); err != nil {
		return nil, fmt.Errorf("persist completion: %w", err)
	}
	s.publishUpdated(ctx, businessID, res, []string{"status"})
	return res, nil
}

func (s *service) ListDay(ctx context.Context, businessID, businessDate string) ([]domain.Reservation, error) {
	date := businessDate
	if date == "" {
		date = s.resolver.NowBusinessDate()
	}
	start, end, err := s.resolver.BusinessDayRange(date)
	if err != nil {
		return nil, domain.WrapError(domain.KindValidation, "invalid business date", err)
	}
	return s.reservations.ListByDay(ctx, businessID, start, end)
}

func (s *service) Stats(ctx context.Context, businessID, businessDate string) (*DayStats, error) {
	date := businessDate
	if date == "" {
		date = s.resolver.NowBusinessDate()
	}
	start, end, err := s.resolver.BusinessDayRange(date)
	if err != nil {
		return nil, domain.WrapError(domain.KindValidation, "invalid business date", err)
	}

	byStatus, err := s.reservations.CountByStatus(ctx, businessID, start, end)
	if err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}
	stats := &DayStats{BusinessDate: date, ByStatus: byStatus}
	for _, n := range byStatus {
		stats.Total += n
	}

	day, err := s.reservations.ListByDay(ctx, businessID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	for i := range day {
		if day[i].Status == domain.StatusCancelled {
			continue
		}
		stats.GuestsExpected += day[i].GuestCount
	}
	records, err := s.attendance.ListByDate(ctx, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	for i := range records {
		stats.GuestsArrived += records[i].GuestCount
	}
	return stats, nil
}

func (s *service) publishUpdated(ctx context.Context, businessID string, res *domain.Reservation, changes []string) {
	s.hub.Publish(businessID, stream.EventReservationUpdated, map[string]any{
		"reservationId": res.ID,
		"status":        res.Status,
		"changes":       changes,
	})
	evt := events.ReservationUpdatedEvent{
		ReservationID: res.ID,
		BusinessID:    businessID,
		Changes:       changes,
		Status:        string(res.Status),
		UpdatedAt:     res.UpdatedAt,
	}
	if err := s.bus.Publish(ctx, events.ReservationUpdated, evt); err != nil {
		logger.ErrorContext(ctx, "failed to publish reservation updated event",
			"error", err, "reservation_id", res.ID)
	}
}

func validateCreate(req *CreateRequest) error {
	if req.CustomerName == "" {
		return domain.Validation("customerName is required")
	}
	if req.GuestCount < 1 {
		return domain.Validation("guestCount must be at least 1")
	}
	if req.Date == "" || req.Time == "" {
		return domain.Validation("date and time are required")
	}
	return nil
}

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newReservationNumber mints a short human-readable code for front desk
// lookups. Uniqueness is enforced by the store's unique index; collisions
// at this length are rare enough to surface as a create error.
func newReservationNumber() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = numberAlphabet[rand.Intn(len(numberAlphabet))]
	}
	return "RES-" + string(b)
}
