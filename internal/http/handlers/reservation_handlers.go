package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mesalista/venue-checkin/internal/domain"
	"github.com/mesalista/venue-checkin/internal/http/response"
	"github.com/mesalista/venue-checkin/internal/reservations"
)

type reservationView struct {
	ID                string        `json:"id"`
	ReservationNumber string        `json:"reservationNumber"`
	CustomerName      string        `json:"customerName"`
	CustomerPhone     string        `json:"customerPhone,omitempty"`
	CustomerEmail     string        `json:"customerEmail,omitempty"`
	GuestCount        int           `json:"guestCount"`
	TableNumber       string        `json:"tableNumber,omitempty"`
	SpecialRequests   string        `json:"specialRequests,omitempty"`
	Notes             string        `json:"notes,omitempty"`
	ReferrerName      string        `json:"referrerName,omitempty"`
	Date              string        `json:"date"`
	Time              string        `json:"time"`
	Status            domain.Status `json:"status"`
}

func viewOf(res *domain.Reservation) reservationView {
	return reservationView{
		ID:                res.ID,
		ReservationNumber: res.ReservationNumber,
		CustomerName:      res.CustomerName,
		CustomerPhone:     res.CustomerPhone,
		CustomerEmail:     res.CustomerEmail,
		GuestCount:        res.GuestCount,
		TableNumber:       res.TableNumber,
		SpecialRequests:   res.SpecialRequests,
		Notes:             res.Notes,
		ReferrerName:      res.ReferrerName,
		Date:              res.ReservedAt.ExtractDate(),
		Time:              res.ReservedAt.ExtractTime(),
		Status:            res.Status,
	}
}

// CreateReservation handles POST /v1/reservations.
func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req reservations.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body", response.CodeInvalidInput)
		return
	}

	created, err := h.reservationService.Create(r.Context(), h.businessID(r), &req)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{
		"reservation": viewOf(created.Reservation),
		"qrCode": map[string]any{
			"token":   created.QRCode.Token,
			"payload": json.RawMessage(created.QRCode.Payload),
			"expires": created.QRCode.ExpiresAt.Stored(),
		},
	})
}

// GetReservation handles GET /v1/reservations/{id}.
func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservationService.Get(r.Context(), h.businessID(r), chi.URLParam(r, "id"))
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, viewOf(res))
}

// GetReservationQR handles GET /v1/reservations/{id}/qr for reprints.
func (h *Handlers) GetReservationQR(w http.ResponseWriter, r *http.Request) {
	rec, err := h.reservationService.GetQRCode(r.Context(), h.businessID(r), chi.URLParam(r, "id"))
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"token":     rec.Token,
		"payload":   json.RawMessage(rec.Payload),
		"expires":   rec.ExpiresAt.Stored(),
		"scanCount": rec.ScanCount,
		"status":    rec.Status,
	})
}

// RescheduleReservation handles PATCH /v1/reservations/{id}.
func (h *Handlers) RescheduleReservation(w http.ResponseWriter, r *http.Request) {
	var req reservations.RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body", response.CodeInvalidInput)
		return
	}

	res, err := h.reservationService.Reschedule(r.Context(), h.businessID(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, viewOf(res))
}

// CompleteReservation handles POST /v1/reservations/{id}/complete.
func (h *Handlers) CompleteReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservationService.Complete(r.Context(), h.businessID(r), chi.URLParam(r, "id"))
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, viewOf(res))
}

// CancelReservation handles DELETE /v1/reservations/{id}.
func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	if err := h.reservationService.Cancel(r.Context(), h.businessID(r), chi.URLParam(r, "id")); err != nil {
		response.DomainError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ListReservations handles GET /v1/reservations?date=YYYY-MM-DD. An empty
// date means the current business day.
func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.reservationService.ListDay(r.Context(), h.businessID(r), r.URL.Query().Get("date"))
	if err != nil {
		response.DomainError(w, err)
		return
	}
	views := make([]reservationView, 0, len(list))
	for i := range list {
		views = append(views, viewOf(&list[i]))
	}
	response.JSON(w, http.StatusOK, map[string]any{"reservations": views})
}

// DayStats handles GET /v1/reservations/stats?date=YYYY-MM-DD.
func (h *Handlers) DayStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reservationService.Stats(r.Context(), h.businessID(r), r.URL.Query().Get("date"))
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}
