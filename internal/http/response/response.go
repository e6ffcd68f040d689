// Package response renders JSON responses with stable machine-readable
// error codes. Clients switch on code, never on message text.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/mesalista/venue-checkin/internal/domain"
	"github.com/mesalista/venue-checkin/pkg/logger"
)

// Stable error codes.
const (
	CodeMalformedPayload   = "MALFORMED_PAYLOAD"
	CodeUnknownReservation = "UNKNOWN_RESERVATION"
	CodeUnknownToken       = "UNKNOWN_TOKEN"
	CodeTooEarly           = "QR_TOO_EARLY"
	CodeExpired            = "QR_EXPIRED"
	CodeInvalidState       = "INVALID_STATE"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeCustomerResolution = "CUSTOMER_RESOLUTION_FAILED"
	CodeConflict           = "CONFLICT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "INTERNAL_ERROR"
)

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, statusCode int, message, code string) {
	JSON(w, statusCode, map[string]string{
		"error": message,
		"code":  code,
	})
}

// DomainError maps an engine error to status, code, and structured details.
// Anything that is not a domain error becomes an opaque 500.
func DomainError(w http.ResponseWriter, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		logger.Error("unexpected error", "error", err)
		Error(w, http.StatusInternalServerError, "internal error", CodeInternal)
		return
	}

	status, code := statusFor(de.Kind)
	body := map[string]any{
		"error": de.Message,
		"code":  code,
	}
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	JSON(w, status, body)
}

func statusFor(kind domain.Kind) (int, string) {
	switch kind {
	case domain.KindMalformedPayload:
		return http.StatusBadRequest, CodeMalformedPayload
	case domain.KindUnknownReservation:
		return http.StatusNotFound, CodeUnknownReservation
	case domain.KindUnknownToken:
		return http.StatusNotFound, CodeUnknownToken
	case domain.KindTooEarly:
		return http.StatusConflict, CodeTooEarly
	case domain.KindExpired:
		return http.StatusGone, CodeExpired
	case domain.KindInvalidState:
		return http.StatusConflict, CodeInvalidState
	case domain.KindValidation:
		return http.StatusBadRequest, CodeInvalidInput
	case domain.KindCustomerResolution:
		return http.StatusUnprocessableEntity, CodeCustomerResolution
	case domain.KindConflict:
		return http.StatusConflict, CodeConflict
	}
	return http.StatusInternalServerError, CodeInternal
}
