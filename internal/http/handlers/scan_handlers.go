package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mesalista/venue-checkin/internal/checkin"
	"github.com/mesalista/venue-checkin/internal/http/response"
)

// Scan handles POST /v1/scan for both info reads and increments.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	var req checkin.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body", response.CodeInvalidInput)
		return
	}
	if req.QRCode == "" {
		response.Error(w, http.StatusBadRequest, "qrCode is required", response.CodeInvalidInput)
		return
	}
	if req.Action == "" {
		req.Action = checkin.ActionInfo
	}
	if req.Action == checkin.ActionIncrement && req.Increment < 0 {
		response.Error(w, http.StatusBadRequest, "increment must be a positive integer", response.CodeInvalidInput)
		return
	}

	result, err := h.checkinService.Scan(r.Context(), h.businessID(r), &req)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}
