// Package qr parses scanned QR payloads, enforces validity windows around
// the reservation instant, and issues/verifies reservation tokens. Every
// function here is pure; the store and clock live with the caller.
package qr

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mesalista/venue-checkin/internal/domain"
)

// PayloadKind discriminates the accepted QR payload shapes.
type PayloadKind string

const (
	// KindBareID carries only a reservation id; the token must be looked up
	// from the reservation's active QR record.
	KindBareID PayloadKind = "bare_id"
	// KindJSON is the full embedded payload with id and token.
	KindJSON PayloadKind = "json"
	// KindOpaque is anything else. It may be an event guest credential and
	// must be checked against that store before being rejected.
	KindOpaque PayloadKind = "opaque"
)

// Payload is the parsed form of a scanned code.
type Payload struct {
	Kind          PayloadKind
	ReservationID string
	Token         string
	Timestamp     int64
	CustomerName  string
	Date          string
	Time          string
	Raw           string
}

// jsonPayload mirrors the wire shape embedded in printed codes. Field names
// are fixed by the deployed client fleet and cannot change.
type jsonPayload struct {
	ReservaID string  `json:"reservaId"`
	Token     string  `json:"token"`
	Timestamp float64 `json:"timestamp"`
	Cliente   string  `json:"cliente,omitempty"`
	Fecha     string  `json:"fecha,omitempty"`
	Hora      string  `json:"hora,omitempty"`
}

// rawIDPattern matches the store's generated ids (cuid-style).
var rawIDPattern = regexp.MustCompile(`^c[a-z0-9]{20,}$`)

// ParsePayload classifies a raw scanned string into one of the three
// accepted shapes. It never does I/O: a KindOpaque result means "not a
// reservation code as far as syntax goes", and the caller decides whether
// a guest credential matches before rejecting.
func ParsePayload(raw string) (Payload, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Payload{}, domain.MalformedPayload("empty QR payload")
	}

	if id, ok := strings.CutPrefix(s, "res-"); ok {
		if id == "" {
			return Payload{}, domain.MalformedPayload("bare-id payload has no reservation id")
		}
		return Payload{Kind: KindBareID, ReservationID: id, Raw: raw}, nil
	}

	if strings.HasPrefix(s, "{") {
		var jp jsonPayload
		if err := json.Unmarshal([]byte(s), &jp); err != nil {
			return Payload{}, domain.WrapError(domain.KindMalformedPayload, "QR payload is not valid JSON", err)
		}
		if jp.ReservaID == "" || jp.Token == "" {
			return Payload{}, domain.MalformedPayload("JSON payload is missing reservaId or token")
		}
		return Payload{
			Kind:          KindJSON,
			ReservationID: jp.ReservaID,
			Token:         jp.Token,
			Timestamp:     int64(jp.Timestamp),
			CustomerName:  jp.Cliente,
			Date:          jp.Fecha,
			Time:          jp.Hora,
			Raw:           raw,
		}, nil
	}

	if rawIDPattern.MatchString(s) {
		return Payload{Kind: KindBareID, ReservationID: s, Raw: raw}, nil
	}

	return Payload{Kind: KindOpaque, Token: s, Raw: raw}, nil
}
