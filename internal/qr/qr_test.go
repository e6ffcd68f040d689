package qr_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mesalista/venue-checkin/internal/biztime"
	"github.com/mesalista/venue-checkin/internal/domain"
	"github.com/mesalista/venue-checkin/internal/qr"
)

func TestParsePayloadBareID(t *testing.T) {
	p, err := qr.ParsePayload("res-abc123")
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != qr.KindBareID || p.ReservationID != "abc123" {
		t.Errorf("got kind=%s id=%q, want bare_id abc123", p.Kind, p.ReservationID)
	}
}

func TestParsePayloadStoreID(t *testing.T) {
	p, err := qr.ParsePayload("cmg4x2k9p0001qwertyuiop1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != qr.KindBareID || p.ReservationID != "cmg4x2k9p0001qwertyuiop1" {
		t.Errorf("got kind=%s id=%q, want bare_id with full id", p.Kind, p.ReservationID)
	}
}

func TestParsePayloadJSON(t *testing.T) {
	raw := `{"reservaId":"cmg4x2k9p0001","token":"tok-1","timestamp":1758135600000,"cliente":"Ana","fecha":"2025-09-17","hora":"19:00"}`
	p, err := qr.ParsePayload(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != qr.KindJSON {
		t.Fatalf("kind = %s, want json", p.Kind)
	}
	if p.ReservationID != "cmg4x2k9p0001" || p.Token != "tok-1" {
		t.Errorf("id/token = %q/%q", p.ReservationID, p.Token)
	}
	if p.Timestamp != 1758135600000 {
		t.Errorf("timestamp = %d", p.Timestamp)
	}
	if p.CustomerName != "Ana" || p.Date != "2025-09-17" || p.Time != "19:00" {
		t.Errorf("optional fields = %q %q %q", p.CustomerName, p.Date, p.Time)
	}
}

func TestParsePayloadRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"res-",
		`{"token":"tok-1"}`,
		`{"reservaId":"x"}`,
		`{not json`,
	}
	for _, raw := range cases {
		_, err := qr.ParsePayload(raw)
		if domain.KindOf(err) != domain.KindMalformedPayload {
			t.Errorf("ParsePayload(%q) kind = %v, want malformed_payload", raw, domain.KindOf(err))
		}
	}
}

func TestParsePayloadOpaqueFallback(t *testing.T) {
	p, err := qr.ParsePayload("some-event-guest-token")
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != qr.KindOpaque || p.Token != "some-event-guest-token" {
		t.Errorf("got kind=%s token=%q, want opaque passthrough", p.Kind, p.Token)
	}
}

func at(date, clock string, t *testing.T) biztime.Instant {
	t.Helper()
	in, err := biztime.ComposeInstant(date, clock)
	if err != nil {
		t.Fatal(err)
	}
	return in
}

func TestCheckWindowPostOnly(t *testing.T) {
	reservedAt := at("2025-09-17", "19:00", t)
	policy := qr.PostOnly(12 * time.Hour)

	// No lower bound: any instant before the reservation is valid.
	for _, clock := range []string{"07:00", "18:00", "19:00", "23:59"} {
		if err := qr.CheckWindow(at("2025-09-17", clock, t), reservedAt, policy); err != nil {
			t.Errorf("scan at %s should be valid: %v", clock, err)
		}
	}
	// Valid right up to the boundary.
	if err := qr.CheckWindow(at("2025-09-18", "06:59", t), reservedAt, policy); err != nil {
		t.Errorf("scan just inside the window should be valid: %v", err)
	}
	// The window is half-open: reservedAt+12h itself is already expired.
	err := qr.CheckWindow(at("2025-09-18", "07:00", t), reservedAt, policy)
	de, ok := domain.AsError(err)
	if !ok || de.Kind != domain.KindExpired {
		t.Fatalf("scan at reservedAt+12h should be expired, got %v", err)
	}
	if got := de.Details["hours_overdue"]; got != 1 {
		t.Errorf("hours_overdue at boundary = %v, want 1", got)
	}
	err = qr.CheckWindow(at("2025-09-18", "08:00", t), reservedAt, policy)
	if domain.KindOf(err) != domain.KindExpired {
		t.Fatalf("scan 13h after should be expired, got %v", err)
	}
}

func TestCheckWindowExpiredHours(t *testing.T) {
	// 29h after a 19:00 reservation with a 12h window: 17h overdue.
	reservedAt := at("2025-09-17", "19:00", t)
	err := qr.CheckWindow(at("2025-09-19", "00:00", t), reservedAt, qr.PostOnly(12*time.Hour))
	de, ok := domain.AsError(err)
	if !ok || de.Kind != domain.KindExpired {
		t.Fatalf("want expired error, got %v", err)
	}
	if got := de.Details["hours_overdue"]; got != 17 {
		t.Errorf("hours_overdue = %v, want 17", got)
	}
}

func TestCheckWindowSymmetric(t *testing.T) {
	reservedAt := at("2025-09-17", "19:00", t)
	policy := qr.Symmetric(24*time.Hour, 12*time.Hour)

	if err := qr.CheckWindow(at("2025-09-16", "19:00", t), reservedAt, policy); err != nil {
		t.Errorf("scan at lower boundary should be valid: %v", err)
	}
	err := qr.CheckWindow(at("2025-09-16", "17:00", t), reservedAt, policy)
	de, ok := domain.AsError(err)
	if !ok || de.Kind != domain.KindTooEarly {
		t.Fatalf("scan 26h before should be too early, got %v", err)
	}
	if got := de.Details["hours_remaining"]; got != 2 {
		t.Errorf("hours_remaining = %v, want 2", got)
	}
}

func TestCheckWindowMonotonicPostOnly(t *testing.T) {
	reservedAt := at("2025-09-17", "19:00", t)
	policy := qr.PostOnly(12 * time.Hour)

	expiredSeen := false
	for offset := time.Duration(0); offset <= 20*time.Hour; offset += 30 * time.Minute {
		err := qr.CheckWindow(reservedAt.Add(offset), reservedAt, policy)
		if err == nil && expiredSeen {
			t.Fatalf("valid result at +%v after an expired one", offset)
		}
		if err != nil {
			if domain.KindOf(err) != domain.KindExpired {
				t.Fatalf("unexpected kind at +%v: %v", offset, err)
			}
			expiredSeen = true
		}
	}
	if !expiredSeen {
		t.Fatal("window never expired over 20h")
	}
}

func TestVerifyTokenStrict(t *testing.T) {
	rec := &domain.QRCode{Token: "tok-current"}
	if !qr.VerifyToken(rec, "tok-current") {
		t.Error("matching token rejected")
	}
	for _, bad := range []string{"", "tok-old", "TOK-CURRENT", "tok-current "} {
		if qr.VerifyToken(rec, bad) {
			t.Errorf("token %q should not match", bad)
		}
	}
}

func TestIssueAndRegenerate(t *testing.T) {
	res := &domain.Reservation{
		ID:           "r1",
		BusinessID:   "b1",
		CustomerName: "Ana",
		ReservedAt:   at("2025-09-17", "19:00", t),
	}
	issuedAt := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

	rec, err := qr.Issue(res, 12*time.Hour, issuedAt)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Token == "" || rec.Status != domain.QRActive {
		t.Fatalf("bad credential: token=%q status=%s", rec.Token, rec.Status)
	}
	if got := rec.ExpiresAt.String(); got != "2025-09-18 07:00" {
		t.Errorf("expiry = %q, want 2025-09-18 07:00", got)
	}

	var payload struct {
		ReservaID string  `json:"reservaId"`
		Token     string  `json:"token"`
		Timestamp float64 `json:"timestamp"`
		Cliente   string  `json:"cliente"`
		Fecha     string  `json:"fecha"`
		Hora      string  `json:"hora"`
	}
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.ReservaID != "r1" || payload.Token != rec.Token {
		t.Errorf("payload id/token = %q/%q", payload.ReservaID, payload.Token)
	}
	if payload.Fecha != "2025-09-17" || payload.Hora != "19:00" {
		t.Errorf("payload date/time = %q/%q", payload.Fecha, payload.Hora)
	}

	// Reschedule regenerates token and expiry but keeps the scan counter.
	oldToken := rec.Token
	rec.ScanCount = 3
	res.ReservedAt = at("2025-09-20", "21:00", t)
	if err := qr.Regenerate(rec, res, 12*time.Hour, issuedAt); err != nil {
		t.Fatal(err)
	}
	if rec.Token == oldToken {
		t.Error("regeneration kept the old token")
	}
	if got := rec.ExpiresAt.String(); got != "2025-09-21 09:00" {
		t.Errorf("new expiry = %q, want 2025-09-21 09:00", got)
	}
	if rec.ScanCount != 3 {
		t.Errorf("scan count = %d, want preserved 3", rec.ScanCount)
	}
	if qr.VerifyToken(rec, oldToken) {
		t.Error("old token still verifies after regeneration")
	}
}
