package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mesalista/venue-checkin/internal/checkin"
	"github.com/mesalista/venue-checkin/internal/domain"
	"github.com/mesalista/venue-checkin/internal/http/handlers"
	"github.com/mesalista/venue-checkin/internal/platform/cache"
	"github.com/mesalista/venue-checkin/internal/reservations"
	"github.com/mesalista/venue-checkin/internal/stream"
	"github.com/mesalista/venue-checkin/pkg/auth"
	"github.com/mesalista/venue-checkin/pkg/config"
)

const testSecret = "test-secret"

// ---------- Mocks ----------

type mockCheckinService struct {
	lastBusinessID string
	lastReq        *checkin.ScanRequest
	result         *checkin.ScanResult
	err            error
}

func (m *mockCheckinService) Scan(_ context.Context, businessID string, req *checkin.ScanRequest) (*checkin.ScanResult, error) {
	m.lastBusinessID = businessID
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockReservationService struct {
	created *reservations.Created
	err     error
}

func (m *mockReservationService) Create(_ context.Context, _ string, _ *reservations.CreateRequest) (*reservations.Created, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.created, nil
}

func (m *mockReservationService) Get(_ context.Context, _, id string) (*domain.Reservation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.created.Reservation, nil
}

func (m *mockReservationService) GetQRCode(_ context.Context, _, _ string) (*domain.QRCode, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.created.QRCode, nil
}

func (m *mockReservationService) Reschedule(_ context.Context, _, _ string, _ *reservations.RescheduleRequest) (*domain.Reservation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.created.Reservation, nil
}

func (m *mockReservationService) Cancel(_ context.Context, _, _ string) error { return m.err }

func (m *mockReservationService) Complete(_ context.Context, _, _ string) (*domain.Reservation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.created.Reservation, nil
}

func (m *mockReservationService) ListDay(_ context.Context, _, _ string) ([]domain.Reservation, error) {
	return nil, m.err
}

func (m *mockReservationService) Stats(_ context.Context, _, _ string) (*reservations.DayStats, error) {
	return &reservations.DayStats{}, m.err
}

// ---------- Fixture ----------

func newRouter(t *testing.T, cs checkin.Service, rs reservations.Service, hub *stream.Hub) chi.Router {
	t.Helper()
	os.Setenv("JWT_SECRET", testSecret)
	t.Cleanup(func() { os.Unsetenv("JWT_SECRET") })

	h := handlers.New(cs, rs, hub, config.Load())
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		h.Routes(r, cache.NewRateLimiter(nil, 60, 1, time.Second))
	})
	return r
}

func sessionToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.NewScannerSession("b1", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func doScan(t *testing.T, r chi.Router, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/scan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------- Tests ----------

func TestScanRequiresSession(t *testing.T) {
	r := newRouter(t, &mockCheckinService{}, &mockReservationService{}, stream.NewHub(time.Hour))

	w := doScan(t, r, "", `{"qrCode":"res-r1","action":"info"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	w = doScan(t, r, "garbage", `{"qrCode":"res-r1","action":"info"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestScanHappyPath(t *testing.T) {
	cs := &mockCheckinService{result: &checkin.ScanResult{
		ReservationID: "r1",
		CustomerName:  "Ana",
		Status:        domain.StatusCheckedIn,
		GuestCount:    4,
		ScanCount:     2,
		IsFirstScan:   true,
	}}
	r := newRouter(t, cs, &mockReservationService{}, stream.NewHub(time.Hour))

	w := doScan(t, r, sessionToken(t), `{"qrCode":"res-r1","action":"increment","increment":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if cs.lastBusinessID != "b1" {
		t.Errorf("business id = %q, want from session claims", cs.lastBusinessID)
	}
	if cs.lastReq.Increment != 2 || cs.lastReq.Action != "increment" {
		t.Errorf("request passed through = %+v", cs.lastReq)
	}

	var out checkin.ScanResult
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.ScanCount != 2 || !out.IsFirstScan {
		t.Errorf("response = %+v", out)
	}
}

func TestScanValidation(t *testing.T) {
	r := newRouter(t, &mockCheckinService{}, &mockReservationService{}, stream.NewHub(time.Hour))
	tok := sessionToken(t)

	cases := []string{
		`not json`,
		`{"action":"info"}`,
		`{"qrCode":"res-r1","action":"increment","increment":-1}`,
	}
	for _, body := range cases {
		w := doScan(t, r, tok, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["code"] != "INVALID_INPUT" {
			t.Errorf("body %q: code = %q", body, resp["code"])
		}
	}
}

func TestScanDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		wantCode int
		want     string
	}{
		{domain.MalformedPayload("bad"), http.StatusBadRequest, "MALFORMED_PAYLOAD"},
		{domain.UnknownReservation("r9"), http.StatusNotFound, "UNKNOWN_RESERVATION"},
		{domain.UnknownToken(), http.StatusNotFound, "UNKNOWN_TOKEN"},
		{domain.TooEarly(2), http.StatusConflict, "QR_TOO_EARLY"},
		{domain.Expired(17), http.StatusGone, "QR_EXPIRED"},
		{domain.InvalidState(domain.StatusCancelled, "record_arrival"), http.StatusConflict, "INVALID_STATE"},
	}
	for _, tc := range cases {
		r := newRouter(t, &mockCheckinService{err: tc.err}, &mockReservationService{}, stream.NewHub(time.Hour))
		w := doScan(t, r, sessionToken(t), `{"qrCode":"res-r1","action":"increment","increment":1}`)
		if w.Code != tc.wantCode {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.wantCode)
		}
		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["code"] != tc.want {
			t.Errorf("%v: code = %v, want %s", tc.err, resp["code"], tc.want)
		}
	}
}

func TestExpiredErrorCarriesDetails(t *testing.T) {
	r := newRouter(t, &mockCheckinService{err: domain.Expired(17)}, &mockReservationService{}, stream.NewHub(time.Hour))
	w := doScan(t, r, sessionToken(t), `{"qrCode":"res-r1","action":"increment","increment":1}`)

	var resp struct {
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Details["hours_overdue"] != float64(17) {
		t.Errorf("details = %v", resp.Details)
	}
}

func TestEventsStream(t *testing.T) {
	hub := stream.NewHub(time.Hour)
	defer hub.Close()
	r := newRouter(t, &mockCheckinService{}, &mockReservationService{}, hub)

	srv := httptest.NewServer(r)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+sessionToken(t))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(line, "event: connected") {
		t.Fatalf("first line = %q, want connected event", line)
	}

	// Drain the connected data line and the blank separator, then publish.
	for i := 0; i < 2; i++ {
		if _, err := reader.ReadString('\n'); err != nil {
			t.Fatal(err)
		}
	}
	hub.Publish("b1", stream.EventQRScanned, map[string]any{"reservationId": "r1"})

	line, err = reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(line, "event: qr-scanned") {
		t.Fatalf("got %q, want qr-scanned event", line)
	}
}
