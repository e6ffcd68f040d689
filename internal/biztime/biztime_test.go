package biztime_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mesalista/venue-checkin/internal/biztime"
)

func TestComposeExtractRoundTrip(t *testing.T) {
	cases := []struct {
		date, clock    string
		wantDate, wantTime string
	}{
		{"2025-09-17", "19:00", "2025-09-17", "19:00"},
		{"2025-01-01", "00:00", "2025-01-01", "00:00"},
		{"2025-12-31", "23:59", "2025-12-31", "23:59"},
		{"17/09/2025", "19:00", "2025-09-17", "19:00"},
		{"2025-09-17T14:30:00.000Z", "19:00", "2025-09-17", "19:00"},
	}
	for _, tc := range cases {
		in, err := biztime.ComposeInstant(tc.date, tc.clock)
		if err != nil {
			t.Fatalf("ComposeInstant(%q, %q): %v", tc.date, tc.clock, err)
		}
		if got := in.ExtractDate(); got != tc.wantDate {
			t.Errorf("ExtractDate(%q, %q) = %q, want %q", tc.date, tc.clock, got, tc.wantDate)
		}
		if got := in.ExtractTime(); got != tc.wantTime {
			t.Errorf("ExtractTime(%q, %q) = %q, want %q", tc.date, tc.clock, got, tc.wantTime)
		}
	}
}

func TestComposeInstantNoOffsetApplied(t *testing.T) {
	in, err := biztime.ComposeInstant("2025-09-17", "19:00")
	if err != nil {
		t.Fatal(err)
	}
	stored := in.Stored()
	if stored.Hour() != 19 || stored.Minute() != 0 {
		t.Errorf("stored clock = %02d:%02d, want 19:00", stored.Hour(), stored.Minute())
	}
	if stored.Location() != time.UTC {
		t.Errorf("stored location = %v, want UTC label", stored.Location())
	}
}

func TestComposeInstantRejectsMalformed(t *testing.T) {
	cases := []struct {
		date, clock string
		wantErr     error
	}{
		{"2025-02-30", "19:00", biztime.ErrMalformedDate}, // normalization would shift it
		{"2025-13-01", "19:00", biztime.ErrMalformedDate},
		{"2025-00-10", "19:00", biztime.ErrMalformedDate},
		{"not-a-date", "19:00", biztime.ErrMalformedDate},
		{"", "19:00", biztime.ErrMalformedDate},
		{"2025-09-17", "24:00", biztime.ErrMalformedClock},
		{"2025-09-17", "19:60", biztime.ErrMalformedClock},
		{"2025-09-17", "7pm", biztime.ErrMalformedClock},
		{"2025-09-17", "", biztime.ErrMalformedClock},
	}
	for _, tc := range cases {
		_, err := biztime.ComposeInstant(tc.date, tc.clock)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("ComposeInstant(%q, %q) err = %v, want %v", tc.date, tc.clock, err, tc.wantErr)
		}
	}
}

func newResolver(t *testing.T) *biztime.Resolver {
	t.Helper()
	r, err := biztime.NewResolver("America/Guayaquil", 4)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// pin returns a clock function frozen at the given Guayaquil wall time.
// The zone is UTC-5 year round.
func pin(year int, month time.Month, day, hour, min int) func() time.Time {
	loc := time.FixedZone("ECT", -5*3600)
	return func() time.Time { return time.Date(year, month, day, hour, min, 0, 0, loc) }
}

func TestBusinessDayCutoff(t *testing.T) {
	cases := []struct {
		hour, min int
		want      string
	}{
		{3, 59, "2025-09-16"},
		{4, 0, "2025-09-17"},
		{0, 0, "2025-09-16"},
		{23, 0, "2025-09-17"},
	}
	for _, tc := range cases {
		r := newResolver(t).WithClock(pin(2025, time.September, 17, tc.hour, tc.min))
		if got := r.NowBusinessDate(); got != tc.want {
			t.Errorf("NowBusinessDate at %02d:%02d = %q, want %q", tc.hour, tc.min, got, tc.want)
		}
	}
}

func TestResolverNowCarriesWallClock(t *testing.T) {
	r := newResolver(t).WithClock(pin(2025, time.September, 17, 19, 5))
	now := r.Now()
	if got := now.ExtractTime(); got != "19:05" {
		t.Errorf("Now().ExtractTime() = %q, want 19:05", got)
	}
	if got := now.ExtractDate(); got != "2025-09-17" {
		t.Errorf("Now().ExtractDate() = %q, want 2025-09-17", got)
	}
}

func TestBusinessDayRange(t *testing.T) {
	r := newResolver(t)
	start, end, err := r.BusinessDayRange("2025-09-17")
	if err != nil {
		t.Fatal(err)
	}
	if got := start.String(); got != "2025-09-17 04:00" {
		t.Errorf("start = %q, want 2025-09-17 04:00", got)
	}
	if got := end.String(); got != "2025-09-18 04:00" {
		t.Errorf("end = %q, want 2025-09-18 04:00", got)
	}

	// An instant at 02:00 on the 18th calendar day falls inside the 17th's
	// business day.
	late, err := biztime.ComposeInstant("2025-09-18", "02:00")
	if err != nil {
		t.Fatal(err)
	}
	if late.Before(start) || !late.Before(end) {
		t.Error("02:00 next calendar day should be inside the business day range")
	}
	if got := r.BusinessDateOf(late); got != "2025-09-17" {
		t.Errorf("BusinessDateOf(02:00) = %q, want 2025-09-17", got)
	}
}

func TestIsFutureOrNow(t *testing.T) {
	r := newResolver(t).WithClock(pin(2025, time.September, 17, 19, 0))

	future, _ := biztime.ComposeInstant("2025-09-17", "20:00")
	if !r.IsFutureOrNow(future, 0) {
		t.Error("instant one hour ahead should be future")
	}
	past, _ := biztime.ComposeInstant("2025-09-17", "18:00")
	if r.IsFutureOrNow(past, 0) {
		t.Error("instant one hour behind should be past")
	}
	// Within default tolerance.
	barely, _ := biztime.ComposeInstant("2025-09-17", "18:59")
	if !r.IsFutureOrNow(barely, time.Minute) {
		t.Error("instant inside tolerance should pass")
	}
}
