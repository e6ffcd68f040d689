// Package biztime owns the venue's notion of time. Reservation instants are
// stored as timestamps that look like UTC but actually carry the business
// wall clock, and the calendar "business day" rolls over at a configurable
// hour after midnight rather than at midnight. Every component that touches
// a reservation time must go through this package; mixing these instants
// with generic timezone conversion causes silent multi-hour drift.
package biztime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultCutoffHour is the hour after local midnight at which a new business
// day begins. A reservation at 02:00 belongs to the previous business day.
const DefaultCutoffHour = 4

// DefaultArrivalTolerance absorbs clock skew between the caller and this
// process when validating that a new reservation is not in the past.
const DefaultArrivalTolerance = time.Minute

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	slashDateRe = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	clockRe     = regexp.MustCompile(`^(\d{2}):(\d{2})$`)
)

// Instant is a business-local wall-clock instant. It is produced only by
// ComposeInstant (user input) or FromStored (rows read back from the store)
// and is deliberately not a time.Time so it cannot be handed to a
// timezone-aware formatter by mistake.
type Instant struct {
	t time.Time
}

// FromStored wraps a timestamp read back from the store. The store keeps the
// wall-clock components under a UTC label, exactly as ComposeInstant wrote
// them.
func FromStored(t time.Time) Instant {
	return Instant{t: t.UTC()}
}

// Stored returns the value to persist.
func (in Instant) Stored() time.Time { return in.t }

// ExtractDate reads the YYYY-MM-DD component back out. Exact inverse of
// ComposeInstant for the date argument.
func (in Instant) ExtractDate() string { return in.t.Format(dateLayout) }

// ExtractTime reads the HH:MM component back out. Exact inverse of
// ComposeInstant for the time argument.
func (in Instant) ExtractTime() string { return in.t.Format(timeLayout) }

func (in Instant) Add(d time.Duration) Instant  { return Instant{t: in.t.Add(d)} }
func (in Instant) Sub(other Instant) time.Duration { return in.t.Sub(other.t) }
func (in Instant) Before(other Instant) bool    { return in.t.Before(other.t) }
func (in Instant) After(other Instant) bool     { return in.t.After(other.t) }
func (in Instant) Equal(other Instant) bool     { return in.t.Equal(other.t) }
func (in Instant) IsZero() bool                 { return in.t.IsZero() }

func (in Instant) String() string {
	return in.t.Format("2006-01-02 15:04")
}

// ComposeInstant combines a date and an HH:MM clock into a single instant.
// No timezone offset is applied in either direction: the instant read back
// via ExtractDate/ExtractTime reproduces the inputs exactly. Dates are
// accepted as YYYY-MM-DD, DD/MM/YYYY, or ISO-with-time; the time portion of
// an ISO date input is ignored in favor of the explicit clock argument.
func ComposeInstant(date, clock string) (Instant, error) {
	year, month, day, err := parseDate(date)
	if err != nil {
		return Instant{}, err
	}

	hour, minute, err := parseClock(clock)
	if err != nil {
		return Instant{}, err
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 2), which would break the
	// compose/extract round trip. Treat any normalization as invalid input.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return Instant{}, fmt.Errorf("%w: day %d does not exist in %04d-%02d", ErrMalformedDate, day, year, month)
	}

	return Instant{t: t}, nil
}

// NormalizeDate reports the YYYY-MM-DD form of any accepted date input.
func NormalizeDate(date string) (string, error) {
	year, month, day, err := parseDate(date)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

var (
	ErrMalformedDate  = fmt.Errorf("malformed date")
	ErrMalformedClock = fmt.Errorf("malformed time")
)

func parseDate(date string) (year, month, day int, err error) {
	date = strings.TrimSpace(date)

	// ISO-with-time: keep the date part only.
	if idx := strings.IndexByte(date, 'T'); idx > 0 {
		date = date[:idx]
	}

	if m := isoDateRe.FindStringSubmatch(date); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else if m := slashDateRe.FindStringSubmatch(date); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrMalformedDate, date)
	}

	if month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("%w: month %d out of range", ErrMalformedDate, month)
	}
	if day < 1 || day > 31 {
		return 0, 0, 0, fmt.Errorf("%w: day %d out of range", ErrMalformedDate, day)
	}
	return year, month, day, nil
}

func parseClock(clock string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(clock))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedClock, clock)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])

	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour %d out of range", ErrMalformedClock, hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute %d out of range", ErrMalformedClock, minute)
	}
	return hour, minute, nil
}

// Resolver supplies "now" in business-local terms. It is constructed once at
// process start from the configured timezone and injected everywhere a wall
// clock is needed, so tests can pin the clock.
type Resolver struct {
	loc        *time.Location
	cutoffHour int
	now        func() time.Time
}

func NewResolver(timezone string, cutoffHour int) (*Resolver, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load business timezone %q: %w", timezone, err)
	}
	if cutoffHour < 0 || cutoffHour > 23 {
		cutoffHour = DefaultCutoffHour
	}
	return &Resolver{loc: loc, cutoffHour: cutoffHour, now: time.Now}, nil
}

// WithClock returns a copy of the resolver with a pinned clock. Test hook.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	return &Resolver{loc: r.loc, cutoffHour: r.cutoffHour, now: now}
}

// Now returns the current business wall clock as an Instant, comparable with
// stored reservation instants.
func (r *Resolver) Now() Instant {
	n := r.now().In(r.loc)
	return Instant{t: time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), n.Minute(), n.Second(), 0, time.UTC)}
}

// NowBusinessDate returns the current business-day label. Before the cutoff
// hour the label is still the previous calendar date.
func (r *Resolver) NowBusinessDate() string {
	return r.BusinessDateOf(r.Now())
}

// BusinessDateOf maps an instant onto its business-day label using the
// cutoff rule.
func (r *Resolver) BusinessDateOf(in Instant) string {
	t := in.t
	if t.Hour() < r.cutoffHour {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format(dateLayout)
}

// BusinessDayRange returns the [start, end) instants covering the business
// day labelled by date.
func (r *Resolver) BusinessDayRange(date string) (Instant, Instant, error) {
	normalized, err := NormalizeDate(date)
	if err != nil {
		return Instant{}, Instant{}, err
	}
	start, err := ComposeInstant(normalized, fmt.Sprintf("%02d:00", r.cutoffHour))
	if err != nil {
		return Instant{}, Instant{}, err
	}
	return start, start.Add(24 * time.Hour), nil
}

// IsFutureOrNow reports whether the instant is not in the past, allowing a
// small negative tolerance for clock skew.
func (r *Resolver) IsFutureOrNow(in Instant, tolerance time.Duration) bool {
	if tolerance <= 0 {
		tolerance = DefaultArrivalTolerance
	}
	return !in.t.Before(r.Now().t.Add(-tolerance))
}
