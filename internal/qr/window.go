package qr

import (
	"math"
	"time"

	"github.com/mesalista/venue-checkin/internal/biztime"
	"github.com/mesalista/venue-checkin/internal/domain"
)

// PolicyKind names a validity-window policy. Callers always pick one
// explicitly; there is no inferred default.
type PolicyKind string

const (
	// PolicyPostOnly admits scans any time before the reservation closes:
	// no lower bound, valid while now < reservedAt + After.
	PolicyPostOnly PolicyKind = "post_only"
	// PolicySymmetric admits scans from reservedAt - Before until
	// reservedAt + After, upper bound exclusive.
	PolicySymmetric PolicyKind = "symmetric"
)

// WindowPolicy is a named validity window around the reservation instant.
type WindowPolicy struct {
	Kind   PolicyKind
	Before time.Duration
	After  time.Duration
}

// PostOnly builds the primary policy used by the scanner flow.
func PostOnly(after time.Duration) WindowPolicy {
	return WindowPolicy{Kind: PolicyPostOnly, After: after}
}

// Symmetric builds the legacy policy used by older client codes.
func Symmetric(before, after time.Duration) WindowPolicy {
	return WindowPolicy{Kind: PolicySymmetric, Before: before, After: after}
}

// CheckWindow evaluates now against the policy window around reservedAt.
// The window is half-open: a scan at exactly reservedAt + After is already
// expired. Both instants carry business-local wall clocks, so plain
// arithmetic is correct regardless of the host timezone. Hour quantities in
// the returned errors are rounded up so "30 minutes early" reads as 1 hour,
// never 0.
func CheckWindow(now, reservedAt biztime.Instant, p WindowPolicy) error {
	diff := now.Sub(reservedAt)

	if p.Kind == PolicySymmetric && diff < -p.Before {
		remaining := -diff - p.Before
		return domain.TooEarly(hoursCeil(remaining))
	}
	if diff >= p.After {
		overdue := diff - p.After
		return domain.Expired(hoursCeil(overdue))
	}
	return nil
}

// VerifyToken compares the presented token to the credential's active token
// with strict equality. Historical tokens never match.
func VerifyToken(rec *domain.QRCode, presented string) bool {
	return presented != "" && rec.Token == presented
}

func hoursCeil(d time.Duration) int {
	h := math.Ceil(d.Hours())
	if h < 1 {
		h = 1
	}
	return int(h)
}
