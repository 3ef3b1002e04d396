package refundpolicy

import (
	"time"

	"github.com/carebook/carebook-api/internal/pkg/money"
)

// Tier maps a minimum notice period before the appointment to the refund
// percentage the patient receives.
type Tier struct {
	HoursBefore int `json:"hours_before"`
	Percent     int `json:"percent"`
}

// Tiers is ordered from most to least notice. The first tier whose threshold
// the remaining time meets wins.
var Tiers = []Tier{
	{HoursBefore: 72, Percent: 100},
	{HoursBefore: 48, Percent: 75},
	{HoursBefore: 24, Percent: 50},
	{HoursBefore: 12, Percent: 25},
	{HoursBefore: 0, Percent: 0},
}

// Percent returns the refund percentage for a cancellation with the given
// time remaining until the appointment. Past appointments refund nothing.
func Percent(remaining time.Duration) int {
	hours := remaining.Hours()
	for _, t := range Tiers {
		if hours >= float64(t.HoursBefore) {
			return t.Percent
		}
	}
	return 0
}

// Quote is a refund computation for a specific payment and cancellation time.
type Quote struct {
	Percent      int   `json:"percent"`
	RefundAmount int64 `json:"refund_amount"`
}

// Compute quotes a patient-initiated cancellation at cancelledAt against the
// paid amount. Hospital-initiated cancellations do not go through the tier
// table; callers apply a full refund directly.
func Compute(paidAmount int64, appointmentTime, cancelledAt time.Time) Quote {
	pct := Percent(appointmentTime.Sub(cancelledAt))
	return Quote{
		Percent:      pct,
		RefundAmount: money.Percent(paidAmount, pct),
	}
}
