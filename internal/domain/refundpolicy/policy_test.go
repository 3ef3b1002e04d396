package refundpolicy

import (
	"testing"
	"time"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		want      int
	}{
		{"exactly 72h", 72 * time.Hour, 100},
		{"well ahead", 200 * time.Hour, 100},
		{"just under 72h", 71*time.Hour + 59*time.Minute, 75},
		{"exactly 48h", 48 * time.Hour, 75},
		{"just under 48h", 47*time.Hour + 59*time.Minute, 50},
		{"exactly 24h", 24 * time.Hour, 50},
		{"just under 24h", 23 * time.Hour, 25},
		{"exactly 12h", 12 * time.Hour, 25},
		{"just under 12h", 11 * time.Hour, 0},
		{"one minute before", time.Minute, 0},
		{"zero", 0, 0},
		{"appointment already passed", -3 * time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percent(tt.remaining); got != tt.want {
				t.Errorf("Percent(%v) = %d, want %d", tt.remaining, got, tt.want)
			}
		})
	}
}

func TestCompute(t *testing.T) {
	appointment := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		paid        int64
		cancelledAt time.Time
		wantPct     int
		wantAmount  int64
	}{
		{"full refund at 73h notice", 50000, appointment.Add(-73 * time.Hour), 100, 50000},
		{"three quarters at 50h", 50000, appointment.Add(-50 * time.Hour), 75, 37500},
		{"half at 30h", 50000, appointment.Add(-30 * time.Hour), 50, 25000},
		{"quarter at 13h", 50000, appointment.Add(-13 * time.Hour), 25, 12500},
		{"nothing at 2h", 50000, appointment.Add(-2 * time.Hour), 0, 0},
		{"rounding on odd amount", 33333, appointment.Add(-50 * time.Hour), 75, 25000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Compute(tt.paid, appointment, tt.cancelledAt)
			if q.Percent != tt.wantPct {
				t.Errorf("percent = %d, want %d", q.Percent, tt.wantPct)
			}
			if q.RefundAmount != tt.wantAmount {
				t.Errorf("refund = %d, want %d", q.RefundAmount, tt.wantAmount)
			}
		})
	}
}
