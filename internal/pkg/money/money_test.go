package money

import "testing"

func TestPercent(t *testing.T) {
	tests := []struct {
		amount int64
		pct    int
		want   int64
	}{
		{1000, 18, 180},
		{1000, 0, 0},
		{1000, 100, 1000},
		{1180, 75, 885},
		{33333, 75, 25000},
		{1, 50, 1},
		{0, 50, 0},
	}

	for _, tt := range tests {
		if got := Percent(tt.amount, tt.pct); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.amount, tt.pct, got, tt.want)
		}
	}
}
