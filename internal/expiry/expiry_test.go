package expiry

import (
	"math"
	"testing"
	"time"
)

func TestMinutes(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: 0, want: DefaultValidity},
		{in: -5, want: DefaultValidity},
		{in: 1, want: 1},
		{in: 1440, want: 1440},
		{in: MaxValidity, want: MaxValidity},
		{in: MaxValidity + 1, want: MaxValidity},
		{in: 200_000_000, want: MaxValidity},
	}

	for _, tt := range tests {
		if got := Minutes(tt.in); got != tt.want {
			t.Errorf("Minutes(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCompute(t *testing.T) {
	createdAt := time.UnixMilli(1_700_000_000_000)

	t.Run("one minute is 60000ms", func(t *testing.T) {
		got := Compute(createdAt, 1)
		if diff := got.UnixMilli() - createdAt.UnixMilli(); diff != 60_000 {
			t.Errorf("expiry - createdAt = %dms, want 60000", diff)
		}
	})

	t.Run("defaults to thirty minutes", func(t *testing.T) {
		got := Compute(createdAt, 0)
		if d := got.Sub(createdAt); d != 30*time.Minute {
			t.Errorf("expiry - createdAt = %v, want 30m", d)
		}
	})

	t.Run("expiry is always after creation", func(t *testing.T) {
		for _, v := range []int{-1, 0, 1, 5, 10_000, MaxValidity, 200_000_000, math.MaxInt} {
			if got := Compute(createdAt, v); !got.After(createdAt) {
				t.Errorf("Compute(%d) = %v, not after %v", v, got, createdAt)
			}
		}
	})
}

func TestIsExpired(t *testing.T) {
	exp := time.UnixMilli(1_700_000_060_000)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before expiry", now: exp.Add(-time.Millisecond), want: false},
		{name: "exact instant is live", now: exp, want: false},
		{name: "after expiry", now: exp.Add(time.Millisecond), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(exp, tt.now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}
