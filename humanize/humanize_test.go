package humanize

import (
	"math"
	"testing"
)

func TestEaseInOutCubic(t *testing.T) {
	if got := easeInOutCubic(0); got != 0 {
		t.Errorf("ease(0) = %v, want 0", got)
	}
	if got := easeInOutCubic(1); math.Abs(got-1) > 1e-9 {
		t.Errorf("ease(1) = %v, want 1", got)
	}
	if got := easeInOutCubic(0.5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("ease(0.5) = %v, want 0.5", got)
	}

	// The curve must be monotonically non-decreasing.
	prev := -1.0
	for i := 0; i <= 100; i++ {
		v := easeInOutCubic(float64(i) / 100)
		if v < prev {
			t.Fatalf("easing not monotonic at t=%v: %v < %v", float64(i)/100, v, prev)
		}
		prev = v
	}
}

func TestRandBetween(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := randBetween(150, 251)
		if v < 150 || v > 250 {
			t.Fatalf("randBetween(150, 251) = %d out of range", v)
		}
	}
	if v := randBetween(5, 5); v != 5 {
		t.Errorf("degenerate range should return the floor, got %d", v)
	}
	if v := randBetween(7, 3); v != 7 {
		t.Errorf("inverted range should return the floor, got %d", v)
	}
}
