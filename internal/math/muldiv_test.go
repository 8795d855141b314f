package math_test

import (
	stdmath "math"
	"testing"

	fpmath "kuyayvault/internal/math"
)

func TestMulDivFloor_Basic(t *testing.T) {
	cases := []struct {
		a, b, den int64
		want      int64
	}{
		{500, 1000, 1000, 500},
		{1, 3, 2, 1},       // 1.5 floors to 1
		{2, 3, 4, 1},       // 1.5 floors to 1
		{999, 1000, 1001, 998},
		{0, 12345, 999, 0},
	}

	for _, tc := range cases {
		got := fpmath.MulDivFloor(tc.a, tc.b, tc.den)
		if got != tc.want {
			t.Errorf("MulDivFloor(%d, %d, %d) = %d, want %d", tc.a, tc.b, tc.den, got, tc.want)
		}
	}
}

func TestMulDivFloor_NoIntermediateOverflow(t *testing.T) {
	// a*b overflows int64 but the quotient does not
	a := int64(1) << 62
	got := fpmath.MulDivFloor(a, 4, 8)
	want := a / 2
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestMulDivFloor_SaturatesAtInt64Bounds(t *testing.T) {
	cases := []struct {
		name      string
		a, b, den int64
		want      int64
	}{
		{"quotient above max", 1 << 62, 8, 1, stdmath.MaxInt64},
		{"quotient below min", -(1 << 62), 8, 1, stdmath.MinInt64},
		{"exactly max passes through", stdmath.MaxInt64, 1, 1, stdmath.MaxInt64},
		{"one past max saturates", stdmath.MaxInt64, 2, 1, stdmath.MaxInt64},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fpmath.MulDivFloor(tc.a, tc.b, tc.den); got != tc.want {
				t.Errorf("MulDivFloor(%d, %d, %d) = %d, want %d", tc.a, tc.b, tc.den, got, tc.want)
			}
		})
	}
}

func TestMulDiv3Floor_SaturatesAtInt64Bounds(t *testing.T) {
	if got := fpmath.MulDiv3Floor(1<<62, 4, 4, 2); got != stdmath.MaxInt64 {
		t.Errorf("got %d, want MaxInt64", got)
	}
}

func TestMulDivFloor_PanicsOnZeroDenominator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero denominator")
		}
	}()
	fpmath.MulDivFloor(1, 1, 0)
}

func TestMulDiv3Floor_InterestVector(t *testing.T) {
	// principal=1000, rate=1200bps, elapsed=15 days over a 365-day year
	// floor(1000*1200*1296000 / 315360000000) = floor(4.93...) = 4
	elapsed := int64(15 * 86400)
	got := fpmath.MulDiv3Floor(1000, 1200, elapsed, 10000*31_536_000)
	if got != 4 {
		t.Errorf("interest = %d, want 4", got)
	}
}

func TestMulDiv3Floor_LargePrincipal(t *testing.T) {
	// A trillion-unit principal at 10000 bps for a full year: product is far
	// beyond int64 but the result is exact.
	principal := int64(1_000_000_000_000)
	got := fpmath.MulDiv3Floor(principal, 10000, 31_536_000, 10000*31_536_000)
	if got != principal {
		t.Errorf("got %d, want %d", got, principal)
	}
}
