package math

import (
	stdmath "math"
	"math/big"
	"sync"
)

// All share and interest arithmetic floors toward zero. Residual dust stays
// in the vault and accrues to remaining claim holders.

// Int128 pool for intermediate products that may exceed int64.
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0)
	int128Pool.Put(v)
}

// MulDivFloor computes floor(a * b / den) without intermediate overflow.
// Quotients beyond the int64 range saturate at the nearest bound rather
// than wrapping. Panics if den <= 0: callers must validate denominators
// before pricing.
func MulDivFloor(a, b, den int64) int64 {
	if den <= 0 {
		panic("muldiv: non-positive denominator")
	}

	product := getInt128()
	product.Mul(big.NewInt(a), big.NewInt(b))

	quotient := getInt128()
	quotient.Div(product, big.NewInt(den))

	result := clampInt64(quotient)

	putInt128(product)
	putInt128(quotient)

	return result
}

// MulDiv3Floor computes floor(a * b * c / den) without intermediate overflow,
// saturating like MulDivFloor. Used for interest accrual: principal *
// rate_bps * elapsed_seconds can exceed int64 long before the final
// quotient does.
func MulDiv3Floor(a, b, c, den int64) int64 {
	if den <= 0 {
		panic("muldiv: non-positive denominator")
	}

	product := getInt128()
	product.Mul(big.NewInt(a), big.NewInt(b))
	product.Mul(product, big.NewInt(c))

	quotient := getInt128()
	quotient.Div(product, big.NewInt(den))

	result := clampInt64(quotient)

	putInt128(product)
	putInt128(quotient)

	return result
}

// clampInt64 converts a quotient to int64, saturating at the int64 bounds
// instead of taking the low bits.
func clampInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.Sign() > 0 {
		return stdmath.MaxInt64
	}
	return stdmath.MinInt64
}
