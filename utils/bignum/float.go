// Package bignum implements arbitrary precision arithmetic helpers on top of
// math/big.
package bignum

import (
	"math"
	"math/big"

	bigfloat "github.com/ALTree/bigfloat"
)

// NewFloat creates a new big.Float element with "prec" bits of precision.
func NewFloat(x interface{}, prec uint) (y *big.Float) {

	y = new(big.Float)
	y.SetPrec(prec)

	if x == nil {
		return
	}

	switch x := x.(type) {
	case int:
		y.SetInt64(int64(x))
	case int64:
		y.SetInt64(x)
	case uint64:
		y.SetUint64(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			panic("cannot NewFloat: x cannot be NaN or Inf")
		}
		y.SetFloat64(x)
	case *big.Int:
		y.SetInt(x)
	case *big.Float:
		y.Set(x)
	default:
		panic("cannot NewFloat: invalid x.(type)")
	}

	return
}

// Log returns the natural logarithm of x with the precision of x.
func Log(x *big.Float) *big.Float {
	return bigfloat.Log(x)
}

// Exp returns the natural exponential of x with the precision of x.
func Exp(x *big.Float) *big.Float {
	return bigfloat.Exp(x)
}

// Pow returns x^y with the precision of x.
func Pow(x, y *big.Float) *big.Float {
	return bigfloat.Pow(x, y)
}

// Log2 returns the base-2 logarithm of x with the precision of x.
func Log2(x *big.Float) *big.Float {
	ln2 := Log(NewFloat(2.0, x.Prec()))
	return new(big.Float).Quo(Log(x), ln2)
}

// Round returns the value of x rounded to the nearest integer, half away from
// zero, as a *big.Int.
func Round(x *big.Float) (r *big.Int) {
	r = new(big.Int)
	half := new(big.Float).SetPrec(x.Prec()).SetFloat64(0.5)
	y := new(big.Float).SetPrec(x.Prec())
	if x.Sign() >= 0 {
		y.Add(x, half)
	} else {
		y.Sub(x, half)
	}
	y.Int(r)
	return
}
