// Package ring implements the per-prime arithmetic of the residue rows of a
// double-CRT polynomial: modular scalar operations, the negacyclic NTT over
// Z_q[X]/(X^N+1), Galois permutations of NTT-domain vectors and the
// generation of NTT-friendly primes.
package ring

import (
	"math/bits"
)

// AddMod returns a+b mod q, for a, b < q.
func AddMod(a, b, q uint64) uint64 {
	c := a + b
	if c >= q {
		c -= q
	}
	return c
}

// SubMod returns a-b mod q, for a, b < q.
func SubMod(a, b, q uint64) uint64 {
	if a >= b {
		return a - b
	}
	return a + q - b
}

// NegMod returns -a mod q, for a < q.
func NegMod(a, q uint64) uint64 {
	if a == 0 {
		return 0
	}
	return q - a
}

// MulMod returns a*b mod q, for a, b < q < 2^64. The 128-bit product is
// reduced with a single hardware division; the high word of the product is
// always smaller than q so the division cannot trap.
func MulMod(a, b, q uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, r := bits.Div64(hi, lo, q)
	return r
}

// PowMod returns a^e mod q by square and multiply.
func PowMod(a, e, q uint64) uint64 {
	r := uint64(1)
	a %= q
	for e > 0 {
		if e&1 == 1 {
			r = MulMod(r, a, q)
		}
		a = MulMod(a, a, q)
		e >>= 1
	}
	return r
}

// InvMod returns a^-1 mod q for prime q and a != 0 mod q.
func InvMod(a, q uint64) uint64 {
	if a%q == 0 {
		panic("cannot InvMod: a is zero mod q")
	}
	return PowMod(a, q-2, q)
}

// BalancedRepr returns the representative of a mod q in [-q/2, q/2),
// as a signed integer.
func BalancedRepr(a, q uint64) int64 {
	a %= q
	if a >= (q+1)>>1 {
		return -int64(q - a)
	}
	return int64(a)
}
