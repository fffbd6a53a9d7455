package dcrt

import (
	"fmt"
	"math"
	"math/big"

	"github.com/helago/helago/primeset"
	"github.com/helago/helago/ring"
	"github.com/helago/helago/utils/sampling"
)

// SampleUniform returns an element with rows uniform over the given prime
// set, together with the high-probability bound on its canonical embedding
// norm (which depends on the product of the primes).
func SampleUniform(ctx *Context, set primeset.Set, prng sampling.PRNG) (*Poly, *big.Float) {
	p := NewPoly(ctx, set)
	for _, i := range set.Elements() {
		ring.NewUniformSampler(prng, ctx.rings[i]).Read(p.rows[i])
	}
	return p, ctx.NoiseBoundForModBig(ctx.ProductOfPrimes(set), ctx.n)
}

// SampleTernaryHWt returns a ternary element with exactly hwt nonzero
// coefficients of random sign, together with its norm bound.
func SampleTernaryHWt(ctx *Context, set primeset.Set, hwt int, prng sampling.PRNG) (*Poly, *big.Float, error) {

	if hwt < 1 || hwt > ctx.n {
		return nil, nil, fmt.Errorf("cannot SampleTernaryHWt: hwt must be in [1, %d]", ctx.n)
	}

	coeffs := make([]int64, ctx.n)
	perm := make([]int, ctx.n)
	for i := range perm {
		perm[i] = i
	}

	// Partial Fisher-Yates: the first hwt entries of perm are a uniform
	// hwt-subset of the positions.
	for i := 0; i < hwt; i++ {
		j := i + int(sampling.RandUint64(prng)%uint64(ctx.n-i))
		perm[i], perm[j] = perm[j], perm[i]
		if sampling.RandUint64(prng)&1 == 0 {
			coeffs[perm[i]] = 1
		} else {
			coeffs[perm[i]] = -1
		}
	}

	return newPolyFromSigned(ctx, set, coeffs), ctx.NoiseBoundForHWt(hwt), nil
}

// SampleGaussian returns an element with Gaussian coefficients of standard
// deviation sigma, rounded to integers, together with its norm bound.
func SampleGaussian(ctx *Context, set primeset.Set, sigma float64, prng sampling.PRNG) (*Poly, *big.Float) {

	coeffs := make([]int64, ctx.n)
	for i := 0; i < ctx.n; i += 2 {
		u1 := sampling.RandFloat64(prng, 0, 1)
		for u1 == 0 {
			u1 = sampling.RandFloat64(prng, 0, 1)
		}
		u2 := sampling.RandFloat64(prng, 0, 1)
		r := sigma * math.Sqrt(-2*math.Log(u1))
		coeffs[i] = int64(math.Round(r * math.Cos(2*math.Pi*u2)))
		if i+1 < ctx.n {
			coeffs[i+1] = int64(math.Round(r * math.Sin(2*math.Pi*u2)))
		}
	}

	return newPolyFromSigned(ctx, set, coeffs), ctx.NoiseBoundForGaussian(sigma, ctx.n)
}
