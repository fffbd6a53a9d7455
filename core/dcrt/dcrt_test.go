package dcrt

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helago/helago/primeset"
	"github.com/helago/helago/ring"
	"github.com/helago/helago/utils/buffer"
	"github.com/helago/helago/utils/sampling"
)

func testContext(t *testing.T) *Context {
	ctx, err := NewContext(ContextLiteral{
		LogN:           4,
		LogPrimeSize:   40,
		NCtxtPrimes:    4,
		NSpecialPrimes: 2,
		NSmallPrimes:   2,
		NDigits:        2,
		PtxtModulus:    1021,
	})
	require.NoError(t, err)
	return ctx
}

func testPRNG(t *testing.T, key string) *sampling.KeyedPRNG {
	prng, err := sampling.NewKeyedPRNG([]byte(key))
	require.NoError(t, err)
	return prng
}

func TestContext(t *testing.T) {

	ctx := testContext(t)

	t.Run("Chain", func(t *testing.T) {
		require.Equal(t, 8, ctx.NumPrimes())
		require.Equal(t, 2, ctx.SmallPrimes().Card())
		require.Equal(t, 4, ctx.CtxtPrimes().Card())
		require.Equal(t, 2, ctx.SpecialPrimes().Card())
		require.True(t, ctx.CtxtPrimes().IsInterval())

		seen := map[uint64]bool{}
		for i := 0; i < ctx.NumPrimes(); i++ {
			q := ctx.IthPrime(i)
			require.True(t, ring.IsPrime(q))
			require.Equal(t, uint64(1), q%uint64(2*ctx.N()))
			require.False(t, seen[q])
			seen[q] = true
		}
	})

	t.Run("Digits", func(t *testing.T) {
		require.Equal(t, 2, ctx.NumDigits())
		union := primeset.Set{}
		for i := 0; i < ctx.NumDigits(); i++ {
			d := ctx.Digit(i)
			require.True(t, union.Disjoint(d))
			require.True(t, d.IsInterval())
			union = union.Union(d)
		}
		require.True(t, union.Equal(ctx.CtxtPrimes()))
	})

	t.Run("Products", func(t *testing.T) {
		set := ctx.CtxtPrimes()
		q := ctx.ProductOfPrimes(set)
		logQ := ctx.LogOfProduct(set)
		require.InDelta(t, logQ, float64(q.BitLen()), 1.0)
	})

	t.Run("GetSet4Size", func(t *testing.T) {
		all := ctx.SmallPrimes().Union(ctx.CtxtPrimes())
		logOne := ctx.LogOfProduct(primeset.New(ctx.CtxtPrimes().First()))

		// An interval around two ciphertext primes must be hit exactly.
		lo, hi := 1.5*logOne, 2.5*logOne
		set := ctx.GetSet4Size(lo, hi, all, false)
		size := ctx.LogOfProduct(set)
		require.GreaterOrEqual(t, size, lo)
		require.LessOrEqual(t, size, hi)

		// Exact scheme takes the largest set in range, approximate the
		// smallest.
		lo, hi = 0.5*logOne, 3.5*logOne
		largest := ctx.LogOfProduct(ctx.GetSet4Size(lo, hi, all, false))
		smallest := ctx.LogOfProduct(ctx.GetSet4Size(lo, hi, all, true))
		require.Greater(t, largest, smallest)
	})

	t.Run("Literal/Rejects", func(t *testing.T) {
		_, err := NewContext(ContextLiteral{LogN: 0, LogPrimeSize: 40, NCtxtPrimes: 1})
		require.Error(t, err)
		_, err = NewContext(ContextLiteral{LogN: 4, LogPrimeSize: 40, NCtxtPrimes: 0})
		require.Error(t, err)
		_, err = NewContext(ContextLiteral{LogN: 4, LogPrimeSize: 40, NCtxtPrimes: 2, NDigits: 3})
		require.Error(t, err)
	})
}

func TestPolyRoundTrips(t *testing.T) {

	ctx := testContext(t)
	set := ctx.CtxtPrimes()

	t.Run("FromBigToBig", func(t *testing.T) {
		coeffs := make([]*big.Int, ctx.N())
		for i := range coeffs {
			coeffs[i] = big.NewInt(int64(i*37 - 100))
		}
		p, err := NewPolyFromBig(ctx, set, coeffs)
		require.NoError(t, err)
		got := p.ToBig(false)
		for i := range coeffs {
			require.Equal(t, 0, coeffs[i].Cmp(got[i]), "coefficient %d", i)
		}
	})

	t.Run("Constant", func(t *testing.T) {
		p, err := NewPolyFromBig(ctx, set, []*big.Int{big.NewInt(42)})
		require.NoError(t, err)
		got := p.ToBig(false)
		require.Equal(t, int64(42), got[0].Int64())
		for i := 1; i < ctx.N(); i++ {
			require.Zero(t, got[i].Sign())
		}
	})

	t.Run("Serialization", func(t *testing.T) {
		p := NewPoly(ctx, set)
		p.Randomize(testPRNG(t, "serial"))

		data, err := p.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, p.BinarySize(), len(data))

		q := NewPoly(ctx, primeset.Set{})
		require.NoError(t, q.UnmarshalBinary(data))
		require.True(t, p.Equal(q))
	})

	t.Run("Serialization/Buffered", func(t *testing.T) {
		p := NewPoly(ctx, set)
		p.Randomize(testPRNG(t, "buffered"))

		buf := buffer.NewBufferSize(p.BinarySize())
		n, err := p.WriteTo(buf)
		require.NoError(t, err)
		require.Equal(t, int64(p.BinarySize()), n)
	})
}

func TestPolyArithmetic(t *testing.T) {

	ctx := testContext(t)
	set := ctx.CtxtPrimes()
	prng := testPRNG(t, "arith")

	t.Run("AddSub", func(t *testing.T) {
		a := NewPoly(ctx, set)
		a.Randomize(prng)
		b := NewPoly(ctx, set)
		b.Randomize(prng)

		c := a.CopyNew()
		require.NoError(t, c.Add(b))
		require.NoError(t, c.Sub(b))
		require.True(t, a.Equal(c))
	})

	t.Run("SetPolicy", func(t *testing.T) {
		small := NewPoly(ctx, primeset.New(set.First()))
		full := NewPoly(ctx, set)

		// Operating on the smaller set against the larger one is allowed.
		require.NoError(t, small.Add(full))
		// The other direction would silently expand and must fail.
		require.Error(t, full.Add(small))
	})

	t.Run("MulDivByBig", func(t *testing.T) {
		a := NewPoly(ctx, set)
		a.Randomize(prng)
		b := a.CopyNew()
		c := big.NewInt(1021)
		b.MulBig(c)
		require.NoError(t, b.DivByBig(c))
		require.True(t, a.Equal(b))
	})

	t.Run("Negate", func(t *testing.T) {
		a := NewPoly(ctx, set)
		a.Randomize(prng)
		b := a.CopyNew()
		b.Negate()
		require.NoError(t, b.Add(a))
		require.True(t, b.Equal(NewPoly(ctx, set)))
	})
}

func TestPolyPrimeSetOps(t *testing.T) {

	ctx := testContext(t)
	ctxt := ctx.CtxtPrimes()
	special := ctx.SpecialPrimes()

	t.Run("AddPrimes", func(t *testing.T) {
		// Small coefficients survive the balanced lift unchanged, so the
		// expanded element must reconstruct to the same vector.
		coeffs := make([]*big.Int, ctx.N())
		for i := range coeffs {
			coeffs[i] = big.NewInt(int64(3*i - 20))
		}
		p, err := NewPolyFromBig(ctx, ctxt, coeffs)
		require.NoError(t, err)

		require.NoError(t, p.AddPrimes(special))
		require.True(t, p.Set().Equal(ctxt.Union(special)))

		got := p.ToBig(false)
		for i := range coeffs {
			require.Equal(t, 0, coeffs[i].Cmp(got[i]))
		}

		require.Error(t, p.AddPrimes(special))
	})

	t.Run("AddPrimesAndScale", func(t *testing.T) {
		coeffs := []*big.Int{big.NewInt(7)}
		p, err := NewPolyFromBig(ctx, ctxt, coeffs)
		require.NoError(t, err)

		logF, err := p.AddPrimesAndScale(special)
		require.NoError(t, err)
		require.InDelta(t, ctx.LogOfProduct(special), logF, 1e-9)

		want := new(big.Int).Mul(big.NewInt(7), ctx.ProductOfPrimes(special))
		got := p.ToBig(false)
		require.Equal(t, 0, want.Cmp(got[0]))
	})

	t.Run("ScaleDownToSet", func(t *testing.T) {
		full := ctxt
		target := primeset.Interval(full.First(), full.First()+2)
		ptxtSpace := uint64(1021)

		p := NewPoly(ctx, full)
		p.Randomize(testPRNG(t, "scaledown"))
		before := p.ToBig(false)

		delta, err := p.ScaleDownToSet(target, ptxtSpace)
		require.NoError(t, err)
		require.True(t, p.Set().Equal(target))

		diffProd := ctx.ProductOfPrimes(full.Diff(target))
		targetProd := ctx.ProductOfPrimes(target)
		after := p.ToBig(true)

		ptxt := new(big.Int).SetUint64(ptxtSpace)
		rem := new(big.Int)
		for i := range before {
			// The correction is divisible by the plaintext modulus.
			require.Zero(t, rem.Mod(delta[i], ptxt).Sign())
			// And the division is exact: after = (before - delta)/diffProd.
			num := new(big.Int).Sub(before[i], delta[i])
			require.Zero(t, rem.Mod(num, diffProd).Sign())
			num.Quo(num, diffProd)
			num.Mod(num, targetProd)
			require.Equal(t, 0, num.Cmp(after[i]), "coefficient %d", i)
		}
	})

	t.Run("RemovePrimes", func(t *testing.T) {
		p := NewPoly(ctx, ctxt)
		p.Randomize(testPRNG(t, "remove"))
		p.RemovePrimes(primeset.New(ctxt.Last()))
		require.Equal(t, ctxt.Card()-1, p.Set().Card())
	})
}

func TestPolyAutomorph(t *testing.T) {

	ctx := testContext(t)
	set := ctx.CtxtPrimes()

	p := NewPoly(ctx, set)
	p.Randomize(testPRNG(t, "auto"))
	orig := p.CopyNew()

	m := uint64(2 * ctx.N())
	k := uint64(3)
	kInv := ring.PowMod(k, m/2-1, m)
	require.Equal(t, uint64(1), (k*kInv)%m)

	require.NoError(t, p.Automorph(k))
	require.False(t, p.Equal(orig))
	require.NoError(t, p.Automorph(kInv))
	require.True(t, p.Equal(orig))
}

func TestPolyBreakIntoDigits(t *testing.T) {

	ctx := testContext(t)

	// Reassemble sum_i prefix_i * d_i with the full plan radices, the
	// convention the key-switching matrices assume, and compare with the
	// original on its ciphertext rows. On a partial set the digits only
	// agree with the original modulo the carried ciphertext primes.
	roundTrip := func(t *testing.T, ctxtPart primeset.Set, wantDigits int) {
		p := NewPoly(ctx, ctxtPart)
		p.Randomize(testPRNG(t, "digits"))
		require.NoError(t, p.AddPrimes(ctx.SpecialPrimes()))
		set := p.Set()

		digits, noise, err := p.BreakIntoDigits()
		require.NoError(t, err)
		require.Len(t, digits, wantDigits)
		require.Positive(t, noise.Sign())

		acc := NewPoly(ctx, set)
		prefix := big.NewInt(1)
		for i, d := range digits {
			require.True(t, d.Set().Equal(set))
			term := d.CopyNew()
			term.MulBig(prefix)
			require.NoError(t, acc.Add(term))
			prefix.Mul(prefix, ctx.ProductOfPrimes(ctx.Digit(i)))
		}

		acc.RemovePrimes(ctx.SpecialPrimes())
		got := p.CopyNew()
		got.RemovePrimes(ctx.SpecialPrimes())
		require.True(t, acc.Equal(got))
	}

	ctxt := ctx.CtxtPrimes()

	t.Run("FullSet", func(t *testing.T) {
		roundTrip(t, ctxt, ctx.NumDigits())
	})

	t.Run("PartialSpanningBoundary", func(t *testing.T) {
		roundTrip(t, primeset.Interval(ctxt.First()+1, ctxt.First()+3), ctx.NumDigits())
	})

	t.Run("MissingFirstDigit", func(t *testing.T) {
		roundTrip(t, primeset.Interval(ctxt.First()+2, ctxt.First()+4), ctx.NumDigits())
	})

	t.Run("NoCtxtPrimes", func(t *testing.T) {
		p := NewPoly(ctx, ctx.SpecialPrimes())
		p.Randomize(testPRNG(t, "digits"))
		_, _, err := p.BreakIntoDigits()
		require.Error(t, err)
	})
}

func TestPolySampling(t *testing.T) {

	ctx := testContext(t)
	set := ctx.CtxtPrimes()

	t.Run("TernaryHWt", func(t *testing.T) {
		hwt := 8
		p, bound, err := SampleTernaryHWt(ctx, set, hwt, testPRNG(t, "ternary"))
		require.NoError(t, err)
		require.Positive(t, bound.Sign())

		nonZero := 0
		for _, c := range p.ToBig(false) {
			switch c.Int64() {
			case 0:
			case 1, -1:
				nonZero++
			default:
				t.Fatalf("non-ternary coefficient %v", c)
			}
		}
		require.Equal(t, hwt, nonZero)
	})

	t.Run("Gaussian", func(t *testing.T) {
		sigma := 3.2
		p, bound := SampleGaussian(ctx, set, sigma, testPRNG(t, "gauss"))
		require.Positive(t, bound.Sign())
		for _, c := range p.ToBig(false) {
			require.Less(t, c.Int64(), int64(100))
			require.Greater(t, c.Int64(), int64(-100))
		}
	})

	t.Run("Uniform", func(t *testing.T) {
		p, bound := SampleUniform(ctx, set, testPRNG(t, "uniform"))
		require.Positive(t, bound.Sign())
		require.True(t, p.Set().Equal(set))
	})
}
