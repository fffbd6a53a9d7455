package he

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helago/helago/core/dcrt"
	"github.com/helago/helago/primeset"
	"github.com/helago/helago/ring"
	"github.com/helago/helago/utils/sampling"
)

func testContextBGV(t *testing.T) *dcrt.Context {
	ctx, err := dcrt.NewContext(dcrt.ContextLiteral{
		LogN:           4,
		LogPrimeSize:   40,
		NCtxtPrimes:    6,
		NSpecialPrimes: 2,
		NSmallPrimes:   2,
		NDigits:        2,
		PtxtModulus:    1021,
		HWt:            8,
	})
	require.NoError(t, err)
	return ctx
}

func testContextCKKS(t *testing.T) *dcrt.Context {
	ctx, err := dcrt.NewContext(dcrt.ContextLiteral{
		LogN:           4,
		LogPrimeSize:   40,
		NCtxtPrimes:    6,
		NSpecialPrimes: 2,
		NSmallPrimes:   2,
		NDigits:        2,
		HWt:            8,
	})
	require.NoError(t, err)
	return ctx
}

func testKeys(t *testing.T, ctx *dcrt.Context, seed string) (*SecKey, *PubKey) {
	prng, err := sampling.NewKeyedPRNG([]byte(seed))
	require.NoError(t, err)
	sk, err := GenSecKey(ctx, prng)
	require.NoError(t, err)
	require.NoError(t, sk.GenRelinKey())
	return sk, sk.PubKey()
}

// testVector returns a full-length plaintext vector with a few distinctive
// low coefficients.
func testVector(ctx *dcrt.Context, vals ...uint64) []uint64 {
	out := make([]uint64, ctx.N())
	copy(out, vals)
	return out
}

func testVectorFloat(ctx *dcrt.Context, vals ...float64) []float64 {
	out := make([]float64, ctx.N())
	copy(out, vals)
	return out
}

// requireNoiseSound checks that the actual noise of ct stays below its
// tracked bound.
func requireNoiseSound(t *testing.T, sk *SecKey, ct *Ciphertext) {
	norm, err := sk.NoiseNorm(ct)
	require.NoError(t, err)
	require.LessOrEqual(t, norm.Cmp(ct.NoiseBound), 0,
		"noise norm %v exceeds tracked bound %v", norm, ct.NoiseBound)
}

func TestEncryptDecrypt(t *testing.T) {

	ctx := testContextBGV(t)
	sk, pk := testKeys(t, ctx, "encdec")

	t.Run("RoundTrip", func(t *testing.T) {
		ptxt := testVector(ctx, 120, 246, 1020, 1)
		ct, err := pk.Encrypt(ptxt, 0)
		require.NoError(t, err)
		requireNoiseSound(t, sk, ct)

		got, err := sk.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, ptxt, got)
	})

	t.Run("Dummy", func(t *testing.T) {
		ptxt := testVector(ctx, 7, 13)
		ct, err := pk.DummyEncrypt(ptxt, 0)
		require.NoError(t, err)

		got, err := sk.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, ptxt, got)
	})

	t.Run("Capacity", func(t *testing.T) {
		ct, err := pk.Encrypt(testVector(ctx, 1), 0)
		require.NoError(t, err)
		require.Greater(t, ct.Capacity(), 100.0)
	})
}

func TestAdd(t *testing.T) {

	ctx := testContextBGV(t)
	sk, pk := testKeys(t, ctx, "add")

	ct1, err := pk.Encrypt(testVector(ctx, 120, 900), 0)
	require.NoError(t, err)
	ct2, err := pk.Encrypt(testVector(ctx, 246, 300), 0)
	require.NoError(t, err)

	t.Run("Sum", func(t *testing.T) {
		sum := ct1.CopyNew()
		require.NoError(t, sum.Add(ct2))
		requireNoiseSound(t, sk, sum)

		got, err := sk.Decrypt(sum)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 366, (900+300)%1021), got)
	})

	t.Run("Difference", func(t *testing.T) {
		diff := ct1.CopyNew()
		require.NoError(t, diff.Sub(ct2))

		got, err := sk.Decrypt(diff)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, (120-246+1021)%1021, 600), got)
	})

	t.Run("EmptyIsIdentity", func(t *testing.T) {
		sum := NewCiphertext(pk, 0)
		require.NoError(t, sum.Add(ct1))
		got, err := sk.Decrypt(sum)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 120, 900), got)
	})

	t.Run("MismatchedIntFactors", func(t *testing.T) {
		scaled := ct1.CopyNew()
		scaled.MulIntFactor(7)
		require.NotEqual(t, ct2.IntFactor, scaled.IntFactor)

		sum := scaled.CopyNew()
		require.NoError(t, sum.Add(ct2))
		requireNoiseSound(t, sk, sum)

		got, err := sk.Decrypt(sum)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 366, (900+300)%1021), got)
	})
}

func TestMultiply(t *testing.T) {

	ctx := testContextBGV(t)
	sk, pk := testKeys(t, ctx, "mul")

	t.Run("Product", func(t *testing.T) {
		ct1, err := pk.Encrypt(testVector(ctx, 4), 0)
		require.NoError(t, err)
		ct2, err := pk.Encrypt(testVector(ctx, 150), 0)
		require.NoError(t, err)

		require.NoError(t, ct1.MultiplyBy(ct2))
		requireNoiseSound(t, sk, ct1)
		require.True(t, ct1.InCanonicalForm(-1))

		got, err := sk.Decrypt(ct1)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 600), got)
	})

	t.Run("Convolution", func(t *testing.T) {
		// (3 + 5X)(7) = 21 + 35X in the negacyclic ring.
		ct1, err := pk.Encrypt(testVector(ctx, 3, 5), 0)
		require.NoError(t, err)
		ct2, err := pk.Encrypt(testVector(ctx, 7), 0)
		require.NoError(t, err)

		require.NoError(t, ct1.MultiplyBy(ct2))
		got, err := sk.Decrypt(ct1)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 21, 35), got)
	})

	t.Run("Square", func(t *testing.T) {
		ct, err := pk.Encrypt(testVector(ctx, 25), 0)
		require.NoError(t, err)
		require.NoError(t, ct.Square())

		got, err := sk.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 625), got)
	})

	t.Run("MultiplyBy2", func(t *testing.T) {
		ct1, err := pk.Encrypt(testVector(ctx, 3), 0)
		require.NoError(t, err)
		ct2, err := pk.Encrypt(testVector(ctx, 5), 0)
		require.NoError(t, err)
		ct3, err := pk.Encrypt(testVector(ctx, 7), 0)
		require.NoError(t, err)

		require.NoError(t, ct1.MultiplyBy2(ct2, ct3))
		requireNoiseSound(t, sk, ct1)

		got, err := sk.Decrypt(ct1)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 105), got)
	})

	// Multiplying after a mod-switch to an interior interval relinearizes on
	// a prime set that is neither anchored at the first ciphertext prime nor
	// aligned with the digit plan.
	t.Run("ProductOnInteriorPrimeSet", func(t *testing.T) {
		ctxt := ctx.CtxtPrimes()

		for name, set := range map[string]primeset.Set{
			"Anchored": primeset.Interval(ctxt.First(), ctxt.First()+3),
			"Interior": primeset.Interval(ctxt.First()+2, ctxt.First()+5),
		} {
			t.Run(name, func(t *testing.T) {
				ct1, err := pk.Encrypt(testVector(ctx, 4), 0)
				require.NoError(t, err)
				ct2, err := pk.Encrypt(testVector(ctx, 150), 0)
				require.NoError(t, err)

				require.NoError(t, ct1.BringToSet(set))
				require.NoError(t, ct2.BringToSet(set))

				require.NoError(t, ct1.MultiplyBy(ct2))
				requireNoiseSound(t, sk, ct1)

				got, err := sk.Decrypt(ct1)
				require.NoError(t, err)
				require.Equal(t, testVector(ctx, 600), got)
			})
		}
	})

	t.Run("ReLinearizeIdempotent", func(t *testing.T) {
		ct, err := pk.Encrypt(testVector(ctx, 11), 0)
		require.NoError(t, err)
		other, err := pk.Encrypt(testVector(ctx, 13), 0)
		require.NoError(t, err)
		require.NoError(t, ct.MultiplyBy(other))

		before := ct.CopyNew()
		require.NoError(t, ct.ReLinearize())
		require.True(t, ct.Equal(before))
	})
}

func TestModSwitching(t *testing.T) {

	ctx := testContextBGV(t)
	sk, pk := testKeys(t, ctx, "modswitch")

	ptxt := testVector(ctx, 120, 246)
	ct, err := pk.Encrypt(ptxt, 0)
	require.NoError(t, err)

	ctxt := ctx.CtxtPrimes()
	smaller := primeset.Interval(ctxt.First(), ctxt.First()+3)

	t.Run("BringDown", func(t *testing.T) {
		down := ct.CopyNew()
		require.NoError(t, down.BringToSet(smaller))
		require.True(t, down.PrimeSet.Equal(smaller))
		requireNoiseSound(t, sk, down)

		got, err := sk.Decrypt(down)
		require.NoError(t, err)
		require.Equal(t, ptxt, got)
	})

	t.Run("BringBackUp", func(t *testing.T) {
		moved := ct.CopyNew()
		require.NoError(t, moved.BringToSet(smaller))
		require.NoError(t, moved.BringToSet(ctxt))
		require.True(t, moved.PrimeSet.Equal(ctxt))

		got, err := sk.Decrypt(moved)
		require.NoError(t, err)
		require.Equal(t, ptxt, got)
	})

	t.Run("DropSpecials", func(t *testing.T) {
		lifted := ct.CopyNew()
		require.NoError(t, lifted.ModUpToSet(ct.PrimeSet.Union(ctx.SpecialPrimes())))
		require.NoError(t, lifted.DropSmallAndSpecialPrimes())
		require.True(t, lifted.PrimeSet.Disjoint(ctx.SpecialPrimes()))

		got, err := sk.Decrypt(lifted)
		require.NoError(t, err)
		require.Equal(t, ptxt, got)
	})
}

func TestConstants(t *testing.T) {

	ctx := testContextBGV(t)
	sk, pk := testKeys(t, ctx, "constants")

	t.Run("MultByConstant", func(t *testing.T) {
		ct, err := pk.Encrypt(testVector(ctx, 100, 500), 0)
		require.NoError(t, err)
		require.NoError(t, ct.MultByConstant(big.NewInt(7)))
		requireNoiseSound(t, sk, ct)

		got, err := sk.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 700, (7*500)%1021), got)
	})

	t.Run("MultByNegativeConstant", func(t *testing.T) {
		ct, err := pk.Encrypt(testVector(ctx, 10), 0)
		require.NoError(t, err)
		require.NoError(t, ct.MultByConstant(big.NewInt(-3)))

		got, err := sk.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 1021-30), got)
	})

	t.Run("MultByZero", func(t *testing.T) {
		ct, err := pk.Encrypt(testVector(ctx, 10), 0)
		require.NoError(t, err)
		require.NoError(t, ct.MultByConstant(big.NewInt(0)))
		require.True(t, ct.IsEmpty())
	})

	t.Run("AddConstant", func(t *testing.T) {
		ct, err := pk.Encrypt(testVector(ctx, 1000, 3), 0)
		require.NoError(t, err)
		require.NoError(t, ct.AddConstant(big.NewInt(50)))
		requireNoiseSound(t, sk, ct)

		got, err := sk.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, (1000+50)%1021, 53), got)
	})

	t.Run("AddConstantAfterScaling", func(t *testing.T) {
		// The addition must track a non-trivial integer factor.
		ct, err := pk.Encrypt(testVector(ctx, 9), 0)
		require.NoError(t, err)
		ct.MulIntFactor(5)
		require.NoError(t, ct.AddConstant(big.NewInt(2)))

		got, err := sk.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 11), got)
	})
}

func TestDivideBy2(t *testing.T) {

	ctx, err := dcrt.NewContext(dcrt.ContextLiteral{
		LogN:           4,
		LogPrimeSize:   40,
		NCtxtPrimes:    4,
		NSpecialPrimes: 2,
		NSmallPrimes:   2,
		NDigits:        2,
		PtxtModulus:    16,
		HWt:            8,
	})
	require.NoError(t, err)
	sk, pk := testKeys(t, ctx, "div2")

	ptxt := testVector(ctx, 2, 4, 14, 8)
	ct, err := pk.Encrypt(ptxt, 0)
	require.NoError(t, err)

	require.NoError(t, ct.DivideBy2())
	require.Equal(t, uint64(8), ct.PtxtSpace)
	requireNoiseSound(t, sk, ct)

	got, err := sk.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, testVector(ctx, 1, 2, 7, 4), got)
}

type recordedAmounts []uint64

func (r *recordedAmounts) Record(k uint64) { *r = append(*r, k) }

func TestAutomorphisms(t *testing.T) {

	ctx := testContextBGV(t)
	sk, pk := testKeys(t, ctx, "auto")

	m := uint64(ctx.M())
	k := uint64(3)
	kInv := ring.PowMod(k, m/2-1, m)
	require.NoError(t, sk.GenAutomorphKey(k))
	require.NoError(t, sk.GenAutomorphKey(kInv))

	ptxt := testVector(ctx, 1, 2, 3, 4)
	ct, err := pk.Encrypt(ptxt, 0)
	require.NoError(t, err)

	t.Run("InverseIsIdentity", func(t *testing.T) {
		moved := ct.CopyNew()
		require.NoError(t, moved.SmartAutomorph(k))
		require.NoError(t, moved.SmartAutomorph(kInv))
		requireNoiseSound(t, sk, moved)

		got, err := sk.Decrypt(moved)
		require.NoError(t, err)
		require.Equal(t, ptxt, got)
	})

	t.Run("Permutes", func(t *testing.T) {
		moved := ct.CopyNew()
		require.NoError(t, moved.SmartAutomorph(k))
		got, err := sk.Decrypt(moved)
		require.NoError(t, err)
		require.NotEqual(t, ptxt, got)
	})

	t.Run("Unreachable", func(t *testing.T) {
		moved := ct.CopyNew()
		require.Error(t, moved.SmartAutomorph(5))
	})

	t.Run("Recorder", func(t *testing.T) {
		var rec recordedAmounts
		moved := ct.CopyNew()
		require.NoError(t, moved.SmartAutomorphRecorded(7, &rec))
		require.Equal(t, recordedAmounts{7}, rec)
		require.True(t, moved.Equal(ct))
	})

	t.Run("Frobenius", func(t *testing.T) {
		// p^j mod m cycles, so some power of the Frobenius map is trivial.
		p := ctx.PtxtModulus() % m
		ord := 1
		for pj := p; pj != 1; pj = ring.MulMod(pj, p, m) {
			ord++
		}
		moved := ct.CopyNew()
		require.NoError(t, moved.FrobeniusAutomorph(ord))
		got, err := sk.Decrypt(moved)
		require.NoError(t, err)
		require.Equal(t, ptxt, got)
	})
}

func TestCKKS(t *testing.T) {

	ctx := testContextCKKS(t)
	sk, pk := testKeys(t, ctx, "ckks")

	// tolerance returns the decryption error guaranteed by the tracked
	// bounds, in plaintext units.
	tolerance := func(ct *Ciphertext) float64 {
		tol, _ := ctx.NewFloat(0).Quo(ct.NoiseBound, ct.RatFactor).Float64()
		return tol + 1e-9
	}

	requireClose := func(t *testing.T, want []float64, ct *Ciphertext) {
		got, err := sk.DecryptCKKS(ct)
		require.NoError(t, err)
		tol := tolerance(ct)
		for i := range want {
			g, _ := got[i].Float64()
			require.InDelta(t, want[i], g, tol, "coefficient %d", i)
		}
	}

	// The inner product of an approximate ciphertext with the key carries the
	// scaled message on top of the noise, so its norm is checked against
	// ratFactor*ptxtMag*N + noiseBound.
	requireApproxNoiseSound := func(t *testing.T, ct *Ciphertext) {
		norm, err := sk.NoiseNorm(ct)
		require.NoError(t, err)
		limit := ctx.NewFloat(0).Mul(ct.RatFactor, ct.PtxtMag)
		limit.Mul(limit, ctx.NewFloat(int64(ctx.N())))
		limit.Add(limit, ct.NoiseBound)
		require.LessOrEqual(t, norm.Cmp(limit), 0)
	}

	t.Run("RoundTrip", func(t *testing.T) {
		vals := testVectorFloat(ctx, 0.5, -0.25, 1.0, 0.125)
		ct, err := pk.EncryptCKKS(vals, 1.0)
		require.NoError(t, err)
		requireApproxNoiseSound(t, ct)
		requireClose(t, vals, ct)
	})

	t.Run("Dummy", func(t *testing.T) {
		vals := testVectorFloat(ctx, 0.75, -0.5)
		ct, err := pk.DummyEncryptCKKS(vals, 1.0)
		require.NoError(t, err)
		requireClose(t, vals, ct)
	})

	t.Run("AddDifferentScales", func(t *testing.T) {
		ct1, err := pk.EncryptCKKS(testVectorFloat(ctx, 1.5, 0.5), 2.0)
		require.NoError(t, err)
		ct2, err := pk.EncryptCKKS(testVectorFloat(ctx, 2.5, -1.0), 3.0)
		require.NoError(t, err)
		require.False(t, ct1.RatFactor.Cmp(ct2.RatFactor) == 0)

		require.NoError(t, ct1.Add(ct2))
		requireApproxNoiseSound(t, ct1)
		requireClose(t, testVectorFloat(ctx, 4.0, -0.5), ct1)
	})

	t.Run("Multiply", func(t *testing.T) {
		ct1, err := pk.EncryptCKKS(testVectorFloat(ctx, 2.0, 0.5), 2.0)
		require.NoError(t, err)
		ct2, err := pk.EncryptCKKS(testVectorFloat(ctx, 3.0), 3.0)
		require.NoError(t, err)

		require.NoError(t, ct1.MultiplyBy(ct2))
		requireApproxNoiseSound(t, ct1)
		requireClose(t, testVectorFloat(ctx, 6.0, 1.5), ct1)
	})

	t.Run("AddConstant", func(t *testing.T) {
		ct, err := pk.EncryptCKKS(testVectorFloat(ctx, 0.5), 1.0)
		require.NoError(t, err)
		require.NoError(t, ct.AddConstant(big.NewInt(2)))
		requireClose(t, testVectorFloat(ctx, 2.5), ct)
	})

	t.Run("MultByIntConstant", func(t *testing.T) {
		ct, err := pk.EncryptCKKS(testVectorFloat(ctx, 0.5, -0.25), 1.0)
		require.NoError(t, err)
		require.NoError(t, ct.MultByConstant(big.NewInt(-3)))
		requireClose(t, testVectorFloat(ctx, -1.5, 0.75), ct)
	})

	t.Run("ComplexConj", func(t *testing.T) {
		require.NoError(t, sk.GenAutomorphKey(uint64(ctx.M())-1))

		vals := testVectorFloat(ctx, 1.0, 0.5)
		ct, err := pk.EncryptCKKS(vals, 1.0)
		require.NoError(t, err)

		require.NoError(t, ct.ComplexConj())
		require.NoError(t, ct.ComplexConj())
		requireClose(t, vals, ct)
	})
}

func TestProducts(t *testing.T) {

	ctx := testContextBGV(t)
	sk, pk := testKeys(t, ctx, "products")

	encrypt := func(v uint64) *Ciphertext {
		ct, err := pk.Encrypt(testVector(ctx, v), 0)
		require.NoError(t, err)
		return ct
	}

	t.Run("TotalProduct", func(t *testing.T) {
		v := []*Ciphertext{encrypt(2), encrypt(3), encrypt(5), encrypt(7)}
		out, err := TotalProduct(v)
		require.NoError(t, err)
		requireNoiseSound(t, sk, out)

		got, err := sk.Decrypt(out)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 210), got)
	})

	t.Run("TotalProductOfThree", func(t *testing.T) {
		out, err := TotalProduct([]*Ciphertext{encrypt(2), encrypt(3), encrypt(5)})
		require.NoError(t, err)
		got, err := sk.Decrypt(out)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 30), got)
	})

	t.Run("IncrementalProduct", func(t *testing.T) {
		v := []*Ciphertext{encrypt(2), encrypt(3), encrypt(5), encrypt(7)}
		require.NoError(t, IncrementalProduct(v))

		want := []uint64{2, 6, 30, 210}
		for i := range v {
			got, err := sk.Decrypt(v[i])
			require.NoError(t, err)
			require.Equal(t, testVector(ctx, want[i]), got, "prefix %d", i)
		}
	})

	t.Run("InnerProduct", func(t *testing.T) {
		v1 := []*Ciphertext{encrypt(2), encrypt(3)}
		v2 := []*Ciphertext{encrypt(10), encrypt(20)}
		out, err := InnerProduct(v1, v2)
		require.NoError(t, err)
		requireNoiseSound(t, sk, out)

		got, err := sk.Decrypt(out)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 80), got)
	})

	t.Run("InnerProductConstants", func(t *testing.T) {
		coeffs := []*big.Int{big.NewInt(10), big.NewInt(20)}
		constants := make([]*dcrt.Poly, len(coeffs))
		for i, c := range coeffs {
			p, err := dcrt.NewPolyFromBig(ctx, ctx.CtxtPrimes(), []*big.Int{c})
			require.NoError(t, err)
			constants[i] = p
		}

		out, err := InnerProductConstants([]*Ciphertext{encrypt(2), encrypt(3)}, constants)
		require.NoError(t, err)

		got, err := sk.Decrypt(out)
		require.NoError(t, err)
		require.Equal(t, testVector(ctx, 80), got)
	})
}

func TestNoiseStats(t *testing.T) {

	ctx := testContextBGV(t)
	stats := NewNoiseStats()
	ctx.Stats = stats

	sk, pk := testKeys(t, ctx, "stats")

	ct1, err := pk.Encrypt(testVector(ctx, 4), 0)
	require.NoError(t, err)
	ct2, err := pk.Encrypt(testVector(ctx, 150), 0)
	require.NoError(t, err)
	require.NoError(t, ct1.MultiplyBy(ct2))

	got, err := sk.Decrypt(ct1)
	require.NoError(t, err)
	require.Equal(t, testVector(ctx, 600), got)

	summary := stats.Summary()
	require.Contains(t, summary, "KS-noise-ratio")
	require.Positive(t, summary["KS-noise-ratio"].Count)
	require.NotEmpty(t, stats.String())
}

func TestSerialization(t *testing.T) {

	ctx := testContextBGV(t)
	sk, pk := testKeys(t, ctx, "serial")

	ptxt := testVector(ctx, 120, 246, 77)
	ct, err := pk.Encrypt(ptxt, 0)
	require.NoError(t, err)

	t.Run("Binary", func(t *testing.T) {
		data, err := ct.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, ct.BinarySize(), len(data))

		ct2 := NewCiphertext(pk, 0)
		require.NoError(t, ct2.UnmarshalBinary(data))
		require.True(t, ct.Equal(ct2))

		got, err := sk.Decrypt(ct2)
		require.NoError(t, err)
		require.Equal(t, ptxt, got)
	})

	t.Run("CorruptedPayload", func(t *testing.T) {
		data, err := ct.MarshalBinary()
		require.NoError(t, err)
		data[20] ^= 0xff

		ct2 := NewCiphertext(pk, 0)
		require.ErrorContains(t, ct2.UnmarshalBinary(data), "digest")
	})

	t.Run("Truncated", func(t *testing.T) {
		data, err := ct.MarshalBinary()
		require.NoError(t, err)

		ct2 := NewCiphertext(pk, 0)
		require.Error(t, ct2.UnmarshalBinary(data[:len(data)/2]))
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := ct.MarshalJSON()
		require.NoError(t, err)

		ct2 := NewCiphertext(pk, 0)
		require.NoError(t, ct2.UnmarshalJSON(data))
		require.True(t, ct.Equal(ct2))

		got, err := sk.Decrypt(ct2)
		require.NoError(t, err)
		require.Equal(t, ptxt, got)
	})
}

func TestEqualTolerance(t *testing.T) {

	ctx := testContextBGV(t)
	_, pk := testKeys(t, ctx, "equal")

	ct, err := pk.Encrypt(testVector(ctx, 42), 0)
	require.NoError(t, err)

	t.Run("Copy", func(t *testing.T) {
		require.True(t, ct.Equal(ct.CopyNew()))
	})

	t.Run("NoiseWithinRatio", func(t *testing.T) {
		other := ct.CopyNew()
		other.NoiseBound.Mul(other.NoiseBound, ctx.NewFloat(1.05))
		require.True(t, ct.Equal(other))
	})

	t.Run("NoiseOutOfRatio", func(t *testing.T) {
		other := ct.CopyNew()
		other.NoiseBound.Mul(other.NoiseBound, ctx.NewFloat(2.0))
		require.False(t, ct.Equal(other))
	})

	t.Run("DifferentMeta", func(t *testing.T) {
		other := ct.CopyNew()
		other.IntFactor = 3
		require.False(t, ct.Equal(other))
	})
}

func TestSKHandle(t *testing.T) {

	t.Run("Mul", func(t *testing.T) {
		one := OneHandle()
		base := BaseHandle(0)

		h, err := base.Mul(base)
		require.NoError(t, err)
		require.Equal(t, 2, h.PowerOfS)

		h, err = one.Mul(base)
		require.NoError(t, err)
		require.Equal(t, base, h)

		_, err = base.Mul(BaseHandle(1))
		require.Error(t, err)
	})

	t.Run("Predicates", func(t *testing.T) {
		require.True(t, OneHandle().IsOne())
		require.True(t, BaseHandle(2).IsBase(2))
		require.False(t, BaseHandle(2).IsBase(0))
	})
}
