package he

import (
	"fmt"
	"math/big"

	"github.com/helago/helago/core/dcrt"
	"github.com/helago/helago/ring"
	"github.com/helago/helago/utils/bignum"
)

// AddConstant adds the integer constant to an exact-scheme ciphertext. For
// the approximate scheme it adds the constant exactly, matching the rational
// factor.
func (c *Ciphertext) AddConstant(constant *big.Int) error {

	if c.IsCKKS() {
		return c.addConstantCKKSInt(constant)
	}

	p := c.PtxtSpace
	cc := ring.BalancedRepr(new(big.Int).Mod(constant, new(big.Int).SetUint64(p)).Uint64(), p)

	poly, err := dcrt.NewPolyFromBig(c.ctx, c.PrimeSet, []*big.Int{big.NewInt(cc)})
	if err != nil {
		return fmt.Errorf("cannot AddConstant: %w", err)
	}

	size := c.ctx.NewFloat(cc)
	size.Abs(size)
	return c.AddConstantPoly(poly, size)
}

// AddConstantPoly adds a constant polynomial to an exact-scheme ciphertext.
// size bounds the canonical norm of the polynomial; nil selects the generic
// bound for coefficients uniform modulo the plaintext space.
func (c *Ciphertext) AddConstantPoly(poly *dcrt.Poly, size *big.Float) error {

	if c.IsCKKS() {
		return c.AddConstantCKKS(poly, nil, nil)
	}

	if size == nil {
		size = c.ctx.NoiseBoundForMod(c.PtxtSpace, c.ctx.N())
	}

	// The constant must be scaled the same way the plaintext inside the
	// ciphertext is: by intFactor * (Q mod p), balanced.
	p := c.PtxtSpace
	f := int64(1)
	if p > 2 {
		q := reduceProduct(c, p)
		f = ring.BalancedRepr(ring.MulMod(c.IntFactor%p, q, p), p)
	}

	absF := f
	if absF < 0 {
		absF = -absF
	}
	noise := c.ctx.NewFloat(0).Mul(size, c.ctx.NewFloat(absF))
	c.NoiseBound.Add(c.NoiseBound, noise)

	if f == 1 {
		return c.AddPart(poly, OneHandle())
	}

	scaled := poly.CopyNew()
	scaled.MulBig(big.NewInt(f))
	return c.AddPart(scaled, OneHandle())
}

// addConstantCKKSInt adds an integer constant to an approximate ciphertext.
func (c *Ciphertext) addConstantCKKSInt(constant *big.Int) error {

	size := c.ctx.NewFloat(constant)
	size.Abs(size)
	if size.Cmp(c.ctx.NewFloat(1)) < 0 {
		size = c.ctx.NewFloat(1)
	}

	// Encode the constant at the default scale, then let the generic path
	// match it against the rational factor of the ciphertext.
	factor := c.ctx.NewFloat(0).Quo(c.ctx.DefaultScale(), size)
	coeff := bignum.Round(c.ctx.NewFloat(0).Mul(c.ctx.NewFloat(constant), factor))

	poly, err := dcrt.NewPolyFromBig(c.ctx, c.PrimeSet, []*big.Int{coeff})
	if err != nil {
		return fmt.Errorf("cannot AddConstant: %w", err)
	}
	return c.AddConstantCKKS(poly, size, factor)
}

// AddConstantCKKS adds an encoded constant to an approximate ciphertext.
// size bounds the magnitude of the encoded values (nil defaults to 1) and
// factor is the scale the constant was encoded at (nil defaults to the
// default scale divided by size). The constant is scaled by the rounded
// ratio of the ciphertext factor to the encoding factor; when the rounding
// would lose more than the encoding precision, primes are added to the
// ciphertext first to grow its factor.
func (c *Ciphertext) AddConstantCKKS(poly *dcrt.Poly, size, factor *big.Float) error {

	ctx := c.ctx

	if size == nil || size.Sign() <= 0 {
		size = ctx.NewFloat(1)
	}
	if factor == nil || factor.Sign() <= 0 {
		factor = ctx.NewFloat(0).Quo(ctx.DefaultScale(), size)
	}

	ratio := bignum.Round(ctx.NewFloat(0).Quo(c.RatFactor, factor))

	inaccuracy := func() *big.Float {
		r := ctx.NewFloat(ratio)
		r.Mul(r, factor)
		r.Quo(r, c.RatFactor)
		r.Sub(r, ctx.NewFloat(1))
		return r.Abs(r)
	}

	// Grow the ciphertext factor until the rounded ratio meets the target
	// accuracy of one unit of the encoding precision.
	for ctx.NewFloat(0).Mul(inaccuracy(), ctx.DefaultScale()).Cmp(ctx.NewFloat(1)) > 0 {
		warn("AddConstantCKKS: adding primes to preserve accuracy")
		if err := c.addSomePrimes(); err != nil {
			return fmt.Errorf("cannot AddConstantCKKS: %w", err)
		}
		ratio = bignum.Round(ctx.NewFloat(0).Quo(c.RatFactor, factor))
	}

	c.PtxtMag.Add(c.PtxtMag, size)
	c.NoiseBound.Add(c.NoiseBound, c.pk.encodeRoundingError())

	tmp := poly.CopyNew()
	if err := tmp.AddPrimes(c.PrimeSet.Diff(tmp.Set())); err != nil {
		return fmt.Errorf("cannot AddConstantCKKS: %w", err)
	}
	if ratio.Cmp(big.NewInt(1)) != 0 {
		tmp.MulBig(ratio)
	}
	return c.AddPart(tmp, OneHandle())
}

// addSomePrimes mod-switches the ciphertext up by at least one prime,
// preferring ciphertext primes, then small primes, then the special primes.
func (c *Ciphertext) addSomePrimes() error {

	ctx := c.ctx
	s := c.PrimeSet

	if s.Equal(ctx.AllPrimes()) {
		return fmt.Errorf("cannot addSomePrimes: all primes already in use")
	}

	if delta := ctx.CtxtPrimes().Diff(s); !delta.Empty() {
		s = s.Insert(delta.First())
	} else if delta := ctx.SmallPrimes().Diff(s); !delta.Empty() {
		s = s.Insert(delta.First())
	} else {
		s = s.Union(ctx.SpecialPrimes())
	}

	return c.ModUpToSet(s)
}

// MultByConstant multiplies the ciphertext by an integer constant. For the
// approximate scheme the multiplication is absorbed into the rational
// factor, adding no noise.
func (c *Ciphertext) MultByConstant(constant *big.Int) error {

	if c.IsEmpty() {
		return nil
	}

	if c.IsCKKS() {
		size := c.ctx.NewFloat(constant)
		size.Abs(size)
		if size.Sign() == 0 {
			c.Clear()
			return nil
		}
		c.PtxtMag.Mul(c.PtxtMag, size)
		c.RatFactor.Quo(c.RatFactor, size)
		if constant.Sign() < 0 {
			c.Negate()
		}
		return nil
	}

	p := c.PtxtSpace
	c0 := new(big.Int).Mod(constant, new(big.Int).SetUint64(p)).Uint64()

	if c0 == 1 {
		return nil
	}
	if c0 == 0 {
		c.Clear()
		return nil
	}

	// Write c0 = c1*d with c1 invertible: the invertible cofactor moves into
	// the integer factor for free, only d costs noise.
	d := gcdUint(c0, p)
	c1 := c0 / d
	c.IntFactor = ring.MulMod(c.IntFactor, invModPrimePower(c1, p), p)

	if d == 1 {
		return nil
	}

	cc := ring.BalancedRepr(d, p)
	abs := cc
	if abs < 0 {
		abs = -abs
	}
	c.NoiseBound.Mul(c.NoiseBound, c.ctx.NewFloat(abs))

	ccBig := big.NewInt(cc)
	for i := range c.Parts {
		c.Parts[i].Poly.MulBig(ccBig)
	}
	return nil
}

// MultByConstantPoly multiplies an exact-scheme ciphertext by a constant
// polynomial. size bounds the canonical norm of the polynomial; nil selects
// the generic bound for coefficients uniform modulo the plaintext space.
func (c *Ciphertext) MultByConstantPoly(poly *dcrt.Poly, size *big.Float) error {

	if c.IsEmpty() {
		return nil
	}

	if c.IsCKKS() {
		return c.MultByConstantCKKS(poly, nil, nil, nil)
	}

	if size == nil {
		size = c.ctx.NoiseBoundForMod(c.PtxtSpace, c.ctx.N())
	}

	for i := range c.Parts {
		if err := c.Parts[i].Poly.Mul(poly); err != nil {
			return fmt.Errorf("cannot MultByConstantPoly: %w", err)
		}
	}

	c.NoiseBound.Mul(c.NoiseBound, size)
	return nil
}

// MultByConstantCKKS multiplies an approximate ciphertext by an encoded
// constant. size bounds the magnitude of the encoded values, factor is the
// encoding scale and roundingErr the encoding rounding error; nil arguments
// take the defaults.
func (c *Ciphertext) MultByConstantCKKS(poly *dcrt.Poly, size, factor, roundingErr *big.Float) error {

	if c.IsEmpty() {
		return nil
	}

	ctx := c.ctx

	if size == nil || size.Sign() <= 0 {
		size = ctx.NewFloat(1)
	}
	if factor == nil || factor.Sign() <= 0 {
		factor = ctx.NewFloat(0).Quo(ctx.DefaultScale(), size)
	}
	if roundingErr == nil || roundingErr.Sign() < 0 {
		roundingErr = c.pk.encodeRoundingError()
	}

	// The noise update must use the magnitudes before they are scaled.
	t1 := ctx.NewFloat(0).Mul(c.NoiseBound, factor)
	t1.Mul(t1, size)
	t2 := ctx.NewFloat(0).Mul(roundingErr, c.RatFactor)
	t2.Mul(t2, c.PtxtMag)
	t3 := ctx.NewFloat(0).Mul(c.NoiseBound, roundingErr)
	c.NoiseBound = t1.Add(t1, t2).Add(t1, t3)

	c.PtxtMag.Mul(c.PtxtMag, size)
	c.RatFactor.Mul(c.RatFactor, factor)

	for i := range c.Parts {
		if err := c.Parts[i].Poly.Mul(poly); err != nil {
			return fmt.Errorf("cannot MultByConstantCKKS: %w", err)
		}
	}
	return nil
}

// DivideBy2 divides an exact-scheme ciphertext encrypting an even polynomial
// by 2, halving the plaintext space from 2^r to 2^(r-1).
func (c *Ciphertext) DivideBy2() error {

	if c.IsEmpty() {
		return nil
	}
	if c.PtxtSpace%2 != 0 || c.PtxtSpace <= 2 {
		return fmt.Errorf("cannot DivideBy2: plaintext space %d is not of the form 2^r with r > 1", c.PtxtSpace)
	}

	// (Q+1)/2 is the inverse of 2 modulo the odd prime product Q.
	twoInv := c.ctx.ProductOfPrimes(c.PrimeSet)
	twoInv.Add(twoInv, big.NewInt(1))
	twoInv.Rsh(twoInv, 1)
	for i := range c.Parts {
		c.Parts[i].Poly.MulBig(twoInv)
	}

	c.NoiseBound.Quo(c.NoiseBound, c.ctx.NewFloat(2))
	c.PtxtSpace /= 2
	c.IntFactor %= c.PtxtSpace
	return nil
}

// DivideByP divides an exact-scheme ciphertext encrypting a polynomial that
// is zero mod p by p, for plaintext space p^r with r > 1.
func (c *Ciphertext) DivideByP() error {

	if c.IsEmpty() {
		return nil
	}

	p := smallestPrimeFactor(c.PtxtSpace)
	if c.PtxtSpace <= p {
		return fmt.Errorf("cannot DivideByP: plaintext space %d is not a proper prime power", c.PtxtSpace)
	}

	Q := c.ctx.ProductOfPrimes(c.PrimeSet)
	pInv := new(big.Int).ModInverse(new(big.Int).SetUint64(p), Q)
	if pInv == nil {
		return fmt.Errorf("cannot DivideByP: %d not invertible modulo the prime product", p)
	}
	for i := range c.Parts {
		c.Parts[i].Poly.MulBig(pInv)
	}

	c.NoiseBound.Quo(c.NoiseBound, c.ctx.NewFloat(p))
	c.PtxtSpace /= p
	c.IntFactor %= c.PtxtSpace
	return nil
}
