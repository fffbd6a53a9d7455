package he

import (
	"fmt"
	"math"

	"github.com/helago/helago/primeset"
	"github.com/helago/helago/utils/bignum"
)

// modSwitchSafety is the accuracy margin, in bits, kept between the scaled
// noise and the mod-switching added noise.
const modSwitchSafety = 1.0

// ModUpToSet extends the prime set of the ciphertext to include set,
// multiplying the value (and therefore the noise bound and, for the
// approximate scheme, the rational factor) by the product of the new primes.
func (c *Ciphertext) ModUpToSet(set primeset.Set) error {

	diff := set.Diff(c.PrimeSet)
	if diff.Empty() {
		return nil
	}

	for i := range c.Parts {
		if _, err := c.Parts[i].Poly.AddPrimesAndScale(diff); err != nil {
			return fmt.Errorf("cannot ModUpToSet: %w", err)
		}
	}

	factor := c.ctx.NewFloat(c.ctx.ProductOfPrimes(diff))
	c.NoiseBound.Mul(c.NoiseBound, factor)
	c.RatFactor.Mul(c.RatFactor, factor)

	c.PrimeSet = c.PrimeSet.Union(diff)
	c.verifyPrimeSet()
	return nil
}

// ModDownToSet switches the ciphertext down to PrimeSet intersect set: the
// parts are scaled down with a correction divisible by the plaintext space,
// the noise bound is divided by the removed product and increased by the
// exact canonical norm of the corrections.
func (c *Ciphertext) ModDownToSet(set primeset.Set) error {

	intersection := c.PrimeSet.Intersect(set)
	if intersection.Empty() {
		return fmt.Errorf("cannot ModDownToSet: %s and %s are disjoint", c.PrimeSet, set)
	}

	diff := c.PrimeSet.Diff(intersection)
	if diff.Empty() {
		return nil
	}

	diffProd := c.ctx.ProductOfPrimes(diff)
	diffF := c.ctx.NewFloat(diffProd)
	addedNoiseBound := c.ModSwitchAddedNoiseBound()

	if c.IsCKKS() {
		// Accuracy check: the scaled noise should stay above the added noise
		// by the safety margin, otherwise scale the value up first.
		scaledNoise := c.ctx.NewFloat(0).Quo(c.NoiseBound, diffF)
		xf := c.ctx.NewFloat(0).Quo(addedNoiseBound, scaledNoise)
		xf.Mul(xf, c.ctx.NewFloat(math.Exp2(modSwitchSafety)))
		if xf.Cmp(c.ctx.NewFloat(1)) > 0 {
			factor := bignum.Round(xf)
			for i := range c.Parts {
				c.Parts[i].Poly.MulBig(factor)
			}
			factorF := c.ctx.NewFloat(factor)
			c.NoiseBound.Mul(c.NoiseBound, factorF)
			c.RatFactor.Mul(c.RatFactor, factorF)
			warn("ModDownToSet: scaled up by %s to preserve accuracy", factor.String())
		}
	}

	addedNoise := c.ctx.NewFloat(0)
	for i := range c.Parts {

		delta, err := c.Parts[i].Poly.ScaleDownToSet(intersection, c.PtxtSpace)
		if err != nil {
			return fmt.Errorf("cannot ModDownToSet: %w", err)
		}

		// Norm of the correction after the division by the removed product.
		norm := canonicalNorm(delta, c.ctx.Prec())
		norm.Quo(norm, diffF)

		h := c.Parts[i].Handle
		if !h.IsOne() {
			bound := c.pk.SKeyBound(h.KeyID)
			for d := 0; d < h.PowerOfS; d++ {
				norm.Mul(norm, bound)
			}
		}
		addedNoise.Add(addedNoise, norm)
	}

	c.NoiseBound.Quo(c.NoiseBound, diffF)
	c.NoiseBound.Add(c.NoiseBound, addedNoise)
	c.RatFactor.Quo(c.RatFactor, diffF)

	ratio, _ := c.ctx.NewFloat(0).Quo(addedNoise, addedNoiseBound).Float64()
	if c.ctx.Stats != nil {
		c.ctx.Stats.Update("mod-switch-added-noise", ratio)
	}
	if ratio > 1 {
		warn("ModDownToSet: added noise exceeds its bound by a factor %f", ratio)
	}

	c.PrimeSet = intersection
	c.verifyPrimeSet()
	return nil
}

// BringToSet mod-switches the ciphertext to exactly the given prime set,
// going up and then down as needed. An empty set is replaced by the singleton
// of the first ciphertext prime.
func (c *Ciphertext) BringToSet(set primeset.Set) error {

	if cap := c.Capacity(); cap < 1 {
		warn("BringToSet called with capacity %f, likely decryption error", cap)
	}

	if set.Empty() {
		set = primeset.New(c.ctx.CtxtPrimes().First())
	}

	if err := c.ModUpToSet(set); err != nil {
		return err
	}
	return c.ModDownToSet(set)
}

// DropSmallAndSpecialPrimes removes all small and special primes from the
// prime set, adding ciphertext primes as necessary so that the scaled noise
// stays above the mod-switching added noise.
func (c *Ciphertext) DropSmallAndSpecialPrimes() error {

	if c.PrimeSet.Disjoint(c.ctx.SmallPrimes()) {
		// Nothing to do except dropping the special primes, if any.
		if c.PrimeSet.Intersect(c.ctx.SpecialPrimes()).Empty() {
			return nil
		}
		return c.ModDownToSet(c.ctx.CtxtPrimes())
	}

	target := c.PrimeSet.Intersect(c.ctx.CtxtPrimes())
	dropping := c.PrimeSet.Diff(target)
	logDropping := c.ctx.LogOfProduct(dropping)

	logAddedNoise := log2Float(c.ModSwitchAddedNoiseBound())
	logNoise := log2Float(c.NoiseBound)
	logCompensation := 0.0

	if c.IsCKKS() {
		// Keep the scaling factor above the added noise times the encoding
		// precision divided by the plaintext magnitude.
		logMag := log2Float(c.PtxtMag)
		if math.IsInf(logMag, -1) {
			logMag = 0
		}
		logBound := logAddedNoise + log2Float(c.ctx.DefaultScale()) - logMag
		logRF := log2Float(c.RatFactor) + c.ctx.LogOfProduct(target) - c.LogOfPrimeSet()
		if logRF < logBound && c.pk.CompensateCKKSScale {
			for _, i := range c.ctx.CtxtPrimes().Diff(target).Elements() {
				target = target.Insert(i)
				logCompensation += math.Log2(float64(c.ctx.IthPrime(i)))
				if logRF+logCompensation >= logBound {
					break
				}
			}
		}
	}

	// Keep the scaled noise a few bits above the added noise so that the
	// switch does not waste capacity.
	logAddedNoise += 3
	if logNoise-logDropping+logCompensation < logAddedNoise {
		for _, i := range c.ctx.CtxtPrimes().Diff(target).Elements() {
			target = target.Insert(i)
			logCompensation += math.Log2(float64(c.ctx.IthPrime(i)))
			if logNoise-logDropping+logCompensation >= logAddedNoise {
				break
			}
		}
	}

	return c.BringToSet(target)
}
