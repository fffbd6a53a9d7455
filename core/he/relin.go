package he

import (
	"fmt"

	"github.com/helago/helago/core/dcrt"
)

// ReLinearize switches all parts of the ciphertext back to canonical form
// (parts pointing to one or to a base key), using any key for which matrices
// exist.
func (c *Ciphertext) ReLinearize() error { return c.ReLinearizeTo(-1) }

// ReLinearizeTo is ReLinearize with an explicit target key.
func (c *Ciphertext) ReLinearizeTo(keyID int) error {

	if c.IsEmpty() || c.InCanonicalForm(keyID) {
		return nil
	}

	if err := c.DropSmallAndSpecialPrimes(); err != nil {
		return fmt.Errorf("cannot ReLinearize: %w", err)
	}

	ctx := c.ctx
	specials := ctx.SpecialPrimes()
	if specials.Empty() {
		return fmt.Errorf("cannot ReLinearize: no special primes in the chain")
	}

	// The accumulator lives over primeSet plus the special primes, so the
	// key-switched digits can be added without mod-switching them first. Its
	// value is the original one scaled by the special product.
	sp := ctx.NewFloat(ctx.ProductOfPrimes(specials))

	tmp := NewCiphertext(c.pk, c.PtxtSpace)
	tmp.PrimeSet = c.PrimeSet.Union(specials)
	tmp.IntFactor = c.IntFactor
	tmp.PtxtMag = ctx.NewFloat(0).Set(c.PtxtMag)
	tmp.RatFactor = ctx.NewFloat(0).Mul(c.RatFactor, sp)
	tmp.NoiseBound = ctx.NewFloat(0).Mul(c.NoiseBound, sp)

	for i := range c.Parts {
		part := c.Parts[i]
		h := part.Handle

		if h.IsOne() || (keyID >= 0 && h.IsBase(keyID)) || (keyID < 0 && h.PowerOfS == 1 && h.PowerOfX == 1) {
			lifted := part.Poly.CopyNew()
			if _, err := lifted.AddPrimesAndScale(specials.Diff(lifted.Set())); err != nil {
				return fmt.Errorf("cannot ReLinearize: %w", err)
			}
			if err := tmp.AddPart(lifted, h); err != nil {
				return fmt.Errorf("cannot ReLinearize: %w", err)
			}
			continue
		}

		var W *KeySwitch
		if keyID >= 0 {
			W = c.pk.KeySwitchMatrix(h, keyID)
		} else {
			W = c.pk.AnyKeySwitchMatrix(h)
		}
		if W == nil {
			return fmt.Errorf("cannot ReLinearize: no key-switching matrix for handle %s", h)
		}

		if W.PtxtSpace > 1 {
			if err := tmp.ReducePtxtSpace(W.PtxtSpace); err != nil {
				return fmt.Errorf("cannot ReLinearize: %w", err)
			}
		}

		if err := tmp.keySwitchPart(part, W); err != nil {
			return fmt.Errorf("cannot ReLinearize: %w", err)
		}
	}

	c.assign(tmp)
	return c.DropSmallAndSpecialPrimes()
}

// keySwitchPart accumulates into c the key-switched image of part under W:
// the part is decomposed into digits and each digit multiplies one row of the
// matrix. c must already carry the special primes, so that the scaled value
// of the part aligns with the hidden factor of the matrix rows.
func (c *Ciphertext) keySwitchPart(part Part, W *KeySwitch) error {

	ctx := c.ctx
	specials := ctx.SpecialPrimes()

	if !c.PrimeSet.ContainsSet(specials) {
		return fmt.Errorf("cannot keySwitchPart: accumulator does not carry the special primes")
	}
	if part.Handle != W.FromKey {
		return fmt.Errorf("cannot keySwitchPart: part handle %s does not match matrix source %s", part.Handle, W.FromKey)
	}

	lifted := part.Poly.CopyNew()
	if err := lifted.AddPrimes(c.PrimeSet.Diff(lifted.Set())); err != nil {
		return fmt.Errorf("cannot keySwitchPart: %w", err)
	}

	digits, digitNorm, err := lifted.BreakIntoDigits()
	if err != nil {
		return fmt.Errorf("cannot keySwitchPart: %w", err)
	}

	accA := dcrt.NewPoly(ctx, c.PrimeSet)
	accB := dcrt.NewPoly(ctx, c.PrimeSet)

	for j, digit := range digits {
		ta := digit.CopyNew()
		if err := ta.Mul(W.A[j]); err != nil {
			return fmt.Errorf("cannot keySwitchPart: %w", err)
		}
		if err := accA.Add(ta); err != nil {
			return fmt.Errorf("cannot keySwitchPart: %w", err)
		}

		tb := digit
		if err := tb.Mul(W.B[j]); err != nil {
			return fmt.Errorf("cannot keySwitchPart: %w", err)
		}
		if err := accB.Add(tb); err != nil {
			return fmt.Errorf("cannot keySwitchPart: %w", err)
		}
	}

	if err := c.AddPart(accA, BaseHandle(W.ToKeyID)); err != nil {
		return fmt.Errorf("cannot keySwitchPart: %w", err)
	}
	if err := c.AddPart(accB, OneHandle()); err != nil {
		return fmt.Errorf("cannot keySwitchPart: %w", err)
	}

	addedNoise := ctx.NewFloat(0).Mul(digitNorm, W.NoiseBound)
	c.NoiseBound.Add(c.NoiseBound, addedNoise)

	ratio, _ := ctx.NewFloat(0).Quo(addedNoise, c.NoiseBound).Float64()
	if ctx.Stats != nil {
		ctx.Stats.Update("KS-noise-ratio", ratio)
	}

	return nil
}
