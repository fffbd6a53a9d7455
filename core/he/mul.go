package he

import (
	"fmt"
	"math"
	"math/big"

	"github.com/helago/helago/primeset"
	"github.com/helago/helago/ring"
)

// mulSlack is the width, in bits, of the modulus interval searched before a
// multiplication.
const mulSlack = 4.0

// computeIntervalForMul returns the interval [lo, hi] in which log2 of the
// modulus of the product should lie. For a ciphertext with modulus q and
// noise n the natural choice is a modulus q' with n*q'/q close to the
// mod-switching added noise, i.e. log(q') = adn + capacity. The exact scheme
// aims below the minimum of the two operands, the approximate scheme above
// their maximum to preserve accuracy.
func computeIntervalForMul(c1, c2 *Ciphertext) (lo, hi float64) {

	cap1 := c1.Capacity()
	cap2 := c2.Capacity()
	adn1 := log2Float(c1.ModSwitchAddedNoiseBound())
	adn2 := log2Float(c2.ModSwitchAddedNoiseBound())

	if c1.IsCKKS() {
		lo = math.Max(cap1+adn1, cap2+adn2) + modSwitchSafety
		hi = lo + mulSlack
	} else {
		hi = math.Min(cap1+adn1, cap2+adn2) - modSwitchSafety
		lo = hi - mulSlack
	}
	return
}

// NaturalPrimeSet returns the prime set the ciphertext would be squared at.
func (c *Ciphertext) NaturalPrimeSet() primeset.Set {
	lo, hi := computeIntervalForMul(c, c)
	return c.ctx.GetSet4Size(lo, hi, c.PrimeSet, c.IsCKKS())
}

// tensorProduct fills c with the tensor product of c1 and c2, which must
// carry the same prime set and plaintext space. c must not alias c1 or c2.
func (c *Ciphertext) tensorProduct(c1, c2 *Ciphertext) error {

	c.Clear()
	c.PrimeSet = c1.PrimeSet
	c.PtxtSpace = c1.PtxtSpace

	if c.PtxtSpace > 2 {
		p := c.PtxtSpace
		q := reduceProduct(c1, p)
		c.IntFactor = ring.MulMod(ring.MulMod(c1.IntFactor, c2.IntFactor, p), q, p)
	}

	for i := range c1.Parts {
		for j := range c2.Parts {

			handle, err := c1.Parts[i].Handle.Mul(c2.Parts[j].Handle)
			if err != nil {
				return fmt.Errorf("cannot tensorProduct: %w", err)
			}

			prod := c2.Parts[j].Poly.CopyNew()
			if err := prod.Mul(c1.Parts[i].Poly); err != nil {
				return fmt.Errorf("cannot tensorProduct: %w", err)
			}

			if k := c.getPartIndexByHandle(handle); k >= 0 {
				if err := c.Parts[k].Poly.Add(prod); err != nil {
					return fmt.Errorf("cannot tensorProduct: %w", err)
				}
			} else {
				c.Parts = append(c.Parts, Part{Poly: prod, Handle: handle})
			}
		}
	}

	if c.IsCKKS() {
		// noise = n1*m2*f2 + n2*m1*f1 + n1*n2
		t1 := c.ctx.NewFloat(0).Mul(c1.NoiseBound, c2.PtxtMag)
		t1.Mul(t1, c2.RatFactor)
		t2 := c.ctx.NewFloat(0).Mul(c2.NoiseBound, c1.PtxtMag)
		t2.Mul(t2, c1.RatFactor)
		t3 := c.ctx.NewFloat(0).Mul(c1.NoiseBound, c2.NoiseBound)
		c.NoiseBound = t1.Add(t1, t2).Add(t1, t3)
		c.RatFactor = c.ctx.NewFloat(0).Mul(c1.RatFactor, c2.RatFactor)
		c.PtxtMag = c.ctx.NewFloat(0).Mul(c1.PtxtMag, c2.PtxtMag)
	} else {
		c.NoiseBound = c.ctx.NewFloat(0).Mul(c1.NoiseBound, c2.NoiseBound)
	}
	return nil
}

// reduceProduct returns the prime product of the ciphertext modulo p.
func reduceProduct(c *Ciphertext, p uint64) uint64 {
	q := c.ctx.ProductOfPrimes(c.PrimeSet)
	return q.Mod(q, new(big.Int).SetUint64(p)).Uint64()
}

// MulLowLevel multiplies c by other without relinearizing, mod-switching both
// operands to a common prime set chosen to balance noise growth against the
// remaining capacity.
func (c *Ciphertext) MulLowLevel(other *Ciphertext) error {

	if c.IsEmpty() {
		return nil
	}
	if other.IsEmpty() {
		c.Clear()
		return nil
	}
	if c.ctx != other.ctx || c.pk != other.pk {
		return fmt.Errorf("cannot MulLowLevel: mismatched contexts or keys")
	}

	var operand *Ciphertext

	if c == other { // squaring
		if err := c.BringToSet(c.NaturalPrimeSet()); err != nil {
			return fmt.Errorf("cannot MulLowLevel: %w", err)
		}
		operand = c
	} else {
		operand = other.CopyNew()

		if !c.IsCKKS() {
			g := gcdUint(c.PtxtSpace, operand.PtxtSpace)
			if g <= 1 {
				return fmt.Errorf("cannot MulLowLevel: plaintext spaces %d and %d are coprime", c.PtxtSpace, operand.PtxtSpace)
			}
			c.PtxtSpace, operand.PtxtSpace = g, g
		}

		lo, hi := computeIntervalForMul(c, operand)
		common := c.ctx.GetSet4Size(lo, hi, c.PrimeSet.Union(operand.PrimeSet), c.IsCKKS())

		if err := c.BringToSet(common); err != nil {
			return fmt.Errorf("cannot MulLowLevel: %w", err)
		}
		if err := operand.BringToSet(common); err != nil {
			return fmt.Errorf("cannot MulLowLevel: %w", err)
		}
	}

	tmp := NewCiphertext(c.pk, c.PtxtSpace)
	if err := tmp.tensorProduct(c, operand); err != nil {
		return err
	}
	c.assign(tmp)
	return nil
}

// MultiplyBy multiplies c by other and relinearizes the result.
func (c *Ciphertext) MultiplyBy(other *Ciphertext) error {

	if c.IsEmpty() {
		return nil
	}
	if other.IsEmpty() {
		c.Clear()
		return nil
	}

	if err := c.MulLowLevel(other); err != nil {
		return err
	}
	return c.ReLinearize()
}

// Square squares c and relinearizes the result.
func (c *Ciphertext) Square() error { return c.MultiplyBy(c) }

// MultiplyBy2 multiplies c by two further ciphertexts with a single final
// relinearization, ordering the multiplications by remaining capacity.
func (c *Ciphertext) MultiplyBy2(other1, other2 *Ciphertext) error {

	if c.IsEmpty() {
		return nil
	}
	if other1.IsEmpty() || other2.IsEmpty() {
		c.Clear()
		return nil
	}

	cap0 := c.Capacity()
	cap1 := other1.Capacity()
	cap2 := other2.Capacity()

	if cap0 < cap1 && cap0 < cap2 {
		// Both others have more capacity: multiply them first.
		tmp := other1.CopyNew()
		if err := tmp.MulLowLevel(other2); err != nil {
			return err
		}
		if err := c.MulLowLevel(tmp); err != nil {
			return err
		}
		return c.ReLinearize()
	}

	first, second := other1, other2
	if cap0 < cap2 || cap1 < cap2 {
		first, second = other2, other1
	}

	if c == second {
		tmp := second.CopyNew()
		if err := c.MulLowLevel(first); err != nil {
			return err
		}
		if err := c.MulLowLevel(tmp); err != nil {
			return err
		}
	} else {
		if err := c.MulLowLevel(first); err != nil {
			return err
		}
		if err := c.MulLowLevel(second); err != nil {
			return err
		}
	}
	return c.ReLinearize()
}
