package he

import (
	"fmt"
	"math/big"

	"github.com/helago/helago/ring"
	"github.com/helago/helago/utils/bignum"
)

// Add adds other to c.
func (c *Ciphertext) Add(other *Ciphertext) error { return c.addCtxt(other, false) }

// Sub subtracts other from c.
func (c *Ciphertext) Sub(other *Ciphertext) error { return c.addCtxt(other, true) }

func (c *Ciphertext) addCtxt(other *Ciphertext, negative bool) error {

	if c.ctx != other.ctx || c.pk != other.pk {
		return fmt.Errorf("cannot Add: mismatched contexts or keys")
	}

	if other.IsEmpty() {
		return nil
	}

	if c.IsEmpty() {
		c.assign(other.CopyNew())
		if negative {
			c.Negate()
		}
		return nil
	}

	tmp := other.CopyNew()

	if !c.IsCKKS() {
		if err := c.ReducePtxtSpace(tmp.PtxtSpace); err != nil {
			return fmt.Errorf("cannot Add: %w", err)
		}
		if err := tmp.ReducePtxtSpace(c.PtxtSpace); err != nil {
			return fmt.Errorf("cannot Add: %w", err)
		}
	}

	// Match the prime sets, modding UP the smaller one.
	if s := tmp.PrimeSet.Diff(c.PrimeSet); !s.Empty() {
		if err := c.ModUpToSet(c.PrimeSet.Union(s)); err != nil {
			return fmt.Errorf("cannot Add: %w", err)
		}
	}
	if s := c.PrimeSet.Diff(tmp.PrimeSet); !s.Empty() {
		if err := tmp.ModUpToSet(tmp.PrimeSet.Union(s)); err != nil {
			return fmt.Errorf("cannot Add: %w", err)
		}
	}

	if c.IsCKKS() {
		equalizeRationalFactors(c, tmp)
	} else if c.IntFactor != tmp.IntFactor {
		e1, e2 := harmonizeIntFactors(c, tmp)
		tmp.MulIntFactor(e2)
		c.MulIntFactor(e1)
	}

	if negative {
		tmp.Negate()
	}

	for i := range tmp.Parts {
		part := tmp.Parts[i]
		if j := c.getPartIndexByHandle(part.Handle); j >= 0 {
			if err := c.Parts[j].Poly.Add(part.Poly); err != nil {
				return fmt.Errorf("cannot Add: %w", err)
			}
		} else {
			c.Parts = append(c.Parts, part)
		}
	}

	c.PtxtMag.Add(c.PtxtMag, tmp.PtxtMag)
	c.NoiseBound.Add(c.NoiseBound, tmp.NoiseBound)
	return nil
}

// harmonizeIntFactors returns e1, e2 with e1*f1 = e2*f2 (mod ptxtSpace),
// chosen among the extended-Euclidean convergents of (ptxtSpace, f2/f1) so as
// to minimize the noise increase of scaling the two ciphertexts.
func harmonizeIntFactors(c1, c2 *Ciphertext) (uint64, uint64) {

	p := c1.PtxtSpace
	f1, f2 := c1.IntFactor, c2.IntFactor

	// ratio = f2/f1, so e1 = e2*ratio (mod p) parametrizes the solutions.
	ratio := ring.MulMod(f2, invModPrimePower(f1, p), p)

	base := smallestPrimeFactor(p)

	noiseNorm := func(e1, e2 uint64) *big.Float {
		b1 := ring.BalancedRepr(e1, p)
		if b1 < 0 {
			b1 = -b1
		}
		b2 := ring.BalancedRepr(e2, p)
		if b2 < 0 {
			b2 = -b2
		}
		n := c1.ctx.NewFloat(0).Mul(c1.NoiseBound, c1.ctx.NewFloat(b1))
		m := c1.ctx.NewFloat(0).Mul(c2.NoiseBound, c1.ctx.NewFloat(b2))
		return n.Add(n, m)
	}

	// Extended Euclid on (p, ratio) yields pairs (r_i, t_i) with
	// r_i = t_i * ratio (mod p).
	var r0, t0 = int64(p), int64(0)
	var r1, t1 = int64(ratio), int64(1)

	mod := func(a int64) uint64 {
		a %= int64(p)
		if a < 0 {
			a += int64(p)
		}
		return uint64(a)
	}

	e1Best, e2Best := mod(r1), mod(t1)
	noiseBest := noiseNorm(e1Best, e2Best)

	for r1 != 0 {
		q := r0 / r1
		r0, r1 = r1, r0-q*r1
		t0, t1 = t1, t0-q*t1

		e1Try, e2Try := mod(r1), mod(t1)
		if e1Try%base == 0 {
			continue
		}
		if noiseTry := noiseNorm(e1Try, e2Try); noiseTry.Cmp(noiseBest) < 0 {
			e1Best, e2Best, noiseBest = e1Try, e2Try, noiseTry
		}
	}

	return e1Best, e2Best
}

// equalizeRationalFactors scales up the parts of the two ciphertexts by a
// rational approximation numer/denom of the ratio of their factors, so that
// both end up with a common rational factor while the noise increase stays
// close to the unavoidable minimum.
func equalizeRationalFactors(c1, c2 *Ciphertext) {

	if c1.RatFactor.Cmp(c2.RatFactor) == 0 {
		return
	}

	ctx := c1.ctx

	larger, smaller := c1, c2
	if larger.RatFactor.Cmp(smaller.RatFactor) < 0 {
		larger, smaller = smaller, larger
	}

	x, _ := ctx.NewFloat(0).Quo(larger.RatFactor, smaller.RatFactor).Float64()

	denomBoundF, _ := ctx.DefaultScale().Float64()
	denomBound := 2 * denomBoundF
	epsilon := 0.125 / denomBound

	// Continued fractions on x; epsilon counters rounding errors in the
	// floor computations.
	xi := x - floorWithEps(x, epsilon)

	prevDenom := 0.0
	denom := 1.0
	numer := roundFloat(denom * x)

	m1, of1, oe1 := larger.PtxtMag, larger.RatFactor, larger.NoiseBound
	m2, of2, oe2 := smaller.PtxtMag, smaller.RatFactor, smaller.NoiseBound

	// The error (scaled noise) without discretization.
	targetErr := ctx.NewFloat(0).Quo(oe1, of1)
	targetErr.Add(targetErr, ctx.NewFloat(0).Quo(oe2, of2))

	calcErr := func(f, f1, e1, f2, e2 *big.Float) *big.Float {
		one := ctx.NewFloat(1)
		t1 := ctx.NewFloat(0).Quo(f1, f)
		t1.Sub(t1, one).Abs(t1).Mul(t1, m1)
		t2 := ctx.NewFloat(0).Quo(f2, f)
		t2.Sub(t2, one).Abs(t2).Mul(t2, m2)
		t3 := ctx.NewFloat(0).Add(e1, e2)
		t3.Quo(t3, f)
		return t1.Add(t1, t2).Add(t1, t3)
	}

	var f, fe1, fe2 *big.Float

	for {
		xdenom := ctx.NewFloat(denom)
		xnumer := ctx.NewFloat(numer)

		f1 := ctx.NewFloat(0).Mul(of1, xdenom)
		e1 := ctx.NewFloat(0).Mul(oe1, xdenom)
		f2 := ctx.NewFloat(0).Mul(of2, xnumer)
		e2 := ctx.NewFloat(0).Mul(oe2, xnumer)

		// The optimal common factor is either f1 or f2, so try both.
		err1 := calcErr(f1, f1, e1, f2, e2)
		err2 := calcErr(f2, f1, e1, f2, e2)

		gap := ctx.NewFloat(0).Sub(f2, f1)
		gap.Abs(gap)

		var err *big.Float
		if err1.Cmp(err2) < 0 {
			f, fe1 = f1, e1
			fe2 = ctx.NewFloat(0).Mul(m2, gap)
			fe2.Add(fe2, e2)
			err = err1
		} else {
			f, fe2 = f2, e2
			fe1 = ctx.NewFloat(0).Mul(m1, gap)
			fe1.Add(fe1, e1)
			err = err2
		}

		// Stopping half a bit early trades a little precision for capacity.
		thresh := ctx.NewFloat(0).Mul(targetErr, ctx.NewFloat(1.4142135623730951))
		if err.Cmp(thresh) < 0 {
			break
		}

		if xi <= 0 {
			break
		}

		xi = 1.0 / xi
		ai := floorWithEps(xi, epsilon)
		xi -= ai

		tmpDenom := denom*ai + prevDenom
		if tmpDenom > denomBound {
			break
		}
		prevDenom, denom = denom, tmpDenom
		numer = roundFloat(denom * x)
	}

	if denom != 1 {
		d := bignum.Round(ctx.NewFloat(denom))
		for i := range larger.Parts {
			larger.Parts[i].Poly.MulBig(d)
		}
	}
	larger.RatFactor = f
	larger.NoiseBound = fe1

	if numer != 1 {
		n := bignum.Round(ctx.NewFloat(numer))
		for i := range smaller.Parts {
			smaller.Parts[i].Poly.MulBig(n)
		}
	}
	smaller.RatFactor = ctx.NewFloat(0).Set(f)
	smaller.NoiseBound = fe2
}

func floorWithEps(x, eps float64) float64 {
	f := float64(int64(x + eps))
	if x+eps < 0 && f != x+eps {
		f--
	}
	return f
}

func roundFloat(x float64) float64 {
	return float64(int64(x + 0.5))
}
