package he

import (
	"fmt"

	"github.com/helago/helago/ring"
)

// AutomorphRecorder receives the automorphism exponents a computation would
// apply, instead of applying them. Pass an implementation to
// SmartAutomorphRecorded to collect the exponents for which automorphism
// keys should be generated.
type AutomorphRecorder interface {
	Record(k uint64)
}

// Automorph applies X -> X^k to all parts, for k odd. The handles absorb the
// exponent and the noise bound is unchanged, since automorphisms permute the
// canonical embedding.
func (c *Ciphertext) Automorph(k uint64) error {

	m := uint64(c.ctx.M())
	k %= m
	if k&1 == 0 {
		return fmt.Errorf("cannot Automorph: exponent %d is even", k)
	}
	if k == 1 {
		return nil
	}

	for i := range c.Parts {
		if err := c.Parts[i].Poly.Automorph(k); err != nil {
			return fmt.Errorf("cannot Automorph: %w", err)
		}
		h := &c.Parts[i].Handle
		if !h.IsOne() {
			h.PowerOfX = ring.MulMod(h.PowerOfX, k, m)
		}
	}
	return nil
}

// ComplexConj applies the complex conjugation X -> X^(m-1) to an approximate
// ciphertext.
func (c *Ciphertext) ComplexConj() error {
	if !c.IsCKKS() {
		return fmt.Errorf("cannot ComplexConj: exact ciphertext")
	}
	return c.SmartAutomorph(uint64(c.ctx.M()) - 1)
}

// SmartAutomorph applies X -> X^k, decomposing the exponent into a product of
// exponents for which key-switching matrices exist and relinearizing after
// each step.
func (c *Ciphertext) SmartAutomorph(k uint64) error {
	return c.SmartAutomorphRecorded(k, nil)
}

// SmartAutomorphRecorded is SmartAutomorph with an optional recorder: when
// rec is non-nil the exponent is recorded and the ciphertext is untouched.
func (c *Ciphertext) SmartAutomorphRecorded(k uint64, rec AutomorphRecorder) error {

	m := uint64(c.ctx.M())
	k %= m

	if rec != nil {
		rec.Record(k)
		return nil
	}

	if k == 1 || c.IsEmpty() {
		return nil
	}

	keyID := c.GetKeyID()
	if !c.pk.IsReachable(k, keyID) {
		return fmt.Errorf("cannot SmartAutomorph: no automorphism-key path to X^%d for key %d", k, keyID)
	}

	if err := c.ReLinearizeTo(keyID); err != nil {
		return fmt.Errorf("cannot SmartAutomorph: %w", err)
	}

	for k != 1 {
		W, err := c.pk.nextAutomorphMatrix(k, keyID)
		if err != nil {
			return fmt.Errorf("cannot SmartAutomorph: %w", err)
		}
		amt := W.FromKey.PowerOfX

		if err := c.Automorph(amt); err != nil {
			return fmt.Errorf("cannot SmartAutomorph: %w", err)
		}
		if err := c.ReLinearizeTo(keyID); err != nil {
			return fmt.Errorf("cannot SmartAutomorph: %w", err)
		}

		k = ring.MulMod(k, invModM(amt, m), m)
	}
	return nil
}

// FrobeniusAutomorph applies the j-th power of the Frobenius map X -> X^p.
// For the approximate scheme this is complex conjugation when j is odd and
// the identity otherwise.
func (c *Ciphertext) FrobeniusAutomorph(j int) error {

	if c.IsCKKS() {
		if j&1 == 1 {
			return c.ComplexConj()
		}
		return nil
	}

	m := uint64(c.ctx.M())
	p := c.ctx.PtxtModulus() % m
	k := uint64(1)
	for i := 0; i < j; i++ {
		k = ring.MulMod(k, p, m)
	}
	return c.SmartAutomorph(k)
}
