package he

import (
	"fmt"
	"math/big"

	"github.com/google/go-cmp/cmp"

	"github.com/helago/helago/core/dcrt"
	"github.com/helago/helago/primeset"
	"github.com/helago/helago/ring"
)

// Ciphertext is a collection of parts, each tagged by the handle of the key
// element it multiplies upon decryption, together with the bookkeeping that
// keeps decryption meaningful across operations.
//
// For the exact scheme the invariant is that a ciphertext over the prime
// product Q decrypts to IntFactor * (Q mod p) * m (mod p), where p is
// PtxtSpace, and NoiseBound bounds the canonical embedding norm of the inner
// product of the parts with their keys.
//
// For the approximate scheme PtxtSpace is 1 and the inner product equals
// RatFactor * m + e, with the canonical norm of m bounded by PtxtMag and that
// of e by NoiseBound.
type Ciphertext struct {
	pk  *PubKey
	ctx *dcrt.Context

	Parts    []Part
	PrimeSet primeset.Set

	PtxtSpace uint64
	IntFactor uint64

	PtxtMag    *big.Float
	RatFactor  *big.Float
	NoiseBound *big.Float
}

// NewCiphertext returns an empty ciphertext relative to pk. A zero ptxtSpace
// selects the default plaintext space of the key; for the approximate scheme
// the plaintext space is always 1.
func NewCiphertext(pk *PubKey, ptxtSpace uint64) *Ciphertext {
	ctx := pk.ctx
	if ctx.PtxtModulus() == 0 {
		ptxtSpace = 1
	} else if ptxtSpace == 0 {
		ptxtSpace = pk.ptxtSpace
	}
	return &Ciphertext{
		pk:         pk,
		ctx:        ctx,
		PrimeSet:   ctx.CtxtPrimes(),
		PtxtSpace:  ptxtSpace,
		IntFactor:  1,
		PtxtMag:    ctx.NewFloat(0),
		RatFactor:  ctx.NewFloat(1),
		NoiseBound: ctx.NewFloat(0),
	}
}

// Context returns the double-CRT context of the ciphertext.
func (c *Ciphertext) Context() *dcrt.Context { return c.ctx }

// PubKey returns the public key the ciphertext is relative to.
func (c *Ciphertext) PubKey() *PubKey { return c.pk }

// IsCKKS reports whether the ciphertext belongs to the approximate scheme.
func (c *Ciphertext) IsCKKS() bool { return c.ctx.PtxtModulus() == 0 }

// IsEmpty reports whether the ciphertext has no parts.
func (c *Ciphertext) IsEmpty() bool { return len(c.Parts) == 0 }

// Clear removes all parts and resets the noise bound.
func (c *Ciphertext) Clear() {
	c.Parts = nil
	c.NoiseBound = c.ctx.NewFloat(0)
}

// CopyNew returns a deep copy of c.
func (c *Ciphertext) CopyNew() *Ciphertext {
	out := &Ciphertext{
		pk:         c.pk,
		ctx:        c.ctx,
		Parts:      make([]Part, len(c.Parts)),
		PrimeSet:   c.PrimeSet,
		PtxtSpace:  c.PtxtSpace,
		IntFactor:  c.IntFactor,
		PtxtMag:    c.ctx.NewFloat(0).Set(c.PtxtMag),
		RatFactor:  c.ctx.NewFloat(0).Set(c.RatFactor),
		NoiseBound: c.ctx.NewFloat(0).Set(c.NoiseBound),
	}
	for i, p := range c.Parts {
		out.Parts[i] = p.CopyNew()
	}
	return out
}

// assign overwrites c with the fields of other, without copying.
func (c *Ciphertext) assign(other *Ciphertext) {
	c.Parts = other.Parts
	c.PrimeSet = other.PrimeSet
	c.PtxtSpace = other.PtxtSpace
	c.IntFactor = other.IntFactor
	c.PtxtMag = other.PtxtMag
	c.RatFactor = other.RatFactor
	c.NoiseBound = other.NoiseBound
}

// getPartIndexByHandle returns the index of the part carrying the given
// handle, or -1.
func (c *Ciphertext) getPartIndexByHandle(handle SKHandle) int {
	for i := range c.Parts {
		if c.Parts[i].Handle == handle {
			return i
		}
	}
	return -1
}

// AddPart accumulates a polynomial into the ciphertext under the given
// handle: if a part with that handle exists the polynomial is added to it,
// otherwise a copy is appended. The first part of an empty ciphertext fixes
// the prime set; afterwards the polynomial must carry at least the primes of
// the ciphertext and any extra primes are dropped from the stored copy.
func (c *Ciphertext) AddPart(p *dcrt.Poly, handle SKHandle) error {

	if c.IsEmpty() {
		c.PrimeSet = p.Set()
	} else if !p.Set().ContainsSet(c.PrimeSet) {
		return fmt.Errorf("cannot AddPart: polynomial set %s does not contain %s", p.Set(), c.PrimeSet)
	}

	if i := c.getPartIndexByHandle(handle); i >= 0 {
		return c.Parts[i].Poly.Add(p)
	}

	cp := p.CopyNew()
	cp.RemovePrimes(cp.Set().Diff(c.PrimeSet))
	c.Parts = append(c.Parts, Part{Poly: cp, Handle: handle})
	return nil
}

// Negate negates all parts in place. The noise bound is unchanged.
func (c *Ciphertext) Negate() {
	for i := range c.Parts {
		c.Parts[i].Poly.Negate()
	}
}

// GetKeyID returns the key id of the first part that points to an actual
// key, or 0 when all parts point to one.
func (c *Ciphertext) GetKeyID() int {
	for i := range c.Parts {
		if !c.Parts[i].Handle.IsOne() {
			return c.Parts[i].Handle.KeyID
		}
	}
	return 0
}

// InCanonicalForm reports whether the ciphertext only has parts pointing to
// one or to the base key with the given id (keyID < 0 accepts any base key).
func (c *Ciphertext) InCanonicalForm(keyID int) bool {
	for i := range c.Parts {
		h := c.Parts[i].Handle
		if h.IsOne() {
			continue
		}
		if keyID < 0 {
			if h.PowerOfS != 1 || h.PowerOfX != 1 {
				return false
			}
		} else if !h.IsBase(keyID) {
			return false
		}
	}
	return true
}

// LogOfPrimeSet returns log2 of the current prime product.
func (c *Ciphertext) LogOfPrimeSet() float64 {
	return c.ctx.LogOfProduct(c.PrimeSet)
}

// Capacity returns the number of bits left between the current modulus and
// the noise bound: log2(Q) - log2(noiseBound).
func (c *Ciphertext) Capacity() float64 {
	return c.LogOfPrimeSet() - log2Float(c.NoiseBound)
}

// ModSwitchAddedNoiseBound bounds the noise added by switching the
// ciphertext to a smaller modulus: one rounding term per part, weighted by
// the norm bound of the key element the part points to.
func (c *Ciphertext) ModSwitchAddedNoiseBound() *big.Float {

	roundErr := c.ctx.NoiseBoundForMod(c.PtxtSpace, c.ctx.N())

	total := c.ctx.NewFloat(0)
	for i := range c.Parts {
		h := c.Parts[i].Handle
		if h.IsOne() {
			total.Add(total, roundErr)
			continue
		}
		w := c.ctx.NewFloat(0).Set(roundErr)
		bound := c.pk.SKeyBound(h.KeyID)
		for d := 0; d < h.PowerOfS; d++ {
			w.Mul(w, bound)
		}
		total.Add(total, w)
	}
	return total
}

// MulIntFactor multiplies the integer factor by e, scaling the parts by the
// balanced representative of e so that the decryption invariant is kept.
func (c *Ciphertext) MulIntFactor(e uint64) {

	if e == 1 || c.PtxtSpace <= 1 {
		return
	}

	c.IntFactor = ring.MulMod(c.IntFactor, e%c.PtxtSpace, c.PtxtSpace)

	b := ring.BalancedRepr(e, c.PtxtSpace)
	bc := big.NewInt(b)
	for i := range c.Parts {
		c.Parts[i].Poly.MulBig(bc)
	}

	abs := b
	if abs < 0 {
		abs = -abs
	}
	c.NoiseBound.Mul(c.NoiseBound, c.ctx.NewFloat(abs))
}

// ReducePtxtSpace replaces the plaintext space by gcd(PtxtSpace, newSpace).
// The two spaces must not be coprime.
func (c *Ciphertext) ReducePtxtSpace(newSpace uint64) error {
	g := gcdUint(c.PtxtSpace, newSpace)
	if g <= 1 {
		return fmt.Errorf("cannot ReducePtxtSpace: %d and %d are coprime", c.PtxtSpace, newSpace)
	}
	c.PtxtSpace = g
	c.IntFactor %= g
	return nil
}

// verifyPrimeSet panics if the prime set stopped being valid: it must carry
// either all the special primes or none of them, and its ciphertext-prime
// portion must be an interval.
func (c *Ciphertext) verifyPrimeSet() {

	specials := c.PrimeSet.Intersect(c.ctx.SpecialPrimes())
	if !specials.Empty() && !specials.Equal(c.ctx.SpecialPrimes()) {
		panic(fmt.Sprintf("invalid prime set %s: partial special primes", c.PrimeSet))
	}

	if !c.PrimeSet.Intersect(c.ctx.CtxtPrimes()).IsInterval() {
		panic(fmt.Sprintf("invalid prime set %s: ciphertext primes not an interval", c.PrimeSet))
	}
}

// ciphertextMeta is the exact part of the ciphertext state compared by Equal.
type ciphertextMeta struct {
	PrimeSet  primeset.Set
	PtxtSpace uint64
	IntFactor uint64
}

// Equal reports whether c and other are interchangeable: exact metadata and
// parts must match, while the tracked estimates (noise bound, rational
// factor, magnitude) only need to agree within a factor of [0.9, 1.1].
func (c *Ciphertext) Equal(other *Ciphertext) bool {

	if c.ctx != other.ctx || len(c.Parts) != len(other.Parts) {
		return false
	}

	opts := cmp.Comparer(func(a, b primeset.Set) bool { return a.Equal(b) })
	if !cmp.Equal(
		ciphertextMeta{c.PrimeSet, c.PtxtSpace, c.IntFactor},
		ciphertextMeta{other.PrimeSet, other.PtxtSpace, other.IntFactor},
		opts,
	) {
		return false
	}

	for i := range c.Parts {
		if !c.Parts[i].Equal(other.Parts[i]) {
			return false
		}
	}

	return withinRatio(c.NoiseBound, other.NoiseBound) &&
		withinRatio(c.RatFactor, other.RatFactor) &&
		withinRatio(c.PtxtMag, other.PtxtMag)
}

// withinRatio reports whether a/b lies in [0.9, 1.1], treating two
// non-positive values as equal.
func withinRatio(a, b *big.Float) bool {
	if a.Sign() <= 0 || b.Sign() <= 0 {
		return a.Sign() <= 0 && b.Sign() <= 0
	}
	q := new(big.Float).Quo(a, b)
	lo, hi := big.NewFloat(0.9), big.NewFloat(1.1)
	return q.Cmp(lo) >= 0 && q.Cmp(hi) <= 0
}
