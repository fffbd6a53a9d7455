package dcrt

import (
	"fmt"
	"math/big"

	"github.com/helago/helago/primeset"
	"github.com/helago/helago/ring"
	"github.com/helago/helago/utils"
	"github.com/helago/helago/utils/buffer"
	"github.com/helago/helago/utils/sampling"
)

// Poly is a ring element in double-CRT representation: one NTT-domain residue
// row per prime of its current prime set. All rows are kept in evaluation
// form at all times; coefficient-form excursions (prime-set expansion, exact
// scaling, CRT reconstruction) are internal and temporary.
type Poly struct {
	ctx  *Context
	set  primeset.Set
	rows map[int][]uint64
}

// NewPoly returns the zero element over the given prime set.
func NewPoly(ctx *Context, set primeset.Set) *Poly {
	p := &Poly{ctx: ctx, set: set, rows: make(map[int][]uint64, set.Card())}
	for _, i := range set.Elements() {
		p.rows[i] = make([]uint64, ctx.n)
	}
	return p
}

// NewPolyFromBig returns the element whose coefficient vector is coeffs,
// reduced modulo each prime of set. Coefficients may be negative; missing
// trailing coefficients are zero. A constant (degree zero) input skips the
// NTT since its evaluation vector is the constant itself.
func NewPolyFromBig(ctx *Context, set primeset.Set, coeffs []*big.Int) (*Poly, error) {

	if len(coeffs) > ctx.n {
		return nil, fmt.Errorf("cannot NewPolyFromBig: %d coefficients exceed the ring degree %d", len(coeffs), ctx.n)
	}

	p := NewPoly(ctx, set)

	deg := -1
	for i, c := range coeffs {
		if c != nil && c.Sign() != 0 {
			deg = i
		}
	}

	if deg < 0 {
		return p, nil
	}

	if deg == 0 {
		for _, i := range set.Elements() {
			c := reduceBig(coeffs[0], p.ctx.rings[i].Modulus)
			row := p.rows[i]
			for j := range row {
				row[j] = c
			}
		}
		return p, nil
	}

	elems := set.Elements()
	utils.ForEachChunk(len(elems), func(start, end int) {
		for k := start; k < end; k++ {
			i := elems[k]
			q := p.ctx.rings[i].Modulus
			row := p.rows[i]
			for j, c := range coeffs {
				if c == nil {
					continue
				}
				row[j] = reduceBig(c, q)
			}
			p.ctx.rings[i].NTT(row)
		}
	})

	return p, nil
}

// newPolyFromSigned builds a Poly from small signed coefficients.
func newPolyFromSigned(ctx *Context, set primeset.Set, coeffs []int64) *Poly {
	p := NewPoly(ctx, set)
	elems := set.Elements()
	utils.ForEachChunk(len(elems), func(start, end int) {
		for k := start; k < end; k++ {
			i := elems[k]
			q := ctx.rings[i].Modulus
			row := p.rows[i]
			for j, c := range coeffs {
				if c >= 0 {
					row[j] = uint64(c) % q
				} else {
					row[j] = q - uint64(-c)%q
				}
			}
			ctx.rings[i].NTT(row)
		}
	})
	return p
}

// reduceBig returns c mod q in [0, q).
func reduceBig(c *big.Int, q uint64) uint64 {
	m := new(big.Int).Mod(c, new(big.Int).SetUint64(q))
	return m.Uint64()
}

// Context returns the context the element lives in.
func (p *Poly) Context() *Context { return p.ctx }

// Set returns the current prime set.
func (p *Poly) Set() primeset.Set { return p.set }

// Row returns the NTT-domain residue row of chain prime i. The row is shared
// with the element.
func (p *Poly) Row(i int) []uint64 { return p.rows[i] }

// CopyNew returns a deep copy of p.
func (p *Poly) CopyNew() *Poly {
	out := &Poly{ctx: p.ctx, set: p.set, rows: make(map[int][]uint64, len(p.rows))}
	for i, row := range p.rows {
		out.rows[i] = append([]uint64(nil), row...)
	}
	return out
}

// Equal returns true if p and other have the same prime set and identical
// rows.
func (p *Poly) Equal(other *Poly) bool {
	if !p.set.Equal(other.set) {
		return false
	}
	for i, row := range p.rows {
		if !utils.EqualSlice(row, other.rows[i]) {
			return false
		}
	}
	return true
}

// Clear sets the element to zero without changing its prime set.
func (p *Poly) Clear() {
	for _, row := range p.rows {
		for j := range row {
			row[j] = 0
		}
	}
}

// checkSets verifies the binary-operation prime-set policy: other must carry
// at least the primes of p. Extra primes of other are ignored; expanding p to
// match other is never done implicitly.
func (p *Poly) checkSets(other *Poly, op string) error {
	if p.ctx != other.ctx {
		return fmt.Errorf("cannot %s: mismatched contexts", op)
	}
	if !other.set.ContainsSet(p.set) {
		return fmt.Errorf("cannot %s: operand prime set %s does not contain %s", op, other.set, p.set)
	}
	return nil
}

// Add evaluates p = p + other on the rows of p.
func (p *Poly) Add(other *Poly) error {
	if err := p.checkSets(other, "Add"); err != nil {
		return err
	}
	for _, i := range p.set.Elements() {
		p.ctx.rings[i].Add(p.rows[i], other.rows[i], p.rows[i])
	}
	return nil
}

// Sub evaluates p = p - other on the rows of p.
func (p *Poly) Sub(other *Poly) error {
	if err := p.checkSets(other, "Sub"); err != nil {
		return err
	}
	for _, i := range p.set.Elements() {
		p.ctx.rings[i].Sub(p.rows[i], other.rows[i], p.rows[i])
	}
	return nil
}

// Mul evaluates the ring product p = p * other on the rows of p.
func (p *Poly) Mul(other *Poly) error {
	if err := p.checkSets(other, "Mul"); err != nil {
		return err
	}
	for _, i := range p.set.Elements() {
		p.ctx.rings[i].MulCoeffs(p.rows[i], other.rows[i], p.rows[i])
	}
	return nil
}

// Negate evaluates p = -p.
func (p *Poly) Negate() {
	for i, row := range p.rows {
		p.ctx.rings[i].Neg(row, row)
	}
}

// AddBig adds the constant c to p.
func (p *Poly) AddBig(c *big.Int) {
	for i, row := range p.rows {
		p.ctx.rings[i].AddScalar(row, reduceBig(c, p.ctx.rings[i].Modulus), row)
	}
}

// SubBig subtracts the constant c from p.
func (p *Poly) SubBig(c *big.Int) {
	p.AddBig(new(big.Int).Neg(c))
}

// MulBig multiplies p by the constant c.
func (p *Poly) MulBig(c *big.Int) {
	for i, row := range p.rows {
		p.ctx.rings[i].MulScalar(row, reduceBig(c, p.ctx.rings[i].Modulus), row)
	}
}

// MulUint multiplies p by the constant u.
func (p *Poly) MulUint(u uint64) {
	for i, row := range p.rows {
		p.ctx.rings[i].MulScalar(row, u%p.ctx.rings[i].Modulus, row)
	}
}

// DivByBig multiplies p by the inverse of c. Fails if c is not invertible
// modulo one of the primes of the set.
func (p *Poly) DivByBig(c *big.Int) error {
	for _, i := range p.set.Elements() {
		q := p.ctx.rings[i].Modulus
		r := reduceBig(c, q)
		if r == 0 {
			return fmt.Errorf("cannot DivByBig: constant is zero mod prime %d", q)
		}
		p.ctx.rings[i].MulScalar(p.rows[i], ring.InvMod(r, q), p.rows[i])
	}
	return nil
}

// reconstruct returns the balanced (or positive) coefficient vector of p
// modulo the product of the primes in set, which must be a subset of the
// current prime set. Rows are copied and inverse-transformed; p is not
// modified.
func (p *Poly) reconstruct(set primeset.Set, positive bool) ([]*big.Int, error) {

	if !p.set.ContainsSet(set) {
		return nil, fmt.Errorf("cannot reconstruct: %s is not a subset of %s", set, p.set)
	}

	elems := set.Elements()
	coeffRows := make([][]uint64, len(elems))

	utils.ForEachChunk(len(elems), func(start, end int) {
		for k := start; k < end; k++ {
			i := elems[k]
			row := append([]uint64(nil), p.rows[i]...)
			p.ctx.rings[i].INTT(row)
			coeffRows[k] = row
		}
	})

	// CRT interpolation tables: x = sum_k c_k * e_k mod Q, with
	// e_k = (Q/q_k) * ((Q/q_k)^-1 mod q_k).
	Q := p.ctx.ProductOfPrimes(set)
	e := make([]*big.Int, len(elems))
	for k, i := range elems {
		q := p.ctx.rings[i].Modulus
		qhat := new(big.Int).Quo(Q, new(big.Int).SetUint64(q))
		qhatInv := ring.InvMod(reduceBig(qhat, q), q)
		e[k] = qhat.Mul(qhat, new(big.Int).SetUint64(qhatInv))
	}

	half := new(big.Int).Rsh(Q, 1)
	coeffs := make([]*big.Int, p.ctx.n)

	utils.ForEachChunk(p.ctx.n, func(start, end int) {
		tmp := new(big.Int)
		for j := start; j < end; j++ {
			x := new(big.Int)
			for k := range elems {
				x.Add(x, tmp.Mul(e[k], tmp.SetUint64(coeffRows[k][j])))
			}
			x.Mod(x, Q)
			if !positive && x.Cmp(half) > 0 {
				x.Sub(x, Q)
			}
			coeffs[j] = x
		}
	})

	return coeffs, nil
}

// ToBig returns the coefficient vector of p modulo the product of its prime
// set, balanced in (-Q/2, Q/2] unless positive is set.
func (p *Poly) ToBig(positive bool) []*big.Int {
	coeffs, err := p.reconstruct(p.set, positive)
	if err != nil {
		panic(err) // p.set is always a subset of itself
	}
	return coeffs
}

// AddPrimes extends the prime set of p with newSet, which must be disjoint
// from it. The value of p is lifted to its balanced representative modulo the
// current product and reduced modulo the new primes; only the new rows are
// transformed.
func (p *Poly) AddPrimes(newSet primeset.Set) error {

	if newSet.Empty() {
		return nil
	}

	if !p.set.Disjoint(newSet) {
		return fmt.Errorf("cannot AddPrimes: %s intersects the current set %s", newSet, p.set)
	}

	coeffs := p.ToBig(false)

	elems := newSet.Elements()
	utils.ForEachChunk(len(elems), func(start, end int) {
		for k := start; k < end; k++ {
			i := elems[k]
			q := p.ctx.rings[i].Modulus
			row := make([]uint64, p.ctx.n)
			for j, c := range coeffs {
				row[j] = reduceBig(c, q)
			}
			p.ctx.rings[i].NTT(row)
			p.rows[i] = row
		}
	})

	p.set = p.set.Union(newSet)
	return nil
}

// AddPrimesAndScale extends the prime set of p with newSet while multiplying
// the value by the product of the new primes: the new rows are zero and the
// old rows are scaled. Returns the log2 of the scaling factor.
func (p *Poly) AddPrimesAndScale(newSet primeset.Set) (logFactor float64, err error) {

	if newSet.Empty() {
		return 0, nil
	}

	if !p.set.Disjoint(newSet) {
		return 0, fmt.Errorf("cannot AddPrimesAndScale: %s intersects the current set %s", newSet, p.set)
	}

	factor := p.ctx.ProductOfPrimes(newSet)
	p.MulBig(factor)

	for _, i := range newSet.Elements() {
		p.rows[i] = make([]uint64, p.ctx.n)
	}
	p.set = p.set.Union(newSet)

	return p.ctx.LogOfProduct(newSet), nil
}

// RemovePrimes drops the rows of the primes in set from p.
func (p *Poly) RemovePrimes(set primeset.Set) {
	for _, i := range set.Intersect(p.set).Elements() {
		delete(p.rows, i)
	}
	p.set = p.set.Diff(set)
}

// ScaleDownToSet scales p down to the prime set target: the value is divided
// by the product of the removed primes after subtracting the correction term
// delta, with delta = p mod removedProduct balanced, adjusted to be divisible
// by ptxtSpace (when ptxtSpace > 1) so that the division preserves the
// plaintext. Returns delta in coefficient form for noise accounting.
func (p *Poly) ScaleDownToSet(target primeset.Set, ptxtSpace uint64) (delta []*big.Int, err error) {

	diff := p.set.Diff(target)

	if diff.Empty() {
		return nil, fmt.Errorf("cannot ScaleDownToSet: no primes to remove")
	}

	if !p.set.ContainsSet(target) {
		return nil, fmt.Errorf("cannot ScaleDownToSet: target %s is not a subset of %s", target, p.set)
	}

	diffProd := p.ctx.ProductOfPrimes(diff)

	if delta, err = p.reconstruct(diff, false); err != nil {
		return nil, err
	}

	if ptxtSpace > 1 {
		// Adjust delta to be divisible by ptxtSpace: add k*diffProd with
		// k = -delta * diffProd^-1 mod ptxtSpace, k balanced to keep the
		// correction small.
		ptxt := new(big.Int).SetUint64(ptxtSpace)
		diffProdInv := new(big.Int).ModInverse(diffProd, ptxt)
		if diffProdInv == nil {
			return nil, fmt.Errorf("cannot ScaleDownToSet: removed product not invertible mod ptxtSpace %d", ptxtSpace)
		}
		halfPtxt := ptxtSpace >> 1
		k := new(big.Int)
		for _, c := range delta {
			k.Mod(k.Neg(k.Mul(c, diffProdInv)), ptxt)
			if k.Uint64() > halfPtxt {
				k.Sub(k, ptxt)
			}
			c.Add(c, k.Mul(k, diffProd))
		}
	}

	deltaPoly, err := NewPolyFromBig(p.ctx, target, delta)
	if err != nil {
		return nil, err
	}

	if err = p.subOnOwnSet(deltaPoly, target); err != nil {
		return nil, err
	}

	p.RemovePrimes(diff)

	if err = p.DivByBig(diffProd); err != nil {
		return nil, err
	}

	return delta, nil
}

// subOnOwnSet subtracts other from p on the rows of set only.
func (p *Poly) subOnOwnSet(other *Poly, set primeset.Set) error {
	if !p.set.ContainsSet(set) || !other.set.ContainsSet(set) {
		return fmt.Errorf("cannot subOnOwnSet: %s not carried by both operands", set)
	}
	for _, i := range set.Elements() {
		p.ctx.rings[i].Sub(p.rows[i], other.rows[i], p.rows[i])
	}
	return nil
}

// Automorph applies the Galois automorphism X -> X^k to p, for k odd mod 2N.
// On NTT rows this is a pure index permutation shared by all primes.
func (p *Poly) Automorph(k uint64) error {

	index, err := p.ctx.GaloisIndex(k)
	if err != nil {
		return fmt.Errorf("cannot Automorph: %w", err)
	}

	elems := p.set.Elements()
	utils.ForEachChunk(len(elems), func(start, end int) {
		for t := start; t < end; t++ {
			i := elems[t]
			out := make([]uint64, p.ctx.n)
			ring.AutomorphismNTT(p.rows[i], index, out)
			p.rows[i] = out
		}
	})

	return nil
}

// BreakIntoDigits decomposes p into the mixed-radix digits of the context's
// digit plan: p = d_0 + D_0*d_1 + D_0*D_1*d_2 + ..., with D_i the product of
// ALL primes of plan digit i, even when p carries only some of them. Digits
// keep their plan position so that digit j always pairs with row j of a
// key-switching matrix; a digit whose primes p does not carry is zero. Every
// digit is returned expanded to the full prime set of p. The second return
// value bounds the sum of the digit norms.
func (p *Poly) BreakIntoDigits() (digits []*Poly, noise *big.Float, err error) {

	remaining := p.set.Intersect(p.ctx.CtxtPrimes())
	if remaining.Empty() {
		return nil, nil, fmt.Errorf("cannot BreakIntoDigits: no ciphertext primes in %s", p.set)
	}

	var n int
	for ; !remaining.Empty(); n++ {
		remaining = remaining.Diff(p.ctx.Digit(n))
	}

	digits = make([]*Poly, n)
	digitSets := make([]primeset.Set, n)
	for i := 0; i < n; i++ {
		digitSets[i] = p.ctx.Digit(i).Intersect(p.set)
		digits[i] = NewPoly(p.ctx, digitSets[i])
		for _, j := range digitSets[i].Elements() {
			copy(digits[i].rows[j], p.rows[j])
		}
	}

	noise = p.ctx.NewFloat(0)

	for i := range digits {

		if !digitSets[i].Empty() {
			carried := p.ctx.ProductOfPrimes(digitSets[i])
			noise.Add(noise, p.ctx.NoiseBoundForModBig(carried, p.ctx.n))
		}

		// Lift digit i to the full set, then peel it off the remaining
		// digits. The divisor is the full plan radix: the key-switching
		// matrices bake it into their hidden factors, and it stays
		// consistent on a partial set since it is a multiple of the
		// carried product.
		if err = digits[i].AddPrimes(p.set.Diff(digitSets[i])); err != nil {
			return nil, nil, err
		}

		prod := p.ctx.ProductOfPrimes(p.ctx.Digit(i))
		for j := i + 1; j < len(digits); j++ {
			if err = digits[j].subOnOwnSet(digits[i], digitSets[j]); err != nil {
				return nil, nil, err
			}
			if err = digits[j].DivByBig(prod); err != nil {
				return nil, nil, err
			}
		}
	}

	return digits, noise, nil
}

// Randomize overwrites p with an element sampled uniformly over its current
// prime set.
func (p *Poly) Randomize(prng sampling.PRNG) {
	for _, i := range p.set.Elements() {
		ring.NewUniformSampler(prng, p.ctx.rings[i]).Read(p.rows[i])
	}
}

// BinarySize returns the serialized size of p in bytes.
func (p *Poly) BinarySize() int {
	return p.set.BinarySize() + p.set.Card()*p.ctx.n*8
}

// WriteTo writes p on w. The context is not serialized; the reader must hold
// an element of the same context.
func (p *Poly) WriteTo(w buffer.Writer) (n int64, err error) {

	var inc int64

	if inc, err = p.set.WriteTo(w); err != nil {
		return n + inc, err
	}
	n += inc

	for _, i := range p.set.Elements() {
		if inc, err = buffer.WriteUint64Slice(w, p.rows[i]); err != nil {
			return n + inc, fmt.Errorf("cannot WriteTo: %w", err)
		}
		n += inc
	}

	return n, w.Flush()
}

// ReadFrom reads p from r, reusing the context of the receiver.
func (p *Poly) ReadFrom(r buffer.Reader) (n int64, err error) {

	if p.ctx == nil {
		return 0, fmt.Errorf("cannot ReadFrom: receiver has no context")
	}

	var inc int64
	var set primeset.Set

	if inc, err = set.ReadFrom(r); err != nil {
		return n + inc, err
	}
	n += inc

	if !set.Empty() && set.Last() >= p.ctx.NumPrimes() {
		return n, fmt.Errorf("cannot ReadFrom: prime index %d out of chain range", set.Last())
	}

	rows := make(map[int][]uint64, set.Card())
	for _, i := range set.Elements() {
		row := make([]uint64, p.ctx.n)
		if inc, err = buffer.ReadUint64Slice(r, row); err != nil {
			return n + inc, fmt.Errorf("cannot ReadFrom: %w", err)
		}
		n += inc
		q := p.ctx.rings[i].Modulus
		for _, c := range row {
			if c >= q {
				return n, fmt.Errorf("cannot ReadFrom: residue out of range for prime %d", q)
			}
		}
		rows[i] = row
	}

	p.set = set
	p.rows = rows

	return n, nil
}

// MarshalBinary encodes p on a byte slice.
func (p *Poly) MarshalBinary() ([]byte, error) {
	buf := buffer.NewBufferSize(p.BinarySize())
	if _, err := p.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a byte slice generated by MarshalBinary on p,
// whose context must already be set.
func (p *Poly) UnmarshalBinary(b []byte) error {
	_, err := p.ReadFrom(buffer.NewBuffer(b))
	return err
}
