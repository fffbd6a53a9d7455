package he

import (
	"fmt"
	"math/big"

	"github.com/helago/helago/core/dcrt"
	"github.com/helago/helago/primeset"
	"github.com/helago/helago/ring"
	"github.com/helago/helago/utils/bignum"
	"github.com/helago/helago/utils/sampling"
)

// KeySwitch is a key-switching matrix: one RLWE encryption per digit of the
// decomposition, translating parts that decrypt under FromKey into pairs of
// parts under the base key ToKeyID. The matrix lives over the union of the
// ciphertext and special primes; B[j] hides SP * prefix_j * s_from, where SP
// is the product of the special primes and prefix_j the product of the digit
// radices below j.
type KeySwitch struct {
	FromKey   SKHandle
	ToKeyID   int
	PtxtSpace uint64

	A []*dcrt.Poly
	B []*dcrt.Poly

	// NoiseBound bounds the norm of the error of each row.
	NoiseBound *big.Float
}

// SecKey holds the secret keys of an instance. The first key (id 0) is
// generated with the key; further keys can be added for key switching across
// keys.
type SecKey struct {
	ctx  *dcrt.Context
	pk   *PubKey
	keys []*dcrt.Poly
}

// PubKey holds the public material: an encryption of zero for public-key
// encryption, the norm bounds of the secret keys, and the key-switching
// matrices generated so far.
type PubKey struct {
	ctx       *dcrt.Context
	prng      sampling.PRNG
	ptxtSpace uint64

	skBounds []*big.Float
	skHwts   []int

	encKey   *Ciphertext
	matrices []*KeySwitch

	// CompensateCKKSScale enables the extra ciphertext primes kept when
	// dropping small primes of an approximate ciphertext, trading modulus
	// budget for encoding accuracy.
	CompensateCKKSScale bool
}

// GenSecKey generates a fresh ternary secret key of the context's Hamming
// weight, together with its public key holding an encryption of zero.
func GenSecKey(ctx *dcrt.Context, prng sampling.PRNG) (*SecKey, error) {

	pk := &PubKey{ctx: ctx, prng: prng, ptxtSpace: ctx.PtxtModulus()}
	if pk.ptxtSpace == 0 {
		pk.ptxtSpace = 1
	}

	sk := &SecKey{ctx: ctx, pk: pk}
	if _, err := sk.GenKey(ctx.HWt()); err != nil {
		return nil, err
	}

	// The public encryption key is an encryption of zero under key 0:
	// (b, a) with b = -a*s + ptxtSpace*e over the ciphertext primes.
	set := ctx.CtxtPrimes()
	a, _ := dcrt.SampleUniform(ctx, set, prng)
	e, _ := dcrt.SampleGaussian(ctx, set, ctx.Sigma(), prng)

	b := a.CopyNew()
	if err := b.Mul(sk.keys[0]); err != nil {
		return nil, fmt.Errorf("cannot GenSecKey: %w", err)
	}
	b.Negate()
	e.MulUint(pk.ptxtSpace)
	if err := b.Add(e); err != nil {
		return nil, fmt.Errorf("cannot GenSecKey: %w", err)
	}

	ct := NewCiphertext(pk, pk.ptxtSpace)
	ct.Parts = []Part{
		{Poly: b, Handle: OneHandle()},
		{Poly: a, Handle: BaseHandle(0)},
	}
	ct.PrimeSet = set
	ct.NoiseBound = ctx.NewFloat(pk.ptxtSpace)
	ct.NoiseBound.Mul(ct.NoiseBound, ctx.NoiseBoundForGaussian(ctx.Sigma(), ctx.N()))
	pk.encKey = ct

	return sk, nil
}

// GenKey adds a fresh ternary secret key with the given Hamming weight and
// returns its id.
func (sk *SecKey) GenKey(hwt int) (int, error) {

	key, bound, err := dcrt.SampleTernaryHWt(sk.ctx, sk.ctx.AllPrimes(), hwt, sk.pk.prng)
	if err != nil {
		return 0, fmt.Errorf("cannot GenKey: %w", err)
	}

	sk.keys = append(sk.keys, key)
	sk.pk.skBounds = append(sk.pk.skBounds, bound)
	sk.pk.skHwts = append(sk.pk.skHwts, hwt)
	return len(sk.keys) - 1, nil
}

// PubKey returns the public key associated with sk.
func (sk *SecKey) PubKey() *PubKey { return sk.pk }

// NumKeys returns the number of secret keys generated so far.
func (sk *SecKey) NumKeys() int { return len(sk.keys) }

// keyPoly returns the key element the handle points to, s_t(X^e)^d, over the
// full prime chain.
func (sk *SecKey) keyPoly(h SKHandle) (*dcrt.Poly, error) {

	if h.IsOne() {
		return nil, fmt.Errorf("cannot keyPoly: handle points to one")
	}
	if h.KeyID < 0 || h.KeyID >= len(sk.keys) {
		return nil, fmt.Errorf("cannot keyPoly: no key with id %d", h.KeyID)
	}

	base := sk.keys[h.KeyID].CopyNew()
	if h.PowerOfX != 1 {
		if err := base.Automorph(h.PowerOfX); err != nil {
			return nil, fmt.Errorf("cannot keyPoly: %w", err)
		}
	}

	out := base.CopyNew()
	for d := 1; d < h.PowerOfS; d++ {
		if err := out.Mul(base); err != nil {
			return nil, fmt.Errorf("cannot keyPoly: %w", err)
		}
	}
	return out, nil
}

// Context returns the double-CRT context of the key.
func (pk *PubKey) Context() *dcrt.Context { return pk.ctx }

// PtxtSpace returns the default plaintext space of the key.
func (pk *PubKey) PtxtSpace() uint64 { return pk.ptxtSpace }

// SKeyBound returns the norm bound of the secret key with the given id.
func (pk *PubKey) SKeyBound(keyID int) *big.Float { return pk.skBounds[keyID] }

// GenKeySwitchMatrix generates and stores a matrix translating parts under
// the handle from into parts under the base key toKeyID. Special primes are
// required.
func (sk *SecKey) GenKeySwitchMatrix(from SKHandle, toKeyID int) error {

	ctx := sk.ctx

	if ctx.SpecialPrimes().Empty() {
		return fmt.Errorf("cannot GenKeySwitchMatrix: no special primes in the chain")
	}
	if from.IsOne() || from.IsBase(toKeyID) {
		return fmt.Errorf("cannot GenKeySwitchMatrix: trivial handle %s", from)
	}
	if toKeyID < 0 || toKeyID >= len(sk.keys) {
		return fmt.Errorf("cannot GenKeySwitchMatrix: no key with id %d", toKeyID)
	}

	fromPoly, err := sk.keyPoly(from)
	if err != nil {
		return fmt.Errorf("cannot GenKeySwitchMatrix: %w", err)
	}

	set := ctx.CtxtPrimes().Union(ctx.SpecialPrimes())
	sp := ctx.ProductOfPrimes(ctx.SpecialPrimes())

	W := &KeySwitch{
		FromKey:   from,
		ToKeyID:   toKeyID,
		PtxtSpace: sk.pk.ptxtSpace,
		A:         make([]*dcrt.Poly, ctx.NumDigits()),
		B:         make([]*dcrt.Poly, ctx.NumDigits()),
	}

	prefix := new(big.Int).Set(sp)
	for j := 0; j < ctx.NumDigits(); j++ {

		a, _ := dcrt.SampleUniform(ctx, set, sk.pk.prng)
		e, _ := dcrt.SampleGaussian(ctx, set, ctx.Sigma(), sk.pk.prng)

		b := a.CopyNew()
		if err := b.Mul(sk.keys[toKeyID]); err != nil {
			return fmt.Errorf("cannot GenKeySwitchMatrix: %w", err)
		}
		b.Negate()
		e.MulUint(W.PtxtSpace)
		if err := b.Add(e); err != nil {
			return fmt.Errorf("cannot GenKeySwitchMatrix: %w", err)
		}

		hidden := fromPoly.CopyNew()
		hidden.MulBig(prefix)
		if err := b.Add(hidden); err != nil {
			return fmt.Errorf("cannot GenKeySwitchMatrix: %w", err)
		}

		W.A[j], W.B[j] = a, b
		prefix.Mul(prefix, ctx.ProductOfPrimes(ctx.Digit(j)))
	}

	W.NoiseBound = ctx.NewFloat(W.PtxtSpace)
	W.NoiseBound.Mul(W.NoiseBound, ctx.NoiseBoundForGaussian(ctx.Sigma(), ctx.N()))

	sk.pk.matrices = append(sk.pk.matrices, W)
	return nil
}

// GenRelinKey generates the matrix relinearizing squared parts of key 0.
func (sk *SecKey) GenRelinKey() error {
	return sk.GenKeySwitchMatrix(SKHandle{PowerOfS: 2, PowerOfX: 1, KeyID: 0}, 0)
}

// GenAutomorphKey generates the matrix switching parts automorphed by
// X -> X^k back to key 0.
func (sk *SecKey) GenAutomorphKey(k uint64) error {
	m := uint64(sk.ctx.M())
	return sk.GenKeySwitchMatrix(SKHandle{PowerOfS: 1, PowerOfX: k % m, KeyID: 0}, 0)
}

// KeySwitchMatrix returns the stored matrix with the given source handle and
// target key, or nil.
func (pk *PubKey) KeySwitchMatrix(from SKHandle, toKeyID int) *KeySwitch {
	for _, W := range pk.matrices {
		if W.FromKey == from && W.ToKeyID == toKeyID {
			return W
		}
	}
	return nil
}

// AnyKeySwitchMatrix returns a stored matrix with the given source handle and
// any target key, or nil.
func (pk *PubKey) AnyKeySwitchMatrix(from SKHandle) *KeySwitch {
	for _, W := range pk.matrices {
		if W.FromKey == from {
			return W
		}
	}
	return nil
}

// automorphAmounts returns the powers of X of the stored automorphism
// matrices of the given key.
func (pk *PubKey) automorphAmounts(keyID int) []uint64 {
	var amts []uint64
	for _, W := range pk.matrices {
		f := W.FromKey
		if f.PowerOfS == 1 && f.PowerOfX != 1 && f.KeyID == keyID && W.ToKeyID == keyID {
			amts = append(amts, f.PowerOfX)
		}
	}
	return amts
}

// invModM returns the inverse of odd a modulo the power-of-two m, using that
// the multiplicative group mod m has exponent m/2.
func invModM(a, m uint64) uint64 {
	return ring.PowMod(a%m, m/2-1, m)
}

// automorphDistances runs a breadth-first search over the products of the
// stored automorphism amounts, returning for each reachable exponent the
// number of matrix applications needed to realize it.
func (pk *PubKey) automorphDistances(keyID int) map[uint64]int {

	m := uint64(pk.ctx.M())
	amts := pk.automorphAmounts(keyID)

	dist := map[uint64]int{1: 0}
	frontier := []uint64{1}
	for len(frontier) > 0 {
		var next []uint64
		for _, k := range frontier {
			for _, amt := range amts {
				nk := ring.MulMod(k, amt, m)
				if _, ok := dist[nk]; !ok {
					dist[nk] = dist[k] + 1
					next = append(next, nk)
				}
			}
		}
		frontier = next
	}
	return dist
}

// IsReachable reports whether the automorphism X -> X^k can be realized as a
// product of stored automorphism matrices of the given key.
func (pk *PubKey) IsReachable(k uint64, keyID int) bool {
	m := uint64(pk.ctx.M())
	_, ok := pk.automorphDistances(keyID)[k%m]
	return ok
}

// nextAutomorphMatrix returns a matrix whose amount is the first step of a
// shortest decomposition of X -> X^k.
func (pk *PubKey) nextAutomorphMatrix(k uint64, keyID int) (*KeySwitch, error) {

	m := uint64(pk.ctx.M())
	k %= m

	dist := pk.automorphDistances(keyID)
	dk, ok := dist[k]
	if !ok {
		return nil, fmt.Errorf("cannot nextAutomorphMatrix: X^%d is not reachable for key %d", k, keyID)
	}

	for _, W := range pk.matrices {
		f := W.FromKey
		if f.PowerOfS != 1 || f.PowerOfX == 1 || f.KeyID != keyID || W.ToKeyID != keyID {
			continue
		}
		prev := ring.MulMod(k, invModM(f.PowerOfX, m), m)
		if d, ok := dist[prev]; ok && d == dk-1 {
			return W, nil
		}
	}
	return nil, fmt.Errorf("cannot nextAutomorphMatrix: no first step for X^%d", k)
}

// Encrypt encrypts the given plaintext coefficients (modulo the plaintext
// space) under the exact scheme.
func (pk *PubKey) Encrypt(ptxt []uint64, ptxtSpace uint64) (*Ciphertext, error) {

	if pk.ctx.PtxtModulus() == 0 {
		return nil, fmt.Errorf("cannot Encrypt: approximate scheme, use EncryptCKKS")
	}
	if ptxtSpace == 0 {
		ptxtSpace = pk.ptxtSpace
	}

	ct := NewCiphertext(pk, ptxtSpace)
	msg, err := pk.encodeBGV(ptxt, ptxtSpace, ct.PrimeSet)
	if err != nil {
		return nil, fmt.Errorf("cannot Encrypt: %w", err)
	}

	if err := pk.rlweEncrypt(ct, msg); err != nil {
		return nil, fmt.Errorf("cannot Encrypt: %w", err)
	}

	ct.NoiseBound.Add(ct.NoiseBound, pk.ctx.NoiseBoundForMod(ptxtSpace, pk.ctx.N()))
	return ct, nil
}

// EncryptCKKS encodes the given values at the default scale divided by size
// and encrypts them under the approximate scheme. A non-positive size
// defaults to max(1, max|values|).
func (pk *PubKey) EncryptCKKS(values []float64, size float64) (*Ciphertext, error) {

	if pk.ctx.PtxtModulus() != 0 {
		return nil, fmt.Errorf("cannot EncryptCKKS: exact scheme, use Encrypt")
	}

	ct := NewCiphertext(pk, 1)
	msg, factor, mag, err := pk.encodeCKKS(values, size, ct.PrimeSet)
	if err != nil {
		return nil, fmt.Errorf("cannot EncryptCKKS: %w", err)
	}

	if err := pk.rlweEncrypt(ct, msg); err != nil {
		return nil, fmt.Errorf("cannot EncryptCKKS: %w", err)
	}

	ct.RatFactor = factor
	ct.PtxtMag = mag
	ct.NoiseBound.Add(ct.NoiseBound, pk.encodeRoundingError())
	return ct, nil
}

// rlweEncrypt fills ct with r*encKey + ptxtSpace*(e0, e1) + (msg, 0) and sets
// the noise bound of the masking.
func (pk *PubKey) rlweEncrypt(ct *Ciphertext, msg *dcrt.Poly) error {

	ctx := pk.ctx
	set := ct.PrimeSet

	r, rBound, err := dcrt.SampleTernaryHWt(ctx, set, ctx.N()/2, pk.prng)
	if err != nil {
		return err
	}
	e0, eBound := dcrt.SampleGaussian(ctx, set, ctx.Sigma(), pk.prng)
	e1, _ := dcrt.SampleGaussian(ctx, set, ctx.Sigma(), pk.prng)

	c0 := pk.encKey.Parts[0].Poly.CopyNew()
	if err := c0.Mul(r); err != nil {
		return err
	}
	e0.MulUint(ct.PtxtSpace)
	if err := c0.Add(e0); err != nil {
		return err
	}
	if err := c0.Add(msg); err != nil {
		return err
	}

	c1 := pk.encKey.Parts[1].Poly.CopyNew()
	if err := c1.Mul(r); err != nil {
		return err
	}
	e1.MulUint(ct.PtxtSpace)
	if err := c1.Add(e1); err != nil {
		return err
	}

	ct.Parts = []Part{
		{Poly: c0, Handle: OneHandle()},
		{Poly: c1, Handle: BaseHandle(0)},
	}

	// noise = |r|*encKeyNoise + p*|e|*(1 + sKeyBound)
	noise := ctx.NewFloat(0).Mul(rBound, pk.encKey.NoiseBound)
	mask := ctx.NewFloat(ct.PtxtSpace)
	mask.Mul(mask, eBound)
	mask.Mul(mask, ctx.NewFloat(0).Add(ctx.NewFloat(1), pk.skBounds[0]))
	ct.NoiseBound = noise.Add(noise, mask)

	return nil
}

// encodeBGV scales the plaintext by Q mod p (balanced) so that the fresh
// ciphertext satisfies the decryption invariant with IntFactor = 1.
func (pk *PubKey) encodeBGV(ptxt []uint64, ptxtSpace uint64, set primeset.Set) (*dcrt.Poly, error) {

	if len(ptxt) > pk.ctx.N() {
		return nil, fmt.Errorf("plaintext degree %d exceeds the ring degree %d", len(ptxt), pk.ctx.N())
	}

	f := new(big.Int).Mod(pk.ctx.ProductOfPrimes(set), new(big.Int).SetUint64(ptxtSpace)).Uint64()

	coeffs := make([]*big.Int, len(ptxt))
	for j, m := range ptxt {
		coeffs[j] = big.NewInt(ring.BalancedRepr(ring.MulMod(f, m%ptxtSpace, ptxtSpace), ptxtSpace))
	}
	return dcrt.NewPolyFromBig(pk.ctx, set, coeffs)
}

// encodeCKKS rounds factor*values to integer coefficients, with
// factor = defaultScale/size.
func (pk *PubKey) encodeCKKS(values []float64, size float64, set primeset.Set) (msg *dcrt.Poly, factor, mag *big.Float, err error) {

	if len(values) > pk.ctx.N() {
		return nil, nil, nil, fmt.Errorf("plaintext degree %d exceeds the ring degree %d", len(values), pk.ctx.N())
	}

	if size <= 0 {
		size = 1
		for _, v := range values {
			if v < 0 {
				v = -v
			}
			if v > size {
				size = v
			}
		}
	}

	factor = pk.ctx.DefaultScale()
	factor.Quo(factor, pk.ctx.NewFloat(size))

	coeffs := make([]*big.Int, len(values))
	for j, v := range values {
		c := pk.ctx.NewFloat(v)
		c.Mul(c, factor)
		coeffs[j] = bignum.Round(c)
	}

	if msg, err = dcrt.NewPolyFromBig(pk.ctx, set, coeffs); err != nil {
		return nil, nil, nil, err
	}
	return msg, factor, pk.ctx.NewFloat(size), nil
}

// encodeRoundingError bounds the canonical norm of the rounding error of a
// fresh encoding, modeled as uniform in [-0.5, 0.5].
func (pk *PubKey) encodeRoundingError() *big.Float {
	return pk.ctx.NoiseBoundForUniform(pk.ctx.NewFloat(0.5), pk.ctx.N())
}

// DummyEncrypt encodes the plaintext as a noiseless single-part ciphertext
// under the exact scheme. Useful for tests and as a plaintext carrier.
func (pk *PubKey) DummyEncrypt(ptxt []uint64, ptxtSpace uint64) (*Ciphertext, error) {

	if pk.ctx.PtxtModulus() == 0 {
		return nil, fmt.Errorf("cannot DummyEncrypt: approximate scheme, use DummyEncryptCKKS")
	}
	if ptxtSpace == 0 {
		ptxtSpace = pk.ptxtSpace
	}

	ct := NewCiphertext(pk, ptxtSpace)
	msg, err := pk.encodeBGV(ptxt, ptxtSpace, ct.PrimeSet)
	if err != nil {
		return nil, fmt.Errorf("cannot DummyEncrypt: %w", err)
	}

	ct.Parts = []Part{{Poly: msg, Handle: OneHandle()}}
	ct.NoiseBound = pk.ctx.NoiseBoundForMod(ptxtSpace, pk.ctx.N())
	return ct, nil
}

// DummyEncryptCKKS encodes the values as a noiseless single-part ciphertext
// under the approximate scheme.
func (pk *PubKey) DummyEncryptCKKS(values []float64, size float64) (*Ciphertext, error) {

	if pk.ctx.PtxtModulus() != 0 {
		return nil, fmt.Errorf("cannot DummyEncryptCKKS: exact scheme, use DummyEncrypt")
	}

	ct := NewCiphertext(pk, 1)
	msg, factor, mag, err := pk.encodeCKKS(values, size, ct.PrimeSet)
	if err != nil {
		return nil, fmt.Errorf("cannot DummyEncryptCKKS: %w", err)
	}

	ct.Parts = []Part{{Poly: msg, Handle: OneHandle()}}
	ct.RatFactor = factor
	ct.PtxtMag = mag
	ct.NoiseBound = pk.encodeRoundingError()
	return ct, nil
}

// innerProduct returns the inner product of the parts with their key
// elements, over the prime set of the ciphertext.
func (sk *SecKey) innerProduct(ct *Ciphertext) (*dcrt.Poly, error) {

	if ct.IsEmpty() {
		return nil, fmt.Errorf("empty ciphertext")
	}

	acc := dcrt.NewPoly(sk.ctx, ct.PrimeSet)
	for i := range ct.Parts {
		part := ct.Parts[i]
		term := part.Poly.CopyNew()
		if !part.Handle.IsOne() {
			key, err := sk.keyPoly(part.Handle)
			if err != nil {
				return nil, err
			}
			if err := term.Mul(key); err != nil {
				return nil, err
			}
		}
		if err := acc.Add(term); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// Decrypt returns the plaintext coefficients of an exact-scheme ciphertext,
// reduced modulo its plaintext space.
func (sk *SecKey) Decrypt(ct *Ciphertext) ([]uint64, error) {

	if ct.IsCKKS() {
		return nil, fmt.Errorf("cannot Decrypt: approximate ciphertext, use DecryptCKKS")
	}

	v, err := sk.innerProduct(ct)
	if err != nil {
		return nil, fmt.Errorf("cannot Decrypt: %w", err)
	}

	p := ct.PtxtSpace
	pBig := new(big.Int).SetUint64(p)
	f := new(big.Int).Mod(sk.ctx.ProductOfPrimes(ct.PrimeSet), pBig).Uint64()

	scale := ring.MulMod(ct.IntFactor%p, f, p)
	if gcdUint(scale, p) != 1 {
		return nil, fmt.Errorf("cannot Decrypt: scaling factor %d not invertible mod %d", scale, p)
	}
	scaleInv := invModPrimePower(scale, p)

	coeffs := v.ToBig(false)
	out := make([]uint64, len(coeffs))
	tmp := new(big.Int)
	for j, c := range coeffs {
		out[j] = ring.MulMod(tmp.Mod(c, pBig).Uint64(), scaleInv, p)
	}
	return out, nil
}

// invModPrimePower inverts a modulo p, where a is coprime to p. Works for
// prime powers via the extended Euclidean algorithm.
func invModPrimePower(a, p uint64) uint64 {
	var t0, t1 int64 = 0, 1
	var r0, r1 = p, a % p
	for r1 != 0 {
		q := r0 / r1
		r0, r1 = r1, r0-q*r1
		t0, t1 = t1, t0-int64(q)*t1
	}
	if t0 < 0 {
		t0 += int64(p)
	}
	return uint64(t0)
}

// DecryptCKKS returns the approximate plaintext values of an
// approximate-scheme ciphertext: the decrypted coefficients divided by the
// rational factor.
func (sk *SecKey) DecryptCKKS(ct *Ciphertext) ([]*big.Float, error) {

	if !ct.IsCKKS() {
		return nil, fmt.Errorf("cannot DecryptCKKS: exact ciphertext, use Decrypt")
	}

	v, err := sk.innerProduct(ct)
	if err != nil {
		return nil, fmt.Errorf("cannot DecryptCKKS: %w", err)
	}
	if ct.RatFactor.Sign() <= 0 {
		return nil, fmt.Errorf("cannot DecryptCKKS: non-positive rational factor")
	}

	coeffs := v.ToBig(false)
	out := make([]*big.Float, len(coeffs))
	for j, c := range coeffs {
		out[j] = sk.ctx.NewFloat(c)
		out[j].Quo(out[j], ct.RatFactor)
	}
	return out, nil
}

// NoiseNorm returns the exact canonical embedding norm of the inner product
// of the ciphertext with the secret key. For the exact scheme this is the
// quantity NoiseBound is supposed to dominate.
func (sk *SecKey) NoiseNorm(ct *Ciphertext) (*big.Float, error) {
	v, err := sk.innerProduct(ct)
	if err != nil {
		return nil, fmt.Errorf("cannot NoiseNorm: %w", err)
	}
	return canonicalNorm(v.ToBig(false), sk.ctx.Prec()), nil
}
