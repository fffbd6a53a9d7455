// Package dcrt implements the double-CRT representation of ring elements: a
// Context describing a chain of NTT-friendly primes and a Poly holding one
// NTT-domain residue row per prime of its current prime set.
package dcrt

import (
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/helago/helago/primeset"
	"github.com/helago/helago/ring"
	"github.com/helago/helago/utils/bignum"
)

// NoiseScale is the expansion factor applied to all statistical noise
// estimates, giving high-probability rather than average-case bounds.
const NoiseScale = 10.0

// Recorder receives named noise-ratio samples from operations that estimate
// added noise. Implementations must be safe for concurrent use.
type Recorder interface {
	Update(name string, ratio float64)
}

// ContextLiteral is a toolbox of parameters from which a Context is
// instantiated. It is JSON-marshalable and validated by NewContext.
type ContextLiteral struct {
	// LogN is the log2 of the ring degree.
	LogN int

	// LogPrimeSize is the bit size of the ciphertext and special primes.
	// Small primes have half that size.
	LogPrimeSize int

	// NCtxtPrimes, NSpecialPrimes and NSmallPrimes are the number of primes
	// in each named subset of the chain.
	NCtxtPrimes    int
	NSpecialPrimes int
	NSmallPrimes   int

	// NDigits is the number of digits of the key-switching decomposition.
	NDigits int

	// PtxtModulus is the BGV plaintext modulus. Zero selects the approximate
	// (CKKS-style) scheme.
	PtxtModulus uint64

	// LogScale is the log2 of the default encoding scale of the approximate
	// scheme. Zero defaults to LogPrimeSize.
	LogScale int

	// HWt is the Hamming weight of the ternary secret. Zero defaults to 120.
	HWt int

	// Sigma is the standard deviation of the encryption noise. Zero defaults
	// to 3.2.
	Sigma float64

	// Prec is the bit precision of the big.Float noise bookkeeping. Zero
	// defaults to 128.
	Prec uint
}

// Context holds the prime chain of a double-CRT instance and the tables
// derived from it. A Context is read-only once created and can be shared
// across goroutines.
type Context struct {
	logN  int
	n     int
	rings []*ring.SubRing

	ctxtPrimes    primeset.Set
	specialPrimes primeset.Set
	smallPrimes   primeset.Set
	digits        []primeset.Set

	ptxtModulus uint64
	scale       *big.Float
	hwt         int
	sigma       float64
	prec        uint

	// Stats optionally receives noise-ratio samples. Nil disables recording.
	Stats Recorder

	mu       sync.Mutex
	galois   map[uint64][]uint64
	logPrime []float64 // log2 of each chain prime
}

// NewContext validates lit, generates the prime chain and the derived tables
// and returns the resulting Context.
func NewContext(lit ContextLiteral) (*Context, error) {

	if lit.LogN < 1 || lit.LogN > 17 {
		return nil, fmt.Errorf("cannot NewContext: LogN must be in [1, 17]")
	}

	if lit.LogPrimeSize < 8 || lit.LogPrimeSize > 60 {
		return nil, fmt.Errorf("cannot NewContext: LogPrimeSize must be in [8, 60]")
	}

	if lit.NCtxtPrimes < 1 {
		return nil, fmt.Errorf("cannot NewContext: at least one ciphertext prime is required")
	}

	if lit.NSpecialPrimes < 0 || lit.NSmallPrimes < 0 {
		return nil, fmt.Errorf("cannot NewContext: negative prime counts")
	}

	if lit.NDigits < 1 {
		lit.NDigits = 1
	}

	if lit.NDigits > lit.NCtxtPrimes {
		return nil, fmt.Errorf("cannot NewContext: NDigits exceeds NCtxtPrimes")
	}

	if lit.HWt == 0 {
		lit.HWt = 120
	}

	if lit.Sigma == 0 {
		lit.Sigma = 3.2
	}

	if lit.Prec == 0 {
		lit.Prec = 128
	}

	if lit.LogScale == 0 {
		lit.LogScale = lit.LogPrimeSize
	}

	n := 1 << lit.LogN
	nthRoot := 2 * n

	smallSize := lit.LogPrimeSize / 2
	if minSize := lit.LogN + 2; smallSize < minSize {
		smallSize = minSize
	}

	smalls, err := ring.GenerateNTTPrimes(smallSize, nthRoot, lit.NSmallPrimes)
	if err != nil {
		return nil, fmt.Errorf("cannot NewContext: %w", err)
	}

	bigs, err := ring.GenerateNTTPrimes(lit.LogPrimeSize, nthRoot, lit.NCtxtPrimes+lit.NSpecialPrimes)
	if err != nil {
		return nil, fmt.Errorf("cannot NewContext: %w", err)
	}

	chain := append(append([]uint64{}, smalls...), bigs...)

	ctx := &Context{
		logN:        lit.LogN,
		n:           n,
		rings:       make([]*ring.SubRing, len(chain)),
		ptxtModulus: lit.PtxtModulus,
		hwt:         lit.HWt,
		sigma:       lit.Sigma,
		prec:        lit.Prec,
		galois:      make(map[uint64][]uint64),
		logPrime:    make([]float64, len(chain)),
	}

	for i, q := range chain {
		if lit.PtxtModulus > 1 && q%lit.PtxtModulus == 0 {
			return nil, fmt.Errorf("cannot NewContext: chain prime %d shares a factor with the plaintext modulus", q)
		}
		if ctx.rings[i], err = ring.NewSubRing(n, q); err != nil {
			return nil, fmt.Errorf("cannot NewContext: %w", err)
		}
		ctx.logPrime[i] = math.Log2(float64(q))
	}

	ctx.smallPrimes = primeset.Interval(0, lit.NSmallPrimes)
	ctx.ctxtPrimes = primeset.Interval(lit.NSmallPrimes, lit.NSmallPrimes+lit.NCtxtPrimes)
	ctx.specialPrimes = primeset.Interval(lit.NSmallPrimes+lit.NCtxtPrimes, len(chain))

	// Digit plan: contiguous, near-equal partition of the ciphertext primes.
	ctx.digits = make([]primeset.Set, lit.NDigits)
	lo := ctx.ctxtPrimes.First()
	per := lit.NCtxtPrimes / lit.NDigits
	extra := lit.NCtxtPrimes % lit.NDigits
	for i := range ctx.digits {
		size := per
		if i < extra {
			size++
		}
		ctx.digits[i] = primeset.Interval(lo, lo+size)
		lo += size
	}

	ctx.scale = new(big.Float).SetPrec(lit.Prec).SetMantExp(big.NewFloat(1), lit.LogScale)

	return ctx, nil
}

// LogN returns the log2 of the ring degree.
func (ctx *Context) LogN() int { return ctx.logN }

// N returns the ring degree phi(m) = m/2.
func (ctx *Context) N() int { return ctx.n }

// M returns the cyclotomic index m = 2N.
func (ctx *Context) M() int { return 2 * ctx.n }

// NumPrimes returns the total number of primes in the chain.
func (ctx *Context) NumPrimes() int { return len(ctx.rings) }

// IthPrime returns the i-th chain prime.
func (ctx *Context) IthPrime(i int) uint64 { return ctx.rings[i].Modulus }

// RingAt returns the SubRing of the i-th chain prime.
func (ctx *Context) RingAt(i int) *ring.SubRing { return ctx.rings[i] }

// CtxtPrimes returns the (contiguous) set of ciphertext primes.
func (ctx *Context) CtxtPrimes() primeset.Set { return ctx.ctxtPrimes }

// SpecialPrimes returns the set of special primes reserved for key
// switching.
func (ctx *Context) SpecialPrimes() primeset.Set { return ctx.specialPrimes }

// SmallPrimes returns the set of small primes.
func (ctx *Context) SmallPrimes() primeset.Set { return ctx.smallPrimes }

// AllPrimes returns the full chain.
func (ctx *Context) AllPrimes() primeset.Set {
	return primeset.Interval(0, len(ctx.rings))
}

// NumDigits returns the number of digits of the key-switching decomposition.
func (ctx *Context) NumDigits() int { return len(ctx.digits) }

// Digit returns the prime set of the i-th digit.
func (ctx *Context) Digit(i int) primeset.Set { return ctx.digits[i] }

// PtxtModulus returns the BGV plaintext modulus, or zero for the approximate
// scheme.
func (ctx *Context) PtxtModulus() uint64 { return ctx.ptxtModulus }

// DefaultScale returns the default encoding scale of the approximate scheme.
func (ctx *Context) DefaultScale() *big.Float {
	return new(big.Float).SetPrec(ctx.prec).Set(ctx.scale)
}

// HWt returns the Hamming weight of the ternary secret.
func (ctx *Context) HWt() int { return ctx.hwt }

// Sigma returns the standard deviation of the encryption noise.
func (ctx *Context) Sigma() float64 { return ctx.sigma }

// Prec returns the bit precision of the big.Float noise bookkeeping.
func (ctx *Context) Prec() uint { return ctx.prec }

// NewFloat returns a big.Float with the context precision, initialized to x
// (see bignum.NewFloat for the accepted types).
func (ctx *Context) NewFloat(x interface{}) *big.Float {
	return bignum.NewFloat(x, ctx.prec)
}

// LogOfProduct returns log2 of the product of the primes in set.
func (ctx *Context) LogOfProduct(set primeset.Set) (logQ float64) {
	for _, i := range set.Elements() {
		logQ += ctx.logPrime[i]
	}
	return
}

// ProductOfPrimes returns the product of the primes in set.
func (ctx *Context) ProductOfPrimes(set primeset.Set) *big.Int {
	q := big.NewInt(1)
	for _, i := range set.Elements() {
		q.Mul(q, new(big.Int).SetUint64(ctx.rings[i].Modulus))
	}
	return q
}

// GaloisIndex returns the cached NTT-domain index permutation of the
// automorphism X -> X^galEl, for galEl odd mod 2N.
func (ctx *Context) GaloisIndex(galEl uint64) ([]uint64, error) {

	galEl &= uint64(2*ctx.n - 1)

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if index, ok := ctx.galois[galEl]; ok {
		return index, nil
	}

	index, err := ring.AutomorphismNTTIndex(galEl, ctx.n)
	if err != nil {
		return nil, err
	}

	ctx.galois[galEl] = index
	return index, nil
}

// NoiseBoundForUniform returns a high-probability bound on the canonical
// embedding norm of a degree-n polynomial with coefficients uniform in
// [-mag, mag]: NoiseScale * mag * sqrt(n/12).
func (ctx *Context) NoiseBoundForUniform(mag *big.Float, n int) *big.Float {
	b := ctx.NewFloat(float64(n) / 12.0)
	b.Sqrt(b)
	b.Mul(b, mag)
	return b.Mul(b, ctx.NewFloat(NoiseScale))
}

// NoiseBoundForMod returns a bound for coefficients uniform modulo the given
// modulus, i.e. in [-modulus/2, modulus/2].
func (ctx *Context) NoiseBoundForMod(modulus uint64, n int) *big.Float {
	half := ctx.NewFloat(modulus)
	half.Quo(half, ctx.NewFloat(2))
	return ctx.NoiseBoundForUniform(half, n)
}

// NoiseBoundForModBig is NoiseBoundForMod for an arbitrary-precision modulus.
func (ctx *Context) NoiseBoundForModBig(modulus *big.Int, n int) *big.Float {
	half := ctx.NewFloat(modulus)
	half.Quo(half, ctx.NewFloat(2))
	return ctx.NoiseBoundForUniform(half, n)
}

// NoiseBoundForGaussian returns a high-probability bound on the canonical
// embedding norm of a polynomial with Gaussian coefficients of the given
// standard deviation: NoiseScale * sigma * sqrt(n).
func (ctx *Context) NoiseBoundForGaussian(sigma float64, n int) *big.Float {
	b := ctx.NewFloat(float64(n))
	b.Sqrt(b)
	b.Mul(b, ctx.NewFloat(sigma))
	return b.Mul(b, ctx.NewFloat(NoiseScale))
}

// NoiseBoundForHWt returns a high-probability bound on the canonical
// embedding norm of a ternary polynomial with hwt nonzero coefficients:
// NoiseScale * sqrt(hwt).
func (ctx *Context) NoiseBoundForHWt(hwt int) *big.Float {
	b := ctx.NewFloat(float64(hwt))
	b.Sqrt(b)
	return b.Mul(b, ctx.NewFloat(NoiseScale))
}

// GetSet4Size returns a prime set drawn from the candidates below whose
// log2 product lies in the interval [lo, hi] when possible. With
// reverse=false (exact scheme) the largest such set is returned, with
// reverse=true (approximate scheme) the smallest. When no candidate hits the
// interval, the closest one is returned. Candidates are the prefixes of the
// ciphertext primes restricted to fromSet, each optionally extended by a
// prefix of the small primes, so the returned set keeps the ciphertext
// primes contiguous from the bottom of the chain.
func (ctx *Context) GetSet4Size(lo, hi float64, fromSet primeset.Set, reverse bool) primeset.Set {

	ctxt := ctx.ctxtPrimes.Intersect(fromSet).Elements()
	small := ctx.smallPrimes.Intersect(fromSet).Elements()

	type cand struct {
		set  primeset.Set
		size float64
	}

	var cands []cand
	base := primeset.Set{}
	baseSize := 0.0
	for i := 0; i <= len(small); i++ {
		if i > 0 {
			base = base.Insert(small[i-1])
			baseSize += ctx.logPrime[small[i-1]]
		}
		set, size := base, baseSize
		for j := 1; j <= len(ctxt); j++ {
			set = set.Insert(ctxt[j-1])
			size += ctx.logPrime[ctxt[j-1]]
			cands = append(cands, cand{set, size})
		}
	}

	if len(cands) == 0 {
		return primeset.Set{}
	}

	best := -1
	for i, c := range cands {
		if c.size < lo || c.size > hi {
			continue
		}
		if best < 0 ||
			(!reverse && c.size > cands[best].size) ||
			(reverse && c.size < cands[best].size) {
			best = i
		}
	}

	if best < 0 {
		// No candidate in range: take the one closest to it.
		dist := func(size float64) float64 {
			if size < lo {
				return lo - size
			}
			return size - hi
		}
		best = 0
		for i := 1; i < len(cands); i++ {
			if dist(cands[i].size) < dist(cands[best].size) {
				best = i
			}
		}
	}

	return cands[best].set
}
