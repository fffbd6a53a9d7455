package ring

import (
	"fmt"
	"math/bits"

	"github.com/helago/helago/utils"
)

// SubRing is the ring Z_q[X]/(X^N+1) for a single NTT-friendly prime q. It
// stores the precomputed twiddle factors of the negacyclic NTT in the
// bit-reversed order consumed by the butterfly loops.
type SubRing struct {
	// N is the ring degree (a power of two).
	N int

	// Modulus is the prime q, with q = 1 mod 2N.
	Modulus uint64

	// NInv is N^-1 mod q.
	NInv uint64

	// Psi is the primitive 2N-th root of unity mod q used to generate the
	// twiddle factors.
	Psi uint64

	// RootsForward[i] = Psi^bitrev(i) mod q.
	RootsForward []uint64

	// RootsBackward[i] = Psi^-bitrev(i) mod q.
	RootsBackward []uint64
}

// NewSubRing instantiates a SubRing of degree N (power of two) modulo the
// prime q. Returns an error if q does not support a 2N-th root of unity.
func NewSubRing(N int, q uint64) (*SubRing, error) {

	if N < 2 || N&(N-1) != 0 {
		return nil, fmt.Errorf("cannot NewSubRing: N must be a power of two greater than one")
	}

	if (q-1)%uint64(2*N) != 0 {
		return nil, fmt.Errorf("cannot NewSubRing: q = 1 mod 2N does not hold for q=%d", q)
	}

	psi, err := primitive2NthRoot(N, q)
	if err != nil {
		return nil, fmt.Errorf("cannot NewSubRing: %w", err)
	}

	s := &SubRing{
		N:             N,
		Modulus:       q,
		NInv:          InvMod(uint64(N)%q, q),
		Psi:           psi,
		RootsForward:  make([]uint64, N),
		RootsBackward: make([]uint64, N),
	}

	logN := uint64(bits.Len64(uint64(N)) - 1)
	psiInv := InvMod(psi, q)
	fwd, bwd := uint64(1), uint64(1)
	powF := make([]uint64, N)
	powB := make([]uint64, N)
	for i := 0; i < N; i++ {
		powF[i], powB[i] = fwd, bwd
		fwd = MulMod(fwd, psi, q)
		bwd = MulMod(bwd, psiInv, q)
	}
	for i := 0; i < N; i++ {
		j := utils.BitReverse64(uint64(i), logN)
		s.RootsForward[i] = powF[j]
		s.RootsBackward[i] = powB[j]
	}

	return s, nil
}

// primitive2NthRoot returns a primitive 2N-th root of unity mod the prime q.
// Since 2N is a power of two, candidates c = g^((q-1)/2N) are primitive
// exactly when c^N = -1 mod q. The search over g is deterministic so that a
// given (N, q) pair always yields the same tables.
func primitive2NthRoot(N int, q uint64) (uint64, error) {
	e := (q - 1) / uint64(2*N)
	for g := uint64(2); g < q; g++ {
		c := PowMod(g, e, q)
		if PowMod(c, uint64(N), q) == q-1 {
			return c, nil
		}
	}
	return 0, fmt.Errorf("no primitive 2N-th root of unity mod %d", q)
}

// NTT evaluates p at the odd powers of Psi in place (coefficient form to
// evaluation form).
func (s *SubRing) NTT(p []uint64) {

	q := s.Modulus
	t := s.N

	for m := 1; m < s.N; m <<= 1 {
		t >>= 1
		for i := 0; i < m; i++ {
			j1 := 2 * i * t
			j2 := j1 + t
			w := s.RootsForward[m+i]
			for j := j1; j < j2; j++ {
				u := p[j]
				v := MulMod(p[j+t], w, q)
				p[j] = AddMod(u, v, q)
				p[j+t] = SubMod(u, v, q)
			}
		}
	}
}

// INTT interpolates p back to coefficient form in place, including the final
// division by N.
func (s *SubRing) INTT(p []uint64) {

	q := s.Modulus
	t := 1

	for m := s.N; m > 1; m >>= 1 {
		j1 := 0
		h := m >> 1
		for i := 0; i < h; i++ {
			j2 := j1 + t
			w := s.RootsBackward[h+i]
			for j := j1; j < j2; j++ {
				u := p[j]
				v := p[j+t]
				p[j] = AddMod(u, v, q)
				p[j+t] = MulMod(SubMod(u, v, q), w, q)
			}
			j1 += 2 * t
		}
		t <<= 1
	}

	for j := range p {
		p[j] = MulMod(p[j], s.NInv, q)
	}
}

// Add evaluates p3 = p1 + p2 coefficient-wise.
func (s *SubRing) Add(p1, p2, p3 []uint64) {
	q := s.Modulus
	for i := range p3 {
		p3[i] = AddMod(p1[i], p2[i], q)
	}
}

// Sub evaluates p3 = p1 - p2 coefficient-wise.
func (s *SubRing) Sub(p1, p2, p3 []uint64) {
	q := s.Modulus
	for i := range p3 {
		p3[i] = SubMod(p1[i], p2[i], q)
	}
}

// Neg evaluates p2 = -p1 coefficient-wise.
func (s *SubRing) Neg(p1, p2 []uint64) {
	q := s.Modulus
	for i := range p2 {
		p2[i] = NegMod(p1[i], q)
	}
}

// MulCoeffs evaluates p3 = p1 * p2 coefficient-wise. On NTT-domain rows this
// is the ring product.
func (s *SubRing) MulCoeffs(p1, p2, p3 []uint64) {
	q := s.Modulus
	for i := range p3 {
		p3[i] = MulMod(p1[i], p2[i], q)
	}
}

// MulScalar evaluates p2 = p1 * scalar coefficient-wise, for scalar < q.
func (s *SubRing) MulScalar(p1 []uint64, scalar uint64, p2 []uint64) {
	q := s.Modulus
	for i := range p2 {
		p2[i] = MulMod(p1[i], scalar, q)
	}
}

// AddScalar evaluates p2 = p1 + scalar coefficient-wise, for scalar < q.
func (s *SubRing) AddScalar(p1 []uint64, scalar uint64, p2 []uint64) {
	q := s.Modulus
	for i := range p2 {
		p2[i] = AddMod(p1[i], scalar, q)
	}
}
