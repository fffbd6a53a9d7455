package ring

import (
	"math"
	"math/bits"
	"math/cmplx"

	"github.com/helago/helago/utils"
)

// EmbeddingNorm returns the canonical embedding norm of the polynomial with
// the given real coefficients: the largest modulus of its evaluations at the
// primitive 2N-th roots of unity. The evaluation reuses the NTT butterfly
// structure with complex twiddles, so it costs O(N log N). len(coeffs) must
// be a power of two.
func EmbeddingNorm(coeffs []float64) float64 {

	n := len(coeffs)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return math.Abs(coeffs[0])
	}
	if n&(n-1) != 0 {
		panic("cannot EmbeddingNorm: len(coeffs) must be a power of two")
	}

	logN := uint64(bits.Len64(uint64(n)) - 1)

	// roots[i] = psi^bitrev(i) with psi = exp(i*pi/N).
	roots := make([]complex128, n)
	for i := 0; i < n; i++ {
		k := float64(utils.BitReverse64(uint64(i), logN))
		roots[i] = cmplx.Exp(complex(0, math.Pi*k/float64(n)))
	}

	p := make([]complex128, n)
	for i, c := range coeffs {
		p[i] = complex(c, 0)
	}

	t := n
	for m := 1; m < n; m <<= 1 {
		t >>= 1
		for i := 0; i < m; i++ {
			j1 := 2 * i * t
			j2 := j1 + t
			w := roots[m+i]
			for j := j1; j < j2; j++ {
				u := p[j]
				v := p[j+t] * w
				p[j] = u + v
				p[j+t] = u - v
			}
		}
	}

	var norm float64
	for _, z := range p {
		if a := cmplx.Abs(z); a > norm {
			norm = a
		}
	}
	return norm
}
