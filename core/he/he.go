// Package he implements the ciphertext algebra on top of the double-CRT
// layer: ciphertexts as collections of parts tagged by secret-key handles,
// key generation and RLWE encryption, homomorphic addition, multiplication
// with relinearization, Galois automorphisms, and the modulus-switching
// machinery that keeps the tracked noise bounds valid across the exact (BGV)
// and approximate (CKKS) schemes.
package he

import (
	"fmt"
	"log"
	"math"
	"math/big"

	"github.com/helago/helago/ring"
)

// Warning receives diagnostics that do not abort the computation, such as a
// noise estimate exceeding its bound. Replace it to route warnings elsewhere.
var Warning = func(msg string) { log.Printf("helago: warning: %s", msg) }

func warn(format string, args ...interface{}) {
	Warning(fmt.Sprintf(format, args...))
}

// log2Float returns log2(x), or -Inf when x <= 0.
func log2Float(x *big.Float) float64 {
	if x == nil || x.Sign() <= 0 {
		return math.Inf(-1)
	}
	mant := new(big.Float)
	exp := x.MantExp(mant)
	m, _ := mant.Float64()
	return math.Log2(m) + float64(exp)
}

func gcdUint(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// smallestPrimeFactor returns the smallest prime factor of n, for n > 1.
func smallestPrimeFactor(n uint64) uint64 {
	if n%2 == 0 {
		return 2
	}
	for d := uint64(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return d
		}
	}
	return n
}

// canonicalNorm returns the canonical embedding norm of the balanced
// coefficient vector as a big.Float. Coefficients are rescaled into float64
// range before the embedding is evaluated, and the scale is restored on the
// result.
func canonicalNorm(coeffs []*big.Int, prec uint) *big.Float {

	maxBits := 0
	for _, c := range coeffs {
		if c != nil && c.BitLen() > maxBits {
			maxBits = c.BitLen()
		}
	}

	shift := 0
	if maxBits > 500 {
		shift = maxBits - 500
	}

	f := make([]float64, len(coeffs))
	for j, c := range coeffs {
		if c == nil || c.Sign() == 0 {
			continue
		}
		bf := new(big.Float).SetPrec(64).SetInt(c)
		f[j], _ = new(big.Float).SetMantExp(bf, -shift).Float64()
	}

	norm := ring.EmbeddingNorm(f)
	return new(big.Float).SetPrec(prec).SetMantExp(big.NewFloat(norm), shift)
}
