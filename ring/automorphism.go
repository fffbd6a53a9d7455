package ring

import (
	"fmt"
	"math/bits"

	"github.com/helago/helago/utils"
)

// AutomorphismNTTIndex computes the index permutation that realizes the
// Galois automorphism X -> X^galEl on NTT-domain rows of degree N, for galEl
// odd mod 2N. Slot i of the NTT output holds the evaluation at the root of
// exponent 2*bitrev(i)+1; the automorphism permutes those exponents, so on
// evaluation vectors it is a pure reindexing shared by all primes.
func AutomorphismNTTIndex(galEl uint64, N int) ([]uint64, error) {

	if N < 2 || N&(N-1) != 0 {
		return nil, fmt.Errorf("cannot AutomorphismNTTIndex: N must be a power of two greater than one")
	}

	if galEl&1 == 0 {
		return nil, fmt.Errorf("cannot AutomorphismNTTIndex: galEl must be odd")
	}

	logN := uint64(bits.Len64(uint64(N)) - 1)
	mask := uint64(2*N - 1)

	index := make([]uint64, N)
	for i := uint64(0); i < uint64(N); i++ {
		tmp1 := 2*utils.BitReverse64(i, logN) + 1
		tmp2 := ((galEl * tmp1) & mask - 1) >> 1
		index[i] = utils.BitReverse64(tmp2, logN)
	}

	return index, nil
}

// AutomorphismNTT evaluates p2 = pi_{galEl}(p1) on NTT-domain rows, with
// index precomputed by AutomorphismNTTIndex. p1 and p2 must not overlap.
func AutomorphismNTT(p1 []uint64, index []uint64, p2 []uint64) {
	for i := range p2 {
		p2[i] = p1[index[i]]
	}
}
