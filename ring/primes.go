package ring

import (
	"fmt"
	"math/big"
)

// IsPrime applies a Baillie-PSW (primality) test on x, which is 100% accurate
// for numbers below 2^64.
func IsPrime(x uint64) bool {
	return new(big.Int).SetUint64(x).ProbablyPrime(0)
}

// NextNTTPrime returns the next prime q' > q such that q' = 1 mod NthRoot.
func NextNTTPrime(q uint64, NthRoot int) (uint64, error) {

	step := uint64(NthRoot)
	q += step - (q-1)%step

	for ; !IsPrime(q); q += step {
		if q < step {
			return 0, fmt.Errorf("cannot NextNTTPrime: overflow while searching above %d", q-step)
		}
	}

	return q, nil
}

// PreviousNTTPrime returns the previous prime q' < q such that
// q' = 1 mod NthRoot.
func PreviousNTTPrime(q uint64, NthRoot int) (uint64, error) {

	step := uint64(NthRoot)
	if r := (q - 1) % step; r == 0 {
		q -= step
	} else {
		q -= r
	}

	for ; !IsPrime(q); q -= step {
		if q < step {
			return 0, fmt.Errorf("cannot PreviousNTTPrime: no prime found below the starting point")
		}
	}

	return q, nil
}

// GenerateNTTPrimes returns n distinct primes of bit-size logQ, congruent to
// 1 mod NthRoot, alternating above and below 2^logQ to keep the chain
// centered on the requested size.
func GenerateNTTPrimes(logQ, NthRoot, n int) ([]uint64, error) {

	if logQ < 4 || logQ > 61 {
		return nil, fmt.Errorf("cannot GenerateNTTPrimes: logQ must be in [4, 61]")
	}

	center := uint64(1) << logQ
	primes := make([]uint64, 0, n)

	up, upOK := center, true
	down, downOK := center, true

	for len(primes) < n && (upOK || downOK) {

		if upOK {
			q, err := NextNTTPrime(up, NthRoot)
			if err != nil || q >= center<<1 {
				upOK = false
			} else {
				primes = append(primes, q)
				up = q
			}
		}

		if len(primes) == n {
			break
		}

		if downOK {
			q, err := PreviousNTTPrime(down, NthRoot)
			if err != nil || q <= center>>1 {
				downOK = false
			} else {
				primes = append(primes, q)
				down = q
			}
		}
	}

	if len(primes) < n {
		return nil, fmt.Errorf("cannot GenerateNTTPrimes: not enough %d-bit primes for NthRoot=%d", logQ, NthRoot)
	}

	return primes, nil
}
