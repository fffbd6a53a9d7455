// Package helago is a double-CRT ciphertext algebra engine for lattice-based
// homomorphic encryption. It implements the shared ciphertext layer of a
// BGV-style exact integer scheme and a CKKS-style approximate scheme: ring
// elements are stored as residue rows modulo a chain of small NTT-friendly
// primes, and every ciphertext carries a conservative upper bound on its
// accumulated noise together with the prime set defining its current modulus.
//
// The main entry points are [github.com/helago/helago/core/dcrt], which
// provides the prime-chain context and the double-CRT polynomial type, and
// [github.com/helago/helago/core/he], which provides the ciphertext type and
// its arithmetic surface (addition, tensor multiplication, modulus switching,
// relinearization, automorphisms and batched products).
package helago

// Version is the current version of helago.
const Version = "0.3.0"
