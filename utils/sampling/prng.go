// Package sampling implements secure sampling of random bytes.
package sampling

import (
	"crypto/rand"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// PRNG is an interface for secure (keyed) deterministic generation of random
// bytes.
type PRNG interface {
	Read(sum []byte) (n int, err error)
}

// KeyedPRNG is a structure storing the parameters used to securely and
// deterministically generate shared sequences of random bytes among different
// parties using the hash function blake2b. Backward sequence security (given
// the digest i, compute the digest i-1) is ensured by default, however forward
// sequence security (given the digest i, compute the digest i+1) is only
// ensured if the KeyedPRNG is keyed.
type KeyedPRNG struct {
	key []byte
	xof blake2b.XOF
}

// NewKeyedPRNG creates a new instance of KeyedPRNG. Accepts an optional key,
// else set key=nil which is treated as key=[]byte{}. WARNING: A PRNG INITIALISED
// WITH key=nil IS INSECURE!
func NewKeyedPRNG(key []byte) (*KeyedPRNG, error) {
	var err error
	prng := new(KeyedPRNG)
	prng.key = key
	prng.xof, err = blake2b.NewXOF(blake2b.OutputLengthUnknown, key)
	return prng, err
}

// NewPRNG creates KeyedPRNG keyed from rand.Read for instances were no key
// should be provided by the user.
func NewPRNG() (*KeyedPRNG, error) {
	var err error
	prng := new(KeyedPRNG)
	key := make([]byte, 64)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	prng.key = key
	prng.xof, err = blake2b.NewXOF(blake2b.OutputLengthUnknown, key)
	return prng, err
}

// Key returns a copy of the key used to seed the PRNG.
// This value can be used to create a new KeyedPRNG that
// will produce the same stream of bytes.
func (prng *KeyedPRNG) Key() (key []byte) {
	key = make([]byte, len(prng.key))
	copy(key, prng.key)
	return
}

// Read reads bytes from the KeyedPRNG on sum.
func (prng *KeyedPRNG) Read(sum []byte) (n int, err error) {
	return prng.xof.Read(sum)
}

// Reset resets the PRNG to its initial state.
func (prng *KeyedPRNG) Reset() {
	prng.xof.Reset()
}

// ThreadSafePRNG is an implementation of PRNG that is thread safe.
type ThreadSafePRNG struct {
	sync.Mutex
	prng *KeyedPRNG
}

// NewThreadSafePRNG creates a new instance of ThreadSafePRNG seeded from
// crypto/rand.
func NewThreadSafePRNG() (*ThreadSafePRNG, error) {
	prng, err := NewPRNG()
	if err != nil {
		return nil, err
	}
	return &ThreadSafePRNG{prng: prng}, nil
}

// Read reads bytes from the ThreadSafePRNG on sum.
func (prng *ThreadSafePRNG) Read(sum []byte) (n int, err error) {
	prng.Lock()
	defer prng.Unlock()
	return prng.prng.Read(sum)
}

// RandUint64 samples a uniform uint64 from prng.
func RandUint64(prng PRNG) uint64 {
	var b [8]byte
	if _, err := prng.Read(b[:]); err != nil {
		panic(err)
	}
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// RandFloat64 samples a uniform float64 in [min, max] from prng.
func RandFloat64(prng PRNG, min, max float64) float64 {
	f := float64(RandUint64(prng)>>11) / (1 << 53)
	return min + f*(max-min)
}
