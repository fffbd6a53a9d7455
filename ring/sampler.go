package ring

import (
	"math/bits"

	"github.com/helago/helago/utils/sampling"
)

// UniformSampler samples uniform values modulo a SubRing prime by rejection
// from a PRNG byte stream. A sampler is not safe for concurrent use; give
// each worker its own.
type UniformSampler struct {
	ring *SubRing
	prng sampling.PRNG
	buf  []byte
	ptr  int
}

// NewUniformSampler creates a UniformSampler for the given SubRing, reading
// from prng.
func NewUniformSampler(prng sampling.PRNG, r *SubRing) *UniformSampler {
	return &UniformSampler{
		ring: r,
		prng: prng,
		buf:  make([]byte, 1024),
		ptr:  1024,
	}
}

// ReadUint64 samples a uniform value in [0, q).
func (s *UniformSampler) ReadUint64() uint64 {

	q := s.ring.Modulus
	mask := uint64(1)<<bits.Len64(q-1) - 1

	for {
		if s.ptr == len(s.buf) {
			if _, err := s.prng.Read(s.buf); err != nil {
				panic(err)
			}
			s.ptr = 0
		}
		c := (uint64(s.buf[s.ptr]) | uint64(s.buf[s.ptr+1])<<8 |
			uint64(s.buf[s.ptr+2])<<16 | uint64(s.buf[s.ptr+3])<<24 |
			uint64(s.buf[s.ptr+4])<<32 | uint64(s.buf[s.ptr+5])<<40 |
			uint64(s.buf[s.ptr+6])<<48 | uint64(s.buf[s.ptr+7])<<56) & mask
		s.ptr += 8
		if c < q {
			return c
		}
	}
}

// Read fills p with uniform values in [0, q). A uniform vector is its own
// NTT image in distribution, so rows filled this way are valid in either
// domain.
func (s *UniformSampler) Read(p []uint64) {
	for i := range p {
		p[i] = s.ReadUint64()
	}
}
