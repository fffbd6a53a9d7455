package buffer

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Read reads len(c) bytes from r on c.
func Read(r Reader, c []byte) (n int64, err error) {
	nint, err := io.ReadFull(r, c)
	return int64(nint), err
}

// ReadUint8 reads a byte from r on c.
func ReadUint8(r Reader, c *uint8) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadUint8: c is nil")
	}
	var bb [1]byte
	nint, err := io.ReadFull(r, bb[:])
	*c = bb[0]
	return int64(nint), err
}

// ReadUint32 reads a uint32 from r on c.
func ReadUint32(r Reader, c *uint32) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadUint32: c is nil")
	}
	var bb [4]byte
	nint, err := io.ReadFull(r, bb[:])
	*c = binary.LittleEndian.Uint32(bb[:])
	return int64(nint), err
}

// ReadUint64 reads a uint64 from r on c.
func ReadUint64(r Reader, c *uint64) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadUint64: c is nil")
	}
	var bb [8]byte
	nint, err := io.ReadFull(r, bb[:])
	*c = binary.LittleEndian.Uint64(bb[:])
	return int64(nint), err
}

// ReadInt reads an int from r on c.
func ReadInt(r Reader, c *int) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadInt: c is nil")
	}
	var u uint64
	if n, err = ReadUint64(r, &u); err != nil {
		return
	}
	*c = int(u)
	return
}

// ReadFloat64 reads a float64 from r on c.
func ReadFloat64(r Reader, c *float64) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadFloat64: c is nil")
	}
	var u uint64
	if n, err = ReadUint64(r, &u); err != nil {
		return
	}
	*c = math.Float64frombits(u)
	return
}

// ReadUint64Slice reads a slice of uint64 from r on c.
func ReadUint64Slice(r Reader, c []uint64) (n int64, err error) {

	var inc int64

	for i := range c {
		if inc, err = ReadUint64(r, &c[i]); err != nil {
			return n + inc, err
		}
		n += inc
	}

	return n, nil
}

// ReadIntSlice reads a slice of int from r on c.
func ReadIntSlice(r Reader, c []int) (n int64, err error) {

	var inc int64
	var u uint64

	for i := range c {
		if inc, err = ReadUint64(r, &u); err != nil {
			return n + inc, err
		}
		c[i] = int(u)
		n += inc
	}

	return n, nil
}
