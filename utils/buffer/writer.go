package buffer

import (
	"encoding/binary"
	"math"
)

// Write writes a slice of bytes to w.
func Write(w Writer, c []byte) (n int64, err error) {
	nint, err := w.Write(c)
	return int64(nint), err
}

// WriteUint8 writes a byte to w.
func WriteUint8(w Writer, c uint8) (n int64, err error) {
	nint, err := w.Write([]byte{c})
	return int64(nint), err
}

// WriteUint32 writes a uint32 to w.
func WriteUint32(w Writer, c uint32) (n int64, err error) {
	var bb [4]byte
	binary.LittleEndian.PutUint32(bb[:], c)
	nint, err := w.Write(bb[:])
	return int64(nint), err
}

// WriteUint64 writes a uint64 to w.
func WriteUint64(w Writer, c uint64) (n int64, err error) {
	var bb [8]byte
	binary.LittleEndian.PutUint64(bb[:], c)
	nint, err := w.Write(bb[:])
	return int64(nint), err
}

// WriteInt writes an int to w as a uint64.
func WriteInt(w Writer, c int) (n int64, err error) {
	return WriteUint64(w, uint64(c))
}

// WriteFloat64 writes a float64 to w through its IEEE 754 binary
// representation.
func WriteFloat64(w Writer, c float64) (n int64, err error) {
	return WriteUint64(w, math.Float64bits(c))
}

// WriteUint64Slice writes a slice of uint64 to w.
func WriteUint64Slice(w Writer, c []uint64) (n int64, err error) {

	var bb [8]byte
	var inc int

	for i := range c {
		binary.LittleEndian.PutUint64(bb[:], c[i])
		if inc, err = w.Write(bb[:]); err != nil {
			return n + int64(inc), err
		}
		n += int64(inc)
	}

	return n, nil
}

// WriteIntSlice writes a slice of int to w, each element as a uint64.
func WriteIntSlice(w Writer, c []int) (n int64, err error) {

	var inc int64

	for i := range c {
		if inc, err = WriteUint64(w, uint64(c[i])); err != nil {
			return n + inc, err
		}
		n += inc
	}

	return n, nil
}
