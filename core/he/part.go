package he

import (
	"github.com/helago/helago/core/dcrt"
	"github.com/helago/helago/utils/buffer"
)

// Part is one element of a ciphertext: a double-CRT polynomial together with
// the handle of the key element it multiplies upon decryption.
type Part struct {
	Poly   *dcrt.Poly
	Handle SKHandle
}

// CopyNew returns a deep copy of p.
func (p Part) CopyNew() Part {
	return Part{Poly: p.Poly.CopyNew(), Handle: p.Handle}
}

// Equal reports whether p and other carry the same handle and identical
// polynomials.
func (p Part) Equal(other Part) bool {
	return p.Handle == other.Handle && p.Poly.Equal(other.Poly)
}

// BinarySize returns the serialized size of p in bytes.
func (p Part) BinarySize() int {
	return p.Handle.BinarySize() + p.Poly.BinarySize()
}

// WriteTo writes p on w.
func (p Part) WriteTo(w buffer.Writer) (n int64, err error) {
	var inc int64
	if inc, err = p.Handle.WriteTo(w); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = p.Poly.WriteTo(w); err != nil {
		return n + inc, err
	}
	return n + inc, nil
}

// ReadFrom reads p from r. The polynomial of the receiver must already point
// to the target context.
func (p *Part) ReadFrom(r buffer.Reader) (n int64, err error) {
	var inc int64
	if inc, err = p.Handle.ReadFrom(r); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = p.Poly.ReadFrom(r); err != nil {
		return n + inc, err
	}
	return n + inc, nil
}
