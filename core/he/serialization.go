package he

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/zeebo/blake3"

	"github.com/helago/helago/core/dcrt"
	"github.com/helago/helago/primeset"
	"github.com/helago/helago/utils/buffer"
)

// Serialized ciphertexts are framed by eye-catchers and carry a blake3
// digest of the payload, so that truncated or corrupted streams are detected
// before an invalid ciphertext is handed to the caller.
var (
	ctxtEyeCatcherBegin = [8]byte{'h', 'g', 'o', 'C', 'T', 'X', 'T', '['}
	ctxtEyeCatcherEnd   = [8]byte{'h', 'g', 'o', 'C', 'T', 'X', 'T', ']'}
)

// writeBigFloat writes x as a float64 mantissa and an exponent. The tracked
// estimates do not need more precision than that to survive a round trip.
func writeBigFloat(w buffer.Writer, x *big.Float) (n int64, err error) {

	mant := new(big.Float)
	exp := x.MantExp(mant)
	m, _ := mant.Float64()

	var inc int64
	if inc, err = buffer.WriteFloat64(w, m); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.WriteInt(w, exp); err != nil {
		return n + inc, err
	}
	return n + inc, nil
}

func readBigFloat(r buffer.Reader, prec uint, x **big.Float) (n int64, err error) {

	var m float64
	var exp int

	var inc int64
	if inc, err = buffer.ReadFloat64(r, &m); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.ReadInt(r, &exp); err != nil {
		return n + inc, err
	}
	n += inc

	*x = new(big.Float).SetPrec(prec).SetMantExp(big.NewFloat(m), exp)
	return n, nil
}

// payloadSize returns the size of the framed payload in bytes.
func (c *Ciphertext) payloadSize() int {
	size := 8 + 8 // ptxtSpace, intFactor
	size += 3 * 16 // ptxtMag, ratFactor, noiseBound
	size += c.PrimeSet.BinarySize()
	size += 8 // number of parts
	for i := range c.Parts {
		size += c.Parts[i].BinarySize()
	}
	return size
}

// BinarySize returns the serialized size of c in bytes.
func (c *Ciphertext) BinarySize() int {
	return 8 + 8 + c.payloadSize() + 32 + 8
}

// writePayload writes the framed fields of c on w.
func (c *Ciphertext) writePayload(w buffer.Writer) (n int64, err error) {

	var inc int64

	if inc, err = buffer.WriteUint64(w, c.PtxtSpace); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.WriteUint64(w, c.IntFactor); err != nil {
		return n + inc, err
	}
	n += inc

	if inc, err = writeBigFloat(w, c.PtxtMag); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = writeBigFloat(w, c.RatFactor); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = writeBigFloat(w, c.NoiseBound); err != nil {
		return n + inc, err
	}
	n += inc

	if inc, err = c.PrimeSet.WriteTo(w); err != nil {
		return n + inc, err
	}
	n += inc

	if inc, err = buffer.WriteUint64(w, uint64(len(c.Parts))); err != nil {
		return n + inc, err
	}
	n += inc

	for i := range c.Parts {
		if inc, err = c.Parts[i].WriteTo(w); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// WriteTo writes c on w, framed by eye-catchers and followed by a blake3
// digest of the payload.
func (c *Ciphertext) WriteTo(w buffer.Writer) (n int64, err error) {

	payload := buffer.NewBufferSize(c.payloadSize())
	if _, err = c.writePayload(payload); err != nil {
		return 0, fmt.Errorf("cannot WriteTo: %w", err)
	}
	digest := blake3.Sum256(payload.Bytes())

	var inc int64
	if inc, err = buffer.Write(w, ctxtEyeCatcherBegin[:]); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.WriteUint64(w, uint64(len(payload.Bytes()))); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.Write(w, payload.Bytes()); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.Write(w, digest[:]); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.Write(w, ctxtEyeCatcherEnd[:]); err != nil {
		return n + inc, err
	}
	n += inc

	return n, w.Flush()
}

// readPayload reads the framed fields of c from r.
func (c *Ciphertext) readPayload(r buffer.Reader) (n int64, err error) {

	var inc int64

	if inc, err = buffer.ReadUint64(r, &c.PtxtSpace); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.ReadUint64(r, &c.IntFactor); err != nil {
		return n + inc, err
	}
	n += inc

	prec := c.ctx.Prec()
	if inc, err = readBigFloat(r, prec, &c.PtxtMag); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = readBigFloat(r, prec, &c.RatFactor); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = readBigFloat(r, prec, &c.NoiseBound); err != nil {
		return n + inc, err
	}
	n += inc

	var set primeset.Set
	if inc, err = set.ReadFrom(r); err != nil {
		return n + inc, err
	}
	n += inc
	c.PrimeSet = set

	var numParts uint64
	if inc, err = buffer.ReadUint64(r, &numParts); err != nil {
		return n + inc, err
	}
	n += inc

	c.Parts = make([]Part, numParts)
	for i := range c.Parts {
		c.Parts[i].Poly = dcrt.NewPoly(c.ctx, primeset.Set{})
		if inc, err = c.Parts[i].ReadFrom(r); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// ReadFrom reads c from r, verifying the framing and the payload digest. The
// receiver must have been created with NewCiphertext so that it carries the
// target context and key.
func (c *Ciphertext) ReadFrom(r buffer.Reader) (n int64, err error) {

	if c.ctx == nil || c.pk == nil {
		return 0, fmt.Errorf("cannot ReadFrom: receiver has no context, use NewCiphertext")
	}

	var inc int64
	head := make([]byte, 8)

	if inc, err = buffer.Read(r, head); err != nil {
		return n + inc, err
	}
	n += inc
	if !bytes.Equal(head, ctxtEyeCatcherBegin[:]) {
		return n, fmt.Errorf("cannot ReadFrom: begin eye-catcher not found")
	}

	var size uint64
	if inc, err = buffer.ReadUint64(r, &size); err != nil {
		return n + inc, err
	}
	n += inc

	payload := make([]byte, size)
	if inc, err = buffer.Read(r, payload); err != nil {
		return n + inc, err
	}
	n += inc

	digest := make([]byte, 32)
	if inc, err = buffer.Read(r, digest); err != nil {
		return n + inc, err
	}
	n += inc
	if sum := blake3.Sum256(payload); !bytes.Equal(digest, sum[:]) {
		return n, fmt.Errorf("cannot ReadFrom: payload digest mismatch")
	}

	tail := make([]byte, 8)
	if inc, err = buffer.Read(r, tail); err != nil {
		return n + inc, err
	}
	n += inc
	if !bytes.Equal(tail, ctxtEyeCatcherEnd[:]) {
		return n, fmt.Errorf("cannot ReadFrom: end eye-catcher not found")
	}

	if _, err = c.readPayload(buffer.NewBuffer(payload)); err != nil {
		return n, fmt.Errorf("cannot ReadFrom: %w", err)
	}
	return n, nil
}

// MarshalBinary encodes c on a byte slice.
func (c *Ciphertext) MarshalBinary() ([]byte, error) {
	buf := buffer.NewBufferSize(c.BinarySize())
	if _, err := c.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a byte slice generated by MarshalBinary on c,
// which must carry the target context and key.
func (c *Ciphertext) UnmarshalBinary(b []byte) error {
	_, err := c.ReadFrom(buffer.NewBuffer(b))
	return err
}

type ciphertextJSON struct {
	PtxtSpace  uint64        `json:"ptxtSpace"`
	IntFactor  uint64        `json:"intFactor"`
	PtxtMag    string        `json:"ptxtMag"`
	RatFactor  string        `json:"ratFactor"`
	NoiseBound string        `json:"noiseBound"`
	PrimeSet   primeset.Set  `json:"primeSet"`
	Parts      []partJSON    `json:"parts"`
}

type partJSON struct {
	Handle SKHandle `json:"handle"`
	Poly   []byte   `json:"poly"`
}

// MarshalJSON encodes c in a textual format; the polynomials stay binary,
// base64-encoded.
func (c *Ciphertext) MarshalJSON() ([]byte, error) {

	out := ciphertextJSON{
		PtxtSpace:  c.PtxtSpace,
		IntFactor:  c.IntFactor,
		PtxtMag:    c.PtxtMag.Text('p', -1),
		RatFactor:  c.RatFactor.Text('p', -1),
		NoiseBound: c.NoiseBound.Text('p', -1),
		PrimeSet:   c.PrimeSet,
		Parts:      make([]partJSON, len(c.Parts)),
	}

	for i := range c.Parts {
		b, err := c.Parts[i].Poly.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("cannot MarshalJSON: %w", err)
		}
		out.Parts[i] = partJSON{Handle: c.Parts[i].Handle, Poly: b}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes data generated by MarshalJSON on c, which must carry
// the target context and key.
func (c *Ciphertext) UnmarshalJSON(data []byte) error {

	if c.ctx == nil || c.pk == nil {
		return fmt.Errorf("cannot UnmarshalJSON: receiver has no context, use NewCiphertext")
	}

	var in ciphertextJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("cannot UnmarshalJSON: %w", err)
	}

	prec := c.ctx.Prec()
	parse := func(s string) (*big.Float, error) {
		x, _, err := new(big.Float).SetPrec(prec).Parse(s, 0)
		return x, err
	}

	var err error
	if c.PtxtMag, err = parse(in.PtxtMag); err != nil {
		return fmt.Errorf("cannot UnmarshalJSON: %w", err)
	}
	if c.RatFactor, err = parse(in.RatFactor); err != nil {
		return fmt.Errorf("cannot UnmarshalJSON: %w", err)
	}
	if c.NoiseBound, err = parse(in.NoiseBound); err != nil {
		return fmt.Errorf("cannot UnmarshalJSON: %w", err)
	}

	c.PtxtSpace = in.PtxtSpace
	c.IntFactor = in.IntFactor
	c.PrimeSet = in.PrimeSet

	c.Parts = make([]Part, len(in.Parts))
	for i := range in.Parts {
		c.Parts[i].Handle = in.Parts[i].Handle
		c.Parts[i].Poly = dcrt.NewPoly(c.ctx, primeset.Set{})
		if err := c.Parts[i].Poly.UnmarshalBinary(in.Parts[i].Poly); err != nil {
			return fmt.Errorf("cannot UnmarshalJSON: %w", err)
		}
	}
	return nil
}
