package he

import (
	"fmt"

	"github.com/helago/helago/utils/buffer"
)

// SKHandle identifies the key element against which a ciphertext part is
// decrypted: s_t(X^e)^d, with t = KeyID, e = PowerOfX and d = PowerOfS. The
// handle (0, 1, 0) stands for the constant one, so that a part with that
// handle contributes its value directly.
type SKHandle struct {
	PowerOfS int
	PowerOfX uint64
	KeyID    int
}

// OneHandle returns the handle of the constant one.
func OneHandle() SKHandle { return SKHandle{PowerOfS: 0, PowerOfX: 1, KeyID: 0} }

// BaseHandle returns the handle of the base key with the given id.
func BaseHandle(keyID int) SKHandle { return SKHandle{PowerOfS: 1, PowerOfX: 1, KeyID: keyID} }

// IsOne reports whether h points to the constant one.
func (h SKHandle) IsOne() bool { return h.PowerOfS == 0 }

// IsBase reports whether h points to the base key with the given id.
func (h SKHandle) IsBase(keyID int) bool {
	return h.PowerOfS == 1 && h.PowerOfX == 1 && h.KeyID == keyID
}

// Mul returns the handle of the product of two parts. The product is defined
// when either handle is one, or when both point to the same key with the same
// power of X, in which case the powers of S add up.
func (h SKHandle) Mul(other SKHandle) (SKHandle, error) {
	if h.IsOne() {
		return other, nil
	}
	if other.IsOne() {
		return h, nil
	}
	if h.KeyID != other.KeyID {
		return SKHandle{}, fmt.Errorf("cannot Mul: handles point to different keys (%d and %d)", h.KeyID, other.KeyID)
	}
	if h.PowerOfX != other.PowerOfX {
		return SKHandle{}, fmt.Errorf("cannot Mul: handles carry different powers of X (%d and %d)", h.PowerOfX, other.PowerOfX)
	}
	return SKHandle{PowerOfS: h.PowerOfS + other.PowerOfS, PowerOfX: h.PowerOfX, KeyID: h.KeyID}, nil
}

func (h SKHandle) String() string {
	return fmt.Sprintf("(%d,%d,%d)", h.PowerOfS, h.PowerOfX, h.KeyID)
}

// BinarySize returns the serialized size of h in bytes.
func (h SKHandle) BinarySize() int { return 24 }

// WriteTo writes h on w.
func (h SKHandle) WriteTo(w buffer.Writer) (n int64, err error) {
	var inc int64
	if inc, err = buffer.WriteInt(w, h.PowerOfS); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.WriteUint64(w, h.PowerOfX); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.WriteInt(w, h.KeyID); err != nil {
		return n + inc, err
	}
	return n + inc, nil
}

// ReadFrom reads h from r.
func (h *SKHandle) ReadFrom(r buffer.Reader) (n int64, err error) {
	var inc int64
	if inc, err = buffer.ReadInt(r, &h.PowerOfS); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.ReadUint64(r, &h.PowerOfX); err != nil {
		return n + inc, err
	}
	n += inc
	if inc, err = buffer.ReadInt(r, &h.KeyID); err != nil {
		return n + inc, err
	}
	return n + inc, nil
}
