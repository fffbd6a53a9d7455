package he

import (
	"fmt"

	"github.com/helago/helago/core/dcrt"
)

// IncrementalProduct replaces v[i] by the product of v[0..i] for every i,
// multiplying along a balanced binary split so that the multiplicative depth
// stays logarithmic.
func IncrementalProduct(v []*Ciphertext) error {

	n := len(v)
	if n <= 1 {
		return nil
	}

	split := 1
	for split*2 < n {
		split *= 2
	}

	if err := IncrementalProduct(v[:split]); err != nil {
		return err
	}
	if err := IncrementalProduct(v[split:]); err != nil {
		return err
	}

	for i := split; i < n; i++ {
		if err := v[i].MultiplyBy(v[split-1]); err != nil {
			return err
		}
	}
	return nil
}

// TotalProduct returns the product of all the ciphertexts, multiplying along
// a balanced binary tree and pairing multiplications so that two of them can
// share one relinearization.
func TotalProduct(v []*Ciphertext) (*Ciphertext, error) {

	switch n := len(v); n {
	case 0:
		return nil, fmt.Errorf("cannot TotalProduct: no ciphertexts")
	case 1:
		return v[0].CopyNew(), nil
	case 2:
		out := v[0].CopyNew()
		return out, out.MultiplyBy(v[1])
	case 3:
		out := v[0].CopyNew()
		return out, out.MultiplyBy2(v[1], v[2])
	default:
		left, err := TotalProduct(v[:n/2])
		if err != nil {
			return nil, err
		}
		right, err := TotalProduct(v[n/2:])
		if err != nil {
			return nil, err
		}
		return left, left.MultiplyBy(right)
	}
}

// InnerProduct returns the sum of v1[i]*v2[i], keeping the products in
// non-canonical form and relinearizing only the final sum.
func InnerProduct(v1, v2 []*Ciphertext) (*Ciphertext, error) {

	if len(v1) != len(v2) || len(v1) == 0 {
		return nil, fmt.Errorf("cannot InnerProduct: vector lengths %d and %d", len(v1), len(v2))
	}

	out := v1[0].CopyNew()
	if err := out.MulLowLevel(v2[0]); err != nil {
		return nil, err
	}

	for i := 1; i < len(v1); i++ {
		term := v1[i].CopyNew()
		if err := term.MulLowLevel(v2[i]); err != nil {
			return nil, err
		}
		if err := out.Add(term); err != nil {
			return nil, err
		}
	}

	return out, out.ReLinearize()
}

// InnerProductConstants returns the sum of v[i] multiplied by the constant
// polynomials. No relinearization is needed since constants do not change
// the handles.
func InnerProductConstants(v []*Ciphertext, constants []*dcrt.Poly) (*Ciphertext, error) {

	if len(v) != len(constants) || len(v) == 0 {
		return nil, fmt.Errorf("cannot InnerProductConstants: vector lengths %d and %d", len(v), len(constants))
	}

	out := v[0].CopyNew()
	if err := out.MultByConstantPoly(constants[0], nil); err != nil {
		return nil, err
	}

	for i := 1; i < len(v); i++ {
		term := v[i].CopyNew()
		if err := term.MultByConstantPoly(constants[i], nil); err != nil {
			return nil, err
		}
		if err := out.Add(term); err != nil {
			return nil, err
		}
	}
	return out, nil
}
