// Package primeset implements ordered sets of prime-chain indices. A Set
// identifies which primes of a context's chain a double-CRT polynomial or a
// ciphertext currently carries.
package primeset

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/helago/helago/utils/buffer"
)

// Set is an ordered set of non-negative prime-chain indices. The zero value
// is the empty set and is ready to use. Sets are values: all operations
// return new sets and never mutate their receiver.
type Set struct {
	elems []int
}

// New returns the set containing the given indices. Duplicates are removed.
func New(elems ...int) Set {
	s := make([]int, len(elems))
	copy(s, elems)
	sort.Ints(s)
	s = slices.Compact(s)
	for _, e := range s {
		if e < 0 {
			panic("cannot New: negative prime index")
		}
	}
	return Set{elems: s}
}

// Interval returns the set {lo, lo+1, ..., hi-1}.
func Interval(lo, hi int) Set {
	if lo < 0 || hi < lo {
		panic("cannot Interval: invalid bounds")
	}
	s := make([]int, hi-lo)
	for i := range s {
		s[i] = lo + i
	}
	return Set{elems: s}
}

// Card returns the number of elements in the set.
func (s Set) Card() int {
	return len(s.elems)
}

// Empty returns true if the set has no elements.
func (s Set) Empty() bool {
	return len(s.elems) == 0
}

// First returns the smallest element. Panics on the empty set.
func (s Set) First() int {
	if len(s.elems) == 0 {
		panic("cannot First: empty set")
	}
	return s.elems[0]
}

// Last returns the largest element. Panics on the empty set.
func (s Set) Last() int {
	if len(s.elems) == 0 {
		panic("cannot Last: empty set")
	}
	return s.elems[len(s.elems)-1]
}

// Contains returns true if i is an element of the set.
func (s Set) Contains(i int) bool {
	_, ok := slices.BinarySearch(s.elems, i)
	return ok
}

// ContainsSet returns true if every element of other is an element of s.
func (s Set) ContainsSet(other Set) bool {
	i := 0
	for _, e := range other.elems {
		for i < len(s.elems) && s.elems[i] < e {
			i++
		}
		if i == len(s.elems) || s.elems[i] != e {
			return false
		}
	}
	return true
}

// Disjoint returns true if s and other share no element.
func (s Set) Disjoint(other Set) bool {
	i, j := 0, 0
	for i < len(s.elems) && j < len(other.elems) {
		switch {
		case s.elems[i] < other.elems[j]:
			i++
		case s.elems[i] > other.elems[j]:
			j++
		default:
			return false
		}
	}
	return true
}

// Equal returns true if s and other contain exactly the same elements.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.elems, other.elems)
}

// Union returns the set of elements present in s or other.
func (s Set) Union(other Set) Set {
	out := make([]int, 0, len(s.elems)+len(other.elems))
	i, j := 0, 0
	for i < len(s.elems) && j < len(other.elems) {
		switch {
		case s.elems[i] < other.elems[j]:
			out = append(out, s.elems[i])
			i++
		case s.elems[i] > other.elems[j]:
			out = append(out, other.elems[j])
			j++
		default:
			out = append(out, s.elems[i])
			i++
			j++
		}
	}
	out = append(out, s.elems[i:]...)
	out = append(out, other.elems[j:]...)
	return Set{elems: out}
}

// Intersect returns the set of elements present in both s and other.
func (s Set) Intersect(other Set) Set {
	var out []int
	i, j := 0, 0
	for i < len(s.elems) && j < len(other.elems) {
		switch {
		case s.elems[i] < other.elems[j]:
			i++
		case s.elems[i] > other.elems[j]:
			j++
		default:
			out = append(out, s.elems[i])
			i++
			j++
		}
	}
	return Set{elems: out}
}

// Diff returns the set of elements present in s but not in other.
func (s Set) Diff(other Set) Set {
	var out []int
	j := 0
	for _, e := range s.elems {
		for j < len(other.elems) && other.elems[j] < e {
			j++
		}
		if j == len(other.elems) || other.elems[j] != e {
			out = append(out, e)
		}
	}
	return Set{elems: out}
}

// Insert returns the set s ∪ {i}.
func (s Set) Insert(i int) Set {
	return s.Union(New(i))
}

// Remove returns the set s \ {i}.
func (s Set) Remove(i int) Set {
	return s.Diff(New(i))
}

// IsInterval returns true if the elements form a contiguous range
// (the empty set is an interval).
func (s Set) IsInterval() bool {
	if len(s.elems) == 0 {
		return true
	}
	return s.elems[len(s.elems)-1]-s.elems[0]+1 == len(s.elems)
}

// Elements returns the elements of the set in ascending order. The returned
// slice is shared with the set and must not be modified.
func (s Set) Elements() []int {
	return s.elems
}

// String returns a human-readable representation like "[0 1 2 5]".
func (s Set) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range s.elems {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d", e)
	}
	sb.WriteByte(']')
	return sb.String()
}

// BinarySize returns the serialized size of the set in bytes.
func (s Set) BinarySize() int {
	return 8 + 8*len(s.elems)
}

// WriteTo writes the set on w.
func (s Set) WriteTo(w buffer.Writer) (n int64, err error) {

	var inc int64

	if inc, err = buffer.WriteInt(w, len(s.elems)); err != nil {
		return n + inc, fmt.Errorf("cannot WriteTo: %w", err)
	}
	n += inc

	if inc, err = buffer.WriteIntSlice(w, s.elems); err != nil {
		return n + inc, fmt.Errorf("cannot WriteTo: %w", err)
	}
	n += inc

	return n, w.Flush()
}

// ReadFrom reads the set from r.
func (s *Set) ReadFrom(r buffer.Reader) (n int64, err error) {

	var inc int64
	var size int

	if inc, err = buffer.ReadInt(r, &size); err != nil {
		return n + inc, fmt.Errorf("cannot ReadFrom: %w", err)
	}
	n += inc

	if size < 0 {
		return n, fmt.Errorf("cannot ReadFrom: negative set size")
	}

	elems := make([]int, size)
	if inc, err = buffer.ReadIntSlice(r, elems); err != nil {
		return n + inc, fmt.Errorf("cannot ReadFrom: %w", err)
	}
	n += inc

	if !sort.IntsAreSorted(elems) {
		return n, fmt.Errorf("cannot ReadFrom: elements are not sorted")
	}

	s.elems = elems

	return n, nil
}

// MarshalBinary encodes the set on a byte slice.
func (s Set) MarshalBinary() (p []byte, err error) {
	buf := buffer.NewBufferSize(s.BinarySize())
	if _, err = s.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a byte slice generated by MarshalBinary.
func (s *Set) UnmarshalBinary(p []byte) (err error) {
	_, err = s.ReadFrom(buffer.NewBuffer(p))
	return
}

// MarshalJSON encodes the set as a JSON array of integers.
func (s Set) MarshalJSON() ([]byte, error) {
	return []byte(strings.ReplaceAll(s.String(), " ", ",")), nil
}

// UnmarshalJSON decodes a JSON array of integers.
func (s *Set) UnmarshalJSON(p []byte) error {
	str := strings.TrimSpace(string(p))
	if len(str) < 2 || str[0] != '[' || str[len(str)-1] != ']' {
		return fmt.Errorf("cannot UnmarshalJSON: expected an array")
	}
	str = strings.TrimSpace(str[1 : len(str)-1])
	if str == "" {
		s.elems = nil
		return nil
	}
	fields := strings.Split(str, ",")
	elems := make([]int, len(fields))
	for i, f := range fields {
		if _, err := fmt.Sscanf(strings.TrimSpace(f), "%d", &elems[i]); err != nil {
			return fmt.Errorf("cannot UnmarshalJSON: %w", err)
		}
	}
	*s = New(elems...)
	return nil
}
