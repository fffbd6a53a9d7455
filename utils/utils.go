// Package utils implements small generic helpers used across the library.
package utils

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Min returns the minimum of x and y.
func Min[T constraints.Ordered](x, y T) T {
	if x < y {
		return x
	}
	return y
}

// Max returns the maximum of x and y.
func Max[T constraints.Ordered](x, y T) T {
	if x > y {
		return x
	}
	return y
}

// Abs returns the absolute value of x.
func Abs[T constraints.Signed | constraints.Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// SortSlice sorts a slice in place in ascending order.
func SortSlice[T constraints.Ordered](s []T) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

// EqualSlice returns true if the two slices have the same length and
// identical elements.
func EqualSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BitReverse64 returns the bit-reverse value of the input value, within a
// context of 2^bitLen.
func BitReverse64(index, bitLen uint64) uint64 {
	var rev uint64
	for i := uint64(0); i < bitLen; i++ {
		rev <<= 1
		rev |= (index >> i) & 1
	}
	return rev
}

// Pointy returns a pointer to x.
func Pointy[T any](x T) *T {
	return &x
}
