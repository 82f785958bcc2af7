// SPDX-License-Identifier: MIT

// Package bitint holds the power-of-two helpers used to check capture block
// sizes. All functions are constant time and allocation free.
package bitint

import "math/bits"

// Integer is the set of signed integer types accepted by the helpers.
type Integer interface {
	~int | ~int32 | ~int64
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo[T Integer](n T) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n. Non-positive input
// yields 1.
func NextPowerOfTwo[T Integer](n T) T {
	if n <= 1 {
		return 1
	}
	// n-1 keeps exact powers of two unchanged.
	return T(1) << bits.Len64(uint64(n-1))
}

// PrevPowerOfTwo returns the largest power of two <= n. Non-positive input
// yields 0.
func PrevPowerOfTwo[T Integer](n T) T {
	if n <= 0 {
		return 0
	}
	return T(1) << (bits.Len64(uint64(n)) - 1)
}

// NearestPowerOfTwo returns the power of two closest to n, preferring the
// larger one on a tie. Non-positive input yields 1.
func NearestPowerOfTwo[T Integer](n T) T {
	if n <= 1 {
		return 1
	}
	lo, hi := PrevPowerOfTwo(n), NextPowerOfTwo(n)
	if n-lo < hi-n {
		return lo
	}
	return hi
}
