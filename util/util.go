/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Dec 29 09:03:12 2017 mstenber
 * Last modified: Tue Apr 10 14:02:40 2018 mstenber
 * Edit time:     22 min
 *
 */

package util

import "encoding/binary"

// CeilDiv returns ceil(a / b) for non-negative a and positive b.
func CeilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

func Uint32Bytes(n uint32) []byte {
	nb := make([]byte, 4)
	binary.BigEndian.PutUint32(nb, n)
	return nb
}

func IMin(i int, ints ...int) int {
	for _, v := range ints {
		if v < i {
			i = v
		}
	}
	return i
}

func I64Min(i int64, ints ...int64) int64 {
	for _, v := range ints {
		if v < i {
			i = v
		}
	}
	return i
}

// IOr returns the first non-zero value (or zero).
func IOr(ints ...int) int {
	for _, v := range ints {
		if v != 0 {
			return v
		}
	}
	return 0
}

// SOr returns the first non-empty string (or empty string).
func SOr(strings ...string) string {
	for _, v := range strings {
		if v != "" {
			return v
		}
	}
	return ""
}
