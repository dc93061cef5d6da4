// Copyright 2025 The LiteOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bits includes all bit related types and operations.
package bits

import (
	"math/bits"
)

// MaskOf64 returns a mask with only bit i set.
func MaskOf64(i int) uint64 {
	return uint64(1) << uint(i)
}

// Mask64 returns a mask with all of the given bits set.
func Mask64(is ...int) uint64 {
	ret := uint64(0)
	for _, i := range is {
		ret |= MaskOf64(i)
	}
	return ret
}

// IsOn64 returns true if *all* bits set in mask are set in val.
func IsOn64(val, mask uint64) bool {
	return val&mask == mask
}

// IsAnyOn64 returns true if *any* bit set in mask is set in val.
func IsAnyOn64(val, mask uint64) bool {
	return val&mask != 0
}

// TrailingZeros64 returns the number of trailing zero bits in v, or 64 if v
// is zero.
func TrailingZeros64(v uint64) int {
	return bits.TrailingZeros64(v)
}

// ForEachSetBit64 calls f once for each set bit in v, lowest bit first.
func ForEachSetBit64(v uint64, f func(i int)) {
	for v != 0 {
		i := bits.TrailingZeros64(v)
		f(i)
		v &^= MaskOf64(i)
	}
}
