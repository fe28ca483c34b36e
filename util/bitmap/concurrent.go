// Copyright 2025 Keel Authors.
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

package bitmap

import (
	"sync/atomic"
	"unsafe"
)

const segmentWidth = 32
const segmentWidthPower = 5

// ConcurrentBitmap is a bitmap of bits which can be set concurrently.
// Bits are set only, never cleared; readers may use the unsafe getters
// when no concurrent writer is active.
type ConcurrentBitmap struct {
	segments []uint32
	bitLen   int
}

// NewConcurrentBitmap initializes a ConcurrentBitmap which can store
// bitLen of bits.
func NewConcurrentBitmap(bitLen int) *ConcurrentBitmap {
	return &ConcurrentBitmap{
		segments: make([]uint32, (bitLen+segmentWidth-1)/segmentWidth),
		bitLen:   bitLen,
	}
}

// Set sets the bit on bitIndex to be 1 atomically.
func (cb *ConcurrentBitmap) Set(bitIndex int) {
	segment := &cb.segments[bitIndex>>segmentWidthPower]
	mask := uint32(1) << uint(bitIndex%segmentWidth)
	for {
		old := atomic.LoadUint32(segment)
		if old&mask != 0 {
			return
		}
		if atomic.CompareAndSwapUint32(segment, old, old|mask) {
			return
		}
	}
}

// UnsafeSet sets the bit on bitIndex without synchronization.
func (cb *ConcurrentBitmap) UnsafeSet(bitIndex int) {
	cb.segments[bitIndex>>segmentWidthPower] |= uint32(1) << uint(bitIndex%segmentWidth)
}

// UnsafeIsSet returns whether the bit on bitIndex is set without
// synchronization.
func (cb *ConcurrentBitmap) UnsafeIsSet(bitIndex int) bool {
	return cb.segments[bitIndex>>segmentWidthPower]&(uint32(1)<<uint(bitIndex%segmentWidth)) != 0
}

// BitLen returns the number of bits the bitmap holds.
func (cb *ConcurrentBitmap) BitLen() int { return cb.bitLen }

// BytesConsumed returns the memory usage of the bitmap in bytes.
func (cb *ConcurrentBitmap) BytesConsumed() int64 {
	return int64(unsafe.Sizeof(ConcurrentBitmap{})) + int64(unsafe.Sizeof(uint32(0)))*int64(len(cb.segments))
}
