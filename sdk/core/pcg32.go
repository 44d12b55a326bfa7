// Copyright 2025 Zintix Labs
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

package core

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/zintix-labs/cortexlab/errs"
)

const (
	pcg32Multiplier = 6364136223846793005
	pcg32SnapLen    = 16
)

// PCG32 為 64-bit 狀態、32-bit 輸出的 PCG (XSH RR) 產生器。
// 介面對齊 PCG64，可在 core.Core 中互換。
type PCG32 struct {
	state uint64
	inc   uint64
}

// NewPCG32WithSeed 以 seed 建立 PCG32（stream 固定為 1）。
func NewPCG32WithSeed(seed int64) *PCG32 {
	r := &PCG32{}
	r.seed(seed, 1)
	return r
}

// Uint64 由兩次 32-bit 輸出拼成。
func (r *PCG32) Uint64() uint64 {
	return (uint64(r.next()) << 32) | uint64(r.next())
}

// IntN 回傳 [0,n) 的亂數；若 n <= 0 回傳 -1。
func (r *PCG32) IntN(max int) int {
	if max <= 0 {
		return -1
	}
	if uint64(max) <= math.MaxUint32 {
		return int(r.below32(uint32(max)))
	}
	return int(r.below64(uint64(max)))
}

// Snapshot 依序寫出 state / inc（big-endian，共 16 bytes）。
func (r *PCG32) Snapshot() ([]byte, error) {
	b := make([]byte, pcg32SnapLen)
	binary.BigEndian.PutUint64(b[:8], r.state)
	binary.BigEndian.PutUint64(b[8:], r.inc)
	return b, nil
}

// Restore 讀回 Snapshot 的輸出；inc 必須為奇數。
func (r *PCG32) Restore(data []byte) error {
	if len(data) != pcg32SnapLen {
		return errs.Warnf("pcg32 snapshot must be %d bytes, got %d", pcg32SnapLen, len(data))
	}
	inc := binary.BigEndian.Uint64(data[8:])
	if inc&1 == 0 {
		return errs.NewWarn("pcg32 snapshot has even increment")
	}
	r.state = binary.BigEndian.Uint64(data[:8])
	r.inc = inc
	return nil
}

// seed 依 PCG 建議流程初始化：先以 stream 走一步，再加上 seed，再走一步。
func (r *PCG32) seed(seed int64, seq uint64) {
	r.state = 0
	r.inc = (seq << 1) | 1
	r.next()
	r.state += uint64(seed)
	r.next()
}

func (r *PCG32) next() uint32 {
	old := r.state
	r.state = old*pcg32Multiplier + r.inc
	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return bits.RotateLeft32(xorshifted, -int(rot))
}

// below32 以拒絕採樣取得 [0,bound) 的無偏值。
func (r *PCG32) below32(bound uint32) uint32 {
	threshold := -bound % bound
	for {
		v := r.next()
		if v >= threshold {
			return v % bound
		}
	}
}

func (r *PCG32) below64(bound uint64) uint64 {
	threshold := -bound % bound
	for {
		v := r.Uint64()
		if v >= threshold {
			return v % bound
		}
	}
}
