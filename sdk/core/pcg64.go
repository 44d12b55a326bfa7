// Package core implements the seedable random number generators behind every dice table.
//
// The PCG algorithm is designed by Melissa O'Neill.

package core

import (
	r2 "math/rand/v2"

	"github.com/zintix-labs/cortexlab/errs"
)

// PCG64 以 math/rand/v2 的 PCG 為來源；取樣交給 rand.Rand，狀態直接序列化 PCG。
type PCG64 struct {
	src *r2.PCG
	rnd *r2.Rand
}

// NewPCG64WithSeed 以指定 seed 建立新的 PCG64 實例。
//
// seed 先經 splitmix64 展開成兩個 64-bit 狀態，相鄰 seed 之間也不會有可見的相關性。
func NewPCG64WithSeed(seed int64) *PCG64 {
	x := uint64(seed) ^ 0x9e3779b97f4a7c15
	src := r2.NewPCG(splitmix64(x), splitmix64(x^0xDA942042E4DD58B5))
	return &PCG64{src: src, rnd: r2.New(src)}
}

func (r *PCG64) Uint64() uint64 {
	return r.src.Uint64()
}

// IntN 產出 [0,max) 的無偏整數，max <= 0 回傳 -1。
func (r *PCG64) IntN(max int) int {
	if max <= 0 {
		return -1
	}
	return r.rnd.IntN(max)
}

func (r *PCG64) Snapshot() ([]byte, error) {
	return r.src.MarshalBinary()
}

func (r *PCG64) Restore(data []byte) error {
	if err := r.src.UnmarshalBinary(data); err != nil {
		return errs.Warnf("pcg64 snapshot is malformed: %v", err)
	}
	return nil
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
