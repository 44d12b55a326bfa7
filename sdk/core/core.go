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

import "strings"

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 擲骰只需要 [0,n) 的無偏整數；Uint64 留給 seed 派生與測試比對。
type RAND interface {
	Uint64() uint64
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

// PRNGFactory 以 seed 建立 PRNG。
//
// 合約：同一個實作與版本下，New(seed) 必須是決定性的；
// 相同 seed 產生相同的輸出序列，桌台（Table）的可重現性建立在這一點上。
type PRNGFactory interface {
	New(int64) PRNG
}

// DefaultPRNG 預設工廠：PCG64。
type DefaultPRNG struct{}

func (d *DefaultPRNG) New(seed int64) PRNG {
	return NewPCG64WithSeed(seed)
}

// PCG32PRNG 32-bit 輸出的工廠，適合 32-bit 平台或需要與舊紀錄比對時使用。
type PCG32PRNG struct{}

func (p *PCG32PRNG) New(seed int64) PRNG {
	return NewPCG32WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// FactoryByName 依名稱取得工廠（"pcg64"、"pcg32"），空字串視為預設。
func FactoryByName(name string) (PRNGFactory, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pcg64":
		return &DefaultPRNG{}, true
	case "pcg32":
		return &PCG32PRNG{}, true
	default:
		return nil, false
	}
}

// Core 封裝 PRNG，並提供擲骰常用的取樣方法。
//
// Core 不是併發安全的：一個 Core 只屬於一張桌台（或一個模擬 worker）。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// Face 回傳一顆 sides 面骰的點數 [1,sides]；sides < 1 回傳 0。
func (c *Core) Face(sides int) int {
	if sides < 1 {
		return 0
	}
	return c.IntN(sides) + 1
}
