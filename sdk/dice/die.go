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

package dice

import (
	"slices"
	"strconv"

	"github.com/zintix-labs/cortexlab/errs"
)

// Die 一顆骰子，值即面數。
type Die int

const (
	D4  Die = 4
	D6  Die = 6
	D8  Die = 8
	D10 Die = 10
	D12 Die = 12
)

func (d Die) Sides() int { return int(d) }

func (d Die) String() string { return "d" + strconv.Itoa(int(d)) }

const (
	DefaultMaxDicePerToken = 1_000_000
	DefaultMessageLimit    = 1950
)

// Rules 是單一參數化的擲骰引擎設定：允許的骰子集合、是否有 glitch / shimmer / botch。
//
// Rules 建立後只讀，可被多個 goroutine 同時使用；亂數來源由呼叫端各自持有。
type Rules struct {
	Dice            []Die // 由小到大、不重複
	Glitch          bool  // 擲出 1 視為 Glitch
	Shimmer         bool  // 擲出最大面時往下一顆更大的骰子連鎖重擲
	Botch           bool  // 全部 Glitch 時判定為 Botch
	MaxDicePerToken int   // 單一 token 允許的骰子數上限
	MessageLimit    int   // 完整輸出超過此長度時只輸出摘要
}

// NewRules 檢查並正規化設定（排序、去重、補預設值）。
func NewRules(r Rules) (*Rules, error) {
	if len(r.Dice) == 0 {
		return nil, errs.NewFatal("rules must allow at least one die")
	}
	ds := slices.Clone(r.Dice)
	slices.Sort(ds)
	ds = slices.Compact(ds)
	if ds[0] < 2 {
		return nil, errs.Fatalf("die must have at least 2 sides, got %d", int(ds[0]))
	}
	if r.Botch && !r.Glitch {
		return nil, errs.NewFatal("botch requires glitch")
	}
	if r.MaxDicePerToken < 0 || r.MessageLimit < 0 {
		return nil, errs.NewFatal("limits must not be negative")
	}
	r.Dice = ds
	if r.MaxDicePerToken == 0 {
		r.MaxDicePerToken = DefaultMaxDicePerToken
	}
	if r.MessageLimit == 0 {
		r.MessageLimit = DefaultMessageLimit
	}
	return &r, nil
}

func mustRules(r Rules) *Rules {
	out, err := NewRules(r)
	if err != nil {
		panic(err)
	}
	return out
}

// Basic 純擲骰：d4-d12，沒有 glitch。
func Basic() *Rules {
	return mustRules(Rules{Dice: []Die{D4, D6, D8, D10, D12}})
}

// Cortex d4-d12，1 為 Glitch，全滅為 Botch。
func Cortex() *Rules {
	return mustRules(Rules{Dice: []Die{D4, D6, D8, D10, D12}, Glitch: true, Botch: true})
}

// Shimmering d4-d10，含 Glitch、Botch 與 shimmer 連鎖。
func Shimmering() *Rules {
	return mustRules(Rules{Dice: []Die{D4, D6, D8, D10}, Glitch: true, Shimmer: true, Botch: true})
}

// Allowed 回報 d 是否在允許集合內。
func (r *Rules) Allowed(d Die) bool {
	_, ok := slices.BinarySearch(r.Dice, d)
	return ok
}

func (r *Rules) Smallest() Die { return r.Dice[0] }

func (r *Rules) Largest() Die { return r.Dice[len(r.Dice)-1] }

// Next 回傳下一顆較大的允許骰子；最大的骰子回傳自己。
func (r *Rules) Next(d Die) Die {
	for _, x := range r.Dice {
		if x > d {
			return x
		}
	}
	return d
}

func (r *Rules) maxPerToken() int {
	if r.MaxDicePerToken > 0 {
		return r.MaxDicePerToken
	}
	return DefaultMaxDicePerToken
}

func (r *Rules) messageLimit() int {
	if r.MessageLimit > 0 {
		return r.MessageLimit
	}
	return DefaultMessageLimit
}
