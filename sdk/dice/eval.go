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
	"cmp"
	"slices"
)

// Result 一種解讀下的最終結果；Botch 為 true 時 Total / Effect 無意義。
type Result struct {
	Botch  bool `json:"botch" yaml:"botch"`
	Total  int  `json:"total" yaml:"total"`
	Effect Die  `json:"effect" yaml:"effect"`
}

// Outcome 一次擲骰的完整結果：原始 rolls 與兩種解讀。
type Outcome struct {
	Rolls    []Roll `json:"rolls" yaml:"rolls"`
	Effect   Result `json:"best_effect" yaml:"best_effect"`
	Total    Result `json:"best_total" yaml:"best_total"`
	Glitches int    `json:"glitches" yaml:"glitches"`
	Shimmers int    `json:"shimmers" yaml:"shimmers"`
}

// Empty 沒有任何骰子。
func (o Outcome) Empty() bool { return len(o.Rolls) == 0 }

// Botch 兩種解讀皆為 Botch。
func (o Outcome) Botch() bool { return o.Effect.Botch && o.Total.Botch }

// Agree 兩種解讀完全一致（同 total、同 effect die）。
func (o Outcome) Agree() bool { return o.Effect == o.Total }

// Conflict 兩種解讀對是否 Botch 判斷不一致；正常情況不會發生。
func (o Outcome) Conflict() bool { return o.Effect.Botch != o.Total.Botch }

type scored struct {
	value int
	die   Die
}

// usable 排除 Glitch 後的 (value, die)，保持輸入順序。
func usable(rolls []Roll) []scored {
	out := make([]scored, 0, len(rolls))
	for _, r := range rolls {
		if v, d, ok := r.Effective(); ok {
			out = append(out, scored{value: v, die: d})
		}
	}
	return out
}

func (r *Rules) nothing() Result {
	if r.Botch {
		return Result{Botch: true}
	}
	return Result{Effect: r.Smallest()}
}

// BestEffect 保留面數最大（同面數取點數最小）的一顆作為 effect，其餘取最大的兩個值相加。
//
// 可用骰少於 3 顆時，全部相加，effect 退回最小的骰子。
func (r *Rules) BestEffect(rolls []Roll) Result {
	ps := usable(rolls)
	if len(ps) == 0 {
		return r.nothing()
	}
	if len(ps) < 3 {
		sum := 0
		for _, p := range ps {
			sum += p.value
		}
		return Result{Total: sum, Effect: r.Smallest()}
	}

	pick := 0
	for i := 1; i < len(ps); i++ {
		p, c := ps[i], ps[pick]
		if p.die > c.die || (p.die == c.die && p.value < c.value) {
			pick = i
		}
	}

	rest := make([]int, 0, len(ps)-1)
	for i, p := range ps {
		if i != pick {
			rest = append(rest, p.value)
		}
	}
	slices.Sort(rest)
	n := len(rest)
	return Result{Total: rest[n-1] + rest[n-2], Effect: ps[pick].die}
}

// BestTotal 取最大的兩個值相加，effect 為剩下骰子中面數最大者。
//
// 排序鍵為 (value, -sides)，同點數時較大的骰子排在前面，留給 effect 使用。
// 排序作用於自有的副本，不改動輸入。
func (r *Rules) BestTotal(rolls []Roll) Result {
	ps := usable(rolls)
	if len(ps) == 0 {
		return r.nothing()
	}
	slices.SortStableFunc(ps, func(a, b scored) int {
		if c := cmp.Compare(a.value, b.value); c != 0 {
			return c
		}
		return cmp.Compare(b.die, a.die)
	})

	k := min(2, len(ps))
	cut := len(ps) - k
	total := 0
	for _, p := range ps[cut:] {
		total += p.value
	}
	if cut == 0 {
		return Result{Total: total, Effect: r.Smallest()}
	}
	effect := ps[0].die
	for _, p := range ps[1:cut] {
		effect = max(effect, p.die)
	}
	return Result{Total: total, Effect: effect}
}

// Evaluate 計算兩種解讀與 glitch / shimmer 計數。
func (r *Rules) Evaluate(rolls []Roll) Outcome {
	o := Outcome{
		Rolls:  rolls,
		Effect: r.BestEffect(rolls),
		Total:  r.BestTotal(rolls),
	}
	for _, x := range rolls {
		switch x.Kind {
		case KindGlitch:
			o.Glitches++
		case KindShimmer:
			o.Shimmers++
		}
	}
	return o
}

// RollExpr 解析、擲骰並評估一個表達式。解析失敗時不會消耗任何亂數。
func (r *Rules) RollExpr(src RandomSource, expr string) (Outcome, error) {
	ds, err := r.Parse(expr)
	if err != nil {
		return Outcome{}, err
	}
	return r.Evaluate(r.RollAll(src, ds)), nil
}
