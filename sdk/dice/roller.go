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

// RandomSource 擲骰所需的亂數能力，IntN 回傳 [0,n)。
//
// *core.Core 滿足此介面；測試可注入固定序列。
type RandomSource interface {
	IntN(n int) int
}

func face(src RandomSource, d Die) int {
	return src.IntN(int(d)) + 1
}

// Roll 擲一顆骰子。
//
// shimmer 規則：非最大骰擲出最大面時，以 Next(d) 依同樣規則重擲。
// 重擲若為 Glitch，原本的最大面保留為一般 Value。
func (r *Rules) Roll(src RandomSource, d Die) Roll {
	f := face(src, d)
	if f == 1 && r.Glitch {
		return Glitch(d)
	}
	if !r.Shimmer || f < int(d) || d >= r.Largest() {
		return Value(f, d)
	}
	next := r.Roll(src, r.Next(d))
	switch next.Kind {
	case KindGlitch:
		return Value(f, d)
	case KindShimmer:
		return Shimmer(d, next.Ultimate, next.Shimmers+1, max(f, next.Value))
	default:
		return Shimmer(d, next.Die, 1, max(f, next.Value))
	}
}

// RollAll 依序擲出每一顆骰子。
func (r *Rules) RollAll(src RandomSource, dice []Die) []Roll {
	out := make([]Roll, len(dice))
	for i, d := range dice {
		out[i] = r.Roll(src, d)
	}
	return out
}
