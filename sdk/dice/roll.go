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
	"strconv"

	"github.com/zintix-labs/cortexlab/errs"
)

// Kind 標記 Roll 屬於哪一種結果。
type Kind uint8

const (
	KindValue Kind = iota
	KindGlitch
	KindShimmer
)

var kindNames = [...]string{
	KindValue:   "value",
	KindGlitch:  "glitch",
	KindShimmer: "shimmer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return errs.Warnf("unknown roll kind %q", string(b))
}

// Roll 單顆骰子的結果（Value | Glitch | Shimmer）。
//
//   - Value  : Value 點，骰子 Die。
//   - Glitch : 在 Die 上擲出 1。
//   - Shimmer: Die 擲出最大面後連鎖重擲；Ultimate 為最後一次擲的骰子，
//     Value 為整條連鎖中的最大值，Shimmers 為連續觸發次數。
type Roll struct {
	Kind     Kind `json:"kind" yaml:"kind"`
	Value    int  `json:"value" yaml:"value"`
	Die      Die  `json:"die" yaml:"die"`
	Ultimate Die  `json:"ultimate,omitempty" yaml:"ultimate,omitempty"`
	Shimmers int  `json:"shimmers,omitempty" yaml:"shimmers,omitempty"`
}

func Value(n int, d Die) Roll {
	return Roll{Kind: KindValue, Value: n, Die: d}
}

func Glitch(d Die) Roll {
	return Roll{Kind: KindGlitch, Value: 1, Die: d}
}

func Shimmer(initial, ultimate Die, count, value int) Roll {
	return Roll{Kind: KindShimmer, Value: value, Die: initial, Ultimate: ultimate, Shimmers: count}
}

// Effective 回傳評估時使用的 (value, die)；Glitch 回傳 ok=false。
func (r Roll) Effective() (value int, die Die, ok bool) {
	switch r.Kind {
	case KindGlitch:
		return 0, r.Die, false
	case KindShimmer:
		return r.Value, r.Ultimate, true
	default:
		return r.Value, r.Die, true
	}
}

// String 為單行輸出格式。
func (r Roll) String() string {
	switch r.Kind {
	case KindGlitch:
		return "**1** (" + r.Die.String() + ")"
	case KindShimmer:
		s := strconv.Itoa(r.Value) + " (" + r.Die.String() + " shimmered "
		if r.Shimmers > 1 {
			s += "x" + strconv.Itoa(r.Shimmers) + " "
		}
		return s + "to " + r.Ultimate.String() + ")"
	default:
		return strconv.Itoa(r.Value) + " (" + r.Die.String() + ")"
	}
}
