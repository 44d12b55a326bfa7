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

package dto

import (
	"github.com/zintix-labs/cortexlab/corefmt"
	"github.com/zintix-labs/cortexlab/sdk/dice"
	"github.com/zintix-labs/cortexlab/spec"
)

// MaxListedRolls 回應中最多逐顆列出幾顆骰子；超過時只回摘要欄位。
const MaxListedRolls = 1000

type RollResult struct {
	Variant   string    `json:"variant"`         // 變體名稱
	VariantID spec.VID  `json:"vid"`             // 變體編號
	Expr      string    `json:"expr"`            // 原始表達式
	Text      string    `json:"text"`            // 給使用者看的完整輸出
	Summary   string    `json:"summary"`         // 短摘要
	Dice      int       `json:"dice"`            // 擲出的骰子數
	Rolls     []RollDTO `json:"rolls,omitempty"` // 逐顆結果（超過 MaxListedRolls 時省略）
	Effect    ResultDTO `json:"effect"`          // best effect
	Total     ResultDTO `json:"total"`           // best total
	Glitches  int       `json:"glitches"`
	Shimmers  int       `json:"shimmers"`
	Botch     bool      `json:"botch"`
	State     RollState `json:"state"`
}

type RollDTO struct {
	Kind     string `json:"kind"`
	Value    int    `json:"value"`
	Die      int    `json:"die"`
	Ultimate int    `json:"ultimate,omitempty"`
	Shimmers int    `json:"shimmers,omitempty"`
	Text     string `json:"text"`
}

type ResultDTO struct {
	Botch  bool `json:"botch"`
	Total  int  `json:"total"`
	Effect int  `json:"effect"`
}

type RollState struct {
	Seed              int64  `json:"seed"`       // 桌台出生 seed
	StartCoreSnapB64U string `json:"start_b64u"` // 擲骰前的 RNG 快照
	AfterCoreSnapB64U string `json:"after_b64u"` // 擲骰後的 RNG 快照
}

// RollMeta 組 RollResult 需要的桌台資訊。
type RollMeta struct {
	Variant   string
	VariantID spec.VID
	Expr      string
	Seed      int64
	Start     []byte
	After     []byte
}

func NewRollResult(meta RollMeta, rules *dice.Rules, o dice.Outcome) RollResult {
	res := RollResult{
		Variant:   meta.Variant,
		VariantID: meta.VariantID,
		Expr:      meta.Expr,
		Text:      rules.Render(o),
		Summary:   rules.Summary(o),
		Dice:      len(o.Rolls),
		Effect:    newResultDTO(o.Effect),
		Total:     newResultDTO(o.Total),
		Glitches:  o.Glitches,
		Shimmers:  o.Shimmers,
		Botch:     !o.Empty() && o.Botch(),
		State: RollState{
			Seed:              meta.Seed,
			StartCoreSnapB64U: corefmt.EncodeBase64URL(meta.Start),
			AfterCoreSnapB64U: corefmt.EncodeBase64URL(meta.After),
		},
	}
	if len(o.Rolls) <= MaxListedRolls {
		res.Rolls = make([]RollDTO, len(o.Rolls))
		for i, r := range o.Rolls {
			res.Rolls[i] = newRollDTO(r)
		}
	}
	return res
}

func newRollDTO(r dice.Roll) RollDTO {
	return RollDTO{
		Kind:     r.Kind.String(),
		Value:    r.Value,
		Die:      r.Die.Sides(),
		Ultimate: r.Ultimate.Sides(),
		Shimmers: r.Shimmers,
		Text:     r.String(),
	}
}

func newResultDTO(r dice.Result) ResultDTO {
	return ResultDTO{Botch: r.Botch, Total: r.Total, Effect: r.Effect.Sides()}
}
