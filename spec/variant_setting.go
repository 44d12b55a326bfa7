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

package spec

import (
	"fmt"
	"strings"

	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/sdk/dice"
)

// VID 規則變體的編號。
type VID uint

// VariantSetting 一個擲骰規則變體的設定檔內容。
type VariantSetting struct {
	VariantName     string `yaml:"variant_name"                 json:"variant_name"                 toml:"variant_name"`
	VariantID       VID    `yaml:"variant_id"                   json:"variant_id"                   toml:"variant_id"`
	Dice            []int  `yaml:"dice"                         json:"dice"                         toml:"dice"`
	Glitch          bool   `yaml:"glitch"                       json:"glitch"                       toml:"glitch"`
	Shimmer         bool   `yaml:"shimmer"                      json:"shimmer"                      toml:"shimmer"`
	Botch           bool   `yaml:"botch"                        json:"botch"                        toml:"botch"`
	MaxDicePerToken int    `yaml:"max_dice_per_token,omitempty" json:"max_dice_per_token,omitempty" toml:"max_dice_per_token,omitempty"`
	MessageLimit    int    `yaml:"message_limit,omitempty"      json:"message_limit,omitempty"      toml:"message_limit,omitempty"`

	rules *dice.Rules
}

// Rules 回傳 init 時建好的規則；只讀，可共用。
func (vs *VariantSetting) Rules() *dice.Rules {
	return vs.rules
}

func (vs *VariantSetting) init() error {
	vs.VariantName = strings.TrimSpace(vs.VariantName)
	if err := vs.valid(); err != nil {
		return err
	}
	ds := make([]dice.Die, len(vs.Dice))
	for i, s := range vs.Dice {
		ds[i] = dice.Die(s)
	}
	r, err := dice.NewRules(dice.Rules{
		Dice:            ds,
		Glitch:          vs.Glitch,
		Shimmer:         vs.Shimmer,
		Botch:           vs.Botch,
		MaxDicePerToken: vs.MaxDicePerToken,
		MessageLimit:    vs.MessageLimit,
	})
	if err != nil {
		return errs.Wrap(err, fmt.Sprintf("variant_name: %s invalid rules", vs.VariantName))
	}
	vs.rules = r
	return nil
}

func (vs *VariantSetting) valid() error {
	if vs.VariantName == "" {
		return errs.NewFatal("variant_name required")
	}
	if len(vs.Dice) == 0 {
		return errs.NewFatal(fmt.Sprintf("variant_name: %s err:empty dice", vs.VariantName))
	}
	seen := make(map[int]struct{}, len(vs.Dice))
	for _, s := range vs.Dice {
		if s < 2 {
			return errs.NewFatal(fmt.Sprintf("variant_name: %s err:invalid die d%d", vs.VariantName, s))
		}
		if _, ok := seen[s]; ok {
			return errs.NewFatal(fmt.Sprintf("variant_name: %s err:duplicate die d%d", vs.VariantName, s))
		}
		seen[s] = struct{}{}
	}
	if vs.Botch && !vs.Glitch {
		return errs.NewFatal(fmt.Sprintf("variant_name: %s err:botch requires glitch", vs.VariantName))
	}
	if vs.MaxDicePerToken < 0 || vs.MessageLimit < 0 {
		return errs.NewFatal(fmt.Sprintf("variant_name: %s err:negative limit", vs.VariantName))
	}
	return nil
}
