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

package cortexlab

import (
	"strings"
	"sync"

	"github.com/zintix-labs/cortexlab/dto"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/sdk/core"
	"github.com/zintix-labs/cortexlab/sdk/dice"
	"github.com/zintix-labs/cortexlab/spec"
)

// Table 一張擲骰桌：一組規則加上一顆自有的 RNG 核心。
//
// Roll 以 mutex 保護核心狀態；RollDice 不加鎖，只給單一 goroutine 持有的桌台（模擬器）使用。
type Table struct {
	name     string      // 變體名稱（觀測/日誌用）
	vid      spec.VID    // 變體編號
	rules    *dice.Rules // 只讀，可與其他桌台共用
	core     *core.Core  // RNG 核心
	mu       sync.Mutex  // 保護 core 狀態一致性
	initseed int64       // 出生 seed（完整重現請用 Snapshot/Restore）
}

func newTableWithSeed(vs *spec.VariantSetting, cf core.PRNGFactory, seed int64) *Table {
	return &Table{
		name:     vs.VariantName,
		vid:      vs.VariantID,
		rules:    vs.Rules(),
		core:     core.New(cf.New(seed)),
		initseed: seed,
	}
}

func (t *Table) Name() string       { return t.name }
func (t *Table) VID() spec.VID      { return t.vid }
func (t *Table) Rules() *dice.Rules { return t.rules }
func (t *Table) Seed() int64        { return t.initseed }

// Roll 處理一次對外請求。
//
// 流程：解析表達式 → 記錄起始快照 → （回放時）還原到請求帶入的快照 → 擲骰
// → 記錄結束快照 →（回放時）還原回原本狀態，使回放不影響桌台自己的序列。
// 解析失敗時不消耗任何亂數。
func (t *Table) Roll(req *dto.RollRequest) (dto.RollResult, error) {
	if req == nil {
		return dto.RollResult{}, errs.NewWarn("nil roll request")
	}
	if err := t.valid(req); err != nil {
		return dto.RollResult{}, err
	}
	ds, err := t.rules.Parse(req.Expr)
	if err != nil {
		return dto.RollResult{}, err
	}
	replay, err := req.StartSnap()
	if err != nil {
		return dto.RollResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	start, err := t.core.Snapshot()
	if err != nil {
		return dto.RollResult{}, errs.Wrap(err, "before snapshot error")
	}
	rem := start
	if replay != nil {
		if err := t.core.Restore(replay); err != nil {
			return dto.RollResult{}, errs.NewWarn("restore core err " + errs.Msg(err))
		}
		start = replay
	}

	o := t.rules.Evaluate(t.rules.RollAll(t.core, ds))

	after, err := t.core.Snapshot()
	if err != nil {
		if e := t.core.Restore(rem); e != nil {
			return dto.RollResult{}, errs.Wrap(e, "fall back err")
		}
		return dto.RollResult{}, errs.Wrap(err, "after snapshot error")
	}
	if replay != nil {
		if err := t.core.Restore(rem); err != nil {
			return dto.RollResult{}, errs.Wrap(err, "restore core back err")
		}
	}

	meta := dto.RollMeta{
		Variant:   t.name,
		VariantID: t.vid,
		Expr:      req.Expr,
		Seed:      t.initseed,
		Start:     start,
		After:     after,
	}
	return dto.NewRollResult(meta, t.rules, o), nil
}

// RollDice 不加鎖、不做快照，直接擲一組已解析的骰子。
func (t *Table) RollDice(ds []dice.Die) dice.Outcome {
	return t.rules.Evaluate(t.rules.RollAll(t.core, ds))
}

func (t *Table) valid(req *dto.RollRequest) error {
	if req.VariantID != 0 && req.VariantID != t.vid {
		return errs.NewWarn("variant id is not matched")
	}
	if req.Variant != "" && !sameName(req.Variant, t.name) {
		return errs.NewWarn("variant name is not matched")
	}
	return nil
}

func (t *Table) SnapshotCore() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.core.Snapshot()
}

func (t *Table) RestoreCore(src []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.core.Restore(src)
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
