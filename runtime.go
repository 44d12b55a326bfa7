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
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/cortexlab/dto"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/sdk/dice"
	"github.com/zintix-labs/cortexlab/spec"
	"github.com/zintix-labs/cortexlab/stats"
)

// RollRuntime 對外服務用的運行時：每個變體一個 TablePool。
type RollRuntime struct {
	// build-time 來源（只讀引用）
	lab *Lab

	// data-plane：每個變體一個 pool
	pools map[spec.VID]*TablePool
	ids   []spec.VID // 固定順序，用於觀測/列舉

	// lifecycle
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string

	poolSize int

	// 0 表示不限制
	maxRollDice int
	maxSimDice  int
}

// SetLogger 讓各池在桌台退役/池關閉時寫出 Warn 日誌。需在開始服務前呼叫。
func (rt *RollRuntime) SetLogger(log *slog.Logger) {
	for _, p := range rt.pools {
		p.log = log
	}
}

// SetDiceLimits 設定單次擲骰的總骰數上限，以及單次模擬 rounds*workers*骰數 的上限。
// 需在開始服務前呼叫；<= 0 表示不限制。
func (rt *RollRuntime) SetDiceLimits(roll, sim int) {
	rt.maxRollDice = max(0, roll)
	rt.maxSimDice = max(0, sim)
}

// countDice 只計算骰數、不展開表達式。
func (rt *RollRuntime) countDice(vid spec.VID, expr string) (int, error) {
	p, ok := rt.pools[vid]
	if !ok {
		return 0, errs.NewWarn("variant id not found")
	}
	return p.vs.Rules().Count(expr)
}

func (rt *RollRuntime) Lab() *Lab {
	return rt.lab
}

func (rt *RollRuntime) alive(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "roll canceled/timeout")
	case <-rt.done:
		rt.closed.Store(true)
		return errs.NewFatal("roll runtime closed: " + rt.ClosedReason())
	default:
		return nil
	}
}

// Roll 解析請求指定的變體並擲骰。
//
// 帶 seed 的請求以該 seed 開一張新桌台處理（可重現），不經過池；其餘由池借出桌台。
func (rt *RollRuntime) Roll(ctx context.Context, req *dto.RollRequest) (dto.RollResult, error) {
	if req == nil {
		return dto.RollResult{}, errs.NewWarn("nil roll request")
	}
	if err := rt.alive(ctx); err != nil {
		return dto.RollResult{}, err
	}
	vid, err := rt.lab.Resolve(req.VariantID, req.Variant)
	if err != nil {
		return dto.RollResult{}, err
	}
	if rt.maxRollDice > 0 {
		n, err := rt.countDice(vid, req.Expr)
		if err != nil {
			return dto.RollResult{}, err
		}
		if n > rt.maxRollDice {
			return dto.RollResult{}, errs.Mark(errs.Warn, dice.ErrTooManyDice,
				fmt.Sprintf("Too many dice in one roll: at most %d.", rt.maxRollDice))
		}
	}
	r := *req
	r.VariantID = vid
	r.Variant = ""

	if r.Seed != nil {
		t, err := rt.lab.NewTableWithSeed(vid, *r.Seed)
		if err != nil {
			return dto.RollResult{}, err
		}
		return t.Roll(&r)
	}

	p, ok := rt.pools[vid]
	if !ok {
		return dto.RollResult{}, errs.NewWarn("variant id not found")
	}
	return p.Roll(ctx, &r)
}

// Sim 以請求參數跑一次 Monte-Carlo 模擬，回傳報表與用時。
func (rt *RollRuntime) Sim(ctx context.Context, req *dto.SimRequest) (*stats.StatReport, time.Duration, error) {
	if req == nil {
		return nil, 0, errs.NewWarn("nil sim request")
	}
	if err := rt.alive(ctx); err != nil {
		return nil, 0, err
	}
	vid, err := rt.lab.Resolve(req.VariantID, req.Variant)
	if err != nil {
		return nil, 0, err
	}
	workers := max(1, req.Workers)
	if rt.maxSimDice > 0 {
		n, err := rt.countDice(vid, req.Expr)
		if err != nil {
			return nil, 0, err
		}
		times := math.MaxInt
		if req.Rounds <= math.MaxInt/workers {
			times = max(1, req.Rounds*workers)
		}
		if n > rt.maxSimDice/times {
			return nil, 0, errs.Mark(errs.Warn, dice.ErrTooManyDice,
				fmt.Sprintf("Too many dice to simulate: dice*rounds*workers must not exceed %d.", rt.maxSimDice))
		}
	}
	var s *Simulator
	if req.Seed != nil {
		s, err = rt.lab.NewSimulatorWithSeed(vid, *req.Seed)
	} else {
		s, err = rt.lab.NewSimulator(vid)
	}
	if err != nil {
		return nil, 0, err
	}
	return s.SimMP(ctx, req.Expr, req.Rounds, workers, false)
}

// Metrics 依 ids 的固定順序回傳每個池的快照。
func (rt *RollRuntime) Metrics() []TablePoolMetrics {
	out := make([]TablePoolMetrics, 0, len(rt.ids))
	for _, id := range rt.ids {
		if p, ok := rt.pools[id]; ok {
			out = append(out, p.Metrics())
		}
	}
	return out
}

// Close 關閉運行時與所有池，可重複呼叫。
func (rt *RollRuntime) Close() {
	rt.closeWithReason("closed")
}

func (rt *RollRuntime) closeWithReason(reason string) {
	rt.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		rt.reason.Store(reason)
		rt.closed.Store(true)
		close(rt.done)
		for _, p := range rt.pools {
			p.closeWithReason("runtime " + reason)
		}
	})
}

func (rt *RollRuntime) Closed() bool {
	return rt.closed.Load()
}

func (rt *RollRuntime) ClosedReason() string {
	if v := rt.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
