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
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/cortexlab/dto"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/sdk/core"
	"github.com/zintix-labs/cortexlab/spec"
)

// TablePool 單一變體的桌台池。
//
// 借出的桌台若 panic 或回報 Fatal，視為狀態不可信：送進 broken 並以新 seed 補一張新桌台。
// broken 塞滿代表連續故障，整個池會關閉。
type TablePool struct {
	name          string
	vid           spec.VID
	vs            *spec.VariantSetting
	cf            core.PRNGFactory
	initSeed      int64
	seedMaker     *seedMaker
	log           *slog.Logger
	pool          chan *Table   // 可借出的桌台
	broken        chan *Table   // 退役的桌台
	done          chan struct{} // 關閉後不再允許借出/歸還/補桌
	closeOnce     sync.Once
	poolsize      int
	rebuild       atomic.Int32 // 補桌次數
	inflight      atomic.Int32 // 使用中
	panics        atomic.Int32
	fatals        atomic.Int32
	rolls         atomic.Int64 // 成功擲骰次數
	closeReason   atomic.Value // string
	closeInflight atomic.Int32 // 關閉當下 inflight（快照）
	closeAvail    atomic.Int32 // 關閉當下可用數量
	closeBroken   atomic.Int32 // 關閉當下 broken backlog
}

const brokenBacklog = 100

func newTablePool(n int, vs *spec.VariantSetting, cf core.PRNGFactory, seed int64) *TablePool {
	n = max(1, n)
	p := &TablePool{
		name:      vs.VariantName,
		vid:       vs.VariantID,
		vs:        vs,
		cf:        cf,
		initSeed:  seed,
		seedMaker: newSeedMaker(seed),
		pool:      make(chan *Table, n),
		broken:    make(chan *Table, brokenBacklog),
		done:      make(chan struct{}),
		poolsize:  n,
	}
	p.closeReason.Store("")
	p.closeInflight.Store(-1)
	p.closeAvail.Store(-1)
	p.closeBroken.Store(-1)

	for i := 0; i < n; i++ {
		p.pool <- newTableWithSeed(vs, cf, p.seedMaker.next())
	}
	return p
}

func (p *TablePool) Close() {
	p.closeWithReason("closed")
}

func (p *TablePool) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *TablePool) closeWithReason(reason string) {
	p.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		p.closeReason.Store(reason)
		p.closeInflight.Store(p.inflight.Load())
		p.closeAvail.Store(int32(len(p.pool)))
		p.closeBroken.Store(int32(len(p.broken)))
		close(p.done)
		if p.log != nil {
			p.log.Warn("table pool closed", slog.String("variant", p.name), slog.String("reason", reason))
		}
	})
}

func isFatalErr(err error) bool {
	e, ok := errs.AsErr(err)
	return ok && e.ErrLv == errs.Fatal
}

// Roll 借一張桌台處理請求；等待期間遵守 ctx 的取消/逾時。
func (p *TablePool) Roll(ctx context.Context, req *dto.RollRequest) (res dto.RollResult, err error) {
	var t *Table
	select {
	case <-p.done:
		return res, errs.NewFatal("table pool closed: " + p.ClosedReason())
	case <-ctx.Done():
		return res, errs.Wrap(ctx.Err(), "roll canceled/timeout")
	case t = <-p.pool:
		p.inflight.Add(1)
	}

	defer func() {
		p.inflight.Add(-1)
		isPanic := false
		if r := recover(); r != nil {
			isPanic = true
			p.panics.Add(1)
			err = errs.NewFatal(fmt.Sprintf("table %s panic : %v", p.name, r))
		}
		if p.Closed() {
			return
		}
		if isPanic || isFatalErr(err) {
			if !isPanic {
				p.fatals.Add(1)
			}
			p.retire(t, err)
			return
		}
		p.rolls.Add(1)
		select {
		case <-p.done:
		case p.pool <- t:
		}
	}()

	return t.Roll(req)
}

// retire 將桌台送進 broken 並補上一張新桌台。
func (p *TablePool) retire(t *Table, cause error) {
	if p.log != nil {
		p.log.Warn("table retired",
			slog.String("variant", p.name),
			slog.Int64("seed", t.Seed()),
			slog.String("cause", fmt.Sprint(cause)),
		)
	}
	select {
	case p.broken <- t:
	default:
		p.closeWithReason("overwhelmed_by_failures")
		return
	}
	fresh := newTableWithSeed(p.vs, p.cf, p.seedMaker.next())
	p.rebuild.Add(1)
	select {
	case <-p.done:
	case p.pool <- fresh:
	}
}

func (p *TablePool) PoolSize() int {
	return p.poolsize
}

func (p *TablePool) Available() int {
	return len(p.pool)
}

func (p *TablePool) Inflight() int {
	return int(p.inflight.Load())
}

func (p *TablePool) ClosedReason() string {
	if v := p.closeReason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

type TablePoolMetrics struct {
	VariantName string   `json:"variant_name"`
	VariantID   spec.VID `json:"variant_id"`

	PoolSize      int    `json:"pool_size"`      // 目標容量
	Available     int    `json:"available"`      // 當下可借出的桌台數
	Inflight      int    `json:"inflight"`       // 使用中
	BrokenBacklog int    `json:"broken_backlog"` // 退役桌台 backlog
	Rolls         int64  `json:"rolls"`          // 成功擲骰次數
	Rebuild       int    `json:"rebuild"`        // 補桌次數
	Panics        int    `json:"panics"`
	Fatals        int    `json:"fatals"`
	Closed        bool   `json:"closed"`
	CloseReason   string `json:"close_reason"`

	CloseInflight int `json:"close_inflight"` // -1 表示尚未關閉
	CloseAvail    int `json:"close_avail"`
	CloseBroken   int `json:"close_broken"`
}

// Metrics 拉取式快照。
func (p *TablePool) Metrics() TablePoolMetrics {
	return TablePoolMetrics{
		VariantName:   p.name,
		VariantID:     p.vid,
		PoolSize:      p.poolsize,
		Available:     len(p.pool),
		Inflight:      int(p.inflight.Load()),
		BrokenBacklog: len(p.broken),
		Rolls:         p.rolls.Load(),
		Rebuild:       int(p.rebuild.Load()),
		Panics:        int(p.panics.Load()),
		Fatals:        int(p.fatals.Load()),
		Closed:        p.Closed(),
		CloseReason:   p.ClosedReason(),
		CloseInflight: int(p.closeInflight.Load()),
		CloseAvail:    int(p.closeAvail.Load()),
		CloseBroken:   int(p.closeBroken.Load()),
	}
}
