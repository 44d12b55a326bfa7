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
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/recorder"
	"github.com/zintix-labs/cortexlab/sdk/core"
	"github.com/zintix-labs/cortexlab/sdk/dice"
	"github.com/zintix-labs/cortexlab/spec"
	"github.com/zintix-labs/cortexlab/stats"
)

const capPrepare int = 100

// Simulator 對同一個表達式反覆擲骰，可建立多張桌台平行紀錄統計。
type Simulator struct {
	VariantName string
	VariantID   spec.VID
	vs          *spec.VariantSetting
	rules       *dice.Rules
	cf          core.PRNGFactory
	initSeed    int64                    // 初始下的種子
	seedmaker   *seedMaker               // 種子生成器
	tBuf        []*Table                 // 併發桌台實例
	rBuf        []*recorder.RollRecorder // 併發紀錄員
}

func newSimulatorWithSeed(vs *spec.VariantSetting, cf core.PRNGFactory, seed int64) *Simulator {
	s := &Simulator{
		VariantName: vs.VariantName,
		VariantID:   vs.VariantID,
		vs:          vs,
		rules:       vs.Rules(),
		cf:          cf,
		initSeed:    seed,
		seedmaker:   newSeedMaker(seed),
		tBuf:        make([]*Table, 1, capPrepare),
		rBuf:        make([]*recorder.RollRecorder, 0, capPrepare),
	}
	s.tBuf[0] = newTableWithSeed(vs, cf, s.initSeed)
	return s
}

func (s *Simulator) Seed() int64 {
	return s.initSeed
}

// prepare 解析表達式一次；空的骰池無從統計。
func (s *Simulator) prepare(expr string, rounds int) ([]dice.Die, error) {
	if rounds < 1 {
		return nil, errs.NewWarn("round must > 0")
	}
	ds, err := s.rules.Parse(expr)
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return nil, errs.NewWarn("nothing to simulate: empty dice pool")
	}
	return ds, nil
}

// Sim 單線模擬器：以一張桌台連續擲指定 round 次並回傳統計結果與用時。
// ctx 結束時中止並回傳錯誤。
func (s *Simulator) Sim(ctx context.Context, expr string, round int, showpb bool) (*stats.StatReport, time.Duration, error) {
	defer s.reset()
	ds, err := s.prepare(expr, round)
	if err != nil {
		return nil, 0, err
	}
	r, err := recorder.NewRollRecorder(s.VariantName, s.VariantID, expr, len(ds))
	if err != nil {
		return nil, 0, err
	}
	s.rBuf = append(s.rBuf, r)
	t := s.tBuf[0]

	bar := pb.StartNew(round)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	done := ctx.Done()
	for i := 0; i < round; i++ {
		if stopped(done) {
			bar.Finish()
			return nil, 0, errs.Wrap(ctx.Err(), "simulation stopped")
		}
		r.Record(t.RollDice(ds))
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()

	return r.Done(), used, nil
}

// SimMP 平行執行多張桌台，總計 rounds*mp 次擲骰，合併統計結果後回傳統計結果與用時。
// ctx 結束時所有 worker 在下一局前停下，整體回傳錯誤。
func (s *Simulator) SimMP(ctx context.Context, expr string, rounds int, mp int, showpb bool) (*stats.StatReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	ds, err := s.prepare(expr, rounds)
	if err != nil {
		return nil, 0, err
	}
	for len(s.tBuf) < mp {
		s.tBuf = append(s.tBuf, newTableWithSeed(s.vs, s.cf, s.seedmaker.next()))
	}
	for len(s.rBuf) < mp {
		r, err := recorder.NewRollRecorder(s.VariantName, s.VariantID, expr, len(ds))
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := pb.StartNew(rounds * mp)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	done := ctx.Done()
	for i := 0; i < mp; i++ {
		go func(i int) {
			defer wg.Done()
			t := s.tBuf[i]
			rec := s.rBuf[i]
			for r := 0; r < rounds; r++ {
				if stopped(done) {
					return
				}
				rec.Record(t.RollDice(ds))
				bar.Increment()
			}
		}(i)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if err := ctx.Err(); err != nil {
		return nil, 0, errs.Wrap(err, "simulation stopped")
	}

	merged, err := recorder.MergeRollRecorder(s.rBuf[:mp])
	if err != nil {
		return nil, 0, err
	}
	return merged.Done(), used, nil
}

func stopped(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next 走全週期 LCG（mod 2^63，不重複），再用可逆 mix63 打散。
//
// 可能被多個 goroutine 同時呼叫（TablePool 補桌），state 以 CAS 迴圈推進。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用可逆的 bit 操作加上乘奇數（mod 2^63）。
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
