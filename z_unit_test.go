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
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/zintix-labs/cortexlab/dto"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/sdk/core"
	"github.com/zintix-labs/cortexlab/sdk/dice"
	"github.com/zintix-labs/cortexlab/spec"
)

func newTestLab(t *testing.T) *Lab {
	t.Helper()
	lab, err := NewDefault()
	if err != nil {
		t.Fatalf("new lab failed: %v", err)
	}
	return lab
}

func TestLabSummary(t *testing.T) {
	lab := newTestLab(t)
	ids := lab.IDs()
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	sum, err := lab.Summary()
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(sum) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(sum))
	}
	sh := sum[2]
	if sh.Name != "shimmer" || !sh.Shimmer || !sh.Glitch || !sh.Botch {
		t.Fatalf("unexpected shimmer summary: %+v", sh)
	}
	if len(sh.Dice) != 4 || sh.Dice[3] != 10 {
		t.Fatalf("unexpected shimmer dice: %v", sh.Dice)
	}
}

func TestLabResolve(t *testing.T) {
	lab := newTestLab(t)
	if id, err := lab.Resolve(0, "Cortex"); err != nil || id != 2 {
		t.Fatalf("resolve by name: id=%d err=%v", id, err)
	}
	if id, err := lab.Resolve(3, ""); err != nil || id != 3 {
		t.Fatalf("resolve by id: id=%d err=%v", id, err)
	}
	if _, err := lab.Resolve(1, "cortex"); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if _, err := lab.Resolve(0, "fate"); err == nil {
		t.Fatalf("expected unknown variant error")
	}
	if _, err := lab.Resolve(0, ""); err == nil {
		t.Fatalf("expected missing variant error")
	}
}

func TestNewRejectsMissingInputs(t *testing.T) {
	if _, err := New(nil, Configs()); err == nil {
		t.Fatalf("expected error for nil factory")
	}
	if _, err := New(core.Default(), nil); err == nil {
		t.Fatalf("expected error for empty configs")
	}
}

func TestTableSeedDeterminism(t *testing.T) {
	lab := newTestLab(t)
	t1, err := lab.NewTableWithSeed(2, 99)
	if err != nil {
		t.Fatalf("new table failed: %v", err)
	}
	t2, _ := lab.NewTableWithSeed(2, 99)
	req := &dto.RollRequest{Expr: "3d6 d8 d10"}
	for i := 0; i < 5; i++ {
		a, err := t1.Roll(req)
		if err != nil {
			t.Fatalf("roll failed: %v", err)
		}
		b, _ := t2.Roll(req)
		if a.Text != b.Text || a.State.AfterCoreSnapB64U != b.State.AfterCoreSnapB64U {
			t.Fatalf("same seed diverged at %d", i)
		}
		if a.Dice != 5 || len(a.Rolls) != 5 {
			t.Fatalf("unexpected dice count: %+v", a)
		}
	}
}

func TestTableReplay(t *testing.T) {
	lab := newTestLab(t)
	tb, _ := lab.NewTableWithSeed(3, 7)
	ref, _ := lab.NewTableWithSeed(3, 7)

	first, err := tb.Roll(&dto.RollRequest{Expr: "4d8 d10"})
	if err != nil {
		t.Fatalf("roll failed: %v", err)
	}
	_, _ = ref.Roll(&dto.RollRequest{Expr: "4d8 d10"})

	replay, err := tb.Roll(&dto.RollRequest{
		Expr:       "4d8 d10",
		StartState: &dto.StartState{StartCoreSnapB64U: first.State.StartCoreSnapB64U},
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replay.Text != first.Text {
		t.Fatalf("replay mismatch:\n%s\n---\n%s", replay.Text, first.Text)
	}

	// 回放不推進桌台本身的序列
	next, _ := tb.Roll(&dto.RollRequest{Expr: "2d6"})
	want, _ := ref.Roll(&dto.RollRequest{Expr: "2d6"})
	if next.Text != want.Text {
		t.Fatalf("replay advanced the table sequence")
	}
}

func TestTableParseErrorKeepsSequence(t *testing.T) {
	lab := newTestLab(t)
	tb, _ := lab.NewTableWithSeed(1, 5)
	ref, _ := lab.NewTableWithSeed(1, 5)
	if _, err := tb.Roll(&dto.RollRequest{Expr: "3d7"}); err == nil {
		t.Fatalf("expected parse error")
	}
	a, _ := tb.Roll(&dto.RollRequest{Expr: "d12"})
	b, _ := ref.Roll(&dto.RollRequest{Expr: "d12"})
	if a.Text != b.Text {
		t.Fatalf("parse error consumed randomness")
	}
}

func TestTableRejectsOtherVariant(t *testing.T) {
	lab := newTestLab(t)
	tb, _ := lab.NewTableWithSeed(1, 5)
	if _, err := tb.Roll(&dto.RollRequest{VariantID: 2, Expr: "d6"}); err == nil {
		t.Fatalf("expected variant mismatch")
	}
	if _, err := tb.Roll(&dto.RollRequest{Variant: "BASIC", Expr: "d6"}); err != nil {
		t.Fatalf("name match should ignore case: %v", err)
	}
}

func TestTablePoolRetiresPanickedTable(t *testing.T) {
	lab := newTestLab(t)
	vs, err := lab.setting(2)
	if err != nil {
		t.Fatalf("setting failed: %v", err)
	}
	p := newTablePool(1, vs, core.Default(), 11)
	defer p.Close()

	broken := <-p.pool
	broken.rules = nil
	p.pool <- broken

	req := &dto.RollRequest{Expr: "d6"}
	_, err = p.Roll(context.Background(), req)
	e, ok := errs.AsErr(err)
	if !ok || e.ErrLv != errs.Fatal {
		t.Fatalf("expected fatal error, got %v", err)
	}
	m := p.Metrics()
	if m.Panics != 1 || m.Rebuild != 1 || m.BrokenBacklog != 1 || m.Available != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if _, err := p.Roll(context.Background(), req); err != nil {
		t.Fatalf("rebuilt table should serve: %v", err)
	}
	if p.Metrics().Rolls != 1 {
		t.Fatalf("expected one successful roll")
	}
}

func TestTablePoolClosed(t *testing.T) {
	lab := newTestLab(t)
	vs, _ := lab.setting(1)
	p := newTablePool(2, vs, core.Default(), 1)
	p.Close()
	p.Close()
	if _, err := p.Roll(context.Background(), &dto.RollRequest{Expr: "d4"}); err == nil {
		t.Fatalf("expected closed pool error")
	}
	m := p.Metrics()
	if !m.Closed || m.CloseReason != "closed" || m.CloseAvail != 2 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestRuntimeRoll(t *testing.T) {
	lab := newTestLab(t)
	rt, err := lab.BuildRuntime(2)
	if err != nil {
		t.Fatalf("build runtime failed: %v", err)
	}
	defer rt.Close()
	ctx := context.Background()

	res, err := rt.Roll(ctx, &dto.RollRequest{Variant: "cortex", Expr: "2d6 d8"})
	if err != nil {
		t.Fatalf("roll failed: %v", err)
	}
	if res.VariantID != 2 || res.Dice != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	seed := int64(42)
	a, err := rt.Roll(ctx, &dto.RollRequest{VariantID: 3, Expr: "3d8", Seed: &seed})
	if err != nil {
		t.Fatalf("seeded roll failed: %v", err)
	}
	tb, _ := lab.NewTableWithSeed(3, seed)
	b, _ := tb.Roll(&dto.RollRequest{Expr: "3d8"})
	if a.Text != b.Text || a.State.Seed != seed {
		t.Fatalf("seeded roll not reproducible")
	}

	if _, err := rt.Roll(ctx, &dto.RollRequest{Variant: "nope", Expr: "d6"}); err == nil {
		t.Fatalf("expected unknown variant error")
	}

	var rolls int64
	for _, m := range rt.Metrics() {
		rolls += m.Rolls
	}
	if rolls != 1 {
		t.Fatalf("expected 1 pooled roll, got %d", rolls)
	}
}

func TestRuntimeClosedAndCanceled(t *testing.T) {
	lab := newTestLab(t)
	rt, err := lab.BuildRuntime(1)
	if err != nil {
		t.Fatalf("build runtime failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rt.Roll(ctx, &dto.RollRequest{VariantID: 1, Expr: "d6"}); err == nil {
		t.Fatalf("expected canceled error")
	}

	rt.Close()
	if !rt.Closed() || rt.ClosedReason() != "closed" {
		t.Fatalf("runtime should be closed")
	}
	_, err = rt.Roll(context.Background(), &dto.RollRequest{VariantID: 1, Expr: "d6"})
	e, ok := errs.AsErr(err)
	if !ok || e.ErrLv != errs.Fatal {
		t.Fatalf("expected fatal after close, got %v", err)
	}
	for _, m := range rt.Metrics() {
		if !m.Closed {
			t.Fatalf("pool %s still open", m.VariantName)
		}
	}
}

func TestSimulator(t *testing.T) {
	lab := newTestLab(t)
	s1, err := lab.NewSimulatorWithSeed(2, 2024)
	if err != nil {
		t.Fatalf("new simulator failed: %v", err)
	}
	s2, _ := lab.NewSimulatorWithSeed(2, 2024)
	ctx := context.Background()

	r1, _, err := s1.Sim(ctx, "3d6 d8", 2000, false)
	if err != nil {
		t.Fatalf("sim failed: %v", err)
	}
	r2, _, _ := s2.Sim(ctx, "3d6 d8", 2000, false)
	if r1.Summary.Rounds != 2000 || r1.Summary.Dice != 4 {
		t.Fatalf("unexpected summary: %+v", r1.Summary)
	}
	if r1.Summary.Botches != r2.Summary.Botches || r1.Total.Mean != r2.Total.Mean {
		t.Fatalf("same seed produced different reports")
	}
	if r1.Summary.Conflicts != 0 {
		t.Fatalf("unexpected conflicts: %d", r1.Summary.Conflicts)
	}

	mp, _, err := s1.SimMP(ctx, "3d6 d8", 500, 4, false)
	if err != nil {
		t.Fatalf("simmp failed: %v", err)
	}
	if mp.Summary.Rounds != 2000 {
		t.Fatalf("expected 2000 rounds, got %d", mp.Summary.Rounds)
	}

	if _, _, err := s1.Sim(ctx, "", 10, false); err == nil {
		t.Fatalf("expected error for empty pool")
	}
	if _, _, err := s1.Sim(ctx, "d6", 0, false); err == nil {
		t.Fatalf("expected error for zero rounds")
	}
	if _, _, err := s1.SimMP(ctx, "d6", 10, 0, false); err == nil {
		t.Fatalf("expected error for zero workers")
	}
}

func TestSimStopsAtDeadline(t *testing.T) {
	lab := newTestLab(t)
	s, _ := lab.NewSimulatorWithSeed(2, 1)

	for _, workers := range []int{1, 3} {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		start := time.Now()
		var err error
		if workers == 1 {
			_, _, err = s.Sim(ctx, "100000d6", 1000, false)
		} else {
			_, _, err = s.SimMP(ctx, "100000d6", 1000, workers, false)
		}
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("workers=%d: expected deadline error, got %v", workers, err)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Fatalf("workers=%d: simulation ignored the deadline: %v", workers, elapsed)
		}
	}

	// 已取消的 ctx 不會擲任何一局
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.SimMP(ctx, "d6", 10, 2, false); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestRuntimeDiceLimits(t *testing.T) {
	lab := newTestLab(t)
	rt, err := lab.BuildRuntime(1)
	if err != nil {
		t.Fatalf("build runtime failed: %v", err)
	}
	defer rt.Close()
	rt.SetDiceLimits(10, 1000)
	ctx := context.Background()

	if _, err := rt.Roll(ctx, &dto.RollRequest{Variant: "cortex", Expr: "5d6 5d8"}); err != nil {
		t.Fatalf("roll at the limit failed: %v", err)
	}
	_, err = rt.Roll(ctx, &dto.RollRequest{Variant: "cortex", Expr: "5d6 5d8 d4"})
	if !errors.Is(err, dice.ErrTooManyDice) {
		t.Fatalf("expected too many dice, got %v", err)
	}
	if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Warn {
		t.Fatalf("limit error should be a warn: %v", err)
	}
	seed := int64(1)
	if _, err := rt.Roll(ctx, &dto.RollRequest{Variant: "cortex", Expr: "11d6", Seed: &seed}); !errors.Is(err, dice.ErrTooManyDice) {
		t.Fatalf("seeded roll should be limited too: %v", err)
	}
	if _, err := rt.Roll(ctx, &dto.RollRequest{Variant: "cortex", Expr: "xd6"}); !errors.Is(err, dice.ErrMalformed) {
		t.Fatalf("malformed expression should keep its error: %v", err)
	}

	if _, _, err := rt.Sim(ctx, &dto.SimRequest{Variant: "cortex", Expr: "2d6", Rounds: 250, Workers: 2}); err != nil {
		t.Fatalf("sim at the limit failed: %v", err)
	}
	if _, _, err := rt.Sim(ctx, &dto.SimRequest{Variant: "cortex", Expr: "2d6", Rounds: 251, Workers: 2}); !errors.Is(err, dice.ErrTooManyDice) {
		t.Fatalf("expected too many simulated dice, got %v", err)
	}
	if _, _, err := rt.Sim(ctx, &dto.SimRequest{Variant: "cortex", Expr: "d6", Rounds: math.MaxInt, Workers: 4}); !errors.Is(err, dice.ErrTooManyDice) {
		t.Fatalf("overflowing rounds should be limited: %v", err)
	}
}

func TestTablePoolConcurrentRoll(t *testing.T) {
	lab := newTestLab(t)
	vs, err := lab.setting(3)
	if err != nil {
		t.Fatalf("setting failed: %v", err)
	}
	p := newTablePool(3, vs, core.Default(), 17)
	defer p.Close()

	const goroutines, rolls = 16, 200
	var wg sync.WaitGroup
	errCh := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rolls; i++ {
				res, err := p.Roll(context.Background(), &dto.RollRequest{Expr: "d4 2d6 d8"})
				if err != nil {
					errCh <- err
					return
				}
				if res.Text == "" {
					errCh <- errs.NewFatal("empty roll text")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent roll failed: %v", err)
	}

	m := p.Metrics()
	if m.Rolls != goroutines*rolls {
		t.Fatalf("expected %d rolls, got %d", goroutines*rolls, m.Rolls)
	}
	if m.Available != m.PoolSize || m.Inflight != 0 || m.Rebuild != 0 {
		t.Fatalf("pool not restored after concurrent use: %+v", m)
	}
}

func TestRuntimeSim(t *testing.T) {
	lab := newTestLab(t)
	rt, err := lab.BuildRuntime(1)
	if err != nil {
		t.Fatalf("build runtime failed: %v", err)
	}
	defer rt.Close()
	seed := int64(3)
	rep, _, err := rt.Sim(context.Background(), &dto.SimRequest{Variant: "shimmer", Expr: "d4 d6", Rounds: 300, Workers: 2, Seed: &seed})
	if err != nil {
		t.Fatalf("sim failed: %v", err)
	}
	if rep.Summary.Rounds != 600 || rep.Summary.VariantID != spec.VID(3) {
		t.Fatalf("unexpected summary: %+v", rep.Summary)
	}
}

func TestSeedMakerDistinct(t *testing.T) {
	sm := newSeedMaker(1)
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		v := sm.next()
		if v < 0 || seen[v] {
			t.Fatalf("seed %d repeated or negative", v)
		}
		seen[v] = true
	}
}
