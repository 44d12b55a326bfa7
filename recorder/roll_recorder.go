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

package recorder

import (
	"fmt"

	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/sdk/dice"
	"github.com/zintix-labs/cortexlab/spec"
	"github.com/zintix-labs/cortexlab/stats"
)

// RollRecorder 累計多次擲骰結果。非併發安全：一個 worker 一個 recorder，最後再合併。
type RollRecorder struct {
	VariantName string
	VariantID   spec.VID
	Expr        string
	Dice        int
	Basic       *BasicRecord
	Effect      *InterpRecord
	Total       *InterpRecord
}

type BasicRecord struct {
	Rounds        int
	Botches       int
	GlitchRounds  int
	Glitches      int
	ShimmerRounds int
	Shimmers      int
	Agreements    int
	Conflicts     int
}

// InterpRecord 單一解讀在非 botch 局的計數；以值為索引。
type InterpRecord struct {
	Samples int
	Totals  []int // Totals[t] = total 為 t 的次數
	Effects []int // Effects[s] = effect 為 s 面骰的次數
}

func NewRollRecorder(name string, id spec.VID, expr string, diceCount int) (*RollRecorder, error) {
	if diceCount < 1 {
		return nil, errs.NewWarn(fmt.Sprintf("nothing to record for %q", expr))
	}
	return &RollRecorder{
		VariantName: name,
		VariantID:   id,
		Expr:        expr,
		Dice:        diceCount,
		Basic:       new(BasicRecord),
		Effect:      new(InterpRecord),
		Total:       new(InterpRecord),
	}, nil
}

func MergeRollRecorder(rs []*RollRecorder) (*RollRecorder, error) {
	if len(rs) == 0 {
		return nil, errs.NewFatal("merge roll record err : empty input")
	}
	r0 := rs[0]
	out, err := NewRollRecorder(r0.VariantName, r0.VariantID, r0.Expr, r0.Dice)
	if err != nil {
		return nil, err
	}
	for _, v := range rs {
		if v.VariantID != r0.VariantID || v.VariantName != r0.VariantName {
			return nil, errs.NewFatal("merge roll record err : different variant")
		}
		if v.Expr != r0.Expr || v.Dice != r0.Dice {
			return nil, errs.NewFatal("merge roll record err : different expression")
		}
		b := out.Basic
		b.Rounds += v.Basic.Rounds
		b.Botches += v.Basic.Botches
		b.GlitchRounds += v.Basic.GlitchRounds
		b.Glitches += v.Basic.Glitches
		b.ShimmerRounds += v.Basic.ShimmerRounds
		b.Shimmers += v.Basic.Shimmers
		b.Agreements += v.Basic.Agreements
		b.Conflicts += v.Basic.Conflicts
		out.Effect.merge(v.Effect)
		out.Total.merge(v.Total)
	}
	return out, nil
}

// Record 記一次擲骰。
func (r *RollRecorder) Record(o dice.Outcome) {
	b := r.Basic
	b.Rounds++
	b.Glitches += o.Glitches
	b.Shimmers += o.Shimmers
	if o.Glitches > 0 {
		b.GlitchRounds++
	}
	if o.Shimmers > 0 {
		b.ShimmerRounds++
	}
	if o.Agree() {
		b.Agreements++
	}
	switch {
	case o.Conflict():
		b.Conflicts++
	case o.Botch():
		b.Botches++
	}
	r.Effect.add(o.Effect)
	r.Total.add(o.Total)
}

func (ir *InterpRecord) add(res dice.Result) {
	if res.Botch {
		return
	}
	ir.Samples++
	ir.Totals = bump(ir.Totals, res.Total, 1)
	ir.Effects = bump(ir.Effects, res.Effect.Sides(), 1)
}

func (ir *InterpRecord) merge(o *InterpRecord) {
	ir.Samples += o.Samples
	for v, c := range o.Totals {
		if c > 0 {
			ir.Totals = bump(ir.Totals, v, c)
		}
	}
	for v, c := range o.Effects {
		if c > 0 {
			ir.Effects = bump(ir.Effects, v, c)
		}
	}
}

func bump(xs []int, idx int, n int) []int {
	if idx < 0 {
		return xs
	}
	for len(xs) <= idx {
		xs = append(xs, 0)
	}
	xs[idx] += n
	return xs
}

// Done 轉成 StatReport（已完成計算）。
func (r *RollRecorder) Done() *stats.StatReport {
	b := r.Basic
	report := &stats.StatReport{
		Summary: &stats.SummaryReport{
			VariantName:   r.VariantName,
			VariantID:     r.VariantID,
			Expr:          r.Expr,
			Dice:          r.Dice,
			Rounds:        b.Rounds,
			Botches:       b.Botches,
			GlitchRounds:  b.GlitchRounds,
			Glitches:      b.Glitches,
			ShimmerRounds: b.ShimmerRounds,
			Shimmers:      b.Shimmers,
			Agreements:    b.Agreements,
			Conflicts:     b.Conflicts,
		},
		Effect: r.Effect.report(),
		Total:  r.Total.report(),
	}
	report.Done()
	return report
}

func (ir *InterpRecord) report() *stats.InterpReport {
	out := &stats.InterpReport{Samples: ir.Samples}
	for v, c := range ir.Totals {
		if c > 0 {
			out.TotalValues = append(out.TotalValues, v)
			out.TotalCollect = append(out.TotalCollect, c)
		}
	}
	for s, c := range ir.Effects {
		if c > 0 {
			out.EffectDice = append(out.EffectDice, s)
			out.EffectCollect = append(out.EffectCollect, c)
		}
	}
	return out
}
