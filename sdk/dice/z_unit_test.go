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
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/sdk/core"
)

// script 依序吐出指定的點數（1-based），並記錄每次要求的面數。
type script struct {
	faces []int
	sides []int
}

func (s *script) IntN(n int) int {
	s.sides = append(s.sides, n)
	f := s.faces[0]
	s.faces = s.faces[1:]
	return f - 1
}

func TestParseShapes(t *testing.T) {
	r := Basic()
	for _, expr := range []string{"d4", "1d4", "4", "1D4", "  d4  "} {
		ds, err := r.Parse(expr)
		if err != nil {
			t.Fatalf("parse %q: %v", expr, err)
		}
		if !slices.Equal(ds, []Die{D4}) {
			t.Fatalf("parse %q: got %v", expr, ds)
		}
	}

	ds, err := r.Parse("3d6")
	if err != nil || !slices.Equal(ds, []Die{D6, D6, D6}) {
		t.Fatalf("3d6: got %v err=%v", ds, err)
	}

	ds, err = r.Parse("2d4 6\td8 4d12")
	if err != nil {
		t.Fatalf("mixed expr: %v", err)
	}
	want := []Die{D4, D4, D6, D8, D12, D12, D12, D12}
	if !slices.Equal(ds, want) {
		t.Fatalf("mixed expr: got %v want %v", ds, want)
	}
	for _, d := range ds {
		if !r.Allowed(d) {
			t.Fatalf("die %v not allowed", d)
		}
	}

	ds, err = r.Parse(" \t ")
	if err != nil || len(ds) != 0 {
		t.Fatalf("blank expr: got %v err=%v", ds, err)
	}
}

func TestParseMalformed(t *testing.T) {
	r := Basic()
	for _, tok := range []string{"d", "xd6", "d13", "13", "3d", "-1d6", "2x6", "d6d6"} {
		_, err := r.Parse("2d6 " + tok)
		if err == nil {
			t.Fatalf("%q: expected error", tok)
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", tok, err)
		}
		e, ok := errs.AsErr(err)
		if !ok || e.ErrLv != errs.Warn {
			t.Fatalf("%q: expected warn level error", tok)
		}
		if !strings.Contains(errs.Msg(err), `"`+tok+`"`) {
			t.Fatalf("%q: message does not name token: %s", tok, errs.Msg(err))
		}
	}
	// d12 不在 shimmer 變體中
	if _, err := Shimmering().Parse("d12"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("d12 should be rejected by shimmer rules, got %v", err)
	}
}

func TestParseDiceLimit(t *testing.T) {
	r := Basic()
	ds, err := r.Parse("1000000d6")
	if err != nil {
		t.Fatalf("exactly one million should pass: %v", err)
	}
	if len(ds) != 1_000_000 {
		t.Fatalf("expected 1000000 dice, got %d", len(ds))
	}
	for _, expr := range []string{"1000001d6", "99999999999999999999999d6"} {
		_, err := r.Parse(expr)
		if !errors.Is(err, ErrTooManyDice) {
			t.Fatalf("%s: expected ErrTooManyDice, got %v", expr, err)
		}
		if !strings.Contains(errs.Msg(err), "Too many dice") {
			t.Fatalf("%s: unexpected message %s", expr, errs.Msg(err))
		}
	}
	small, _ := NewRules(Rules{Dice: []Die{D6}, MaxDicePerToken: 3})
	if _, err := small.Parse("4d6"); !errors.Is(err, ErrTooManyDice) {
		t.Fatalf("custom limit not applied: %v", err)
	}
}

func TestCountMatchesParse(t *testing.T) {
	r := Cortex()
	for _, expr := range []string{"", "3d6 d8 10", "1000000d6 1000000d6 4"} {
		n, err := r.Count(expr)
		if err != nil {
			t.Fatalf("%q: count failed: %v", expr, err)
		}
		ds, _ := r.Parse(expr)
		if n != len(ds) {
			t.Fatalf("%q: count %d, parse %d", expr, n, len(ds))
		}
	}
	if _, err := r.Count("d6 xd6"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("count should reject malformed tokens: %v", err)
	}
	if _, err := r.Count("1000001d6"); !errors.Is(err, ErrTooManyDice) {
		t.Fatalf("count should keep the per-token limit: %v", err)
	}
}

func TestRollPlainAndGlitch(t *testing.T) {
	src := &script{faces: []int{1, 6}}
	if got := Basic().Roll(src, D6); got != Value(1, D6) {
		t.Fatalf("basic 1: got %+v", got)
	}
	if got := Basic().Roll(src, D6); got != Value(6, D6) {
		t.Fatalf("basic 6: got %+v", got)
	}

	src = &script{faces: []int{1, 8}}
	if got := Cortex().Roll(src, D8); got != Glitch(D8) {
		t.Fatalf("cortex 1: got %+v", got)
	}
	// cortex 沒有 shimmer，最大面就是一般值
	if got := Cortex().Roll(src, D8); got != Value(8, D8) {
		t.Fatalf("cortex 8: got %+v", got)
	}
}

func TestRollShimmerCascade(t *testing.T) {
	r := Shimmering()
	cases := []struct {
		name  string
		die   Die
		faces []int
		sides []int
		want  Roll
	}{
		{"single", D4, []int{4, 3}, []int{4, 6}, Shimmer(D4, D6, 1, 4)},
		{"higher", D4, []int{4, 5}, []int{4, 6}, Shimmer(D4, D6, 1, 5)},
		{"double", D4, []int{4, 6, 5}, []int{4, 6, 8}, Shimmer(D4, D8, 2, 6)},
		{"to top", D4, []int{4, 6, 8, 10}, []int{4, 6, 8, 10}, Shimmer(D4, D10, 3, 10)},
		{"glitch keeps face", D4, []int{4, 1}, []int{4, 6}, Value(4, D4)},
		{"inner glitch", D4, []int{4, 6, 1}, []int{4, 6, 8}, Shimmer(D4, D6, 1, 6)},
		{"largest never cascades", D10, []int{10}, []int{10}, Value(10, D10)},
		{"plain", D8, []int{7}, []int{8}, Value(7, D8)},
		{"glitch", D8, []int{1}, []int{8}, Glitch(D8)},
	}
	for _, tc := range cases {
		src := &script{faces: tc.faces}
		got := r.Roll(src, tc.die)
		if got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.name, got, tc.want)
		}
		if !slices.Equal(src.sides, tc.sides) || len(src.faces) != 0 {
			t.Fatalf("%s: rolled %v want %v (left %v)", tc.name, src.sides, tc.sides, src.faces)
		}
	}

	// 沒有 glitch 的 shimmer 變體：重擲出 1 只是一般值
	noGlitch, _ := NewRules(Rules{Dice: []Die{D4, D6}, Shimmer: true})
	if got := noGlitch.Roll(&script{faces: []int{4, 1}}, D4); got != Shimmer(D4, D6, 1, 4) {
		t.Fatalf("no-glitch shimmer: got %+v", got)
	}
}

// maxFirst 第一次回傳最大面，之後交給 inner。
type maxFirst struct {
	inner RandomSource
	used  bool
}

func (m *maxFirst) IntN(n int) int {
	if !m.used {
		m.used = true
		return n - 1
	}
	return m.inner.IntN(n)
}

func TestShimmerNeverBelowTrigger(t *testing.T) {
	r := Shimmering()
	c := core.New(core.Default().New(11))
	for i := 0; i < 2000; i++ {
		for _, d := range []Die{D4, D6, D8} {
			got := r.Roll(&maxFirst{inner: c}, d)
			switch got.Kind {
			case KindShimmer:
				if got.Value < int(d) || got.Ultimate <= d || got.Die != d {
					t.Fatalf("bad shimmer %+v from %v", got, d)
				}
			case KindValue:
				if got.Value != int(d) || got.Die != d {
					t.Fatalf("bad fallback %+v from %v", got, d)
				}
			default:
				t.Fatalf("max face produced %+v", got)
			}
		}
	}
}

func TestEvaluateReference(t *testing.T) {
	r := Basic()
	rolls := []Roll{Value(1, D4), Value(2, D6), Value(3, D8)}
	before := slices.Clone(rolls)

	if got := r.BestEffect(rolls); got != (Result{Total: 3, Effect: D8}) {
		t.Fatalf("best effect: got %+v", got)
	}
	if got := r.BestTotal(rolls); got != (Result{Total: 5, Effect: D4}) {
		t.Fatalf("best total: got %+v", got)
	}
	if !slices.Equal(rolls, before) {
		t.Fatalf("evaluation mutated input: %v", rolls)
	}
}

func TestBestEffectTieBreak(t *testing.T) {
	r := Basic()
	rolls := []Roll{Value(5, D8), Value(2, D8), Value(6, D6), Value(4, D4)}
	if got := r.BestEffect(rolls); got != (Result{Total: 11, Effect: D8}) {
		t.Fatalf("got %+v", got)
	}
	// shimmer 以 ultimate die 參與
	rolls = []Roll{Shimmer(D4, D10, 2, 9), Value(8, D8), Value(3, D6), Value(2, D6)}
	if got := Shimmering().BestEffect(rolls); got != (Result{Total: 11, Effect: D10}) {
		t.Fatalf("shimmer effect: got %+v", got)
	}
}

func TestBestEffectFewDice(t *testing.T) {
	r := Cortex()
	rolls := []Roll{Glitch(D12), Value(3, D6), Value(5, D8)}
	if got := r.BestEffect(rolls); got != (Result{Total: 8, Effect: D4}) {
		t.Fatalf("got %+v", got)
	}
	if got := r.BestEffect([]Roll{Value(7, D10)}); got != (Result{Total: 7, Effect: D4}) {
		t.Fatalf("single: got %+v", got)
	}
}

func TestBestTotal(t *testing.T) {
	r := Cortex()
	rolls := []Roll{Value(3, D4), Value(3, D8), Value(3, D6)}
	if got := r.BestTotal(rolls); got != (Result{Total: 6, Effect: D8}) {
		t.Fatalf("tied values: got %+v", got)
	}
	rolls = []Roll{Glitch(D12), Glitch(D10), Value(2, D4)}
	if got := r.BestTotal(rolls); got != (Result{Total: 2, Effect: D4}) {
		t.Fatalf("glitch never counted: got %+v", got)
	}
	rolls = []Roll{Value(9, D10), Value(1, D12), Value(2, D6), Glitch(D12), Value(7, D8)}
	if got := r.BestTotal(rolls); got != (Result{Total: 16, Effect: D12}) {
		t.Fatalf("mixed: got %+v", got)
	}
}

func TestBotch(t *testing.T) {
	r := Cortex()
	rolls := []Roll{Glitch(D6), Glitch(D8)}
	o := r.Evaluate(rolls)
	if !o.Botch() || o.Glitches != 2 {
		t.Fatalf("expected botch: %+v", o)
	}
	if got := r.Summary(o); got != "**BOTCH!**" {
		t.Fatalf("summary: %q", got)
	}
	if got := r.Render(o); got != "**1** (d6)\n**1** (d8)\n\n**BOTCH!**" {
		t.Fatalf("render: %q", got)
	}

	// 有 glitch 但沒有 botch 的變體退回零結果
	soft, _ := NewRules(Rules{Dice: []Die{D4, D6, D8}, Glitch: true})
	o = soft.Evaluate(rolls)
	if o.Botch() || o.Effect != (Result{Effect: D4}) {
		t.Fatalf("soft: %+v", o)
	}
	if got := soft.Summary(o); got != "Glitches: 2\nBest: total **0**, effect d4" {
		t.Fatalf("soft summary: %q", got)
	}
}

func TestRender(t *testing.T) {
	r := Basic()
	o := r.Evaluate([]Roll{Value(1, D4), Value(2, D6), Value(3, D8)})
	want := "1 (d4)\n2 (d6)\n3 (d8)\n\n" +
		"Best effect: total **3**, effect d8\n" +
		"Best total: total **5**, effect d4"
	if got := r.Render(o); got != want {
		t.Fatalf("render:\n%s\nwant:\n%s", got, want)
	}
	if r.Render(o) != r.Render(o) {
		t.Fatalf("render not idempotent")
	}

	o = r.Evaluate([]Roll{Value(5, D6)})
	if got := r.Render(o); got != "5 (d6)\n\nBest: total **5**, effect d4" {
		t.Fatalf("agree: %q", got)
	}

	if got := r.Render(r.Evaluate(nil)); got != "Nothing to roll." {
		t.Fatalf("empty: %q", got)
	}
}

func TestRenderShimmerLines(t *testing.T) {
	r := Shimmering()
	if got := Shimmer(D4, D6, 1, 5).String(); got != "5 (d4 shimmered to d6)" {
		t.Fatalf("single: %q", got)
	}
	if got := Shimmer(D4, D10, 3, 10).String(); got != "10 (d4 shimmered x3 to d10)" {
		t.Fatalf("multi: %q", got)
	}
	o := r.Evaluate([]Roll{Shimmer(D4, D6, 1, 5), Glitch(D8), Value(3, D6)})
	sum := r.Summary(o)
	if !strings.HasPrefix(sum, "Glitches: 1\nShimmers: 1\n") {
		t.Fatalf("summary: %q", sum)
	}
}

func TestRenderTruncates(t *testing.T) {
	r, _ := NewRules(Rules{Dice: []Die{D6}, MessageLimit: 40})
	rolls := make([]Roll, 20)
	for i := range rolls {
		rolls[i] = Value(3, D6)
	}
	o := r.Evaluate(rolls)
	got := r.Render(o)
	want := "Too many dice to list them all, here is the summary.\n\n" + r.Summary(o)
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestConflictPlaceholder(t *testing.T) {
	o := Outcome{
		Rolls:  []Roll{Value(2, D4)},
		Effect: Result{Botch: true},
		Total:  Result{Total: 2, Effect: D4},
	}
	if got := Cortex().Summary(o); got != "**Internal error:** effect and total disagree on botch." {
		t.Fatalf("got %q", got)
	}
}

func TestRollExprParseFailureConsumesNothing(t *testing.T) {
	src := &script{}
	if _, err := Cortex().RollExpr(src, "2d6 d7"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
	if len(src.sides) != 0 {
		t.Fatalf("randomness consumed on parse failure")
	}

	src = &script{faces: []int{2, 5, 1}}
	o, err := Cortex().RollExpr(src, "2d6 d8")
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if o.Glitches != 1 || o.Total != (Result{Total: 7, Effect: D4}) {
		t.Fatalf("outcome: %+v", o)
	}
}

func TestNewRules(t *testing.T) {
	if _, err := NewRules(Rules{}); err == nil {
		t.Fatalf("empty dice should fail")
	}
	if _, err := NewRules(Rules{Dice: []Die{D6}, Botch: true}); err == nil {
		t.Fatalf("botch without glitch should fail")
	}
	if _, err := NewRules(Rules{Dice: []Die{1, D6}}); err == nil {
		t.Fatalf("one-sided die should fail")
	}
	r, err := NewRules(Rules{Dice: []Die{D8, D4, D8, D6}})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if !slices.Equal(r.Dice, []Die{D4, D6, D8}) {
		t.Fatalf("not normalized: %v", r.Dice)
	}
	if r.MessageLimit != DefaultMessageLimit || r.MaxDicePerToken != DefaultMaxDicePerToken {
		t.Fatalf("defaults not applied: %+v", r)
	}
	if r.Next(D4) != D6 || r.Next(D8) != D8 || r.Smallest() != D4 || r.Largest() != D8 {
		t.Fatalf("ordering helpers broken")
	}
}

func TestKindText(t *testing.T) {
	var k Kind
	if err := k.UnmarshalText([]byte("shimmer")); err != nil || k != KindShimmer {
		t.Fatalf("unmarshal: %v %v", k, err)
	}
	if err := k.UnmarshalText([]byte("nope")); err == nil {
		t.Fatalf("expected error")
	}
}
