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

package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/cortexlab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var lang language.Tag = language.English

// Confidence 報表中所有區間估計使用的信賴水準。
const Confidence = 0.95

type CI struct {
	Lo float64 `json:"Lo" yaml:"Lo"`
	Hi float64 `json:"Hi" yaml:"Hi"`
}

// StatReport 一次模擬的統計報表。
//
// 由 recorder 填入計數，Done() 計算比例、信賴區間與平均/標準差。
type StatReport struct {
	Summary *SummaryReport `json:"Summary"    yaml:"Summary"`
	Effect  *InterpReport  `json:"BestEffect" yaml:"BestEffect"`
	Total   *InterpReport  `json:"BestTotal"  yaml:"BestTotal"`
	isDone  bool
}

type SummaryReport struct {
	VariantName   string   `json:"VariantName"   yaml:"VariantName"`
	VariantID     spec.VID `json:"VariantID"     yaml:"VariantID"`
	Expr          string   `json:"Expr"          yaml:"Expr"`
	Dice          int      `json:"Dice"          yaml:"Dice"` // 每次擲幾顆
	Rounds        int      `json:"Rounds"        yaml:"Rounds"`
	Botches       int      `json:"Botches"       yaml:"Botches"`
	BotchRate     float64  `json:"BotchRate"     yaml:"BotchRate"`
	BotchCI       CI       `json:"BotchCI"       yaml:"BotchCI"`
	GlitchRounds  int      `json:"GlitchRounds"  yaml:"GlitchRounds"` // 至少一顆 glitch 的次數
	GlitchRate    float64  `json:"GlitchRate"    yaml:"GlitchRate"`
	GlitchCI      CI       `json:"GlitchCI"      yaml:"GlitchCI"`
	Glitches      int      `json:"Glitches"      yaml:"Glitches"` // glitch 骰子總數
	ShimmerRounds int      `json:"ShimmerRounds" yaml:"ShimmerRounds"`
	ShimmerRate   float64  `json:"ShimmerRate"   yaml:"ShimmerRate"`
	ShimmerCI     CI       `json:"ShimmerCI"     yaml:"ShimmerCI"`
	Shimmers      int      `json:"Shimmers"      yaml:"Shimmers"`
	Agreements    int      `json:"Agreements"    yaml:"Agreements"` // 兩種解讀完全一致的次數
	AgreeRate     float64  `json:"AgreeRate"     yaml:"AgreeRate"`
	AgreeCI       CI       `json:"AgreeCI"       yaml:"AgreeCI"`
	Conflicts     int      `json:"Conflicts"     yaml:"Conflicts"` // 兩種解讀對 botch 判斷不一致（應為 0）
}

// InterpReport 單一解讀（best effect 或 best total）在非 botch 局上的分布。
type InterpReport struct {
	Samples       int       `json:"Samples"       yaml:"Samples"`
	TotalValues   []int     `json:"TotalValues"   yaml:"TotalValues"`
	TotalCollect  []int     `json:"TotalCollect"  yaml:"TotalCollect"`
	TotalDist     []float64 `json:"TotalDist"     yaml:"TotalDist"`
	EffectDice    []int     `json:"EffectDice"    yaml:"EffectDice"`
	EffectCollect []int     `json:"EffectCollect" yaml:"EffectCollect"`
	EffectDist    []float64 `json:"EffectDist"    yaml:"EffectDist"`
	Mean          float64   `json:"Mean"          yaml:"Mean"`
	Std           float64   `json:"Std"           yaml:"Std"`
	MeanCI        CI        `json:"MeanCI"        yaml:"MeanCI"`
	EffectMean    float64   `json:"EffectMean"    yaml:"EffectMean"`
}

// ============================================================
// ** 計算 **
// ============================================================

// Done 計算衍生欄位；可重複呼叫。
func (s *StatReport) Done() {
	if s.isDone {
		return
	}
	sm := s.Summary
	sm.BotchRate, sm.BotchCI = proportionCICP(sm.Botches, sm.Rounds, Confidence)
	sm.GlitchRate, sm.GlitchCI = proportionCICP(sm.GlitchRounds, sm.Rounds, Confidence)
	sm.ShimmerRate, sm.ShimmerCI = proportionCICP(sm.ShimmerRounds, sm.Rounds, Confidence)
	sm.AgreeRate, sm.AgreeCI = proportionCICP(sm.Agreements, sm.Rounds, Confidence)
	s.Effect.done()
	s.Total.done()
	s.isDone = true
}

func (ir *InterpReport) done() {
	if ir == nil {
		return
	}
	ir.TotalDist = normalize(ir.TotalCollect, ir.Samples)
	ir.EffectDist = normalize(ir.EffectCollect, ir.Samples)
	if ir.Samples == 0 {
		return
	}
	ir.Mean, ir.Std = stat.MeanStdDev(toFloat(ir.TotalValues), toFloat(ir.TotalCollect))
	if math.IsNaN(ir.Std) {
		ir.Std = 0
	}
	se := ir.Std / math.Sqrt(float64(ir.Samples))
	ir.MeanCI = CI{Lo: ir.Mean - 1.96*se, Hi: ir.Mean + 1.96*se}
	ir.EffectMean = stat.Mean(toFloat(ir.EffectDice), toFloat(ir.EffectCollect))
}

func normalize(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(n)
	}
	return out
}

func toFloat(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

// proportionCICP Clopper–Pearson 精確二項信賴區間（k 次成功 / n 次試驗）。
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// ============================================================
// ** 輸出 **
// ============================================================

func (s *StatReport) WriteWith(w io.Writer, rep StatReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

// StdOut 以表格輸出到 stdout。
func (s *StatReport) StdOut(ut time.Duration) {
	s.Fprint(os.Stdout, ut)
}

func (s *StatReport) Fprint(w io.Writer, ut time.Duration) {
	s.Done()
	fmt.Fprint(w, formatDuration(ut, s.Summary.Rounds))
	keys, basic := s.fmtBasic()
	fmt.Fprintln(w, fmtTable(s.Summary.VariantName+" : "+s.Summary.Expr, keys, basic))
	for _, it := range []struct {
		title string
		ir    *InterpReport
	}{{"Best Effect", s.Effect}, {"Best Total", s.Total}} {
		if it.ir == nil || it.ir.Samples == 0 {
			continue
		}
		keys, msg := it.ir.fmtInterp()
		fmt.Fprintln(w, fmtTable(it.title, keys, msg))
	}
}

func formatDuration(d time.Duration, rolls int) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	rps := int(float64(rolls) / sec)
	if sec < 60.0 {
		return p.Sprintf("used: %.2f seconds\nrps : %d rolls/sec\n", sec, rps)
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("used: %dm %ds\nrps : %d rolls/sec\n", m, s, rps)
	}
	return p.Sprintf("used: %dh:%dm:%ds\nrps : %d rolls/sec\n", h, m, s, rps)
}

func fmtRate(p *message.Printer, rate float64, ci CI) string {
	return p.Sprintf("%.2f %% [%.2f%%,%.2f%%]", 100.0*rate, 100.0*ci.Lo, 100.0*ci.Hi)
}

func (s *StatReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	sm := s.Summary
	basic := map[string]string{
		"Variant":      p.Sprintf("%s (%d)", sm.VariantName, sm.VariantID),
		"Expression":   sm.Expr,
		"Dice / Roll":  p.Sprintf("%d", sm.Dice),
		"Total Rolls":  p.Sprintf("%d", sm.Rounds),
		"Botch":        fmtRate(p, sm.BotchRate, sm.BotchCI),
		"Any Glitch":   fmtRate(p, sm.GlitchRate, sm.GlitchCI),
		"Any Shimmer":  fmtRate(p, sm.ShimmerRate, sm.ShimmerCI),
		"Agreement":    fmtRate(p, sm.AgreeRate, sm.AgreeCI),
		"Glitch Dice":  p.Sprintf("%d", sm.Glitches),
		"Shimmer Dice": p.Sprintf("%d", sm.Shimmers),
		"Conflicts":    p.Sprintf("%d", sm.Conflicts),
	}
	keys := []string{"Variant", "Expression", "Dice / Roll", "Total Rolls", "Botch", "Any Glitch", "Any Shimmer", "Agreement", "Glitch Dice", "Shimmer Dice", "Conflicts"}
	return keys, basic
}

func (ir *InterpReport) fmtInterp() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	msg := map[string]string{
		"Samples":     p.Sprintf("%d", ir.Samples),
		"Mean Total":  p.Sprintf("%.3f [%.3f,%.3f]", ir.Mean, ir.MeanCI.Lo, ir.MeanCI.Hi),
		"Std Total":   p.Sprintf("%.3f", ir.Std),
		"Mean Effect": p.Sprintf("d%.2f", ir.EffectMean),
	}
	keys := []string{"Samples", "Mean Total", "Std Total", "Mean Effect"}
	for i, d := range ir.EffectDice {
		k := fmt.Sprintf("Effect d%d", d)
		msg[k] = p.Sprintf("%.2f %%", 100.0*ir.EffectDist[i])
		keys = append(keys, k)
	}
	return keys, msg
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)
	if titleW > totalInner {
		maxValLen += titleW - totalInner
		totalInner = titleW
	}
	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", totalInner) + "+\n"

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var b strings.Builder
	b.WriteString(top)
	b.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	b.WriteString(divider)
	for _, k := range keys {
		b.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	b.WriteString(divider)
	return b.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
