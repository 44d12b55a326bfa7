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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/zintix-labs/cortexlab"
	"github.com/zintix-labs/cortexlab/dto"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/presets"
	"github.com/zintix-labs/cortexlab/sdk/core"
	"github.com/zintix-labs/cortexlab/spec"
	"github.com/zintix-labs/cortexlab/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg = new(config)

type config struct {
	variant   string
	expr      string
	sim       int
	worker    int
	seed      int64
	format    string
	prng      string
	configDir string
	list      bool
	pprofmode string
}

const (
	green = "\033[1;32m"
	reset = "\033[0m"
)

func bindVar() error {
	flag.StringVar(&cfg.variant, "variant", "cortex", "variant name or id")
	flag.StringVar(&cfg.expr, "expr", "", "dice expression, e.g. \"3d6 d8\"")
	flag.IntVar(&cfg.sim, "sim", 0, "simulate N rolls per worker (0: roll once)")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers for -sim")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator (< 0: random)")
	flag.StringVar(&cfg.format, "format", "table", "output: table|json|yaml|zstd")
	flag.StringVar(&cfg.prng, "prng", "pcg64", "prng: pcg64|pcg32")
	flag.StringVar(&cfg.configDir, "config", "", "directory of variant configs (default: built-in presets)")
	flag.BoolVar(&cfg.list, "list", false, "list variants and exit")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")
	flag.Parse()

	if cfg.expr == "" && flag.NArg() > 0 {
		cfg.expr = strings.Join(flag.Args(), " ")
	}
	return cfg.valid()
}

func (cfg *config) valid() error {
	if cfg.worker < 1 {
		return errs.NewWarn("value err : workers must > 0")
	}
	if cfg.sim < 0 {
		return errs.NewWarn("value err : sim must >= 0")
	}
	switch cfg.format {
	case "table", "json", "yaml", "zstd":
	default:
		return errs.NewWarn("value err : format must be table|json|yaml|zstd")
	}
	return nil
}

func newLab() (*cortexlab.Lab, error) {
	cf, ok := core.FactoryByName(cfg.prng)
	if !ok {
		return nil, errs.NewWarn("unknown prng: " + cfg.prng)
	}
	cfgs := cortexlab.Configs(presets.FS)
	if cfg.configDir != "" {
		cfgs = cortexlab.Configs(os.DirFS(cfg.configDir))
	}
	return cortexlab.NewAuto(cf, cfgs)
}

// resolve 接受數字（vid）或名稱。
func resolve(lab *cortexlab.Lab, s string) (spec.VID, error) {
	if u, err := strconv.ParseUint(s, 10, 0); err == nil {
		return lab.Resolve(spec.VID(u), "")
	}
	return lab.Resolve(0, s)
}

func execute() error {
	lab, err := newLab()
	if err != nil {
		return err
	}
	if cfg.list {
		return listVariants(lab)
	}
	vid, err := resolve(lab, cfg.variant)
	if err != nil {
		return err
	}
	if cfg.sim > 0 {
		return simulate(lab, vid)
	}
	return rollOnce(lab, vid)
}

func rollOnce(lab *cortexlab.Lab, vid spec.VID) error {
	t, err := newTable(lab, vid)
	if err != nil {
		return err
	}
	res, err := t.Roll(&dto.RollRequest{Expr: cfg.expr})
	if err != nil {
		return err
	}
	if cfg.format == "table" {
		_, err = os.Stdout.WriteString(res.Text + "\n")
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(res)
}

func newTable(lab *cortexlab.Lab, vid spec.VID) (*cortexlab.Table, error) {
	if cfg.seed < 0 {
		return lab.NewTable(vid)
	}
	return lab.NewTableWithSeed(vid, cfg.seed)
}

func simulate(lab *cortexlab.Lab, vid spec.VID) error {
	var (
		s   *cortexlab.Simulator
		err error
	)
	if cfg.seed < 0 {
		s, err = lab.NewSimulator(vid)
	} else {
		s, err = lab.NewSimulatorWithSeed(vid, cfg.seed)
	}
	if err != nil {
		return err
	}

	showpb := cfg.format == "table"
	if showpb {
		p := message.NewPrinter(language.English)
		p.Printf("%s[VARIANT:%s] [EXPR:%s] [WORKERS:%d] [ROLLS:%d] [SEED:%d]%s\n",
			green, s.VariantName, cfg.expr, cfg.worker, cfg.worker*cfg.sim, s.Seed(), reset)
	}

	var (
		st   *stats.StatReport
		used time.Duration
	)
	// Ctrl-C 中止模擬
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cfg.worker == 1 {
		st, used, err = s.Sim(ctx, cfg.expr, cfg.sim, showpb)
	} else {
		st, used, err = s.SimMP(ctx, cfg.expr, cfg.sim, cfg.worker, showpb)
	}
	if err != nil {
		return err
	}
	if cfg.format == "table" {
		st.StdOut(used)
		return nil
	}
	rd, _ := stats.RenderByName(cfg.format)
	return st.WriteWith(os.Stdout, rd)
}

func listVariants(lab *cortexlab.Lab) error {
	sum, err := lab.Summary()
	if err != nil {
		return err
	}
	if cfg.format != "table" {
		return json.NewEncoder(os.Stdout).Encode(sum)
	}
	p := message.NewPrinter(language.English)
	for _, v := range sum {
		p.Printf("%3d  %-10s dice=%v glitch=%t shimmer=%t botch=%t\n", v.VID, v.Name, v.Dice, v.Glitch, v.Shimmer, v.Botch)
	}
	return nil
}
