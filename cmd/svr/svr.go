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
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/zintix-labs/cortexlab"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/presets"
	"github.com/zintix-labs/cortexlab/sdk/core"
	"github.com/zintix-labs/cortexlab/server"
	"github.com/zintix-labs/cortexlab/server/logger"
	"github.com/zintix-labs/cortexlab/server/svrcfg"
)

// config 先讀環境變數，命令列旗標再覆蓋。
type config struct {
	Addr        string        `env:"CORTEXLAB_ADDR"         envDefault:":5808"`
	LogMode     string        `env:"CORTEXLAB_LOG_MODE"     envDefault:"dev"`
	TableBuf    int           `env:"CORTEXLAB_TABLE_BUF"    envDefault:"3"`
	ConfigDir   string        `env:"CORTEXLAB_CONFIG_DIR"`
	PRNG        string        `env:"CORTEXLAB_PRNG"         envDefault:"pcg64"`
	RollTimeout time.Duration `env:"CORTEXLAB_ROLL_TIMEOUT" envDefault:"5s"`
	SimTimeout  time.Duration `env:"CORTEXLAB_SIM_TIMEOUT"  envDefault:"60s"`
	MaxRollDice int           `env:"CORTEXLAB_MAX_ROLL_DICE"`
	MaxSimDice  int           `env:"CORTEXLAB_MAX_SIM_DICE"`
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	sCfg, ah, err := cfg.svrCfg()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	err = server.Run(sCfg)
	ah.Close()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig(args []string) (*config, error) {
	cfg := new(config)
	if err := env.Parse(cfg); err != nil {
		return nil, errs.Wrap(err, "parse env")
	}
	fs := flag.NewFlagSet("svr", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.LogMode, "log-mode", cfg.LogMode, "log mode: dev|prod|silence")
	fs.IntVar(&cfg.TableBuf, "buf", cfg.TableBuf, "number of tables per variant (1-10)")
	fs.StringVar(&cfg.ConfigDir, "config", cfg.ConfigDir, "directory of variant configs (default: built-in presets)")
	fs.StringVar(&cfg.PRNG, "prng", cfg.PRNG, "prng: pcg64|pcg32")
	fs.DurationVar(&cfg.RollTimeout, "roll-timeout", cfg.RollTimeout, "max wait for a free table")
	fs.DurationVar(&cfg.SimTimeout, "sim-timeout", cfg.SimTimeout, "max duration of one simulation request")
	fs.IntVar(&cfg.MaxRollDice, "max-roll-dice", cfg.MaxRollDice, "max dice in one roll request (0: default)")
	fs.IntVar(&cfg.MaxSimDice, "max-sim-dice", cfg.MaxSimDice, "max dice*rounds*workers of one simulation (0: default)")
	if err := fs.Parse(args); err != nil {
		return nil, errs.Wrap(err, "parse flags")
	}
	return cfg, nil
}

// svrCfg 依設定組出 Lab 與非同步 logger；呼叫端負責關閉回傳的 AsyncHandler。
func (cfg *config) svrCfg() (*svrcfg.SvrCfg, *logger.AsyncHandler, error) {
	mode, err := logger.ParseMode(cfg.LogMode)
	if err != nil {
		return nil, nil, err
	}
	cf, ok := core.FactoryByName(cfg.PRNG)
	if !ok {
		return nil, nil, errs.NewWarn("unknown prng: " + cfg.PRNG)
	}
	cfgs := cortexlab.Configs(presets.FS)
	if cfg.ConfigDir != "" {
		cfgs = cortexlab.Configs(os.DirFS(cfg.ConfigDir))
	}
	lab, err := cortexlab.NewAuto(cf, cfgs)
	if err != nil {
		return nil, nil, err
	}

	log, ah := logger.NewAsync(4096, mode)
	return &svrcfg.SvrCfg{
		Log:          log,
		Addr:         cfg.Addr,
		TableBufSize: cfg.TableBuf,
		RollTimeout:  cfg.RollTimeout,
		SimTimeout:   cfg.SimTimeout,
		MaxRollDice:  cfg.MaxRollDice,
		MaxSimDice:   cfg.MaxSimDice,
		Lab:          lab,
	}, ah, nil
}
