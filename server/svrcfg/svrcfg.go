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

package svrcfg

import (
	"log/slog"
	"time"

	"github.com/zintix-labs/cortexlab"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/server/logger"
)

const (
	DefaultAddr        = ":5808"
	DefaultRollTimeout = 5 * time.Second
	DefaultSimTimeout  = 60 * time.Second
	MaxSimRounds       = 1_000_000 // 單一 HTTP 模擬請求的總擲骰上限（rounds*workers）
	MaxSimWorkers      = 32
	DefaultMaxRollDice = 100_000     // 單次擲骰展開後的總骰數
	DefaultMaxSimDice  = 100_000_000 // 單次模擬 dice*rounds*workers
)

// SvrCfg 服務組裝所需的全部依賴，一律由呼叫端明確注入。
type SvrCfg struct {
	Log          *slog.Logger
	Addr         string
	TableBufSize int           // 每個變體的桌台數
	RollTimeout  time.Duration // 等待桌台的上限
	SimTimeout   time.Duration
	MaxRollDice  int
	MaxSimDice   int
	Lab          *cortexlab.Lab
}

func (sc *SvrCfg) Valid() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		sc.Log = logger.NewDefaultLogger(logger.ModeSilence)
	}
	if sc.Addr == "" {
		sc.Addr = DefaultAddr
	}
	// 1 <= TableBufSize <= 10
	sc.TableBufSize = min(10, max(1, sc.TableBufSize))
	if sc.RollTimeout <= 0 {
		sc.RollTimeout = DefaultRollTimeout
	}
	if sc.SimTimeout <= 0 {
		sc.SimTimeout = DefaultSimTimeout
	}
	if sc.MaxRollDice <= 0 {
		sc.MaxRollDice = DefaultMaxRollDice
	}
	if sc.MaxSimDice <= 0 {
		sc.MaxSimDice = DefaultMaxSimDice
	}
	if sc.Lab == nil {
		return errs.NewFatal("lab is required")
	}
	return nil
}
