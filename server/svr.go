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

// Package server 組裝並啟動擲骰 HTTP 服務。
package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/cortexlab"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/server/api"
	"github.com/zintix-labs/cortexlab/server/app"
	"github.com/zintix-labs/cortexlab/server/netsvr"
	"github.com/zintix-labs/cortexlab/server/svrcfg"
)

// Run 以內建的 chi server 組裝並啟動服務，阻塞直到停止。
//
// 所有依賴（Lab、logger、位址）都由 SvrCfg 明確注入；Run 不讀檔案也不讀環境變數。
func Run(sCfg *svrcfg.SvrCfg) error {
	if err := sCfg.Valid(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return RunWithSvr(sCfg, netsvr.NewChiServer(sCfg.Addr, sCfg.SimTimeout+svrcfg.DefaultRollTimeout))
}

// RunWithSvr 與 Run 相同，但使用呼叫端注入的 NetSvr（自訂 adapter、listener 或 timeout）。
//
// 關閉順序：先停 HTTP，再關閉 RollRuntime。
func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) error {
	if err := sCfg.Valid(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if svr == nil {
		return errs.NewFatal("svr is required")
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		return errs.NewFatal("default server is not ready")
	}

	rt, err := Build(sCfg, svr)
	if err != nil {
		sCfg.Log.Error("build routes failed", slog.Any("err", err))
		return err
	}

	a := app.NewWith(sCfg.Log, svr)
	a.OnStop(rt.Close)
	sCfg.Log.Info("[cortexlab] listening", slog.String("addr", sCfg.Addr), slog.Int("tables", sCfg.TableBufSize))
	if err := a.Run(); err != nil {
		sCfg.Log.Error("app stopped", slog.Any("err", err))
		return err
	}
	return nil
}

// Build 建立 RollRuntime 並掛上所有路由，不啟動服務；測試與自訂組裝可直接使用。
func Build(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) (*cortexlab.RollRuntime, error) {
	if err := sCfg.Valid(); err != nil {
		return nil, err
	}
	rt, err := sCfg.Lab.BuildRuntime(sCfg.TableBufSize)
	if err != nil {
		return nil, errs.Wrap(err, "build roll runtime failed")
	}
	rt.SetLogger(sCfg.Log)
	rt.SetDiceLimits(sCfg.MaxRollDice, sCfg.MaxSimDice)
	if err := api.RegisterRoutes(svr, sCfg, rt); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}
