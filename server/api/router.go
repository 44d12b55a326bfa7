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

// Package api 把 middleware 與各版本路由掛到 NetSvr 上。
package api

import (
	"log/slog"

	"github.com/zintix-labs/cortexlab"
	v1 "github.com/zintix-labs/cortexlab/server/api/v1"
	"github.com/zintix-labs/cortexlab/server/netsvr"
	"github.com/zintix-labs/cortexlab/server/netsvr/middleware"
	"github.com/zintix-labs/cortexlab/server/svrcfg"
)

// RegisterRoutes 註冊 middleware、主頁與 v1 api。
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, rt *cortexlab.RollRuntime) error {
	registerMiddleware(svr, sCfg.Log)
	svr.Get("/", Index)
	return registerV1API(svr, sCfg, rt)
}

func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover)
	svr.Use(middleware.Compression)
}

func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, rt *cortexlab.RollRuntime) error {
	h, err := v1.NewHandler(sCfg, rt)
	if err != nil {
		return err
	}
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/roll", h.Roll)
		vOne.Post("/roll", h.Roll)
		vOne.Get("/sim", h.Sim)
		vOne.Post("/sim", h.Sim)
		vOne.Get("/variants", h.Variants)
		vOne.Get("/metrics", h.Metrics)
	})
	return nil
}
