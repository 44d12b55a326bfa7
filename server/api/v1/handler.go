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

// Package v1 擲骰服務的 v1 HTTP handlers。
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/zintix-labs/cortexlab"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/server/httperr"
	"github.com/zintix-labs/cortexlab/server/svrcfg"
)

// Handler 持有運行時；所有 v1 路由共用。
type Handler struct {
	rt          *cortexlab.RollRuntime
	log         *slog.Logger
	rollTimeout time.Duration
	simTimeout  time.Duration
}

func NewHandler(sCfg *svrcfg.SvrCfg, rt *cortexlab.RollRuntime) (*Handler, error) {
	if rt == nil {
		return nil, errs.NewFatal("roll runtime is required")
	}
	return &Handler{
		rt:          rt,
		log:         sCfg.Log,
		rollTimeout: sCfg.RollTimeout,
		simTimeout:  sCfg.SimTimeout,
	}, nil
}

// fail 記錄並寫回錯誤。
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httperr.Log(h.log, r.Method+" "+r.URL.Path, err)
	httperr.Errs(w, err)
}

// writeJSON 先整包編碼再寫出，避免寫到一半才出錯。
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.fail(w, r, errs.Wrap(err, "encode response failed"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
