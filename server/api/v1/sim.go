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

package v1

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/zintix-labs/cortexlab/dto"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/server/svrcfg"
	"github.com/zintix-labs/cortexlab/stats"
)

type simResponse struct {
	Stats    *stats.StatReport `json:"stats"`
	UsedTime int64             `json:"used_ms"`
}

var contentTypes = map[string]string{
	"json":     "application/json",
	"yaml":     "application/yaml",
	"yml":      "application/yaml",
	"zstd":     "application/zstd",
	"json.zst": "application/zstd",
}

// Sim GET/POST /v1/sim
//
// 預設回 {stats, used_ms}；?format=yaml|zstd 時直接輸出報表本體。
func (h *Handler) Sim(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeSimRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	workers := max(1, req.Workers)
	if workers > svrcfg.MaxSimWorkers {
		h.fail(w, r, errs.NewWarn(fmt.Sprintf("workers must be between 1 to %d", svrcfg.MaxSimWorkers)))
		return
	}
	if req.Rounds > svrcfg.MaxSimRounds/workers {
		h.fail(w, r, errs.NewWarn(fmt.Sprintf("rounds*workers must not exceed %d", svrcfg.MaxSimRounds)))
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	rd, ok := stats.RenderByName(format)
	if format != "" && !ok {
		h.fail(w, r, errs.NewWarn("unknown format: "+format+" (json|yaml|zstd)"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.simTimeout)
	defer cancel()
	rep, used, err := h.rt.Sim(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if format == "" || format == "json" {
		h.writeJSON(w, r, simResponse{Stats: rep, UsedTime: used.Milliseconds()})
		return
	}
	var b bytes.Buffer
	if err := rep.WriteWith(&b, rd); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Bytes())
}
