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
	"context"
	"net/http"

	"github.com/zintix-labs/cortexlab/dto"
)

// Roll GET/POST /v1/roll
//
//	GET /v1/roll?variant=cortex&expr=3d6+d8[&seed=42]
//
// 表達式錯誤回 400，body 為可直接顯示給使用者的訊息。
func (h *Handler) Roll(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeRollRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.rollTimeout)
	defer cancel()

	res, err := h.rt.Roll(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(res.Text))
		return
	}
	h.writeJSON(w, r, res)
}
