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

import "net/http"

// Variants GET /v1/variants：已登記變體的摘要。
func (h *Handler) Variants(w http.ResponseWriter, r *http.Request) {
	sum, err := h.rt.Lab().Summary()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, sum)
}

// Metrics GET /v1/metrics：各變體桌台池的快照。
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, h.rt.Metrics())
}
