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

package api

import "net/http"

const indexText = `cortexlab dice service

GET|POST /v1/roll      variant|vid, expr[, seed, start_b64u]   roll an expression
GET|POST /v1/sim       variant|vid, expr, rounds[, workers, seed, format=json|yaml|zstd]
GET      /v1/variants  registered variants
GET      /v1/metrics   table pool metrics

expr: space separated tokens like 3d6, d8 or 10
`

func Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(indexText))
}
