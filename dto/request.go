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

package dto

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zintix-labs/cortexlab/corefmt"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/spec"
)

// 防止 body 過大（1MiB）
const maxBody = 1 << 20

// RollRequest 一次擲骰請求。變體以 vid 或 variant（名稱）指定，兩者皆給時必須一致。
type RollRequest struct {
	Variant    string      `json:"variant"`               // 變體名稱
	VariantID  spec.VID    `json:"vid"`                   // 變體編號
	Expr       string      `json:"expr"`                  // 骰子表達式，例如 "3d6 d8"
	Seed       *int64      `json:"seed,omitempty"`        // 可選：以指定 seed 開新桌台（可重現）
	StartState *StartState `json:"start_state,omitempty"` // 可選：回放用的 RNG 起始快照
}

// StartState 由呼叫端帶回的 RNG 狀態。
//
// StartCoreSnapB64U 為前一次回應中的 start_b64u（重播同一局）或 after_b64u（接續下一局）。
type StartState struct {
	StartCoreSnapB64U string `json:"start_b64u,omitempty"`
}

func (ss *StartState) HasPayload() bool {
	return ss != nil && ss.StartCoreSnapB64U != ""
}

// StartSnap 解出起始快照；沒有帶入時回傳 nil。
func (rr *RollRequest) StartSnap() ([]byte, error) {
	if !rr.StartState.HasPayload() {
		return nil, nil
	}
	snap, err := corefmt.DecodeBase64URL(rr.StartState.StartCoreSnapB64U)
	if err != nil {
		return nil, errs.NewWarn("core snap decode failed")
	}
	return snap, nil
}

// SimRequest 一次模擬請求。
type SimRequest struct {
	Variant   string   `json:"variant"`
	VariantID spec.VID `json:"vid"`
	Expr      string   `json:"expr"`
	Rounds    int      `json:"rounds"`         // 每個 worker 擲幾次
	Workers   int      `json:"workers"`        // 併發數，0 視為 1
	Seed      *int64   `json:"seed,omitempty"` // 可選：固定 seed
}

func DecodeRollRequest(r *http.Request) (*RollRequest, error) {
	req := new(RollRequest)
	err := decode(r, req, func(q url.Values) error {
		req.Variant = q.Get("variant")
		req.Expr = q.Get("expr")
		if err := parseVID(q, &req.VariantID); err != nil {
			return err
		}
		seed, err := parseSeed(q)
		if err != nil {
			return err
		}
		req.Seed = seed
		if s := q.Get("start_b64u"); s != "" {
			req.StartState = &StartState{StartCoreSnapB64U: s}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func DecodeSimRequest(r *http.Request) (*SimRequest, error) {
	req := new(SimRequest)
	err := decode(r, req, func(q url.Values) error {
		req.Variant = q.Get("variant")
		req.Expr = q.Get("expr")
		if err := parseVID(q, &req.VariantID); err != nil {
			return err
		}
		if err := parseInt(q, "rounds", &req.Rounds); err != nil {
			return err
		}
		if err := parseInt(q, "workers", &req.Workers); err != nil {
			return err
		}
		seed, err := parseSeed(q)
		if err != nil {
			return err
		}
		req.Seed = seed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if req.Rounds < 1 {
		return nil, errs.NewWarn("rounds must > 0")
	}
	if req.Workers < 0 {
		return nil, errs.NewWarn("workers must not be negative")
	}
	return req, nil
}

// decode GET 走 query string，POST 走嚴格 JSON（拒絕未知欄位）。
func decode(r *http.Request, out any, fromQuery func(url.Values) error) error {
	if r == nil {
		return errs.NewWarn("nil request")
	}
	switch r.Method {
	case http.MethodGet:
		return fromQuery(r.URL.Query())
	case http.MethodPost:
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(out); err != nil {
			return errs.NewWarn("invalid json: " + err.Error())
		}
		return nil
	default:
		return errs.NewWarn("method not allowed")
	}
}

func parseVID(q url.Values, out *spec.VID) error {
	s := q.Get("vid")
	if s == "" {
		return nil
	}
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return errs.NewWarn(fmt.Sprintf("invalid vid: %v", err))
	}
	*out = spec.VID(u)
	return nil
}

func parseInt(q url.Values, key string, out *int) error {
	s := q.Get(key)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return errs.NewWarn(fmt.Sprintf("invalid %s: %v", key, err))
	}
	*out = v
	return nil
}

func parseSeed(q url.Values) (*int64, error) {
	s := q.Get("seed")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errs.NewWarn(fmt.Sprintf("invalid seed: %v", err))
	}
	return &v, nil
}
