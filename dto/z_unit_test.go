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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zintix-labs/cortexlab/corefmt"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/sdk/dice"
)

func TestDecodeRollRequestGET(t *testing.T) {
	snap := corefmt.EncodeBase64URL([]byte{1, 2, 3})
	r := httptest.NewRequest(http.MethodGet, "/v1/roll?variant=cortex&vid=2&expr=3d6+d8&seed=42&start_b64u="+snap, nil)
	req, err := DecodeRollRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Variant != "cortex" || req.VariantID != 2 || req.Expr != "3d6 d8" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Seed == nil || *req.Seed != 42 {
		t.Fatalf("unexpected seed: %v", req.Seed)
	}
	got, err := req.StartSnap()
	if err != nil || !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("start snap: %v err=%v", got, err)
	}
}

func TestDecodeRollRequestPOST(t *testing.T) {
	data := []byte(`{"vid":3,"expr":"d4 d6","seed":7}`)
	r := httptest.NewRequest(http.MethodPost, "/v1/roll", bytes.NewReader(data))
	req, err := DecodeRollRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.VariantID != 3 || req.Expr != "d4 d6" || *req.Seed != 7 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if snap, err := req.StartSnap(); snap != nil || err != nil {
		t.Fatalf("expected no start snap")
	}
}

func TestDecodeRejects(t *testing.T) {
	data := []byte(`{"vid":1,"expr":"d6","unknown":true}`)
	r := httptest.NewRequest(http.MethodPost, "/v1/roll", bytes.NewReader(data))
	if _, err := DecodeRollRequest(r); err == nil {
		t.Fatalf("expected error for unknown field")
	}

	r = httptest.NewRequest(http.MethodGet, "/v1/roll?vid=abc", nil)
	_, err := DecodeRollRequest(r)
	if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Warn {
		t.Fatalf("bad vid should be a warn: %v", err)
	}

	r = httptest.NewRequest(http.MethodDelete, "/v1/roll", nil)
	if _, err := DecodeRollRequest(r); err == nil {
		t.Fatalf("expected method error")
	}

	r = httptest.NewRequest(http.MethodGet, "/v1/sim?vid=1&expr=d6", nil)
	if _, err := DecodeSimRequest(r); err == nil {
		t.Fatalf("missing rounds should fail")
	}

	req := &RollRequest{StartState: &StartState{StartCoreSnapB64U: "!!"}}
	if _, err := req.StartSnap(); err == nil {
		t.Fatalf("bad base64 should fail")
	}
}

func TestDecodeSimRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/sim?variant=shimmer&expr=2d4&rounds=100&workers=2", nil)
	req, err := DecodeSimRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Rounds != 100 || req.Workers != 2 || req.Seed != nil {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestNewRollResult(t *testing.T) {
	rules := dice.Cortex()
	o := rules.Evaluate([]dice.Roll{dice.Value(1, dice.D4), dice.Value(2, dice.D6), dice.Value(3, dice.D8)})
	res := NewRollResult(RollMeta{Variant: "cortex", VariantID: 2, Expr: "d4 d6 d8", Seed: 9, Start: []byte{0xff}}, rules, o)
	if res.Dice != 3 || len(res.Rolls) != 3 || res.Rolls[2].Text != "3 (d8)" {
		t.Fatalf("unexpected rolls: %+v", res.Rolls)
	}
	if res.Effect != (ResultDTO{Total: 3, Effect: 8}) || res.Total != (ResultDTO{Total: 5, Effect: 4}) {
		t.Fatalf("unexpected results: %+v %+v", res.Effect, res.Total)
	}
	if res.Botch || res.State.StartCoreSnapB64U != "_w" {
		t.Fatalf("unexpected state: %+v", res.State)
	}
	raw, err := json.Marshal(res)
	if err != nil || !strings.Contains(string(raw), `"kind":"value"`) {
		t.Fatalf("json: %s err=%v", raw, err)
	}

	many := make([]dice.Roll, MaxListedRolls+1)
	for i := range many {
		many[i] = dice.Value(2, dice.D6)
	}
	res = NewRollResult(RollMeta{}, rules, rules.Evaluate(many))
	if res.Rolls != nil || res.Dice != MaxListedRolls+1 {
		t.Fatalf("large pools must not be listed")
	}
}
