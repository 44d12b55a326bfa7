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

package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestNegotiate(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		"gzip":                "gzip",
		"gzip, zstd":          "zstd",
		"zstd;q=0, gzip":      "gzip",
		"br, gzip;q=0":        "",
		"deflate, x-gzip;q=1": "gzip",
	}
	for in, want := range cases {
		if got := negotiate(in); got != want {
			t.Fatalf("negotiate(%q) = %q, want %q", in, got, want)
		}
	}
}

func textHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, body)
	})
}

func TestCompressionRoundTrip(t *testing.T) {
	body := strings.Repeat("4 (d6)\n", 200)
	h := Compression(textHandler(body))

	for _, enc := range []string{"gzip", "zstd"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/roll", nil)
		req.Header.Set("Accept-Encoding", enc)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Content-Encoding"); got != enc {
			t.Fatalf("expected %s encoding, got %q", enc, got)
		}
		var rd io.Reader
		if enc == "gzip" {
			gr, err := gzip.NewReader(rec.Body)
			if err != nil {
				t.Fatalf("gzip reader: %v", err)
			}
			rd = gr
		} else {
			zr, err := zstd.NewReader(rec.Body)
			if err != nil {
				t.Fatalf("zstd reader: %v", err)
			}
			defer zr.Close()
			rd = zr
		}
		out, err := io.ReadAll(rd)
		if err != nil {
			t.Fatalf("%s decode: %v", enc, err)
		}
		if string(out) != body {
			t.Fatalf("%s body mismatch", enc)
		}
	}
}

func TestCompressionSkipsNoContent(t *testing.T) {
	h := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Encoding") != "" {
		t.Fatalf("content-encoding should be removed")
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestID(AccessLog(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Cannot parse \"xd6\"", http.StatusBadRequest)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/roll?expr=xd6", nil))
	out := buf.String()
	if !strings.Contains(out, "http.access") || !strings.Contains(out, "status=400") || !strings.Contains(out, "level=WARN") {
		t.Fatalf("unexpected access log: %s", out)
	}
	if !strings.Contains(out, "req_id=") {
		t.Fatalf("missing req_id: %s", out)
	}
}
