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

package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zintix-labs/cortexlab/errs"
)

var (
	// ErrMalformed token 無法解析或骰子不在允許集合內。
	ErrMalformed = errors.New("malformed dice token")
	// ErrTooManyDice 單一 token 要求的骰子數超過上限。
	ErrTooManyDice = errors.New("too many dice")
)

// Parse 解析以空白分隔的骰子表達式，例如 "3d6 d8 10"。
//
// 每個 token 可為純數字 S（一顆 S 面骰）或 [N]dS（N 省略為 1，d 不分大小寫）。
// 回傳依 token 順序展開的骰子；空字串回傳空切片。
// 錯誤皆為 errs.Warn，訊息可直接顯示給使用者。
func (r *Rules) Parse(expr string) ([]Die, error) {
	tokens := strings.Fields(expr)
	out := make([]Die, 0, len(tokens))
	for _, tok := range tokens {
		n, d, err := r.parseToken(tok)
		if err != nil {
			return nil, err
		}
		for range n {
			out = append(out, d)
		}
	}
	return out, nil
}

// Count 與 Parse 相同的檢查，但只回傳骰子總數，不展開。
//
// 供呼叫端在配置記憶體前對整個表達式設上限。
func (r *Rules) Count(expr string) (int, error) {
	total := 0
	for _, tok := range strings.Fields(expr) {
		n, _, err := r.parseToken(tok)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (r *Rules) parseToken(tok string) (int, Die, error) {
	if s, err := strconv.ParseUint(tok, 10, 32); err == nil {
		d := Die(s)
		if !r.Allowed(d) {
			return 0, 0, r.malformed(tok)
		}
		return 1, d, nil
	}

	i := strings.IndexAny(tok, "dD")
	if i < 0 {
		return 0, 0, r.malformed(tok)
	}
	s, err := strconv.ParseUint(tok[i+1:], 10, 32)
	if err != nil || !r.Allowed(Die(s)) {
		return 0, 0, r.malformed(tok)
	}

	count := uint64(1)
	if head := tok[:i]; head != "" {
		count, err = strconv.ParseUint(head, 10, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return 0, 0, r.tooMany(tok)
			}
			return 0, 0, r.malformed(tok)
		}
	}
	if count > uint64(r.maxPerToken()) {
		return 0, 0, r.tooMany(tok)
	}
	return int(count), Die(s), nil
}

func (r *Rules) malformed(tok string) error {
	return errs.Mark(errs.Warn, ErrMalformed,
		fmt.Sprintf("Cannot parse %q. Use tokens like `3d6`, `d8` or `10`; allowed dice: %s.", tok, r.allowedList()))
}

func (r *Rules) tooMany(tok string) error {
	return errs.Mark(errs.Warn, ErrTooManyDice,
		fmt.Sprintf("Too many dice in %q: at most %d per token.", tok, r.maxPerToken()))
}

func (r *Rules) allowedList() string {
	names := make([]string, len(r.Dice))
	for i, d := range r.Dice {
		names[i] = d.String()
	}
	return strings.Join(names, ", ")
}
