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
	"strconv"
	"strings"
)

const (
	nothingToRoll = "Nothing to roll."
	botchMark     = "**BOTCH!**"
	conflictNote  = "**Internal error:** effect and total disagree on botch."
	truncatedNote = "Too many dice to list them all, here is the summary.\n\n"
)

func formatResult(r Result) string {
	return "total **" + strconv.Itoa(r.Total) + "**, effect " + r.Effect.String()
}

// Summary 短摘要（不含逐顆列表）。
func (r *Rules) Summary(o Outcome) string {
	switch {
	case o.Empty():
		return nothingToRoll
	case o.Conflict():
		return conflictNote
	case o.Botch():
		return botchMark
	}

	lines := make([]string, 0, 4)
	if o.Glitches > 0 {
		lines = append(lines, "Glitches: "+strconv.Itoa(o.Glitches))
	}
	if r.Shimmer && o.Shimmers > 0 {
		lines = append(lines, "Shimmers: "+strconv.Itoa(o.Shimmers))
	}
	if o.Agree() {
		lines = append(lines, "Best: "+formatResult(o.Effect))
	} else {
		lines = append(lines,
			"Best effect: "+formatResult(o.Effect),
			"Best total: "+formatResult(o.Total),
		)
	}
	return strings.Join(lines, "\n")
}

// Render 逐顆列出結果，空一行後接摘要。
//
// 整體長度超過 MessageLimit 時改為只輸出摘要並加上說明。
func (r *Rules) Render(o Outcome) string {
	summary := r.Summary(o)
	if o.Empty() {
		return summary
	}
	limit := r.messageLimit()
	var b strings.Builder
	for _, x := range o.Rolls {
		b.WriteString(x.String())
		b.WriteByte('\n')
		if b.Len() > limit {
			return truncatedNote + summary
		}
	}
	b.WriteByte('\n')
	b.WriteString(summary)
	if b.Len() > limit {
		return truncatedNote + summary
	}
	return b.String()
}
