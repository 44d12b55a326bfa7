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

// ops 開發用任務：go run ./scripts <task>
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type color string

const (
	green  color = "\033[32m"
	red    color = "\033[31m"
	yellow color = "\033[33m"
	reset  color = "\033[0m"
)

func say(c color, msg string) {
	fmt.Printf("%s%s%s\n", c, msg, reset)
}

type task struct {
	desc string
	run  func() error
}

var tasks = map[string]task{
	"test":        {"tests, only ok/FAIL lines", func() error { return goTest(okOrFail, "-cover", "-count=1") }},
	"test-all":    {"tests with coverage, full output", func() error { return goTest(nil, "-cover") }},
	"test-detail": {"verbose tests without [no test files]", func() error { return goTest(skipNoTests, "-v", "-count=1") }},
	"test-race":   {"tests under the race detector (pools, simulator)", func() error { return goTest(okOrFail, "-race", "-count=1") }},
	"sim-smoke":   {"short cortex simulation through cmd/run", simSmoke},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	t, ok := tasks[os.Args[1]]
	if !ok {
		say(yellow, "Unknown task: "+os.Args[1])
		usage()
		os.Exit(1)
	}
	say(green, "running "+os.Args[1])
	if err := t.run(); err != nil {
		say(red, fmt.Sprintf("\n%s finished with errors: %v", os.Args[1], err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: go run ./scripts [task]")
	for _, name := range []string{"test", "test-all", "test-detail", "test-race", "sim-smoke"} {
		fmt.Printf("  %-12s %s\n", name, tasks[name].desc)
	}
}

// lineFilter 回傳 false 表示略過該行。
type lineFilter func(line string) bool

func okOrFail(line string) bool {
	return strings.HasPrefix(line, "ok") || strings.HasPrefix(line, "FAIL") ||
		strings.Contains(line, "build failed") || strings.Contains(line, "setup failed")
}

func skipNoTests(line string) bool {
	return !strings.Contains(line, "[no test files]")
}

// goTest 先清 test cache，再跑 go test ./...；filter 為 nil 時原樣輸出。
func goTest(filter lineFilter, args ...string) error {
	if err := exec.Command("go", "clean", "-testcache").Run(); err != nil {
		say(red, "go clean -testcache failed: "+err.Error())
	}
	cmd := exec.Command("go", append([]string{"test", "./..."}, args...)...)
	if filter == nil {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}

	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	// 編譯錯誤在 stderr，一起讀
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return err
	}
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		line := sc.Text()
		if !filter(line) {
			continue
		}
		switch {
		case strings.HasPrefix(line, "ok"):
			say(green, line)
		case strings.HasPrefix(line, "FAIL"), strings.Contains(line, "failed"):
			say(red, line)
		default:
			fmt.Println(line)
		}
	}
	return cmd.Wait()
}

func simSmoke() error {
	cmd := exec.Command("go", "run", "./cmd/run",
		"-variant", "cortex", "-expr", "3d6 d8 d10", "-sim", "20000", "-worker", "4", "-seed", "1")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
