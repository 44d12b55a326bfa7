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

// Package perf 以 pprof 包住一次執行，輸出到 build/profiling。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/cortexlab/errs"
)

const pprofDir = "build/profiling"

// RunPProf 依 mode（""、cpu、heap、allocs）執行 exe；未知 mode 視為不採樣。
func RunPProf(exe func() error, mode string) error {
	switch mode {
	case "cpu":
		return PProfCPU(exe)
	case "heap":
		return snapshotAfter(exe, "heap")
	case "allocs":
		return snapshotAfter(exe, "allocs")
	default:
		return exe()
	}
}

func create(name string) (*os.File, error) {
	if err := os.MkdirAll(pprofDir, 0o755); err != nil {
		return nil, errs.Wrap(err, "create profiling dir failed")
	}
	f, err := os.Create(filepath.Join(pprofDir, name))
	if err != nil {
		return nil, errs.Wrap(err, "create "+name+" failed")
	}
	return f, nil
}

func PProfCPU(exe func() error) error {
	f, err := create("cpu.pprof")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		return errs.Wrap(err, "start cpu profile failed")
	}
	defer pprof.StopCPUProfile()
	return exe()
}

// snapshotAfter 先執行再拍快照；heap 前先 GC 讓快照貼近最新狀態。
func snapshotAfter(exe func() error, profile string) error {
	if err := exe(); err != nil {
		return err
	}
	if profile == "heap" {
		runtime.GC()
	}
	f, err := create(profile + ".pprof")
	if err != nil {
		return err
	}
	defer f.Close()
	prof := pprof.Lookup(profile)
	if prof == nil {
		return errs.NewFatal("unknown profile: " + profile)
	}
	if err := prof.WriteTo(f, 0); err != nil {
		return errs.Wrap(err, "write "+profile+" profile failed")
	}
	return nil
}
