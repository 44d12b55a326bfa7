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

// Package cortexlab 提供擲骰引擎的「組裝入口」與「運行入口」。
//
// Lab 把兩個地基組在一起，並提供建立 Table / Simulator / RollRuntime 的入口：
//  1. Catalog：規則變體目錄，定義有哪些變體、各自對應的設定檔名稱。
//  2. PRNGFactory：亂數核心工廠，保證同一個 seed 可重現。
//
// 設定檔來源一律以 fs.FS 注入（go:embed 的 presets.FS 或 os.DirFS）。
// 引擎本身（sdk/dice）是純函數；Lab 只負責設定、亂數與併發的組裝。
package cortexlab

import (
	"crypto/rand"
	"fmt"
	"io/fs"
	"math"
	"math/big"
	"sync"

	"github.com/zintix-labs/cortexlab/catalog"
	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/presets"
	"github.com/zintix-labs/cortexlab/sdk/core"
	"github.com/zintix-labs/cortexlab/spec"
)

// Configs 把一或多個設定檔來源打包成 New() 需要的參數。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

type Lab struct {
	cat *catalog.Catalog
	cf  core.PRNGFactory

	mu  sync.Mutex
	sum []catalog.Summary
}

// New 建立尚未登記任何變體的 Lab。
func New(cf core.PRNGFactory, cfgs []fs.FS) (*Lab, error) {
	if cf == nil {
		return nil, errs.NewFatal("prng factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	return &Lab{cat: cata, cf: cf}, nil
}

// NewAuto 建立 Lab、登記所有設定檔並 Freeze。
func NewAuto(cf core.PRNGFactory, cfgs []fs.FS) (*Lab, error) {
	lab, err := New(cf, cfgs)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

// NewDefault 以內建 presets 與 PCG64 建立 Lab。
func NewDefault() (*Lab, error) {
	return NewAuto(core.Default(), Configs(presets.FS))
}

func (l *Lab) Register(ents ...catalog.Entry) error {
	return l.cat.Register(ents...)
}

// RegisterAll 解析來源中的每一個設定檔，以檔內的 variant_id / variant_name 登記。
func (l *Lab) RegisterAll() error {
	files := l.cat.Files()
	if len(files) == 0 {
		return errs.NewFatal("no config files found to register")
	}
	entries := make([]catalog.Entry, 0, len(files))
	seenID := map[spec.VID]string{}
	seenName := map[string]string{}
	for _, file := range files {
		vs, err := l.cat.ReadSetting(file)
		if err != nil {
			return errs.Wrap(err, fmt.Sprintf("parse variant setting failed: %s", file))
		}
		if prev, ok := seenID[vs.VariantID]; ok {
			return errs.NewFatal(fmt.Sprintf("duplicate variant id: %d (config=%s and %s)", vs.VariantID, prev, file))
		}
		seenID[vs.VariantID] = file
		if prev, ok := seenName[vs.VariantName]; ok {
			return errs.NewFatal(fmt.Sprintf("duplicate variant name: %s (config=%s and %s)", vs.VariantName, prev, file))
		}
		seenName[vs.VariantName] = file
		entries = append(entries, catalog.Entry{
			VID:        vs.VariantID,
			Name:       vs.VariantName,
			ConfigName: file,
		})
	}
	return l.cat.Register(entries...)
}

func (l *Lab) Freeze() {
	l.cat.Freeze()
}

func (l *Lab) EntryByID(id spec.VID) (catalog.Entry, bool) {
	return l.cat.GetByID(id)
}

func (l *Lab) EntryByName(name string) (catalog.Entry, bool) {
	return l.cat.GetByName(name)
}

func (l *Lab) IDs() []spec.VID {
	return l.cat.IDs()
}

// Resolve 由請求中的編號與名稱找出變體；兩者皆給時必須指向同一個變體。
func (l *Lab) Resolve(id spec.VID, name string) (spec.VID, error) {
	switch {
	case name != "":
		e, ok := l.cat.GetByName(name)
		if !ok {
			return 0, errs.NewWarn(fmt.Sprintf("unknown variant %q", name))
		}
		if id != 0 && id != e.VID {
			return 0, errs.NewWarn(fmt.Sprintf("variant %q does not match vid %d", name, id))
		}
		return e.VID, nil
	case id != 0:
		if _, ok := l.cat.GetByID(id); !ok {
			return 0, errs.NewWarn(fmt.Sprintf("unknown vid %d", id))
		}
		return id, nil
	default:
		return 0, errs.NewWarn("variant or vid required")
	}
}

// Summary 已登記變體的摘要；Freeze 後才可呼叫，結果會快取。
func (l *Lab) Summary() ([]catalog.Summary, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sum != nil {
		return l.sum, nil
	}
	ids := l.cat.IDs()
	cs := make([]catalog.Summary, 0, len(ids))
	for _, id := range ids {
		vs, err := l.cat.VariantSettingByID(id)
		if err != nil {
			return nil, errs.Wrap(err, "parse variant setting failed")
		}
		r := vs.Rules()
		ds := make([]int, len(r.Dice))
		for i, d := range r.Dice {
			ds[i] = d.Sides()
		}
		cs = append(cs, catalog.Summary{
			VID:     id,
			Name:    vs.VariantName,
			Dice:    ds,
			Glitch:  r.Glitch,
			Shimmer: r.Shimmer,
			Botch:   r.Botch,
		})
	}
	l.sum = cs
	return l.sum, nil
}

func (l *Lab) setting(id spec.VID) (*spec.VariantSetting, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	return l.cat.VariantSettingByID(id)
}

// NewTable 建立一張桌台，seed 由 crypto/rand 產生。
func (l *Lab) NewTable(id spec.VID) (*Table, error) {
	seed, err := cryptoSeed()
	if err != nil {
		return nil, err
	}
	return l.NewTableWithSeed(id, seed)
}

// NewTableWithSeed 與 NewTable 相同，但由呼叫端指定 seed；同設定同 seed 產生同樣的結果序列。
func (l *Lab) NewTableWithSeed(id spec.VID, seed int64) (*Table, error) {
	vs, err := l.setting(id)
	if err != nil {
		return nil, err
	}
	return newTableWithSeed(vs, l.cf, seed), nil
}

func (l *Lab) NewSimulator(id spec.VID) (*Simulator, error) {
	seed, err := cryptoSeed()
	if err != nil {
		return nil, err
	}
	return l.NewSimulatorWithSeed(id, seed)
}

func (l *Lab) NewSimulatorWithSeed(id spec.VID, seed int64) (*Simulator, error) {
	vs, err := l.setting(id)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(vs, l.cf, seed), nil
}

// BuildRuntime 為每個變體建立一個 TablePool（每池 poolSize 張桌台）。
func (l *Lab) BuildRuntime(poolSize int) (*RollRuntime, error) {
	// 進入 runtime 前，catalog 必須 Freeze
	l.Freeze()

	ids := l.cat.IDs()
	if len(ids) == 0 {
		return nil, errs.NewFatal("no variants registered")
	}
	rt := &RollRuntime{
		lab:      l,
		pools:    make(map[spec.VID]*TablePool, len(ids)),
		ids:      ids,
		done:     make(chan struct{}),
		poolSize: max(1, poolSize),
	}
	rt.reason.Store("")

	for _, id := range ids {
		vs, err := l.cat.VariantSettingByID(id)
		if err != nil {
			rt.Close()
			return nil, err
		}
		seed, err := cryptoSeed()
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.pools[id] = newTablePool(rt.poolSize, vs, l.cf, seed)
	}
	return rt, nil
}

func cryptoSeed() (int64, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return seed.Int64(), nil
}
