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

package catalog

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zintix-labs/cortexlab/errs"
	"github.com/zintix-labs/cortexlab/spec"
)

var (
	ErrDupID   = errs.NewFatal("duplicate variant id")
	ErrDupName = errs.NewFatal("duplicate variant name")
)

// Entry 一個已登記的規則變體：編號、名稱（小寫）與設定檔名。
type Entry struct {
	VID        spec.VID
	Name       string
	ConfigName string
}

// Summary 對外展示用的變體摘要。
type Summary struct {
	VID     spec.VID `json:"vid"     yaml:"vid"`
	Name    string   `json:"name"    yaml:"name"`
	Dice    []int    `json:"dice"    yaml:"dice"`
	Glitch  bool     `json:"glitch"  yaml:"glitch"`
	Shimmer bool     `json:"shimmer" yaml:"shimmer"`
	Botch   bool     `json:"botch"   yaml:"botch"`
}

// Catalog 變體目錄。Freeze 之後只讀，可跨 goroutine 共用。
type Catalog struct {
	byID   map[spec.VID]Entry
	byName map[string]Entry
	ids    []spec.VID          // 穩定排序
	unique map[string]struct{} // 一個設定檔只能對應一個變體
	config *multiFS
	frozen bool
}

// New 以一或多個平面的 fs.FS 建立目錄；檔名跨 FS 必須唯一。
func New(cfg ...fs.FS) (*Catalog, error) {
	mfs, err := newMultiFS(cfg...)
	if err != nil {
		return nil, errs.Wrap(err, "can not create catalog")
	}
	return &Catalog{
		byID:   map[spec.VID]Entry{},
		byName: map[string]Entry{},
		ids:    make([]spec.VID, 0, 16),
		unique: map[string]struct{}{},
		config: mfs,
	}, nil
}

// Register 登記一批變體；整批檢查通過才寫入。
func (c *Catalog) Register(ents ...Entry) error {
	if c.frozen {
		return errs.NewWarn("can not register when catalog already frozen")
	}
	seenID := map[spec.VID]struct{}{}
	seenName := map[string]struct{}{}
	seenCfg := map[string]struct{}{}
	for i := range ents {
		e := &ents[i]
		e.Name = normName(e.Name)
		if e.Name == "" {
			return errs.NewFatal("variant name required")
		}
		if err := validFileName(e.ConfigName); err != nil {
			return err
		}
		if _, ok := c.config.GetFS(e.ConfigName); !ok {
			return errs.NewFatal(fmt.Sprintf("config file not found: %s", e.ConfigName))
		}
		if _, ok := c.byID[e.VID]; ok {
			return ErrDupID
		}
		if _, ok := seenID[e.VID]; ok {
			return ErrDupID
		}
		if _, ok := c.byName[e.Name]; ok {
			return ErrDupName
		}
		if _, ok := seenName[e.Name]; ok {
			return ErrDupName
		}
		_, dup := c.unique[e.ConfigName]
		if _, ok := seenCfg[e.ConfigName]; ok || dup {
			return errs.NewFatal(fmt.Sprintf("duplicate config name: %s", e.ConfigName))
		}
		seenID[e.VID] = struct{}{}
		seenName[e.Name] = struct{}{}
		seenCfg[e.ConfigName] = struct{}{}
	}
	for _, e := range ents {
		c.unique[e.ConfigName] = struct{}{}
		c.byID[e.VID] = e
		c.byName[e.Name] = e
		c.ids = append(c.ids, e.VID)
	}
	slices.Sort(c.ids)
	return nil
}

func (c *Catalog) GetByID(id spec.VID) (Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// GetByName 名稱不分大小寫、忽略前後空白。
func (c *Catalog) GetByName(name string) (Entry, bool) {
	e, ok := c.byName[normName(name)]
	return e, ok
}

func (c *Catalog) IDs() []spec.VID {
	if len(c.ids) == 0 {
		return nil
	}
	return slices.Clone(c.ids)
}

func (c *Catalog) All() []Entry {
	out := make([]Entry, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// Files 所有來源中可用的設定檔名（已排序）。
func (c *Catalog) Files() []string {
	return c.config.Names()
}

func (c *Catalog) Freeze() {
	c.frozen = true
}

func (c *Catalog) IsFrozen() bool {
	return c.frozen
}

// ReadSetting 讀取並解析單一設定檔（不需先登記）。
func (c *Catalog) ReadSetting(file string) (*spec.VariantSetting, error) {
	src, ok := c.config.GetFS(file)
	if !ok {
		return nil, errs.NewWarn(fmt.Sprintf("config file does not exist: %s", file))
	}
	raw, err := fs.ReadFile(src, file)
	if err != nil {
		return nil, errs.Wrap(err, "catalog read file error")
	}
	return parseVariantSettingByExt(file, raw)
}

func (c *Catalog) VariantSettingByID(id spec.VID) (*spec.VariantSetting, error) {
	e, ok := c.GetByID(id)
	if !ok {
		return nil, errs.NewWarn(fmt.Sprintf("variant id %d does not exist in catalog", id))
	}
	return c.ReadSetting(e.ConfigName)
}

func (c *Catalog) VariantSettingByName(name string) (*spec.VariantSetting, error) {
	e, ok := c.GetByName(name)
	if !ok {
		return nil, errs.NewWarn(fmt.Sprintf("variant %q does not exist in catalog", name))
	}
	return c.ReadSetting(e.ConfigName)
}

func normName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isConfigFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

func validFileName(file string) error {
	if file == "" {
		return errs.NewFatal("empty config filename")
	}
	// 只能是 basename
	if strings.ContainsAny(file, `/\:`) {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (must be a basename)", file))
	}
	if !isConfigFile(file) {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (must end with .yaml, .yml, .json or .toml)", file))
	}
	if strings.HasPrefix(file, ".") {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (cannot start with '.')", file))
	}
	return nil
}

func parseVariantSettingByExt(filename string, raw []byte) (*spec.VariantSetting, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return spec.GetVariantSettingByYAML(raw)
	case ".json":
		return spec.GetVariantSettingByJSON(raw)
	case ".toml":
		return spec.GetVariantSettingByTOML(raw)
	default:
		return nil, errs.NewFatal(fmt.Sprintf("unsupported config format: %q", filename))
	}
}

// multiFS 把多個平面設定目錄合併成一個以檔名為鍵的索引。
type multiFS struct {
	src   []fs.FS
	index map[string]int // name -> src index
}

func newMultiFS(src ...fs.FS) (*multiFS, error) {
	if len(src) == 0 {
		return nil, errs.NewFatal("no fs provided")
	}
	m := &multiFS{
		src:   src,
		index: make(map[string]int, 16),
	}
	for i, s := range src {
		if s == nil {
			return nil, errs.NewFatal(fmt.Sprintf("fs[%d] is nil", i))
		}
		err := fs.WalkDir(s, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("config FS must be flat (no subdirectories): %q", path))
			}
			// 非設定檔與隱藏檔一律略過
			if strings.HasPrefix(path, ".") || !isConfigFile(path) {
				return nil
			}
			if prev, ok := m.index[path]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate config %q in fs[%d] and fs[%d]", path, prev, i))
			}
			m.index[path] = i
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *multiFS) GetFS(name string) (fs.FS, bool) {
	if id, ok := m.index[name]; ok {
		return m.src[id], true
	}
	return nil, false
}

func (m *multiFS) Names() []string {
	out := make([]string, 0, len(m.index))
	for n := range m.index {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
