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

package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/zintix-labs/cortexlab/errs"
	"gopkg.in/yaml.v3"
)

// GetVariantSettingByYAML 嚴格解析 YAML：多寫或拼錯欄位就報錯。
func GetVariantSettingByYAML(data []byte) (*VariantSetting, error) {
	vs := &VariantSetting{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(vs); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	// 設定檔初始化
	if err := vs.init(); err != nil {
		return nil, errs.Wrap(err, "variant setting initialized err")
	}

	return vs, nil
}

func GetVariantSettingByJSON(data []byte) (*VariantSetting, error) {
	vs := &VariantSetting{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(vs); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	if err := vs.init(); err != nil {
		return nil, errs.Wrap(err, "variant setting initialized err")
	}

	return vs, nil
}

// GetVariantSettingByTOML 同樣嚴格：有未解析的 key 就報錯。
func GetVariantSettingByTOML(data []byte) (*VariantSetting, error) {
	vs := &VariantSetting{}
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(vs)
	if err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall toml")
	}
	if und := md.Undecoded(); len(und) > 0 {
		keys := make([]string, len(und))
		for i, k := range und {
			keys[i] = k.String()
		}
		return nil, errs.NewFatal(fmt.Sprintf("unknown toml keys: %s", strings.Join(keys, ", ")))
	}

	if err := vs.init(); err != nil {
		return nil, errs.Wrap(err, "variant setting initialized err")
	}

	return vs, nil
}
