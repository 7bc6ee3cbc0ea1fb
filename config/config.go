// Copyright 2025 StreamNative, Inc.
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

package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/streamnative/chashmap/chash"
	"github.com/streamnative/chashmap/keyexpr"
)

const DefaultWeight = 1

// Config is the content of the maps configuration file.
type Config struct {
	Maps []MapConfig `json:"maps" yaml:"maps" mapstructure:"maps"`
}

// MapConfig describes one named consistent hash map.
type MapConfig struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Key is the template evaluated against a request to compute the lookup key
	Key string `json:"key,omitempty" yaml:"key,omitempty" mapstructure:"key"`

	Parts []PartConfig `json:"parts" yaml:"parts" mapstructure:"parts"`
}

type PartConfig struct {
	Value  string `json:"value" yaml:"value" mapstructure:"value"`
	Weight int    `json:"weight" yaml:"weight" mapstructure:"weight"`
	Down   bool   `json:"down,omitempty" yaml:"down,omitempty" mapstructure:"down"`
}

// ParsePart parses the one-line part syntax: a value followed by any of
// `weight=N` and `down`.
func ParsePart(line string) (PartConfig, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return PartConfig{}, errors.Wrap(chash.ErrConfig, "empty part")
	}

	p := PartConfig{
		Value:  fields[0],
		Weight: DefaultWeight,
	}

	for _, f := range fields[1:] {
		if w, ok := strings.CutPrefix(f, "weight="); ok {
			weight, err := strconv.Atoi(w)
			if err != nil || weight <= 0 {
				return PartConfig{}, errors.Wrapf(chash.ErrConfig, "invalid parameter %q", f)
			}
			p.Weight = weight
			continue
		}

		if f == "down" {
			p.Down = true
			continue
		}

		return PartConfig{}, errors.Wrapf(chash.ErrConfig, "invalid parameter %q", f)
	}

	return p, nil
}

// String formats the part back into the one-line syntax.
func (p PartConfig) String() string {
	var sb strings.Builder
	sb.WriteString(p.Value)
	if p.Weight != DefaultWeight {
		sb.WriteString(fmt.Sprintf(" weight=%d", p.Weight))
	}
	if p.Down {
		sb.WriteString(" down")
	}
	return sb.String()
}

// PartHookFunc decodes parts written either in the one-line syntax or as a
// mapping. A mapping without a weight gets DefaultWeight.
func PartHookFunc() mapstructure.DecodeHookFuncType {
	partType := reflect.TypeOf(PartConfig{})

	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != partType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return ParsePart(v)

		case map[string]any:
			if _, ok := v["weight"]; ok {
				return data, nil
			}
			withWeight := make(map[string]any, len(v)+1)
			for k, val := range v {
				withWeight[k] = val
			}
			withWeight["weight"] = DefaultWeight
			return withWeight, nil
		}

		return data, nil
	}
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		PartHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(), // default hook
		mapstructure.StringToSliceHookFunc(","),     // default hook
	))
}

// Load reads the configuration of v and validates it.
func Load(v *viper.Viper) (Config, error) {
	c := Config{}

	if err := v.ReadInConfig(); err != nil {
		return c, err
	}

	if err := v.Unmarshal(&c, decodeHook()); err != nil {
		// Decode errors flatten the wrapped chain, so tag them here
		return c, errors.Wrapf(chash.ErrConfig, "failed to decode maps config: %v", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile reads and validates a configuration file.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	return Load(v)
}

func (c Config) Validate() error {
	if len(c.Maps) == 0 {
		return errors.Wrap(chash.ErrConfig, "no map configured")
	}

	names := make(map[string]bool, len(c.Maps))
	for i, m := range c.Maps {
		if m.Name == "" {
			return errors.Wrapf(chash.ErrConfig, "map #%d has no name", i)
		}
		if names[m.Name] {
			return errors.Wrapf(chash.ErrConfig, "duplicate map %q", m.Name)
		}
		names[m.Name] = true

		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (m MapConfig) Validate() error {
	if len(m.Parts) == 0 {
		return errors.Wrapf(chash.ErrConfig, "no part in map %q", m.Name)
	}

	for _, p := range m.Parts {
		if p.Value == "" {
			return errors.Wrapf(chash.ErrConfig, "empty part value in map %q", m.Name)
		}
		if p.Weight <= 0 {
			return errors.Wrapf(chash.ErrConfig, "invalid weight %d for part %q in map %q", p.Weight, p.Value, m.Name)
		}
	}

	if _, err := keyexpr.Compile(m.Key); err != nil {
		return errors.Wrapf(err, "map %q", m.Name)
	}
	return nil
}

// ChashParts converts the parts for building a chash.Map.
func (m MapConfig) ChashParts() []chash.Part {
	parts := make([]chash.Part, len(m.Parts))
	for i, p := range m.Parts {
		parts[i] = chash.Part{
			Value:  p.Value,
			Weight: p.Weight,
			Down:   p.Down,
		}
	}
	return parts
}
