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

package lookup

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/streamnative/chashmap/chash"
	"github.com/streamnative/chashmap/cmd/flag"
	"github.com/streamnative/chashmap/config"
)

var (
	configFile string
	mapName    string

	Cmd = &cobra.Command{
		Use:   "lookup KEY...",
		Short: "Look up keys in a map",
		Long:  `Look up keys in a map built from the config file, printing one "KEY VALUE" line per key`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  exec,
	}
)

func init() {
	flag.ConfigFile(Cmd, &configFile)
	flag.MapName(Cmd, &mapName)
	_ = Cmd.MarkFlagRequired("conf")
}

// LoadMap builds the map named name from the config file, or the only map
// of the file when name is empty.
func LoadMap(file string, name string) (*chash.Map, error) {
	c, err := config.LoadFile(file)
	if err != nil {
		return nil, err
	}

	if name == "" {
		if len(c.Maps) > 1 {
			return nil, errors.New("the config file has more than one map, use --map")
		}
		name = c.Maps[0].Name
	}

	for _, m := range c.Maps {
		if m.Name == name {
			return chash.New(m.ChashParts(), chash.WithName(m.Name))
		}
	}
	return nil, errors.Errorf("map %q not found in %s", name, file)
}

func exec(cmd *cobra.Command, args []string) error {
	m, err := LoadMap(configFile, mapName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, key := range args {
		res := m.LookupString(key)
		if res.Degraded {
			_, _ = fmt.Fprintf(out, "%s %s (degraded)\n", key, res.Value)
		} else {
			_, _ = fmt.Fprintf(out, "%s %s\n", key, res.Value)
		}
	}
	return nil
}
