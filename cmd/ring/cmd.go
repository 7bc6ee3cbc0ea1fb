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

package ring

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/streamnative/chashmap/cmd/flag"
	"github.com/streamnative/chashmap/cmd/lookup"
)

var (
	configFile string
	mapName    string
	limit      int

	Cmd = &cobra.Command{
		Use:   "ring",
		Short: "Print the points of a map ring",
		Long:  `Print the points of the ring built for a map, in hash order, followed by the share of the ring owned by each value`,
		Args:  cobra.NoArgs,
		RunE:  exec,
	}
)

func init() {
	flag.ConfigFile(Cmd, &configFile)
	flag.MapName(Cmd, &mapName)
	Cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of points to print, 0 for all")
	_ = Cmd.MarkFlagRequired("conf")
}

func exec(cmd *cobra.Command, _ []string) error {
	m, err := lookup.LoadMap(configFile, mapName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	points := m.Points()

	for i, p := range points {
		if limit > 0 && i >= limit {
			break
		}
		_, _ = fmt.Fprintf(out, "%10d %08x %s\n", p.Hash, p.Hash, p.Value)
	}

	// Share of the hash space between the previous point and each point
	shares := map[string]uint64{}
	var order []string
	for i, p := range points {
		var span uint64
		if i == 0 {
			span = uint64(p.Hash) + (1<<32 - uint64(points[len(points)-1].Hash))
		} else {
			span = uint64(p.Hash - points[i-1].Hash)
		}
		if _, ok := shares[p.Value]; !ok {
			order = append(order, p.Value)
		}
		shares[p.Value] += span
	}

	_, _ = fmt.Fprintf(out, "\n%s points, total weight %d\n", humanize.Comma(int64(len(points))), m.TotalWeight())
	for _, v := range order {
		_, _ = fmt.Fprintf(out, "%s %.2f%%\n", v, 100*float64(shares[v])/float64(uint64(1)<<32))
	}
	return nil
}
