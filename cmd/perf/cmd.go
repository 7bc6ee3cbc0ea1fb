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

package perf

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/streamnative/chashmap/cmd/flag"
	"github.com/streamnative/chashmap/common/constant"
	"github.com/streamnative/chashmap/common/process"
	"github.com/streamnative/chashmap/perf"
)

var (
	Cmd = &cobra.Command{
		Use:   "perf",
		Short: "Lookup service perf client",
		Long:  `Generate lookup traffic against a running lookup service and report latencies and the value distribution`,
		RunE:  exec,
	}

	config = perf.Config{}
)

func init() {
	defaultServiceAddress := fmt.Sprintf("localhost:%d", constant.DefaultPublicPort)
	Cmd.Flags().StringVarP(&config.ServiceAddr, "service-address", "a", defaultServiceAddress, "Service address")
	flag.MapName(Cmd, &config.MapName)
	_ = Cmd.MarkFlagRequired("map")

	Cmd.Flags().Float64VarP(&config.RequestRate, "rate", "r", 100.0, "Request rate, ops/s")
	Cmd.Flags().Uint32Var(&config.KeysCardinality, "keys-cardinality", perf.DefaultKeysCardinality, "Number of distinct keys to look up")
	Cmd.Flags().DurationVar(&config.RequestTimeout, "request-timeout", perf.DefaultRequestTimeout, "Request timeout")
	Cmd.Flags().DurationVar(&config.ReportInterval, "report-interval", perf.DefaultReportInterval, "Interval between stats reports")
}

func exec(*cobra.Command, []string) error {
	process.RunProcess(runPerf)
	return nil
}

type closer struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newCloser(ctx context.Context) *closer {
	c := &closer{}
	c.ctx, c.cancel = context.WithCancel(ctx)
	return c
}

func (c *closer) Close() error {
	c.cancel()
	return nil
}

func runPerf() (io.Closer, error) {
	closer := newCloser(context.Background())
	go perf.New(config).Run(closer.ctx)
	return closer, nil
}
