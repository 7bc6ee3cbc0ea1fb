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
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmizerany/perks/quantile"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/streamnative/chashmap/server"
)

const (
	DefaultKeysCardinality = 1000
	DefaultRequestTimeout  = 5 * time.Second
	DefaultReportInterval  = 10 * time.Second
)

type Config struct {
	ServiceAddr     string
	MapName         string
	RequestRate     float64
	KeysCardinality uint32
	RequestTimeout  time.Duration
	ReportInterval  time.Duration

	// OnReport, if set, receives every report along with the log output
	OnReport func(Report) `json:"-"`
}

// Report holds the statistics of one reporting interval.
type Report struct {
	Ops         int64
	FailedOps   int64
	DegradedOps int64
	Rate        float64

	// Latency quantiles in milliseconds
	P50, P95, P99, P999, Max float64

	// Number of lookups per returned value
	Values map[string]int64
}

type Perf interface {
	Run(context.Context)
}

func New(config Config) Perf {
	if config.KeysCardinality == 0 {
		config.KeysCardinality = DefaultKeysCardinality
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.ReportInterval == 0 {
		config.ReportInterval = DefaultReportInterval
	}

	return &perf{
		config: config,
		client: &http.Client{Timeout: config.RequestTimeout},
	}
}

type perf struct {
	config Config
	client *http.Client
	keys   []string

	failedOps   atomic.Int64
	degradedOps atomic.Int64

	sync.Mutex
	values map[string]int64
}


func (p *perf) Run(ctx context.Context) {
	slog.Info(
		"Starting chashmap perf client",
		slog.Any("config", p.config),
	)

	p.keys = make([]string, p.config.KeysCardinality)
	for i := range p.keys {
		p.keys[i] = uuid.NewString()
	}
	p.values = map[string]int64{}

	latencyCh := make(chan time.Duration)
	go p.generateTraffic(ctx, latencyCh)

	ticker := time.NewTicker(p.config.ReportInterval)
	defer ticker.Stop()

	q := quantile.NewTargeted(0.50, 0.95, 0.99, 0.999, 1.0)
	ops := int64(0)
	start := time.Now()

	report := func() {
		elapsed := time.Since(start)
		r := Report{
			Ops:         ops,
			FailedOps:   p.failedOps.Swap(0),
			DegradedOps: p.degradedOps.Swap(0),
			Rate:        float64(ops) / elapsed.Seconds(),
			P50:         q.Query(0.5),
			P95:         q.Query(0.95),
			P99:         q.Query(0.99),
			P999:        q.Query(0.999),
			Max:         q.Query(1.0),
			Values:      p.swapValues(),
		}

		slog.Info(fmt.Sprintf(`Stats - Lookups: %6.1f ops/s - Failed: %s - Degraded: %s
			Latency ms: 50%% %5.1f - 95%% %5.1f - 99%% %5.1f - 99.9%% %5.1f - max %6.1f
			Distribution: %s`,
			r.Rate,
			humanize.Comma(r.FailedOps),
			humanize.Comma(r.DegradedOps),
			r.P50, r.P95, r.P99, r.P999, r.Max,
			formatDistribution(r.Values),
		))

		if p.config.OnReport != nil {
			p.config.OnReport(r)
		}

		q.Reset()
		ops = 0
		start = time.Now()
	}

	for {
		select {
		case <-ticker.C:
			report()

		case l := <-latencyCh:
			ops++
			q.Insert(float64(l.Microseconds()) / 1000.0) // Convert to millis

		case <-ctx.Done():
			report()
			return
		}
	}
}

func (p *perf) generateTraffic(ctx context.Context, latencyCh chan<- time.Duration) {
	limiter := rate.NewLimiter(rate.Limit(p.config.RequestRate), max(1, int(p.config.RequestRate)))

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		key := p.keys[rand.Intn(len(p.keys))]

		go func() {
			start := time.Now()
			res, err := p.lookup(ctx, key)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn(
						"Lookup has failed",
						slog.String("key", key),
						slog.Any("error", err),
					)
					p.failedOps.Add(1)
				}
				return
			}

			slog.Debug(
				"Lookup has succeeded",
				slog.String("key", key),
				slog.String("value", res.Value),
			)

			if res.Degraded {
				p.degradedOps.Add(1)
			}
			p.recordValue(res.Value)

			select {
			case latencyCh <- time.Since(start):
			case <-ctx.Done():
			}
		}()
	}
}

func (p *perf) lookup(ctx context.Context, key string) (server.LookupResponse, error) {
	lr := server.LookupResponse{}

	u := fmt.Sprintf("http://%s/v1/maps/%s/lookup?key=%s",
		p.config.ServiceAddr, url.PathEscape(p.config.MapName), url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return lr, err
	}

	res, err := p.client.Do(req)
	if err != nil {
		return lr, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		er := server.ErrorResponse{}
		_ = json.NewDecoder(res.Body).Decode(&er)
		return lr, errors.Errorf("lookup failed with status %d: %s", res.StatusCode, er.Error)
	}

	err = json.NewDecoder(res.Body).Decode(&lr)
	return lr, err
}

func (p *perf) recordValue(value string) {
	p.Lock()
	defer p.Unlock()
	p.values[value]++
}

func (p *perf) swapValues() map[string]int64 {
	p.Lock()
	defer p.Unlock()
	values := p.values
	p.values = map[string]int64{}
	return values
}

func formatDistribution(values map[string]int64) string {
	total := int64(0)
	for _, n := range values {
		total += n
	}
	if total == 0 {
		return "-"
	}

	names := make([]string, 0, len(values))
	for v := range values {
		names = append(names, v)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, v := range names {
		parts = append(parts, fmt.Sprintf("%s %s (%.1f%%)",
			v, humanize.Comma(values[v]), 100*float64(values[v])/float64(total)))
	}
	return strings.Join(parts, " - ")
}
