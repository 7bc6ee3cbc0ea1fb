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

package metric

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/streamnative/chashmap/common/process"
)

const shutdownTimeout = 5 * time.Second

// Histogram boundaries are chosen by the unit of the instrument.
var histogramBoundaries = map[Unit][]float64{
	Milliseconds:  latencyBucketsMillis,
	Dimensionless: bucketsCount,
}

func init() {
	exporter, err := prometheus.New()
	if err != nil {
		slog.Error(
			"Failed to initialize Prometheus metrics exporter",
			slog.Any("error", err),
		)
		os.Exit(1)
	}

	views := make([]metric.View, 0, len(histogramBoundaries)+1)
	for unit, boundaries := range histogramBoundaries {
		views = append(views, metric.NewView(
			metric.Instrument{
				Kind: metric.InstrumentKindHistogram,
				Unit: string(unit),
			},
			metric.Stream{
				Aggregation: metric.AggregationExplicitBucketHistogram{
					Boundaries: boundaries,
				},
			},
		))
	}
	views = append(views, metric.NewView(metric.Instrument{Name: "*"}, metric.Stream{}))

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithView(views...),
	)
	meter = provider.Meter("chashmap")
}

// PrometheusMetrics serves the /metrics endpoint.
type PrometheusMetrics struct {
	server *http.Server
	port   int
}

func Start(bindAddress string) (*PrometheusMetrics, error) {
	listener, err := net.Listen("tcp", bindAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen for metrics on %s", bindAddress)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	p := &PrometheusMetrics{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: time.Second,
		},
		port: listener.Addr().(*net.TCPAddr).Port,
	}

	slog.Info(fmt.Sprintf("Serving Prometheus metrics at http://localhost:%d/metrics", p.port))

	go process.DoWithLabels(context.Background(), map[string]string{
		"chashmap": "metrics",
	}, func() {
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(
				"Failed to serve metrics",
				slog.Any("error", err),
			)
		}
	})

	return p, nil
}

func (p *PrometheusMetrics) Port() int {
	return p.port
}

// Close stops accepting scrapes and waits for the in-flight ones.
func (p *PrometheusMetrics) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return p.server.Shutdown(ctx)
}
