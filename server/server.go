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

package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/streamnative/chashmap/chash"
	"github.com/streamnative/chashmap/common/container"
	"github.com/streamnative/chashmap/common/metric"
	"github.com/streamnative/chashmap/common/process"
)

const (
	healthServiceName = "chashmap"

	reloadMaxElapsedTime = 30 * time.Second
)

type Server struct {
	conf Config
	maps *Maps

	httpServer   *http.Server
	publicPort   int
	grpcServer   container.GrpcServer
	healthServer *container.HealthServer
	metrics      *metric.PrometheusMetrics
	mapsGauge    metric.Gauge
	reloads      metric.Counter
	failedReload metric.Counter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger
}

func New(conf Config) (*Server, error) {
	slog.Info(
		"Starting chashmap server",
		slog.Any("config", conf),
	)

	if conf.MapsProvider == nil {
		return nil, errors.New("no maps provider configured")
	}

	mapsConf, err := conf.MapsProvider()
	if err != nil {
		return nil, err
	}

	maps, err := NewMaps(mapsConf)
	if err != nil {
		return nil, err
	}

	s := &Server{
		conf: conf,
		maps: maps,
		log: slog.With(
			slog.String("component", "server"),
		),
		reloads: metric.NewCounter("chashmap_reload",
			"The number of maps configuration reloads", metric.Dimensionless, map[string]any{}),
		failedReload: metric.NewCounter("chashmap_reload_failed",
			"The number of maps configuration reloads that were rejected", metric.Dimensionless, map[string]any{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mapsGauge = metric.NewGauge("chashmap_maps",
		"The number of maps being served", metric.Dimensionless, map[string]any{}, func() int64 {
			return int64(s.maps.Len())
		})

	if err := s.start(); err != nil {
		return nil, multierr.Append(err, s.Close())
	}

	if conf.MapsChangeNotifications != nil {
		s.wg.Add(1)
		go process.DoWithLabels(s.ctx, map[string]string{
			"chashmap": "maps-reload",
		}, s.waitForConfigChanges)
	}

	return s, nil
}

func (s *Server) start() error {
	listener, err := net.Listen("tcp", s.conf.PublicServiceAddr)
	if err != nil {
		return err
	}

	s.publicPort = listener.Addr().(*net.TCPAddr).Port
	s.httpServer = &http.Server{
		Handler:           NewHandler(s.maps),
		ReadHeaderTimeout: time.Second,
	}

	go process.DoWithLabels(s.ctx, map[string]string{
		"chashmap": "public",
		"bind":     listener.Addr().String(),
	}, func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(
				"Failed to serve lookups",
				slog.Any("error", err),
			)
		}
	})
	s.log.Info(
		"Serving lookups",
		slog.Any("bind-address", listener.Addr()),
	)

	s.healthServer = container.NewHealthServer(healthServiceName, func() bool {
		return s.maps.Len() > 0
	})
	s.grpcServer, err = container.Default.StartGrpcServer("internal", s.conf.InternalServiceAddr, func(registrar grpc.ServiceRegistrar) {
		healthpb.RegisterHealthServer(registrar, s.healthServer)
	})
	if err != nil {
		return err
	}

	if s.conf.MetricsServiceAddr != "" {
		if s.metrics, err = metric.Start(s.conf.MetricsServiceAddr); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) waitForConfigChanges() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-s.conf.MapsChangeNotifications:
			s.log.Info("Maps configuration has changed, reloading")
			if err := s.Reload(); err != nil {
				s.failedReload.Inc()
				s.log.Warn(
					"Failed to reload maps configuration, keeping the current maps",
					slog.Any("error", err),
				)
			}
		}
	}
}

// Reload reads the maps configuration again and swaps in the new maps.
//
// Reading is retried since the file may be caught while being written. An
// invalid configuration is not.
func (s *Server) Reload() error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = reloadMaxElapsedTime

	return backoff.RetryNotify(func() error {
		mapsConf, err := s.conf.MapsProvider()
		if err == nil {
			err = s.maps.Update(mapsConf)
		}

		if errors.Is(err, chash.ErrConfig) || errors.Is(err, chash.ErrBuild) {
			return backoff.Permanent(err)
		}
		if err == nil {
			s.reloads.Inc()
		}
		return err
	}, backoff.WithContext(bo, s.ctx), func(err error, duration time.Duration) {
		s.log.Warn(
			"Failed to read maps configuration",
			slog.Any("error", err),
			slog.Duration("retry-after", duration),
		)
	})
}

func (s *Server) Maps() *Maps {
	return s.maps
}

func (s *Server) PublicPort() int {
	return s.publicPort
}

func (s *Server) InternalPort() int {
	return s.grpcServer.Port()
}

func (s *Server) MetricsPort() int {
	if s.metrics == nil {
		return 0
	}
	return s.metrics.Port()
}

func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()

	var err error
	if s.healthServer != nil {
		err = multierr.Append(err, s.healthServer.Close())
	}
	if s.httpServer != nil {
		err = multierr.Append(err, s.httpServer.Close())
	}
	if s.grpcServer != nil {
		err = multierr.Append(err, s.grpcServer.Close())
	}
	if s.metrics != nil {
		err = multierr.Append(err, s.metrics.Close())
	}

	s.mapsGauge.Unregister()
	return multierr.Append(err, s.maps.Close())
}
