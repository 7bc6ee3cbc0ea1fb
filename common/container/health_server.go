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

package container

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// HealthServer implements `service Health`. The overall status, and the status of
// the named service, follow the ready callback.
type HealthServer struct {
	healthpb.UnimplementedHealthServer

	service string
	ready   func() bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHealthServer(service string, ready func() bool) *HealthServer {
	hs := &HealthServer{
		service: service,
		ready:   ready,
	}
	hs.ctx, hs.cancel = context.WithCancel(context.Background())
	return hs
}

func (s *HealthServer) status() healthpb.HealthCheckResponse_ServingStatus {
	if s.ready() {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

func (s *HealthServer) Check(_ context.Context, in *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if in.Service != "" && in.Service != s.service {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", in.Service)
	}
	return &healthpb.HealthCheckResponse{Status: s.status()}, nil
}

func (s *HealthServer) Watch(in *healthpb.HealthCheckRequest, stream healthpb.Health_WatchServer) error {
	st := s.status()
	if in.Service != "" && in.Service != s.service {
		st = healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}

	// Send first update and keep the stream open until it's time to shut down
	if err := stream.Send(&healthpb.HealthCheckResponse{Status: st}); err != nil {
		return err
	}

	select {
	case <-stream.Context().Done():
		// Client has closed the stream
		return nil

	case <-s.ctx.Done():
		// Server is closing
		return s.ctx.Err()
	}
}

func (s *HealthServer) Close() error {
	s.cancel()
	return nil
}
