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

package process

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
)

// RunProcess starts the process, along with the optional profiler, and keeps it
// running until SIGINT or SIGTERM. It exits the program once everything is
// closed.
func RunProcess(startProcess func() (io.Closer, error)) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiler := RunProfiling()
	process, err := startProcess()
	if err != nil {
		slog.Error(
			"Failed to start the process",
			slog.Any("error", err),
		)
		_ = profiler.Close()
		os.Exit(1)
	}

	if err := CloseOnDone(ctx, process, profiler); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

// CloseOnDone waits for ctx to be done and then closes all the closers, in
// order, even when some of them fail.
func CloseOnDone(ctx context.Context, closers ...io.Closer) error {
	<-ctx.Done()
	slog.Info("Shutting down")

	var err error
	for _, c := range closers {
		err = multierr.Append(err, c.Close())
	}

	if err != nil {
		slog.Error(
			"Failed when shutting down",
			slog.Any("error", err),
		)
		return err
	}

	slog.Info("Shutdown completed")
	return nil
}
