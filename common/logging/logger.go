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

package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	slogzerolog "github.com/samber/slog-zerolog/v2"
	"google.golang.org/protobuf/encoding/protojson"
	pb "google.golang.org/protobuf/proto"
)

const DefaultLogLevel = slog.LevelInfo

var (
	// LogLevel Used for flags.
	LogLevel = DefaultLogLevel
	// LogJSON Used for flags.
	LogJSON bool
)

var protoMarshal = protojson.MarshalOptions{
	EmitUnpopulated: true,
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	//nolint
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	// Proto messages are logged in their canonical JSON form
	zerolog.InterfaceMarshalFunc = func(i any) ([]byte, error) {
		if m, ok := i.(pb.Message); ok {
			return protoMarshal.Marshal(m)
		}
		return json.Marshal(i)
	}
}

// ParseLogLevel accepts the slog level names, in any case. Unknown names
// yield DefaultLogLevel and an error.
func ParseLogLevel(levelStr string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		return DefaultLogLevel, errors.Wrapf(err, "unknown level string: '%s', defaulting to %s", levelStr, DefaultLogLevel)
	}
	return level, nil
}

// ConfigureLogger installs the default logger from LogLevel and LogJSON.
func ConfigureLogger() {
	slog.SetDefault(NewLogger(os.Stdout, LogLevel, LogJSON))
}

func NewLogger(out io.Writer, level slog.Level, jsonFormat bool) *slog.Logger {
	zl := zerolog.New(writer(out, jsonFormat)).
		With().
		Timestamp().
		Stack().
		Logger()

	return slog.New(
		slogzerolog.Option{
			Level:  level,
			Logger: &zl,
		}.NewZerologHandler(),
	)
}

func writer(out io.Writer, jsonFormat bool) io.Writer {
	if jsonFormat {
		return out
	}

	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.StampMicro,
	}
}
