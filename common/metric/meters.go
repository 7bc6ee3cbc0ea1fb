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
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Unit string

const (
	Bytes         Unit = "By"
	Milliseconds  Unit = "ms"
	Dimensionless Unit = "{count}"
)

var meter metric.Meter

// LabelsForMap are the labels attached to the instruments of one map.
func LabelsForMap(name string) map[string]any {
	return map[string]any{
		"chash_map": name,
	}
}

func fatalOnErr(err error, name string) {
	if err == nil {
		return
	}

	slog.Error(
		"Failed to create metric",
		slog.String("metric-name", name),
		slog.Any("error", err),
	)
	os.Exit(1)
}

func toAttribute(k string, v any) (attribute.KeyValue, error) {
	key := attribute.Key(k)
	switch t := v.(type) {
	case string:
		return key.String(t), nil
	case bool:
		return key.Bool(t), nil
	case int:
		return key.Int(t), nil
	case int64:
		return key.Int64(t), nil
	case uint32:
		return key.Int64(int64(t)), nil
	case float64:
		return key.Float64(t), nil
	}
	return attribute.KeyValue{}, fmt.Errorf("invalid type %T for label %q", v, k)
}

// getAttrs builds the attribute set once, so recording does not allocate it
// again on every measurement.
func getAttrs(labels map[string]any) metric.MeasurementOption {
	kvs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		kv, err := toAttribute(k, v)
		fatalOnErr(err, k)
		kvs = append(kvs, kv)
	}

	return metric.WithAttributeSet(attribute.NewSet(kvs...))
}
