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
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/streamnative/chashmap/chash"
	"github.com/streamnative/chashmap/common/metric"
	"github.com/streamnative/chashmap/config"
	"github.com/streamnative/chashmap/keyexpr"
)

const degradedLogInterval = 10 * time.Second

// mapContext is one named map ready to serve lookups.
type mapContext struct {
	conf  config.MapConfig
	chash *chash.Map
	key   *keyexpr.Template
	log   *slog.Logger

	degradedLog rate.Sometimes

	lookups  metric.Counter
	degraded metric.Counter
	tries    metric.Histogram
	latency  metric.LatencyHistogram

	pointsGauge metric.Gauge
	partsGauge  metric.Gauge
}

func newMapContext(conf config.MapConfig) (*mapContext, error) {
	key, err := keyexpr.Compile(conf.Key)
	if err != nil {
		return nil, errors.Wrapf(err, "map %q", conf.Name)
	}

	log := slog.With(
		slog.String("component", "lookup-service"),
		slog.String("map", conf.Name),
	)

	m, err := chash.New(conf.ChashParts(),
		chash.WithName(conf.Name),
		chash.WithLogger(slog.Default()),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "map %q", conf.Name)
	}

	labels := metric.LabelsForMap(conf.Name)
	mc := &mapContext{
		conf:        conf,
		chash:       m,
		key:         key,
		log:         log,
		degradedLog: rate.Sometimes{First: 1, Interval: degradedLogInterval},

		lookups: metric.NewCounter("chashmap_lookup",
			"The total number of lookups", metric.Dimensionless, labels),
		degraded: metric.NewCounter("chashmap_lookup_degraded",
			"The number of lookups that found no available part", metric.Dimensionless, labels),
		tries: metric.NewCountHistogram("chashmap_lookup_tries",
			"The number of ring points skipped before a lookup found an available part", labels),
		latency: metric.NewLatencyHistogram("chashmap_lookup_latency",
			"The latency of lookups", labels),
	}

	mc.pointsGauge = metric.NewGauge("chashmap_ring_points",
		"The number of points on the ring", metric.Dimensionless, labels, func() int64 {
			return int64(m.Len())
		})
	mc.partsGauge = metric.NewGauge("chashmap_ring_parts",
		"The number of configured parts", metric.Dimensionless, labels, func() int64 {
			return int64(len(conf.Parts))
		})
	return mc, nil
}

func (mc *mapContext) lookup(key []byte) chash.Result {
	timer := mc.latency.Timer()
	res := mc.chash.Lookup(key)
	timer.Done()

	mc.lookups.Inc()
	mc.tries.Record(res.Tries)

	if res.Degraded {
		mc.degraded.Inc()
		mc.degradedLog.Do(func() {
			mc.log.Warn(
				"no available part",
				slog.String("key", string(key)),
				slog.String("value", res.Value),
			)
		})
	}
	return res
}

func (mc *mapContext) info() MapInfo {
	parts := make([]string, len(mc.conf.Parts))
	for i, p := range mc.conf.Parts {
		parts[i] = p.String()
	}

	return MapInfo{
		Name:        mc.conf.Name,
		Key:         mc.conf.Key,
		Parts:       parts,
		Points:      mc.chash.Len(),
		TotalWeight: mc.chash.TotalWeight(),
	}
}

func (mc *mapContext) close() {
	mc.pointsGauge.Unregister()
	mc.partsGauge.Unregister()
}

type mapSet struct {
	names []string
	maps  map[string]*mapContext
}

func newMapSet(c config.Config) (*mapSet, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s := &mapSet{
		names: make([]string, 0, len(c.Maps)),
		maps:  make(map[string]*mapContext, len(c.Maps)),
	}

	for _, mConf := range c.Maps {
		mc, err := newMapContext(mConf)
		if err != nil {
			s.close()
			return nil, err
		}

		s.names = append(s.names, mConf.Name)
		s.maps[mConf.Name] = mc
	}
	return s, nil
}

func (s *mapSet) close() {
	for _, mc := range s.maps {
		mc.close()
	}
}

// Maps holds the current set of maps. Update builds a complete new set and
// swaps it in, so lookups never observe a partially built configuration.
type Maps struct {
	current atomic.Pointer[mapSet]
}

func NewMaps(c config.Config) (*Maps, error) {
	m := &Maps{}
	if err := m.Update(c); err != nil {
		return nil, err
	}
	return m, nil
}

// Update replaces all the maps. On error the current maps are left untouched.
func (m *Maps) Update(c config.Config) error {
	s, err := newMapSet(c)
	if err != nil {
		return err
	}

	if old := m.current.Swap(s); old != nil {
		old.close()
	}

	slog.Info(
		"Loaded maps",
		slog.Any("maps", s.names),
	)
	return nil
}

var emptyMapSet = &mapSet{}

func (m *Maps) load() *mapSet {
	if s := m.current.Load(); s != nil {
		return s
	}
	return emptyMapSet
}

// Names returns the map names in configuration order.
func (m *Maps) Names() []string {
	return m.load().names
}

func (m *Maps) Len() int {
	return len(m.load().names)
}

func (m *Maps) get(name string) (*mapContext, error) {
	mc, ok := m.load().maps[name]
	if !ok {
		return nil, errors.Wrapf(ErrMapNotFound, "map %q", name)
	}
	return mc, nil
}

func (m *Maps) Lookup(name string, key []byte) (chash.Result, error) {
	mc, err := m.get(name)
	if err != nil {
		return chash.Result{}, err
	}
	return mc.lookup(key), nil
}

// Resolve computes the key of the request with the key template of the map
// and looks it up.
func (m *Maps) Resolve(name string, r *http.Request) (key []byte, res chash.Result, err error) {
	mc, err := m.get(name)
	if err != nil {
		return nil, chash.Result{}, err
	}

	if mc.key.Empty() {
		return nil, chash.Result{}, errors.Wrapf(ErrNoTemplate, "map %q", name)
	}

	key = mc.key.Evaluate(r)
	return key, mc.lookup(key), nil
}

func (m *Maps) Info() []MapInfo {
	s := m.load()
	infos := make([]MapInfo, 0, len(s.names))
	for _, name := range s.names {
		infos = append(infos, s.maps[name].info())
	}
	return infos
}

func (m *Maps) Close() error {
	if s := m.current.Swap(nil); s != nil {
		s.close()
	}
	return nil
}
