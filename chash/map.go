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

package chash

import (
	"log/slog"
	"sync"

	"github.com/streamnative/chashmap/common/crc"
)

// Map is a built ring together with the registry it was built from.
//
// A Map is safe for concurrent use. The ring is read-only; the round-robin state
// of the registry is updated under a lock held for the whole lookup, so every
// selection step over a group of entries is atomic. Clone returns a replica with
// independent selection state for callers that prefer one Map per worker.
type Map struct {
	mu sync.Mutex

	name     string
	registry *Registry
	ring     *Ring
	log      *slog.Logger
}

// RingPoint is an exported view of a ring point.
type RingPoint struct {
	Hash  uint32
	Value string
}

func New(parts []Part, opts ...Option) (*Map, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	registry, err := NewRegistry(parts)
	if err != nil {
		return nil, err
	}

	ring, err := BuildRing(registry)
	if err != nil {
		return nil, err
	}

	m := &Map{
		name:     o.name,
		registry: registry,
		ring:     ring,
		log: o.logger.With(
			slog.String("component", "chash-map"),
			slog.String("map", o.name),
		),
	}

	m.log.Debug(
		"Built consistent hash ring",
		slog.Int("parts", registry.Len()),
		slog.Int("total-weight", registry.TotalWeight()),
		slog.Int("points", ring.Len()),
	)
	return m, nil
}

func (m *Map) Name() string {
	return m.name
}

// Lookup maps key onto one of the configured values.
func (m *Map) Lookup(key []byte) Result {
	return m.Select(m.ring.Locate(crc.Sum(key)))
}

func (m *Map) LookupString(key string) Result {
	return m.Lookup([]byte(key))
}

// Locate returns the ring index for a precomputed key checksum.
func (m *Map) Locate(hash uint32) int {
	return m.ring.Locate(hash)
}

// Select resolves the ring index start, as returned by Locate, to a value.
func (m *Map) Select(start int) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	return selectFrom(m.registry, m.ring, start)
}

// Len returns the number of points on the ring.
func (m *Map) Len() int {
	return m.ring.Len()
}

func (m *Map) TotalWeight() int {
	return m.registry.TotalWeight()
}

// Entries returns a snapshot of the registry entries in configuration order.
func (m *Map) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]Entry, m.registry.Len())
	copy(entries, m.registry.entries)
	return entries
}

// Points returns a copy of the ring.
func (m *Map) Points() []RingPoint {
	points := make([]RingPoint, m.ring.Len())
	for i, p := range m.ring.points {
		points[i] = RingPoint{
			Hash:  p.Hash,
			Value: m.registry.entries[p.Entry].Value,
		}
	}
	return points
}

// Clone returns a Map sharing this ring, with a copy of the current selection
// state.
func (m *Map) Clone() *Map {
	m.mu.Lock()
	defer m.mu.Unlock()

	return &Map{
		name:     m.name,
		registry: m.registry.clone(),
		ring:     m.ring,
		log:      m.log,
	}
}
