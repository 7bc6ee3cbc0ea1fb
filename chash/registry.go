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
	"github.com/pkg/errors"
)

// Part is one configured item of a map.
type Part struct {
	Value  string
	Weight int
	Down   bool
}

// Entry is a Part together with its round-robin selection state.
type Entry struct {
	Value     string
	Weight    int
	Available bool

	CurrentWeight   int
	EffectiveWeight int
}

// Registry holds the entries of a map in configuration order.
type Registry struct {
	entries     []Entry
	totalWeight int

	// Entry indexes sharing the same value, in configuration order
	groups map[string][]int
}

func NewRegistry(parts []Part) (*Registry, error) {
	if len(parts) == 0 {
		return nil, errors.Wrap(ErrConfig, "no part in map")
	}

	r := &Registry{
		entries: make([]Entry, len(parts)),
		groups:  make(map[string][]int),
	}

	for i, p := range parts {
		if p.Weight <= 0 {
			return nil, errors.Wrapf(ErrConfig, "invalid weight %d for part %q", p.Weight, p.Value)
		}

		r.entries[i] = Entry{
			Value:           p.Value,
			Weight:          p.Weight,
			Available:       !p.Down,
			CurrentWeight:   0,
			EffectiveWeight: p.Weight,
		}
		r.totalWeight += p.Weight
		r.groups[p.Value] = append(r.groups[p.Value], i)
	}

	return r, nil
}

func (r *Registry) TotalWeight() int {
	return r.totalWeight
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Entry returns a copy of the i-th entry.
func (r *Registry) Entry(i int) Entry {
	return r.entries[i]
}

// pick runs one smooth weighted round-robin step over the available entries
// configured with value and returns the index of the chosen one, or -1 when there
// is none.
func (r *Registry) pick(value string) int {
	best := -1
	total := 0

	for _, i := range r.groups[value] {
		e := &r.entries[i]
		if !e.Available {
			continue
		}

		e.CurrentWeight += e.EffectiveWeight
		total += e.EffectiveWeight

		if e.EffectiveWeight < e.Weight {
			e.EffectiveWeight++
		}

		if best < 0 || e.CurrentWeight > r.entries[best].CurrentWeight {
			best = i
		}
	}

	if best >= 0 {
		r.entries[best].CurrentWeight -= total
	}
	return best
}

// clone copies the selection state. The value groups are never modified after
// construction and are shared.
func (r *Registry) clone() *Registry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return &Registry{
		entries:     entries,
		totalWeight: r.totalWeight,
		groups:      r.groups,
	}
}
