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

// Result is the outcome of a lookup.
type Result struct {
	Value string

	// Degraded is set when no available entry was found anywhere on the ring and
	// Value is the first configured entry, regardless of its availability.
	Degraded bool

	// Tries is the number of ring points skipped before a value was chosen
	Tries int
}

// selectFrom resolves the ring point at start to a value, walking forward
// around the ring until a point with an available entry is found.
func selectFrom(r *Registry, ring *Ring, start int) Result {
	n := ring.Len()
	idx := start % n
	if idx < 0 {
		idx += n
	}

	tries := 0
	for {
		candidate := r.entries[ring.points[idx].Entry].Value

		if best := r.pick(candidate); best >= 0 {
			return Result{Value: r.entries[best].Value, Tries: tries}
		}

		idx = (idx + 1) % n
		tries++

		if tries > n {
			return Result{Value: r.entries[0].Value, Degraded: true, Tries: tries}
		}
	}
}
