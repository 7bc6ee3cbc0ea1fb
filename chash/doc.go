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

// Package chash maps arbitrary keys onto a weighted set of values with a
// ketama-style consistent hash ring.
//
// A Map is built once from an ordered list of parts, each a (value, weight, down)
// triple. Every part contributes weight*160 points to the ring, generated by a
// CRC-32 chain seeded with the part value. At lookup time the key checksum selects
// the first point at or after it; among all parts configured with the value of that
// point, a smooth weighted round-robin step picks the one to use. When none of them
// is available the lookup walks forward around the ring, and when the whole ring is
// exhausted it falls back to the first configured part and reports it as degraded.
package chash
