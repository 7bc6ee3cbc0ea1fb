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
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/streamnative/chashmap/common/crc"
)

// PointsPerWeight is the number of ring points generated per unit of weight.
const PointsPerWeight = 160

// Point is a position on the ring, labeled with the registry index of the entry
// that generated it.
type Point struct {
	Hash  uint32
	Entry int
}

// Ring is the sorted, deduplicated set of points of a registry.
// It is never modified after BuildRing returns.
type Ring struct {
	points []Point
}

func BuildRing(r *Registry) (*Ring, error) {
	points := generatePoints(r)
	if len(points) == 0 {
		return nil, errors.Wrap(ErrBuild, "ring has no points")
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Hash < points[j].Hash
	})

	// Keep the earliest generated point for each hash
	n := 0
	for _, p := range points {
		if n > 0 && points[n-1].Hash == p.Hash {
			continue
		}
		points[n] = p
		n++
	}

	return &Ring{points: points[:n:n]}, nil
}

// generatePoints produces the points of every entry in registry order.
// Each point hash is the checksum of the entry value followed by the previous
// point hash of the same entry, little-endian encoded (zero for the first one).
func generatePoints(r *Registry) []Point {
	points := make([]Point, 0, r.totalWeight*PointsPerWeight)

	var salt [4]byte
	for i := range r.entries {
		e := &r.entries[i]
		base := crc.Start().UpdateString(e.Value)

		binary.LittleEndian.PutUint32(salt[:], 0)
		for j := 0; j < e.Weight*PointsPerWeight; j++ {
			hash := base.Update(salt[:]).Final()
			points = append(points, Point{Hash: hash, Entry: i})
			binary.LittleEndian.PutUint32(salt[:], hash)
		}
	}

	return points
}

func (r *Ring) Len() int {
	return len(r.points)
}

func (r *Ring) Point(i int) Point {
	return r.points[i]
}

// Locate returns the index of the first point whose hash is >= hash, or Len()
// when hash is past the last point. Callers wrap the result modulo Len().
func (r *Ring) Locate(hash uint32) int {
	return sort.Search(len(r.points), func(i int) bool {
		return r.points[i].Hash >= hash
	})
}
