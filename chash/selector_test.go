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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect_Failover(t *testing.T) {
	r, ring := newTestRing(t, []Part{
		{Value: "A", Weight: 1, Down: true},
		{Value: "B", Weight: 1},
	})

	candidatesA := 0
	for i := 0; i < ring.Len(); i++ {
		if ring.Point(i).Entry == 0 {
			candidatesA++
		}

		res := selectFrom(r, ring, i)
		assert.Equal(t, "B", res.Value)
		assert.False(t, res.Degraded)
	}

	assert.Positive(t, candidatesA)
}

func TestSelect_FailoverWalksToNextPoint(t *testing.T) {
	r, ring := newTestRing(t, []Part{
		{Value: "A", Weight: 2, Down: true},
		{Value: "B", Weight: 1},
		{Value: "C", Weight: 1},
	})

	n := ring.Len()
	for i := 0; i < n; i++ {
		expectedTries := 0
		idx := i
		for ring.Point(idx).Entry == 0 {
			idx = (idx + 1) % n
			expectedTries++
		}

		res := selectFrom(r, ring, i)
		assert.Equal(t, r.Entry(ring.Point(idx).Entry).Value, res.Value)
		assert.Equal(t, expectedTries, res.Tries)
		assert.False(t, res.Degraded)
	}
}

func TestSelect_TotalUnavailability(t *testing.T) {
	r, ring := newTestRing(t, []Part{
		{Value: "first", Weight: 1, Down: true},
		{Value: "second", Weight: 2, Down: true},
		{Value: "third", Weight: 1, Down: true},
	})

	for _, start := range []int{0, 1, ring.Len() / 2, ring.Len() - 1, ring.Len()} {
		res := selectFrom(r, ring, start)
		assert.Equal(t, "first", res.Value)
		assert.True(t, res.Degraded)
		assert.Equal(t, ring.Len()+1, res.Tries)
	}
}

func TestSelect_WrapsPastTheEnd(t *testing.T) {
	r, ring := newTestRing(t, []Part{
		{Value: "A", Weight: 1},
		{Value: "B", Weight: 1},
	})

	first := r.Entry(ring.Point(0).Entry).Value
	assert.Equal(t, first, selectFrom(r, ring, ring.Len()).Value)
	assert.Equal(t, first, selectFrom(r, ring, 2*ring.Len()).Value)
	assert.Equal(t, first, selectFrom(r, ring, 0).Value)

	last := r.Entry(ring.Point(ring.Len() - 1).Entry).Value
	assert.Equal(t, last, selectFrom(r, ring, -1).Value)
}

func TestSelect_SharedValueRoundRobin(t *testing.T) {
	r, ring := newTestRing(t, []Part{
		{Value: "v", Weight: 3},
		{Value: "v", Weight: 1},
	})

	// Forced repeated lookups at the same index go through the round-robin cycle
	var chosen []int
	for i := 0; i < 4; i++ {
		before := r.clone()
		res := selectFrom(r, ring, 42)
		assert.Equal(t, "v", res.Value)
		assert.Zero(t, res.Tries)

		for e := 0; e < r.Len(); e++ {
			if r.Entry(e).CurrentWeight < before.Entry(e).CurrentWeight {
				chosen = append(chosen, e)
			}
		}
	}

	assert.Equal(t, []int{0, 0, 1, 0}, chosen)
}
