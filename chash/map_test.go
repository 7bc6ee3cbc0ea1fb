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
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamnative/chashmap/common/crc"
)

func randomKeys(count int) []string {
	r := rand.New(rand.NewSource(0))
	alphabet := "abcdefghijklmnopqrstuvwxyz0123456789"

	keys := make([]string, count)
	for i := range keys {
		var b strings.Builder
		for j := 0; j < 24; j++ {
			_ = b.WriteByte(alphabet[r.Intn(len(alphabet))])
		}
		keys[i] = b.String()
	}
	return keys
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = New([]Part{{Value: "a", Weight: 0}})
	assert.True(t, errors.Is(err, ErrConfig))
	assert.ErrorContains(t, err, `"a"`)
}

func TestMap_Lookup(t *testing.T) {
	m, err := New([]Part{
		{Value: "10.0.0.1:80", Weight: 1},
		{Value: "10.0.0.2:80", Weight: 2},
	}, WithName("backend"))
	require.NoError(t, err)
	assert.Equal(t, "backend", m.Name())
	assert.Equal(t, 3, m.TotalWeight())

	points := m.Points()
	for _, key := range []string{"", "key1", "/index.html", "192.168.1.1"} {
		idx := m.Locate(crc.Sum([]byte(key))) % m.Len()

		res := m.LookupString(key)
		assert.Equal(t, points[idx].Value, res.Value, key)
		assert.False(t, res.Degraded)
		assert.Equal(t, res, m.Lookup([]byte(key)))
	}
}

func TestMap_Deterministic(t *testing.T) {
	parts := []Part{
		{Value: "a", Weight: 1},
		{Value: "b", Weight: 4},
		{Value: "c", Weight: 2},
	}
	m1, err := New(parts)
	require.NoError(t, err)
	m2, err := New(parts)
	require.NoError(t, err)

	assert.Equal(t, m1.Points(), m2.Points())
	for _, key := range randomKeys(1000) {
		assert.Equal(t, m1.LookupString(key), m2.LookupString(key))
	}
}

func TestMap_CoverageProportionality(t *testing.T) {
	parts := []Part{
		{Value: "a", Weight: 1},
		{Value: "b", Weight: 2},
		{Value: "c", Weight: 3},
	}
	m, err := New(parts)
	require.NoError(t, err)

	keys := randomKeys(60_000)
	counts := make(map[string]int)
	for _, key := range keys {
		res := m.LookupString(key)
		require.False(t, res.Degraded)
		counts[res.Value]++
	}

	for _, p := range parts {
		expected := float64(p.Weight) / float64(m.TotalWeight())
		actual := float64(counts[p.Value]) / float64(len(keys))
		assert.InDelta(t, expected, actual, expected*0.25,
			"value %s has %d of %d keys", p.Value, counts[p.Value], len(keys))
	}
}

func TestMap_MinimalRemapping(t *testing.T) {
	before, err := New([]Part{
		{Value: "a", Weight: 1},
		{Value: "b", Weight: 1},
		{Value: "c", Weight: 1},
	})
	require.NoError(t, err)

	after, err := New([]Part{
		{Value: "a", Weight: 1},
		{Value: "b", Weight: 1},
		{Value: "c", Weight: 1},
		{Value: "d", Weight: 1},
	})
	require.NoError(t, err)

	moved := 0
	keys := randomKeys(10_000)
	for _, key := range keys {
		b := before.LookupString(key).Value
		a := after.LookupString(key).Value
		if a != b {
			moved++
			assert.Equal(t, "d", a, "key %s moved from %s to %s", key, b, a)
		}
	}

	assert.Positive(t, moved)
	assert.Less(t, moved, len(keys)/2)
}

func TestMap_MarkingDownOnlyMovesItsKeys(t *testing.T) {
	up, err := New([]Part{
		{Value: "a", Weight: 1},
		{Value: "b", Weight: 1},
		{Value: "c", Weight: 1},
	})
	require.NoError(t, err)

	down, err := New([]Part{
		{Value: "a", Weight: 1},
		{Value: "b", Weight: 1, Down: true},
		{Value: "c", Weight: 1},
	})
	require.NoError(t, err)

	for _, key := range randomKeys(5_000) {
		u := up.LookupString(key)
		d := down.LookupString(key)
		assert.NotEqual(t, "b", d.Value)
		if u.Value != "b" {
			assert.Equal(t, u.Value, d.Value)
			assert.Zero(t, d.Tries)
		} else {
			assert.Positive(t, d.Tries)
		}
	}
}

func TestMap_AllDown(t *testing.T) {
	m, err := New([]Part{
		{Value: "a", Weight: 1, Down: true},
		{Value: "b", Weight: 1, Down: true},
	})
	require.NoError(t, err)

	for _, key := range randomKeys(20) {
		res := m.LookupString(key)
		assert.Equal(t, "a", res.Value)
		assert.True(t, res.Degraded)
	}
}

func TestMap_Clone(t *testing.T) {
	m, err := New([]Part{
		{Value: "v", Weight: 3},
		{Value: "v", Weight: 1},
	})
	require.NoError(t, err)

	m.Select(0)
	c := m.Clone()
	assert.Equal(t, m.Entries(), c.Entries())
	assert.Equal(t, m.Points(), c.Points())

	c.Select(0)
	assert.NotEqual(t, m.Entries(), c.Entries())
}

func TestMap_ConcurrentLookups(t *testing.T) {
	m, err := New([]Part{
		{Value: "v", Weight: 3},
		{Value: "v", Weight: 1},
		{Value: "w", Weight: 2},
	})
	require.NoError(t, err)

	// Always start on a point of "v"
	start := 0
	for m.Points()[start].Value != "v" {
		start++
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				res := m.Select(start)
				assert.Equal(t, "v", res.Value)
			}
		}()
	}
	wg.Wait()

	// 4000 picks are whole round-robin cycles over the weights 3 and 1
	for i, e := range m.Entries() {
		assert.Zero(t, e.CurrentWeight, fmt.Sprintf("entry %d", i))
	}
}
