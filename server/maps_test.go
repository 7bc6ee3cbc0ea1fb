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
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamnative/chashmap/chash"
	"github.com/streamnative/chashmap/common/logging"
	"github.com/streamnative/chashmap/config"
)

func testConfig() config.Config {
	return config.Config{
		Maps: []config.MapConfig{
			{
				Name: "backend",
				Key:  "$remote_addr$uri",
				Parts: []config.PartConfig{
					{Value: "10.0.0.1:80", Weight: 2},
					{Value: "10.0.0.2:80", Weight: 1},
					{Value: "10.0.0.3:80", Weight: 1, Down: true},
				},
			},
			{
				Name: "shards",
				Parts: []config.PartConfig{
					{Value: "s1", Weight: 1},
					{Value: "s2", Weight: 1},
				},
			},
		},
	}
}

func TestMaps_Lookup(t *testing.T) {
	maps, err := NewMaps(testConfig())
	require.NoError(t, err)
	defer maps.Close()

	expected, err := chash.New(testConfig().Maps[0].ChashParts())
	require.NoError(t, err)

	for _, key := range []string{"a", "b", "/index.html", "10.1.1.1/x"} {
		res, err := maps.Lookup("backend", []byte(key))
		require.NoError(t, err)
		assert.Equal(t, expected.LookupString(key), res)
		assert.NotEqual(t, "10.0.0.3:80", res.Value)
	}

	_, err = maps.Lookup("missing", []byte("a"))
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestMaps_Resolve(t *testing.T) {
	maps, err := NewMaps(testConfig())
	require.NoError(t, err)
	defer maps.Close()

	r := httptest.NewRequest("GET", "http://example.com/v1/maps/backend/resolve", nil)
	r.RemoteAddr = "10.9.9.9:4000"

	key, res, err := maps.Resolve("backend", r)
	require.NoError(t, err)
	assert.Equal(t, "10.9.9.9/v1/maps/backend/resolve", string(key))

	direct, err := maps.Lookup("backend", key)
	require.NoError(t, err)
	assert.Equal(t, direct.Value, res.Value)

	_, _, err = maps.Resolve("shards", r)
	assert.ErrorIs(t, err, ErrNoTemplate)

	_, _, err = maps.Resolve("missing", r)
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestMaps_Update(t *testing.T) {
	maps, err := NewMaps(testConfig())
	require.NoError(t, err)
	defer maps.Close()

	assert.Equal(t, []string{"backend", "shards"}, maps.Names())

	// An invalid configuration leaves the current maps in place
	invalid := testConfig()
	invalid.Maps[1].Parts[0].Weight = 0
	assert.ErrorIs(t, maps.Update(invalid), chash.ErrConfig)
	assert.Equal(t, []string{"backend", "shards"}, maps.Names())

	updated := config.Config{Maps: []config.MapConfig{
		{Name: "other", Parts: []config.PartConfig{{Value: "x", Weight: 1}}},
	}}
	require.NoError(t, maps.Update(updated))
	assert.Equal(t, []string{"other"}, maps.Names())

	res, err := maps.Lookup("other", []byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, "x", res.Value)

	_, err = maps.Lookup("backend", []byte("a"))
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestMaps_UpdateConcurrentLookups(t *testing.T) {
	maps, err := NewMaps(testConfig())
	require.NoError(t, err)
	defer maps.Close()

	wg := sync.WaitGroup{}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				res, err := maps.Lookup("shards", []byte("key"))
				assert.NoError(t, err)
				assert.Contains(t, []string{"s1", "s2"}, res.Value)
			}
		}()
	}

	for i := 0; i < 20; i++ {
		assert.NoError(t, maps.Update(testConfig()))
	}
	wg.Wait()
}

func TestMaps_Info(t *testing.T) {
	maps, err := NewMaps(testConfig())
	require.NoError(t, err)
	defer maps.Close()

	infos := maps.Info()
	require.Len(t, infos, 2)

	assert.Equal(t, "backend", infos[0].Name)
	assert.Equal(t, "$remote_addr$uri", infos[0].Key)
	assert.Equal(t, []string{"10.0.0.1:80 weight=2", "10.0.0.2:80", "10.0.0.3:80 down"}, infos[0].Parts)
	assert.Equal(t, 4, infos[0].TotalWeight)
	assert.LessOrEqual(t, infos[0].Points, 4*chash.PointsPerWeight)
	assert.Greater(t, infos[0].Points, 0)

	assert.Equal(t, "shards", infos[1].Name)
	assert.Equal(t, 2, infos[1].TotalWeight)
}

func TestMaps_DegradedLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	defaultLogger := slog.Default()
	slog.SetDefault(logging.NewLogger(buf, slog.LevelInfo, true))
	defer slog.SetDefault(defaultLogger)

	maps, err := NewMaps(config.Config{Maps: []config.MapConfig{
		{Name: "down", Parts: []config.PartConfig{
			{Value: "a", Weight: 1, Down: true},
			{Value: "b", Weight: 1, Down: true},
		}},
	}})
	require.NoError(t, err)
	defer maps.Close()

	for i := 0; i < 5; i++ {
		res, err := maps.Lookup("down", []byte("key"))
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Equal(t, "a", res.Value)
	}

	// Throttled to the first occurrence within the interval
	assert.Equal(t, 1, strings.Count(buf.String(), "no available part"))
	assert.Contains(t, buf.String(), `"map":"down"`)
}

func TestMaps_Close(t *testing.T) {
	maps, err := NewMaps(testConfig())
	require.NoError(t, err)
	require.NoError(t, maps.Close())

	assert.Equal(t, 0, maps.Len())
	_, err = maps.Lookup("backend", []byte("a"))
	assert.ErrorIs(t, err, ErrMapNotFound)
	assert.Empty(t, maps.Info())
}
