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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamnative/chashmap/config"
)

func newTestHandler(t *testing.T, c config.Config) http.Handler {
	t.Helper()

	maps, err := NewMaps(c)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = maps.Close()
	})
	return NewHandler(maps)
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHandler_ListMaps(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/v1/maps", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	infos := decode[[]MapInfo](t, rec)
	require.Len(t, infos, 2)
	assert.Equal(t, "backend", infos[0].Name)
	assert.Equal(t, "shards", infos[1].Name)
	assert.Equal(t, []string{"s1", "s2"}, infos[1].Parts)
}

func TestHandler_Lookup(t *testing.T) {
	h := newTestHandler(t, testConfig())

	for _, test := range []struct {
		name string
		url  string
		code int
	}{
		{"ok", "/v1/maps/shards/lookup?key=user-1", http.StatusOK},
		{"empty-key", "/v1/maps/shards/lookup?key=", http.StatusOK},
		{"missing-key", "/v1/maps/shards/lookup", http.StatusBadRequest},
		{"unknown-map", "/v1/maps/nope/lookup?key=a", http.StatusNotFound},
	} {
		t.Run(test.name, func(t *testing.T) {
			rec := serve(h, httptest.NewRequest(http.MethodGet, test.url, nil))
			assert.Equal(t, test.code, rec.Code)

			if test.code != http.StatusOK {
				assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
				return
			}

			res := decode[LookupResponse](t, rec)
			assert.Equal(t, "shards", res.Map)
			assert.Contains(t, []string{"s1", "s2"}, res.Value)
			assert.False(t, res.Degraded)
		})
	}
}

func TestHandler_LookupIsConsistent(t *testing.T) {
	h := newTestHandler(t, testConfig())

	first := decode[LookupResponse](t, serve(h, httptest.NewRequest(http.MethodGet, "/v1/maps/backend/lookup?key=session-42", nil)))
	assert.Equal(t, "session-42", first.Key)

	for i := 0; i < 10; i++ {
		res := decode[LookupResponse](t, serve(h, httptest.NewRequest(http.MethodGet, "/v1/maps/backend/lookup?key=session-42", nil)))
		assert.Equal(t, first, res)
	}
}

func TestHandler_WrongMethod(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/v1/maps/shards/lookup?key=a", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_Resolve(t *testing.T) {
	h := newTestHandler(t, testConfig())

	r := httptest.NewRequest(http.MethodGet, "/v1/maps/backend/resolve", nil)
	r.RemoteAddr = "192.168.1.20:5555"

	rec := serve(h, r)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[LookupResponse](t, rec)
	assert.Equal(t, "192.168.1.20/v1/maps/backend/resolve", res.Key)
	assert.Equal(t, res.Value, rec.Header().Get(ValueHeader))

	lookup := decode[LookupResponse](t, serve(h, httptest.NewRequest(http.MethodGet,
		"/v1/maps/backend/lookup?key=192.168.1.20/v1/maps/backend/resolve", nil)))
	assert.Equal(t, res.Value, lookup.Value)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/v1/maps/shards/resolve", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Degraded(t *testing.T) {
	h := newTestHandler(t, config.Config{Maps: []config.MapConfig{
		{Name: "down", Parts: []config.PartConfig{{Value: "only", Weight: 1, Down: true}}},
	}})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/v1/maps/down/lookup?key=k", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	res := decode[LookupResponse](t, rec)
	assert.Equal(t, "only", res.Value)
	assert.True(t, res.Degraded)
}
