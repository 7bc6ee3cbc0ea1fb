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
	"log/slog"
	"net/http"

	"github.com/pkg/errors"
)

// ValueHeader carries the resolved value on resolve responses.
const ValueHeader = "X-Chash-Value"

type LookupResponse struct {
	Map      string `json:"map"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Degraded bool   `json:"degraded"`
}

type MapInfo struct {
	Name        string   `json:"name"`
	Key         string   `json:"key,omitempty"`
	Parts       []string `json:"parts"`
	Points      int      `json:"points"`
	TotalWeight int      `json:"totalWeight"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	maps *Maps
	log  *slog.Logger
}

// NewHandler returns the HTTP API serving lookups against maps.
func NewHandler(maps *Maps) http.Handler {
	h := &handler{
		maps: maps,
		log: slog.With(
			slog.String("component", "http-handler"),
		),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/maps", h.listMaps)
	mux.HandleFunc("GET /v1/maps/{name}/lookup", h.lookup)
	mux.HandleFunc("GET /v1/maps/{name}/resolve", h.resolve)
	return mux
}

func (h *handler) listMaps(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.maps.Info())
}

func (h *handler) lookup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	query := r.URL.Query()
	if !query.Has("key") {
		h.writeError(w, ErrNoKeyParam)
		return
	}
	key := query.Get("key")

	res, err := h.maps.Lookup(name, []byte(key))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, LookupResponse{
		Map:      name,
		Key:      key,
		Value:    res.Value,
		Degraded: res.Degraded,
	})
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	key, res, err := h.maps.Resolve(name, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set(ValueHeader, res.Value)
	h.writeJSON(w, http.StatusOK, LookupResponse{
		Map:      name,
		Key:      string(key),
		Value:    res.Value,
		Degraded: res.Degraded,
	})
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrMapNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrNoKeyParam), errors.Is(err, ErrNoTemplate):
		code = http.StatusBadRequest
	}

	h.writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn(
			"Failed to write response",
			slog.Any("error", err),
		)
	}
}
