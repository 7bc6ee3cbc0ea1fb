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
	"fmt"

	"github.com/streamnative/chashmap/common/constant"
	"github.com/streamnative/chashmap/config"
)

type Config struct {
	PublicServiceAddr   string
	InternalServiceAddr string
	MetricsServiceAddr  string

	MapsProvider            func() (config.Config, error) `json:"-"`
	MapsChangeNotifications chan any                      `json:"-"`
}

func NewConfig() Config {
	return Config{
		PublicServiceAddr:   fmt.Sprintf("localhost:%d", constant.DefaultPublicPort),
		InternalServiceAddr: fmt.Sprintf("localhost:%d", constant.DefaultInternalPort),
		MetricsServiceAddr:  fmt.Sprintf("localhost:%d", constant.DefaultMetricsPort),
	}
}
