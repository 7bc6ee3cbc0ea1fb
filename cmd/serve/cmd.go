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

package serve

import (
	"io"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamnative/chashmap/cmd/flag"
	"github.com/streamnative/chashmap/common/process"
	"github.com/streamnative/chashmap/config"
	"github.com/streamnative/chashmap/server"
)

var (
	conf       = server.NewConfig()
	configFile string

	Cmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the lookup service",
		Long:  `Start the lookup service, reloading the maps whenever the config file changes`,
		RunE:  exec,
	}
)

func init() {
	flag.PublicAddr(Cmd, &conf.PublicServiceAddr)
	flag.InternalAddr(Cmd, &conf.InternalServiceAddr)
	flag.MetricsAddr(Cmd, &conf.MetricsServiceAddr)
	flag.ConfigFile(Cmd, &configFile)
}

func setConfigPath(v *viper.Viper) {
	v.SetConfigType("yaml")

	if configFile == "" {
		v.SetConfigName("maps")
		v.AddConfigPath("/chashmap/conf")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(configFile)
	}
}

func exec(*cobra.Command, []string) error {
	v := viper.New()

	conf.MapsChangeNotifications = make(chan any)
	conf.MapsProvider = func() (config.Config, error) {
		return config.Load(v)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		conf.MapsChangeNotifications <- nil
	})

	setConfigPath(v)
	if _, err := config.Load(v); err != nil {
		return err
	}
	v.WatchConfig()

	process.RunProcess(func() (io.Closer, error) {
		return server.New(conf)
	})
	return nil
}
