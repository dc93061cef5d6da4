// Copyright 2025 The LiteOS Authors.
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

package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// config is the simulated machine's tunables, loadable from TOML.
type config struct {
	// Cores is the number of simulated cores.
	Cores int `toml:"cores"`

	// QueueCapacity bounds each core's IPI mailbox.
	QueueCapacity int `toml:"queue-capacity"`

	// SendRetries bounds hardware-send retries.
	SendRetries int `toml:"send-retries"`

	// SyncTimeoutMS is the deadline for synchronous IPI calls and
	// barriers, in milliseconds.
	SyncTimeoutMS int64 `toml:"sync-timeout-ms"`
}

func defaultConfig() config {
	return config{
		Cores:         4,
		QueueCapacity: 64,
		SendRetries:   3,
		SyncTimeoutMS: 100,
	}
}

// loadConfig returns the defaults overlaid with the TOML file at path, if
// any.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("loading %s: %w", path, err)
	}
	if cfg.Cores <= 0 {
		return cfg, fmt.Errorf("loading %s: cores must be positive, got %d", path, cfg.Cores)
	}
	return cfg, nil
}

func (c config) syncTimeout() time.Duration {
	return time.Duration(c.SyncTimeoutMS) * time.Millisecond
}
