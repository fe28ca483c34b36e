// Copyright 2025 Keel Authors.
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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

// Config contains the engine-level configuration options for join execution.
type Config struct {
	// OOMUseTmpStorage enables spilling row containers to disk when the
	// memory quota of a query is exceeded.
	OOMUseTmpStorage bool `toml:"oom-use-tmp-storage" json:"oom-use-tmp-storage"`
	// TempStoragePath is the directory spilled row data is written to.
	TempStoragePath string `toml:"tmp-storage-path" json:"tmp-storage-path"`
	// MaxChunkSize is the max number of rows held by one chunk.
	MaxChunkSize int `toml:"max-chunk-size" json:"max-chunk-size"`
	// MemQuotaQuery is the default memory quota of one query in bytes.
	MemQuotaQuery int64 `toml:"mem-quota-query" json:"mem-quota-query"`
	// LogLevel is the log level of the background logger.
	LogLevel string `toml:"log-level" json:"log-level"`
}

var defaultConf = Config{
	OOMUseTmpStorage: true,
	TempStoragePath:  filepath.Join(os.TempDir(), "keel_tmp_storage"),
	MaxChunkSize:     1024,
	MemQuotaQuery:    1 << 30,
	LogLevel:         "info",
}

var globalConf atomic.Value

func init() {
	conf := defaultConf
	StoreGlobalConfig(&conf)
}

// NewConfig creates a new config instance with default values.
func NewConfig() *Config {
	conf := defaultConf
	return &conf
}

// GetGlobalConfig returns the global configuration.
// It should store configuration from command line and configuration file.
// Other parts of the system can read the global configuration use this
// function.
func GetGlobalConfig() *Config {
	return globalConf.Load().(*Config)
}

// StoreGlobalConfig stores a new config to the globalConf.
func StoreGlobalConfig(config *Config) {
	globalConf.Store(config)
}

// Load loads config options from a toml file.
func (c *Config) Load(confFile string) error {
	metaData, err := toml.DecodeFile(confFile, c)
	if err != nil {
		return errors.Trace(err)
	}
	if undecoded := metaData.Undecoded(); len(undecoded) > 0 {
		undecodedItems := make([]string, 0, len(undecoded))
		for _, item := range undecoded {
			undecodedItems = append(undecodedItems, item.String())
		}
		return errors.Errorf("config file %s contained unknown configuration options: %s",
			confFile, strings.Join(undecodedItems, ", "))
	}
	return c.Valid()
}

// Valid checks whether the config options are valid.
func (c *Config) Valid() error {
	if c.MaxChunkSize < 1 {
		return errors.Errorf("max-chunk-size should be greater than 0, got %d", c.MaxChunkSize)
	}
	if c.OOMUseTmpStorage && c.TempStoragePath == "" {
		return errors.New("tmp-storage-path must be set when oom-use-tmp-storage is enabled")
	}
	return nil
}
