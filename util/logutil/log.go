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

package logutil

import (
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// DefaultLogLevel is the log level used when InitLogger is not called.
const DefaultLogLevel = "info"

// InitLogger initializes the global logger. level is one of zap's level
// strings ("debug", "info", "warn", "error"). An empty file routes logs
// to stderr.
func InitLogger(level, file string) error {
	cfg := &log.Config{Level: level}
	if file != "" {
		cfg.File = log.FileLogConfig{Filename: file}
	}
	logger, props, err := log.InitLogger(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(logger, props)
	return nil
}

// BgLogger returns the default global logger.
func BgLogger() *zap.Logger {
	return log.L()
}
