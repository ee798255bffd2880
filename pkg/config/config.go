/*
 * Copyright 2025 SMSDesk Pty Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads service configuration from local JSON files.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/smsdesk/pulse/pkg/logger"
)

var (
	errInvalidConfigPtr = errors.New("config must be a non-nil pointer")
	errLoadConfigFailed = errors.New("failed to load configuration")
)

// Validator is implemented by config structs that can check themselves
// after loading.
type Validator interface {
	Validate() error
}

// Config holds the configuration loading dependencies.
type Config struct {
	logger logger.Logger
}

// NewConfig initializes a new Config instance. A nil logger falls back to
// a test (no-op) logger; config loading failures are reported through the
// returned errors either way.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{logger: log}
}

// LoadAndValidate reads a JSON config file into dst and runs its
// Validate method when present.
func (c *Config) LoadAndValidate(_ context.Context, path string, dst interface{}) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read file '%s': %w", errLoadConfigFailed, path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: failed to unmarshal JSON from '%s': %w", errLoadConfigFailed, path, err)
	}

	if validator, ok := dst.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("%w: validation failed for '%s': %w", errLoadConfigFailed, path, err)
		}
	}

	c.logger.Debug().Str("path", path).Msg("Loaded configuration")

	return nil
}
