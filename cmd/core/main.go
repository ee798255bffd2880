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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/smsdesk/pulse/pkg/config"
	"github.com/smsdesk/pulse/pkg/core"
	"github.com/smsdesk/pulse/pkg/core/api"
	"github.com/smsdesk/pulse/pkg/core/auth"
	"github.com/smsdesk/pulse/pkg/db"
	"github.com/smsdesk/pulse/pkg/events"
	"github.com/smsdesk/pulse/pkg/lifecycle"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

var (
	errFailedToLoadConfig = fmt.Errorf("failed to load config")
	errNoListenAddr       = errors.New("http.listen_addr is required")
	errNoDatabase         = errors.New("database configuration is required")
)

type coreConfig struct {
	HTTP            api.Config       `json:"http"`
	Database        *models.Database `json:"database"`
	Auth            auth.Config      `json:"auth"`
	NATS            *events.Config   `json:"nats,omitempty"`
	MetricsInterval models.Duration  `json:"metrics_interval,omitempty"`
	Logging         *logger.Config   `json:"logging,omitempty"`
}

func (c *coreConfig) Validate() error {
	if c.HTTP.ListenAddr == "" {
		return errNoListenAddr
	}

	if c.Database == nil {
		return errNoDatabase
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/pulse/core.json", "Path to core config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg coreConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{Level: "info", Output: "stdout"}
	}

	coreLogger, err := lifecycle.CreateComponentLogger("core", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database, coreLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	store := db.NewStore(pool, coreLogger)
	defer func() {
		if err := store.Close(); err != nil {
			coreLogger.Warn().Err(err).Msg("Error closing database")
		}
	}()

	authSvc := auth.NewAuth(&cfg.Auth, store, coreLogger)
	hub := core.NewHub(authSvc, store, nil, coreLogger)

	collector := core.NewCollector(hub, store, cfg.MetricsInterval.Value(core.DefaultCollectInterval), nil, coreLogger)
	hub.SetSnapshotProvider(collector)

	server := api.NewServer(&cfg.HTTP, coreLogger,
		api.WithAuth(authSvc),
		api.WithDB(store),
		api.WithHub(hub),
	)

	services := []lifecycle.Service{collector, server}

	if cfg.NATS != nil {
		relay, err := events.NewRelay(cfg.NATS, hub, coreLogger)
		if err != nil {
			return fmt.Errorf("failed to start event relay: %w", err)
		}

		services = append(services, relay)
	}

	return lifecycle.Run(ctx, coreLogger, services...)
}
