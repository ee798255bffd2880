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
	"strings"

	"github.com/smsdesk/pulse/pkg/client"
	"github.com/smsdesk/pulse/pkg/config"
	"github.com/smsdesk/pulse/pkg/lifecycle"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/poller"
)

var (
	errFailedToLoadConfig = fmt.Errorf("failed to load config")
	errNoAPIBaseURL       = errors.New("api_base_url is required")
	errNoAPIToken         = errors.New("api_token is required")
)

type daemonConfig struct {
	APIBaseURL string        `json:"api_base_url"`
	APIToken   string        `json:"api_token"`
	UserID     string        `json:"user_id,omitempty"`
	Poller     poller.Config `json:"poller"`
}

func (c *daemonConfig) Validate() error {
	if c.APIBaseURL == "" {
		return errNoAPIBaseURL
	}

	if c.APIToken == "" {
		return errNoAPIToken
	}

	return nil
}

// userID falls back to the id embedded in a legacy "user_<id>" token.
func (c *daemonConfig) userID() string {
	if c.UserID != "" {
		return c.UserID
	}

	return strings.TrimPrefix(c.APIToken, "user_")
}

// staticSession resolves the session from config; the daemon has no
// interactive login.
type staticSession struct {
	userID string
}

func (s staticSession) CurrentUserID(context.Context) (string, bool) {
	return s.userID, s.userID != ""
}

// pollerService adapts the poller to the lifecycle service contract: Start
// arms it and blocks until shutdown.
type pollerService struct {
	poller *poller.Poller
}

func (s *pollerService) Start(ctx context.Context) error {
	if err := s.poller.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return ctx.Err()
}

func (s *pollerService) Stop(_ context.Context) error {
	s.poller.Stop()
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/pulse/poller.json", "Path to poller config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg daemonConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Poller.Logging
	if logConfig == nil {
		logConfig = &logger.Config{Level: "info", Output: "stdout"}
	}

	pollerLogger, err := lifecycle.CreateComponentLogger("poller", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	rest := client.NewREST(cfg.APIBaseURL, cfg.APIToken, pollerLogger)

	p, err := poller.New(&cfg.Poller, poller.Deps{
		Sent:     rest,
		Inbox:    rest,
		Sessions: staticSession{userID: cfg.userID()},
		OnUpdate: func(u poller.Update) {
			pollerLogger.Info().
				Int("sent", len(u.Sent)).
				Int("inbox", len(u.Inbox)).
				Bool("has_sent", u.HasSent).
				Bool("has_inbox", u.HasInbox).
				Msg("Poll update")
		},
		Logger: pollerLogger,
	})
	if err != nil {
		return err
	}

	return lifecycle.Run(ctx, pollerLogger, &pollerService{poller: p})
}
